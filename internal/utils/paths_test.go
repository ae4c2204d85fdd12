package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	in := `a<b>c:d"e/f\g|h?i*j`
	out := SanitizeFilename(in)
	assert.Equal(t, "a_b_c_d_e_f_g_h_i_j", out)
	assert.Equal(t, utf8.RuneCountInString(in), utf8.RuneCountInString(out))
	assert.Equal(t, "Wykład 1 – wstęp", SanitizeFilename("Wykład 1 – wstęp"))
}

func TestExtensionFor(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		hint     string
		expected string
	}{
		{"compound extension upper case", "https://x/file.DOCX", "unknown", ".docx"},
		{"plain doc", "https://x/file.doc?forcedownload=1", "unknown", ".doc"},
		{"pptx", "https://x/slides.pptx", "unknown", ".pptx"},
		{"xls", "https://x/sheet.XLS", "unknown", ".xls"},
		{"pdf wins over hint", "https://x/pluginfile.php/1/a.pdf", "docx", ".pdf"},
		{"zip by accept param", "https://cloud/index.php?accept=zip", "unknown", ".zip"},
		{"video", "https://x/lecture.mov", "unknown", ".mov"},
		{"hint fallback", "https://x/mod/resource/view.php?id=4", "pdf", ".pdf"},
		{"html fallback", "https://x/unknown-path", "unknown", ".html"},
		{"empty hint", "https://x/unknown-path", "", ".html"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtensionFor(tc.url, tc.hint))
		})
	}
}

func TestNormalizeFolderName(t *testing.T) {
	assert.Equal(t, "Programming Basics ab", NormalizeFolderName("  Programming:   Basics\t<a/b> "))
	long := strings.Repeat("x", 300)
	assert.Len(t, NormalizeFolderName(long), 255)
}

func TestNormalizeFolderNameMultibyteLimit(t *testing.T) {
	name := NormalizeFolderName(strings.Repeat("Żółć ", 60))
	assert.LessOrEqual(t, len(name), 255)
	assert.True(t, utf8.ValidString(name))
	assert.True(t, strings.HasPrefix(name, "Żółć Żółć"))
	assert.Equal(t, strings.TrimSpace(name), name)
}

