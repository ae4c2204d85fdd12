package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tanq16/coursefetch/internal/utils"
)

func TestManagerRendersStatusLine(t *testing.T) {
	var buf bytes.Buffer
	m := NewManagerWithWriter(&buf, func() int { return 200 })

	m.Update(0, utils.Stats{}, "ignored before start")
	assert.Empty(t, buf.String())

	m.Start(4)
	stats := utils.Stats{TotalFiles: 4, DownloadedFiles: 1, SkippedFiles: 1}
	m.Update(2, stats, "Downloaded: notes.pdf")
	out := buf.String()
	assert.Contains(t, out, "2/4")
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "Downloaded: notes.pdf")
	assert.True(t, strings.HasPrefix(out[strings.LastIndex(out, "\r"):], "\r\033[K"))

	m.SetStatus("working")
	assert.Contains(t, buf.String(), "working")
	m.Stop()
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestManagerSummaryListsErrors(t *testing.T) {
	var buf bytes.Buffer
	m := NewManagerWithWriter(&buf, nil)
	m.ReportError("Lecture 3", "Algorithms", "downloaded file is empty or an error page")

	m.ShowSummary(utils.Stats{TotalFiles: 3, DownloadedFiles: 1, SkippedFiles: 1, FailedFiles: 1, TotalBytes: 2048})
	out := buf.String()
	assert.Contains(t, out, "Downloaded 1 of 3")
	assert.Contains(t, out, "Failed 1 of 3")
	assert.Contains(t, out, "2.00 KB")
	assert.Contains(t, out, "Lecture 3 (Algorithms)")
	assert.Contains(t, out, "error page")
	assert.Len(t, m.Errors(), 1)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.50 KB", FormatBytes(1536))
	assert.Equal(t, "2.00 MB", FormatBytes(2*1024*1024))
}

func TestFormatFileProgress(t *testing.T) {
	line := FormatFileProgress("A very long lecture file name.pdf", 512, 1024)
	assert.Contains(t, line, "A very long lecture ...")
	assert.Contains(t, line, "(50%)")
	assert.Contains(t, FormatFileProgress("clip.mp4", 2048, 0), "2.00 KB")
}
