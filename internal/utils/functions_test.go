package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	root := t.TempDir()
	courseA := filepath.Join(root, "Course A")
	courseB := filepath.Join(root, "Course B")
	require.NoError(t, os.MkdirAll(TempDir(courseA), 0755))
	require.NoError(t, os.MkdirAll(TempDir(courseB), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(TempDir(courseA), "x.pdf.part"), []byte("partial"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(courseA, "kept.pdf"), []byte("kept"), 0644))

	removed, err := Clean(root)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.NoDirExists(t, TempDir(courseA))
	assert.FileExists(t, filepath.Join(courseA, "kept.pdf"))

	removed, err = Clean(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
}

func TestCookieHeader(t *testing.T) {
	header := CookieHeader([]Cookie{{Name: "MoodleSession", Value: "abc"}, {Name: ""}, {Name: "lang", Value: "pl"}})
	assert.Equal(t, "MoodleSession=abc; lang=pl", header)
}
