package utils

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

// TempDir returns the scratch directory used for partial downloads next to dest.
func TempDir(destinationFolder string) string {
	return filepath.Join(destinationFolder, TempDirName)
}

// Truncate shortens s to n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// Clean removes every partial-download directory under root and returns how many it removed.
func Clean(root string) (int, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return 0, nil
	}
	var tempDirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == TempDirName {
			tempDirs = append(tempDirs, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, dir := range tempDirs {
		if err := os.RemoveAll(dir); err != nil {
			return 0, err
		}
	}
	return len(tempDirs), nil
}
