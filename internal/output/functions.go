package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// FormatBytes converts bytes to human-readable format
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed calculates and formats download speed
func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed == 0 {
		return "0 B/s"
	}
	bps := float64(bytes) / elapsed
	formatted := FormatBytes(uint64(bps))
	return formatted[:len(formatted)-1] + "B/s"
}

// FormatFileProgress renders the per-file part of the status line.
func FormatFileProgress(name string, downloaded, total int64) string {
	label := name
	if runes := []rune(name); len(runes) > 20 {
		label = string(runes[:20]) + "..."
	}
	if total > 0 {
		pct := int(float64(downloaded) / float64(total) * 100)
		return fmt.Sprintf("%s %s %s/%s (%d%%)", StyleSymbols["arrow"], label,
			FormatBytes(uint64(downloaded)), FormatBytes(uint64(total)), pct)
	}
	frame := spinnerFrames[(time.Now().UnixMilli()/100)%int64(len(spinnerFrames))]
	return fmt.Sprintf("%s %s %s %s", StyleSymbols["arrow"], label, FormatBytes(uint64(downloaded)), frame)
}

func progressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total <= 0 {
		total = 1
	}
	current = max(0, min(current, total))
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := strings.Repeat(StyleSymbols["hline"], filled) + strings.Repeat(StyleSymbols["empty"], width-filled)
	return fmt.Sprintf("%s %3.0f%%", bar, percent*100)
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 120 // Default fallback width
	}
	return width
}
