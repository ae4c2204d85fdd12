package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tanq16/coursefetch/internal/utils"
)

type ErrorReport struct {
	Name   string
	Course string
	Reason string
	Time   time.Time
}

// Manager renders the single updating status line for a run and the summary
// printed once it ends. Update is safe to call from any goroutine.
type Manager struct {
	mutex     sync.Mutex
	out       io.Writer
	width     func() int
	total     int
	started   bool
	startTime time.Time
	lastStats utils.Stats
	lastText  string
	errors    []ErrorReport
}

func NewManager() *Manager {
	return NewManagerWithWriter(os.Stdout, getTerminalWidth)
}

func NewManagerWithWriter(w io.Writer, width func() int) *Manager {
	if width == nil {
		width = func() int { return 120 }
	}
	return &Manager{out: w, width: width}
}

func (m *Manager) Start(total int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.started {
		return
	}
	m.total = total
	m.started = true
	m.startTime = time.Now()
	m.render(0, utils.Stats{TotalFiles: total}, FPending("Initializing..."))
}

// Update redraws the status line. Calls before Start only record the status text.
func (m *Manager) Update(processed int, stats utils.Stats, status string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.lastStats = stats
	m.lastText = status
	if !m.started {
		return
	}
	m.render(processed, stats, status)
}

// SetStatus replaces only the status text, keeping the last counters.
func (m *Manager) SetStatus(status string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.lastText = status
	if !m.started {
		return
	}
	m.render(m.lastStats.Processed(), m.lastStats, status)
}

func (m *Manager) ReportError(name, course, reason string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.errors = append(m.errors, ErrorReport{Name: name, Course: course, Reason: reason, Time: time.Now()})
}

func (m *Manager) Stop() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.started {
		return
	}
	m.started = false
	fmt.Fprintln(m.out)
}

func (m *Manager) render(processed int, stats utils.Stats, status string) {
	total := max(m.total, stats.TotalFiles)
	counts := fmt.Sprintf("%s %s %s",
		FSuccess(fmt.Sprintf("%s %d", StyleSymbols["pass"], stats.DownloadedFiles)),
		FWarning(fmt.Sprintf("%s %d", StyleSymbols["skip"], stats.SkippedFiles)),
		FError(fmt.Sprintf("%s %d", StyleSymbols["fail"], stats.FailedFiles)))
	prefix := fmt.Sprintf("%s | %d/%d | %s | %d%% | ",
		debugStyle.Render(progressBar(int64(processed), int64(total), 30)),
		processed, total, counts, successRate(stats))
	room := m.width() - lipgloss.Width(prefix) - 1
	if room < 10 {
		room = 10
	}
	if lipgloss.Width(status) > room {
		status = lipgloss.NewStyle().MaxWidth(room).Render(status)
	}
	fmt.Fprintf(m.out, "\r\033[K%s%s", prefix, status)
}

func successRate(stats utils.Stats) int {
	if stats.TotalFiles == 0 {
		return 0
	}
	return int(float64(stats.DownloadedFiles+stats.SkippedFiles) / float64(stats.TotalFiles) * 100)
}

// ShowSummary prints the final counters and every failure collected during the run.
func (m *Manager) ShowSummary(stats utils.Stats) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	pad := strings.Repeat(" ", 2)
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, pad+headerStyle.Render("Download summary"))
	fmt.Fprintln(m.out, pad+success2Style.Render(fmt.Sprintf("Downloaded %d of %d", stats.DownloadedFiles, stats.TotalFiles)))
	fmt.Fprintln(m.out, pad+warningStyle.Render(fmt.Sprintf("Skipped %d of %d", stats.SkippedFiles, stats.TotalFiles)))
	if stats.FailedFiles > 0 {
		fmt.Fprintln(m.out, pad+errorStyle.Render(fmt.Sprintf("Failed %d of %d", stats.FailedFiles, stats.TotalFiles)))
	}
	fmt.Fprintln(m.out, pad+infoStyle.Render(fmt.Sprintf("Total size %s", FormatBytes(uint64(max(stats.TotalBytes, 0))))))
	fmt.Fprintln(m.out, pad+infoStyle.Render(fmt.Sprintf("Success rate %d%%", successRate(stats))))
	if !stats.StartTime.IsZero() {
		elapsed := time.Since(stats.StartTime)
		fmt.Fprintln(m.out, pad+debugStyle.Render(fmt.Sprintf("Took %s at %s", elapsed.Round(time.Second), FormatSpeed(stats.TotalBytes, elapsed.Seconds()))))
	}
	m.displayErrors()
	fmt.Fprintln(m.out)
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, e := range m.errors {
		fmt.Fprintf(m.out, "%s%s %s %s\n",
			strings.Repeat(" ", 4),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", e.Time.Format("15:04:05"))),
			errorStyle.Render(fmt.Sprintf("%s (%s)", e.Name, e.Course)))
		fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 6), streamStyle.Render(e.Reason))
	}
}

func (m *Manager) Errors() []ErrorReport {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]ErrorReport(nil), m.errors...)
}
