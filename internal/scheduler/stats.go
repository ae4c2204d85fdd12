package scheduler

import (
	"sync"
	"time"

	"github.com/tanq16/coursefetch/internal/utils"
)

// Aggregator owns the run counters. Counters only ever increase.
type Aggregator struct {
	mutex sync.Mutex
	stats utils.Stats
}

func NewAggregator(total int) *Aggregator {
	return &Aggregator{stats: utils.Stats{TotalFiles: total, StartTime: time.Now()}}
}

// Record counts one terminal outcome and returns the resulting snapshot.
func (a *Aggregator) Record(o utils.Outcome) utils.Stats {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	switch o.Kind {
	case utils.OutcomeSuccess:
		a.stats.DownloadedFiles++
		a.stats.TotalBytes += o.Bytes
	case utils.OutcomeSkipped:
		a.stats.SkippedFiles++
		a.stats.TotalBytes += o.Bytes
	default:
		a.stats.FailedFiles++
	}
	return a.stats
}

func (a *Aggregator) SetCurrent(course, file string) utils.Stats {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.stats.CurrentCourse = course
	a.stats.CurrentFile = file
	return a.stats
}

func (a *Aggregator) Snapshot() utils.Stats {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.stats
}
