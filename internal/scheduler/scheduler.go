package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/coursefetch/internal/output"
	"github.com/tanq16/coursefetch/internal/utils"
)

// Enumerator lists the resources of one course.
type Enumerator interface {
	Resources(ctx context.Context, course utils.Course) ([]utils.ResourceDescriptor, error)
}

type ItemDownloader interface {
	Download(ctx context.Context, item utils.QueueItem, onProgress utils.ProgressFunc) utils.Outcome
}

// Reporter receives every state change. Calls arrive from the scheduler goroutine only.
type Reporter interface {
	Update(processed int, stats utils.Stats, status string)
	SetStatus(status string)
	ReportError(name, course, reason string)
}

type Options struct {
	Concurrency int
	WindowPause time.Duration
}

type Scheduler struct {
	downloader ItemDownloader
	reporter   Reporter
	opts       Options
	sleep      func(ctx context.Context, d time.Duration)
}

func New(dl ItemDownloader, reporter Reporter, opts Options) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Scheduler{downloader: dl, reporter: reporter, opts: opts, sleep: sleepContext}
}

// BuildQueue enumerates every course in order and flattens the result. Losing the
// browser here is fatal; any other enumeration error only drops that course.
func BuildQueue(ctx context.Context, enum Enumerator, courses []utils.Course, root string, reporter Reporter) ([]utils.QueueItem, error) {
	var queue []utils.QueueItem
	for i, course := range courses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if reporter != nil {
			reporter.SetStatus(fmt.Sprintf("Scanning course %d/%d: %s", i+1, len(courses), course.Name))
		}
		resources := course.Resources
		if len(resources) == 0 {
			var err error
			resources, err = enum.Resources(ctx, course)
			if err != nil {
				if utils.IsBrowserLost(err) {
					return nil, fmt.Errorf("browser connection lost while scanning %s: %w", course.Name, err)
				}
				log.Error().Str("op", "scheduler/scheduler").Err(err).Str("course", course.Name).Msg("Error reading course resources")
				if reporter != nil {
					reporter.ReportError(course.Name, course.Name, err.Error())
				}
				continue
			}
		}
		folder := filepath.Join(root, utils.NormalizeFolderName(course.Name))
		for _, desc := range resources {
			queue = append(queue, utils.QueueItem{
				ID:                uuid.New().String(),
				Descriptor:        desc,
				DestinationFolder: folder,
				CourseName:        course.Name,
			})
		}
		log.Info().Str("op", "scheduler/scheduler").Str("course", course.Name).Int("resources", len(resources)).Msg("Course scanned")
	}
	return queue, nil
}

// Run processes queue in fixed windows and returns the final counters. Individual
// failures never stop the run; only ctx cancellation ends it early.
func (s *Scheduler) Run(ctx context.Context, queue []utils.QueueItem) utils.Stats {
	agg := NewAggregator(len(queue))
	log.Info().Str("op", "scheduler/scheduler").Int("items", len(queue)).Int("window", s.opts.Concurrency).Msg("Starting downloads")
	for start := 0; start < len(queue); start += s.opts.Concurrency {
		if ctx.Err() != nil {
			log.Warn().Str("op", "scheduler/scheduler").Msg("Run cancelled, stopping before next window")
			break
		}
		end := min(start+s.opts.Concurrency, len(queue))
		s.runWindow(ctx, queue[start:end], agg)
		if end < len(queue) {
			s.sleep(ctx, s.opts.WindowPause)
		}
	}
	stats := agg.Snapshot()
	log.Info().Str("op", "scheduler/scheduler").
		Int("downloaded", stats.DownloadedFiles).
		Int("skipped", stats.SkippedFiles).
		Int("failed", stats.FailedFiles).
		Int64("bytes", stats.TotalBytes).
		Msg("Run finished")
	return stats
}

type windowEvent struct {
	index    int
	outcome  *utils.Outcome
	status   string
	progress bool
}

// runWindow starts every item of window at once and consumes their events on the
// calling goroutine, so statistics and reporting have a single writer.
func (s *Scheduler) runWindow(ctx context.Context, window []utils.QueueItem, agg *Aggregator) {
	recorded := make([]bool, len(window))
	events := make(chan windowEvent, len(window)*4)
	var wg sync.WaitGroup
	for i, item := range window {
		wg.Add(1)
		go func(index int, item utils.QueueItem) {
			defer wg.Done()
			outcome := s.downloadItem(ctx, item, func(downloaded, total int64) {
				select {
				case events <- windowEvent{index: index, progress: true, status: output.FormatFileProgress(item.Descriptor.Name, downloaded, total)}:
				default:
				}
			})
			events <- windowEvent{index: index, outcome: &outcome}
		}(i, item)
	}
	go func() {
		wg.Wait()
		close(events)
	}()

	// the window is not over until every item goroutine has exited
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("op", "scheduler/scheduler").Msgf("Window failed: %v", r)
			for i, item := range window {
				if recorded[i] {
					continue
				}
				recorded[i] = true
				s.recordQuietly(agg, utils.Outcome{
					Kind:   utils.OutcomeFailed,
					Item:   item,
					Reason: fmt.Sprintf("window failed: %v", r),
				})
			}
			for range events {
			}
		}
	}()

	for _, item := range window {
		stats := agg.SetCurrent(item.CourseName, item.Descriptor.Name)
		s.update(stats, fmt.Sprintf("Processing %s", item.Descriptor.Name))
	}
	for ev := range events {
		if ev.progress {
			if !recorded[ev.index] {
				s.reporter.SetStatus(ev.status)
			}
			continue
		}
		recorded[ev.index] = true
		s.record(agg, *ev.outcome)
	}
}

// recordQuietly counts o even when the reporter panics again.
func (s *Scheduler) recordQuietly(agg *Aggregator, o utils.Outcome) {
	stats := agg.Record(o)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("op", "scheduler/scheduler").Str("resource", o.Item.Descriptor.Name).Msgf("Reporter failed: %v", r)
		}
	}()
	s.report(stats, o)
}

// downloadItem converts a panic inside one item into that item's failure.
func (s *Scheduler) downloadItem(ctx context.Context, item utils.QueueItem, onProgress utils.ProgressFunc) (outcome utils.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("op", "scheduler/scheduler").Str("resource", item.Descriptor.Name).Msgf("Download panicked: %v", r)
			outcome = utils.Outcome{Kind: utils.OutcomeFailed, Item: item, Reason: fmt.Sprintf("unexpected error: %v", r)}
		}
	}()
	return s.downloader.Download(ctx, item, onProgress)
}

func (s *Scheduler) record(agg *Aggregator, o utils.Outcome) {
	s.report(agg.Record(o), o)
}

func (s *Scheduler) report(stats utils.Stats, o utils.Outcome) {
	name := o.Item.Descriptor.Name
	var status string
	switch o.Kind {
	case utils.OutcomeSuccess:
		status = fmt.Sprintf("Downloaded %s (%s)", name, output.FormatBytes(uint64(max(o.Bytes, 0))))
		log.Info().Str("op", "scheduler/scheduler").Str("resource", name).Str("path", o.Path).Int64("bytes", o.Bytes).Int("attempts", o.Attempts).Msg("Downloaded")
	case utils.OutcomeSkipped:
		status = fmt.Sprintf("Skipped %s: %s", name, o.Reason)
		log.Info().Str("op", "scheduler/scheduler").Str("resource", name).Str("reason", o.Reason).Msg("Skipped")
	default:
		status = fmt.Sprintf("Failed %s", name)
		s.reporter.ReportError(name, o.Item.CourseName, o.Reason)
	}
	s.update(stats, status)
}

func (s *Scheduler) update(stats utils.Stats, status string) {
	s.reporter.Update(stats.Processed(), stats, status)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
