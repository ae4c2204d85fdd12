package utils

import (
	"context"
	"time"
)

// Course is one enumerated course page and the resources scraped from it.
type Course struct {
	Name      string
	URL       string
	Category  string
	Resources []ResourceDescriptor
}

// ResourceDescriptor is produced by the scraper and never mutated once queued.
type ResourceDescriptor struct {
	Name      string
	SourceURL string
	TypeHint  string
}

type QueueItem struct {
	ID                string
	Descriptor        ResourceDescriptor
	DestinationFolder string
	CourseName        string
}

type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Response is what a page navigation reports back. Header keys are lower-cased.
type Response struct {
	URL     string
	Status  int
	Headers map[string]string
}

// Page is one isolated browser tab. Every attempt gets a fresh one and must Close it.
type Page interface {
	Navigate(ctx context.Context, url string) (*Response, error)
	Content(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	Close() error
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeSkipped
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the terminal classification of one queue item.
type Outcome struct {
	Kind     OutcomeKind
	Item     QueueItem
	Filename string
	Path     string
	Bytes    int64 // written bytes on success, existing bytes on an "exists" skip
	Reason   string
	Attempts int
	Strategy string
	Err      error
}

// ProgressFunc is called with the bytes written so far and the total if known (0 otherwise).
type ProgressFunc func(downloaded, total int64)

// Stats is a point-in-time copy of the run counters.
type Stats struct {
	TotalFiles      int
	DownloadedFiles int
	SkippedFiles    int
	FailedFiles     int
	TotalBytes      int64
	CurrentCourse   string
	CurrentFile     string
	StartTime       time.Time
}

func (s Stats) Processed() int {
	return s.DownloadedFiles + s.SkippedFiles + s.FailedFiles
}
