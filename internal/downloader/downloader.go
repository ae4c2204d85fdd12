package downloader

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/coursefetch/internal/fetcher"
	"github.com/tanq16/coursefetch/internal/resolver"
	"github.com/tanq16/coursefetch/internal/utils"
)

type PageOpener interface {
	NewPage(ctx context.Context) (utils.Page, error)
}

type Resolver interface {
	Resolve(ctx context.Context, page resolver.Renderer, desc utils.ResourceDescriptor) (*resolver.Resolved, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) (*fetcher.Result, error)
}

// Identity is the session state replayed on every byte request.
type Identity struct {
	Cookies   []utils.Cookie
	UserAgent string
}

type Config struct {
	MaxRetries      int
	PageRetryDelay  time.Duration
	FetchRetryDelay time.Duration
}

// Downloader runs resolve+fetch for one queue item as a single retryable unit.
type Downloader struct {
	pages    PageOpener
	resolver Resolver
	fetcher  Fetcher
	identity Identity
	cfg      Config
	sleep    func(ctx context.Context, d time.Duration)
}

func New(pages PageOpener, res Resolver, fetch Fetcher, identity Identity, cfg Config) *Downloader {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Downloader{
		pages:    pages,
		resolver: res,
		fetcher:  fetch,
		identity: identity,
		cfg:      cfg,
		sleep:    sleepContext,
	}
}

// attemptError carries the stage an attempt died in, which picks the retry delay.
type attemptError struct {
	stage    string
	resolved *resolver.Resolved
	err      error
}

func (e *attemptError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

// Download never returns an error: every path ends in an Outcome.
func (d *Downloader) Download(ctx context.Context, item utils.QueueItem, onProgress utils.ProgressFunc) utils.Outcome {
	maxAttempts := d.cfg.MaxRetries + 1
	outcome := utils.Outcome{Item: item}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome.Attempts = attempt
		res, err := d.attempt(ctx, item, onProgress)
		if err == nil {
			res.Attempts = attempt
			return res
		}

		var aErr *attemptError
		errors.As(err, &aErr)
		if aErr != nil && aErr.resolved != nil {
			outcome.Strategy = string(aErr.resolved.Strategy)
		}
		retryable := utils.IsRetryable(err) && ctx.Err() == nil
		logFailure(item, aErr, attempt, maxAttempts, retryable, err)
		if !retryable || attempt == maxAttempts {
			outcome.Kind = utils.OutcomeFailed
			outcome.Err = err
			outcome.Reason = err.Error()
			return outcome
		}
		delay := d.cfg.FetchRetryDelay
		if aErr != nil && aErr.stage == "page" {
			delay = d.cfg.PageRetryDelay
		}
		d.sleep(ctx, delay)
	}
	return outcome
}

func (d *Downloader) attempt(ctx context.Context, item utils.QueueItem, onProgress utils.ProgressFunc) (utils.Outcome, error) {
	page, err := d.pages.NewPage(ctx)
	if err != nil {
		return utils.Outcome{}, &attemptError{stage: "page", err: err}
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.Debug().Str("op", "downloader/downloader").Err(cerr).Msg("Error closing page")
		}
	}()

	resolved, err := d.resolver.Resolve(ctx, page, item.Descriptor)
	if err != nil {
		var skip *resolver.SkipError
		if errors.As(err, &skip) {
			return utils.Outcome{Kind: utils.OutcomeSkipped, Item: item, Reason: skip.Reason}, nil
		}
		return utils.Outcome{}, &attemptError{stage: "resolve", err: err}
	}

	filename := DestinationName(item.Descriptor, resolved)
	dest := filepath.Join(item.DestinationFolder, filename)
	referer := resolved.FinalURL
	if referer == "" {
		referer = item.Descriptor.SourceURL
	}
	result, err := d.fetcher.Fetch(ctx, fetcher.Request{
		URL:         resolved.URL,
		Cookies:     d.cookies(ctx, page),
		UserAgent:   d.identity.UserAgent,
		Referer:     referer,
		Destination: dest,
		OnProgress:  onProgress,
	})
	if err != nil {
		return utils.Outcome{}, &attemptError{stage: "fetch", resolved: resolved, err: err}
	}

	outcome := utils.Outcome{
		Kind:     utils.OutcomeSuccess,
		Item:     item,
		Filename: filename,
		Path:     dest,
		Bytes:    result.Bytes,
		Strategy: string(resolved.Strategy),
	}
	if result.Skipped {
		outcome.Kind = utils.OutcomeSkipped
		outcome.Reason = result.Reason
	}
	return outcome, nil
}

// cookies prefers the page's own jar and falls back to the login session's.
func (d *Downloader) cookies(ctx context.Context, page utils.Page) []utils.Cookie {
	cookies, err := page.Cookies(ctx)
	if err != nil || len(cookies) == 0 {
		return d.identity.Cookies
	}
	return cookies
}

// DestinationName is the sanitized descriptor name plus the extension derived from
// the resolved URL. A resolved filename is consulted when the URL names no type.
func DestinationName(desc utils.ResourceDescriptor, resolved *resolver.Resolved) string {
	ext := utils.ExtensionFor(resolved.URL, desc.TypeHint)
	if ext == ".html" && resolved.Filename != "" {
		ext = utils.ExtensionFor(resolved.Filename, desc.TypeHint)
	}
	return utils.SanitizeFilename(desc.Name) + ext
}

func logFailure(item utils.QueueItem, aErr *attemptError, attempt, maxAttempts int, retryable bool, err error) {
	event := log.Warn()
	if !retryable || attempt == maxAttempts {
		event = log.Error()
	}
	event = event.Str("op", "downloader/downloader").Err(err).
		Str("resource", item.Descriptor.Name).
		Str("url", item.Descriptor.SourceURL).
		Str("course", item.CourseName).
		Str("folder", item.DestinationFolder).
		Int("attempt", attempt).
		Int("max_attempts", maxAttempts).
		Bool("retryable", retryable)
	if aErr != nil {
		event = event.Str("stage", aErr.stage)
		if aErr.resolved != nil {
			event = event.Str("resolved_url", aErr.resolved.URL).Str("strategy", string(aErr.resolved.Strategy))
		}
	}
	event.Msgf("Attempt %d/%d failed for %s", attempt, maxAttempts, item.Descriptor.Name)
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
