package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/coursefetch/internal/config"
	"github.com/tanq16/coursefetch/internal/utils"
)

type StrategyKind string

const (
	ContentDisposition      StrategyKind = "content-disposition"
	DirectURL               StrategyKind = "direct-url"
	ScrapedLink             StrategyKind = "scraped-link"
	AbortedNavigationDirect StrategyKind = "aborted-navigation-direct"
)

const (
	ReasonNotDownloadable = "not a downloadable file"
	ReasonBlankNavigation = "blank navigation"
)

// ErrUnresolved means the page looks like it carries a file but no strategy could locate it.
var ErrUnresolved = errors.New("could not find a valid download link or content on the page")

// SkipError is the expected "nothing to download here" signal. It is not a failure.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// Resolved is the byte source picked for one descriptor on one attempt.
type Resolved struct {
	URL      string
	Filename string
	Strategy StrategyKind
	Method   string // sub-method of a scraped link
	FinalURL string
}

// Renderer is the part of a browser page the resolver needs.
type Renderer interface {
	Navigate(ctx context.Context, url string) (*utils.Response, error)
	Content(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
}

// Navigation is the state every strategy inspects after the page was loaded.
type Navigation struct {
	Descriptor utils.ResourceDescriptor
	Aborted    bool
	Response   *utils.Response
	FinalURL   string

	page    Renderer
	docOnce sync.Once
	doc     *goquery.Document
	docErr  error
}

// Document parses the rendered DOM once, bounded by timeout.
func (n *Navigation) Document(ctx context.Context, timeout time.Duration) (*goquery.Document, error) {
	n.docOnce.Do(func() {
		if n.page == nil {
			n.docErr = errors.New("no rendered page")
			return
		}
		evalCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		html, err := n.page.Content(evalCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || evalCtx.Err() != nil {
				n.docErr = fmt.Errorf("page evaluation timeout: %w", err)
			} else {
				n.docErr = err
			}
			return
		}
		n.doc, n.docErr = goquery.NewDocumentFromReader(strings.NewReader(html))
	})
	return n.doc, n.docErr
}

// Strategy returns (nil, nil) when it does not apply to the navigation.
type Strategy interface {
	Kind() StrategyKind
	Resolve(ctx context.Context, nav *Navigation) (*Resolved, error)
}

type Resolver struct {
	strategies       []Strategy
	fileIndicators   []string
	indicatorTimeout time.Duration
	evalTimeout      time.Duration
}

// New builds the default chain, most reliable signal first.
func New(sel config.Selectors, evalTimeout, indicatorTimeout time.Duration) *Resolver {
	return NewWithStrategies([]Strategy{
		&abortedNavigation{},
		&contentDisposition{},
		&directURL{servingPaths: sel.FileServingPaths, extensions: sel.DirectExtensions},
		&scrapedLink{selectors: sel, timeout: evalTimeout},
	}, sel.FileIndicators, evalTimeout, indicatorTimeout)
}

func NewWithStrategies(strategies []Strategy, fileIndicators []string, evalTimeout, indicatorTimeout time.Duration) *Resolver {
	if evalTimeout == 0 {
		evalTimeout = 10 * time.Second
	}
	if indicatorTimeout == 0 {
		indicatorTimeout = 5 * time.Second
	}
	return &Resolver{
		strategies:       strategies,
		fileIndicators:   fileIndicators,
		evalTimeout:      evalTimeout,
		indicatorTimeout: indicatorTimeout,
	}
}

// Resolve navigates page to the descriptor and walks the strategy chain. It returns
// a *SkipError when the page holds nothing downloadable.
func (r *Resolver) Resolve(ctx context.Context, page Renderer, desc utils.ResourceDescriptor) (*Resolved, error) {
	nav, err := r.navigate(ctx, page, desc)
	if err != nil {
		return nil, err
	}
	for _, s := range r.strategies {
		res, err := s.Resolve(ctx, nav)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Kind(), err)
		}
		if res != nil {
			res.Strategy = s.Kind()
			res.FinalURL = nav.FinalURL
			log.Debug().Str("op", "resolver/resolver").Str("strategy", string(res.Strategy)).Str("method", res.Method).Str("url", res.URL).Msgf("Resolved %s", desc.Name)
			return res, nil
		}
	}

	if isBlank(nav.FinalURL) {
		return nil, &SkipError{Reason: ReasonBlankNavigation}
	}
	hasFile, err := r.hasFileIndicator(ctx, nav)
	if err != nil {
		return nil, err
	}
	if !hasFile {
		return nil, &SkipError{Reason: ReasonNotDownloadable}
	}
	return nil, fmt.Errorf("%w (final URL %s)", ErrUnresolved, nav.FinalURL)
}

func (r *Resolver) navigate(ctx context.Context, page Renderer, desc utils.ResourceDescriptor) (*Navigation, error) {
	nav := &Navigation{Descriptor: desc, page: page}
	resp, err := page.Navigate(ctx, desc.SourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isAbortedNavigation(err) {
			return nil, err
		}
		log.Debug().Str("op", "resolver/resolver").Err(err).Msg("Navigation aborted, likely a direct download trigger")
		nav.Aborted = true
		nav.FinalURL = desc.SourceURL
		return nav, nil
	}
	nav.Response = resp
	nav.FinalURL = resp.URL
	if nav.FinalURL == "" {
		if current, err := page.URL(ctx); err == nil {
			nav.FinalURL = current
		}
	}
	return nav, nil
}

func (r *Resolver) hasFileIndicator(ctx context.Context, nav *Navigation) (bool, error) {
	if len(r.fileIndicators) == 0 {
		return false, nil
	}
	doc, err := nav.Document(ctx, r.indicatorTimeout)
	if err != nil {
		return false, fmt.Errorf("file check: %w", err)
	}
	return doc.Find(strings.Join(r.fileIndicators, ", ")).Length() > 0, nil
}

// isAbortedNavigation matches the browser cancelling a page load, which is what a
// forced attachment download looks like, and the navigation timing out.
func isAbortedNavigation(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(err.Error(), "ERR_ABORTED")
}

func isBlank(u string) bool {
	switch strings.TrimSpace(u) {
	case "", "about:blank", "not-visited":
		return true
	}
	return false
}
