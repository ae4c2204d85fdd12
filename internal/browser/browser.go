package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/coursefetch/internal/utils"
)

type Options struct {
	Headless          bool
	ExecPath          string
	UserAgent         string
	Flags             []string
	ProxyURL          string
	NavigationTimeout time.Duration
}

// Session owns one Chrome process. The main tab is used for login and scraping;
// resource pages are opened as separate tabs through NewPage.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	opts        Options
	closeOnce   sync.Once
}

func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}
	for _, flag := range opts.Flags {
		allocOpts = append(allocOpts, chromedp.Flag(flag, true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	s := &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      cancel,
		opts:        opts,
	}
	// forced downloads must surface as aborted navigations instead of landing in ~/Downloads
	err := chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorDeny),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("error launching browser: %w", err)
	}
	log.Info().Str("op", "browser/browser").Bool("headless", opts.Headless).Msg("Browser launched")
	return s, nil
}

// Main returns the session's primary tab.
func (s *Session) Main() *Page {
	return &Page{ctx: s.ctx, navTimeout: s.opts.NavigationTimeout, main: true}
}

// NewPage opens a fresh isolated tab in the same browser.
func (s *Session) NewPage(ctx context.Context) (utils.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ctx.Err(); err != nil {
		return nil, fmt.Errorf("browser connection closed: %w", err)
	}
	tabCtx, cancel := chromedp.NewContext(s.ctx)
	// first Run on a new context is what actually creates the target
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("error creating page: %w", err)
	}
	return &Page{ctx: tabCtx, cancel: cancel, navTimeout: s.opts.NavigationTimeout}, nil
}

// Cookies returns every cookie the browser holds.
func (s *Session) Cookies(ctx context.Context) ([]utils.Cookie, error) {
	var raw []*network.Cookie
	err := runBound(ctx, s.ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("error reading cookies: %w", err)
	}
	return convertCookies(raw), nil
}

// UserAgent reports the user agent the browser actually sends.
func (s *Session) UserAgent(ctx context.Context) (string, error) {
	var ua string
	err := runBound(ctx, s.ctx, chromedp.ActionFunc(func(c context.Context) error {
		_, _, _, userAgent, _, err := browser.GetVersion().Do(c)
		ua = userAgent
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("error reading user agent: %w", err)
	}
	return ua, nil
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.allocCancel()
		log.Info().Str("op", "browser/browser").Msg("Browser closed")
	})
}

func convertCookies(raw []*network.Cookie) []utils.Cookie {
	cookies := make([]utils.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, utils.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
	}
	return cookies
}

// bind derives a context from target (a tab context) that also honours the deadline
// and cancellation of ctx. Cancelling it aborts only the actions run with it.
func bind(ctx, target context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(target)
	var cancelDeadline context.CancelFunc = func() {}
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancelDeadline()
		cancel()
	}
}

func runBound(ctx, target context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := bind(ctx, target)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}
