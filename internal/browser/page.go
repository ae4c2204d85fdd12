package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/tanq16/coursefetch/internal/utils"
)

type Page struct {
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
	main       bool
}

// Navigate loads url and waits for the document. A forced download shows up as a
// "net::ERR_ABORTED" error because the session denies downloads.
func (p *Page) Navigate(ctx context.Context, url string) (*utils.Response, error) {
	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()
	runCtx, cancelRun := bind(navCtx, p.ctx)
	defer cancelRun()
	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if resp == nil {
		current, _ := p.URL(ctx)
		return &utils.Response{URL: current, Headers: map[string]string{}}, nil
	}
	headers := make(map[string]string, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return &utils.Response{URL: resp.URL, Status: int(resp.Status), Headers: headers}, nil
}

// Content returns the rendered document's outer HTML.
func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	err := runBound(ctx, p.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("error reading page content: %w", err)
	}
	return html, nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var location string
	if err := runBound(ctx, p.ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

func (p *Page) Cookies(ctx context.Context) ([]utils.Cookie, error) {
	var raw []*network.Cookie
	err := runBound(ctx, p.ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("error reading cookies: %w", err)
	}
	return convertCookies(raw), nil
}

// Run executes raw chromedp actions on this tab; the site adapter uses it for form input.
func (p *Page) Run(ctx context.Context, actions ...chromedp.Action) error {
	return runBound(ctx, p.ctx, actions...)
}

// Close closes the tab. The main tab is only closed with the session.
func (p *Page) Close() error {
	if p.main || p.cancel == nil {
		return nil
	}
	p.cancel()
	return nil
}
