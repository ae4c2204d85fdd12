package downloader

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/coursefetch/internal/fetcher"
	"github.com/tanq16/coursefetch/internal/resolver"
	"github.com/tanq16/coursefetch/internal/utils"
)

type stubPage struct {
	cookies []utils.Cookie
	closed  bool
}

func (p *stubPage) Navigate(context.Context, string) (*utils.Response, error) {
	return &utils.Response{}, nil
}
func (p *stubPage) Content(context.Context) (string, error) { return "", nil }
func (p *stubPage) URL(context.Context) (string, error)     { return "", nil }
func (p *stubPage) Cookies(context.Context) ([]utils.Cookie, error) {
	return p.cookies, nil
}
func (p *stubPage) Close() error {
	p.closed = true
	return nil
}

type stubOpener struct {
	mu      sync.Mutex
	errs    []error
	cookies []utils.Cookie
	pages   []*stubPage
}

func (o *stubOpener) NewPage(context.Context) (utils.Page, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.errs) > 0 {
		err := o.errs[0]
		o.errs = o.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	p := &stubPage{cookies: o.cookies}
	o.pages = append(o.pages, p)
	return p, nil
}

type stubResolver struct {
	calls int
	res   *resolver.Resolved
	err   error
}

func (r *stubResolver) Resolve(context.Context, resolver.Renderer, utils.ResourceDescriptor) (*resolver.Resolved, error) {
	r.calls++
	return r.res, r.err
}

type stubFetcher struct {
	calls    int
	errs     []error
	result   *fetcher.Result
	requests []fetcher.Request
}

func (f *stubFetcher) Fetch(_ context.Context, req fetcher.Request) (*fetcher.Result, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.result, nil
}

var item = utils.QueueItem{
	Descriptor:        utils.ResourceDescriptor{Name: "Lecture: intro", SourceURL: "https://dl.example.edu/mod/resource/view.php?id=1", TypeHint: "unknown"},
	DestinationFolder: "downloads/Algebra",
	CourseName:        "Algebra",
}

var pdf = &resolver.Resolved{
	URL:      "https://dl.example.edu/pluginfile.php/1/intro.pdf",
	Filename: "intro.pdf",
	Strategy: resolver.DirectURL,
	FinalURL: "https://dl.example.edu/pluginfile.php/1/intro.pdf",
}

func newTestDownloader(o *stubOpener, r *stubResolver, f *stubFetcher, delays *[]time.Duration) *Downloader {
	d := New(o, r, f, Identity{Cookies: []utils.Cookie{{Name: "MoodleSession", Value: "login"}}, UserAgent: "ua"},
		Config{MaxRetries: 3, PageRetryDelay: 2 * time.Second, FetchRetryDelay: 3 * time.Second})
	d.sleep = func(_ context.Context, delay time.Duration) {
		if delays != nil {
			*delays = append(*delays, delay)
		}
	}
	return d
}

func assertAllClosed(t *testing.T, o *stubOpener) {
	t.Helper()
	for i, p := range o.pages {
		assert.True(t, p.closed, "page %d left open", i)
	}
}

func TestDownloadSuccess(t *testing.T) {
	o := &stubOpener{}
	r := &stubResolver{res: pdf}
	f := &stubFetcher{result: &fetcher.Result{Bytes: 2048}}
	out := newTestDownloader(o, r, f, nil).Download(context.Background(), item, nil)

	assert.Equal(t, utils.OutcomeSuccess, out.Kind)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, int64(2048), out.Bytes)
	assert.Equal(t, "Lecture_ intro.pdf", out.Filename)
	assert.Equal(t, filepath.Join("downloads/Algebra", "Lecture_ intro.pdf"), out.Path)
	assert.Equal(t, string(resolver.DirectURL), out.Strategy)
	require.Len(t, f.requests, 1)
	assert.Equal(t, pdf.URL, f.requests[0].URL)
	assert.Equal(t, pdf.FinalURL, f.requests[0].Referer)
	assert.Equal(t, "ua", f.requests[0].UserAgent)
	assert.Equal(t, "login", f.requests[0].Cookies[0].Value)
	assertAllClosed(t, o)
}

func TestDownloadPrefersPageCookies(t *testing.T) {
	o := &stubOpener{cookies: []utils.Cookie{{Name: "MoodleSession", Value: "page"}}}
	f := &stubFetcher{result: &fetcher.Result{Bytes: 200}}
	newTestDownloader(o, &stubResolver{res: pdf}, f, nil).Download(context.Background(), item, nil)
	require.Len(t, f.requests, 1)
	assert.Equal(t, "page", f.requests[0].Cookies[0].Value)
}

func TestDownloadRetryBudget(t *testing.T) {
	o := &stubOpener{}
	f := &stubFetcher{result: &fetcher.Result{}}
	r := &stubResolver{err: errors.New("Protocol error (Page.navigate): Target closed")}
	var delays []time.Duration
	out := newTestDownloader(o, r, f, &delays).Download(context.Background(), item, nil)

	assert.Equal(t, utils.OutcomeFailed, out.Kind)
	assert.Equal(t, 4, out.Attempts)
	assert.Equal(t, 4, r.calls)
	assert.Zero(t, f.calls)
	assert.Len(t, o.pages, 4)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second}, delays)
	assert.Contains(t, out.Reason, "Target closed")
	assertAllClosed(t, o)
}

func TestDownloadNonRetryableFailsOnce(t *testing.T) {
	o := &stubOpener{}
	r := &stubResolver{err: resolver.ErrUnresolved}
	var delays []time.Duration
	out := newTestDownloader(o, r, &stubFetcher{}, &delays).Download(context.Background(), item, nil)

	assert.Equal(t, utils.OutcomeFailed, out.Kind)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, r.calls)
	assert.Empty(t, delays)
	assert.ErrorIs(t, out.Err, resolver.ErrUnresolved)
	assertAllClosed(t, o)
}

func TestDownloadTooSmallIsTerminal(t *testing.T) {
	o := &stubOpener{}
	f := &stubFetcher{errs: []error{fetcher.ErrTooSmall}}
	out := newTestDownloader(o, &stubResolver{res: pdf}, f, nil).Download(context.Background(), item, nil)
	assert.Equal(t, utils.OutcomeFailed, out.Kind)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, string(resolver.DirectURL), out.Strategy)
}

func TestDownloadSkipNeverRetries(t *testing.T) {
	o := &stubOpener{}
	r := &stubResolver{err: &resolver.SkipError{Reason: resolver.ReasonNotDownloadable}}
	f := &stubFetcher{}
	out := newTestDownloader(o, r, f, nil).Download(context.Background(), item, nil)

	assert.Equal(t, utils.OutcomeSkipped, out.Kind)
	assert.Equal(t, resolver.ReasonNotDownloadable, out.Reason)
	assert.Equal(t, 1, out.Attempts)
	assert.Zero(t, f.calls)
	assertAllClosed(t, o)
}

func TestDownloadFetchSkipIsSkipped(t *testing.T) {
	f := &stubFetcher{result: &fetcher.Result{Skipped: true, Reason: fetcher.ReasonExists, Bytes: 512}}
	out := newTestDownloader(&stubOpener{}, &stubResolver{res: pdf}, f, nil).Download(context.Background(), item, nil)
	assert.Equal(t, utils.OutcomeSkipped, out.Kind)
	assert.Equal(t, fetcher.ReasonExists, out.Reason)
	assert.Equal(t, int64(512), out.Bytes)
}

func TestDownloadRecoversAfterPageFailure(t *testing.T) {
	o := &stubOpener{errs: []error{errors.New("websocket: connection timeout"), nil}}
	f := &stubFetcher{errs: []error{utils.ErrTransient}, result: &fetcher.Result{Bytes: 300}}
	var delays []time.Duration
	out := newTestDownloader(o, &stubResolver{res: pdf}, f, &delays).Download(context.Background(), item, nil)

	assert.Equal(t, utils.OutcomeSuccess, out.Kind)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second}, delays)
	assert.Len(t, o.pages, 2)
	assertAllClosed(t, o)
}

func TestDestinationName(t *testing.T) {
	desc := utils.ResourceDescriptor{Name: "Week 1/2", TypeHint: "unknown"}
	testCases := []struct {
		name     string
		resolved resolver.Resolved
		hint     string
		expected string
	}{
		{"extension in URL", resolver.Resolved{URL: "https://x/file.DOCX"}, "unknown", "Week 1_2.docx"},
		{"extension from resolved filename", resolver.Resolved{URL: "https://x/mod/resource/view.php?id=1", Filename: "slides.pptx"}, "unknown", "Week 1_2.pptx"},
		{"type hint", resolver.Resolved{URL: "https://x/download"}, "pdf", "Week 1_2.pdf"},
		{"folder archive", resolver.Resolved{URL: "https://x/mod/folder/download_folder.php?id=3", Filename: "folder.zip"}, "unknown", "Week 1_2.zip"},
		{"html fallback", resolver.Resolved{URL: "https://x/unknown-path"}, "unknown", "Week 1_2.html"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := desc
			d.TypeHint = tc.hint
			assert.Equal(t, tc.expected, DestinationName(d, &tc.resolved))
		})
	}
}
