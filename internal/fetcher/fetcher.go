package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/tanq16/coursefetch/internal/utils"
)

const (
	ReasonExists      = "file already exists"
	ReasonHTMLContent = "html content"
)

const progressInterval = 100 * time.Millisecond

// ErrTooSmall is returned when the finished file is under the minimum size.
var ErrTooSmall = errors.New("downloaded file is empty or likely an error page")

type Request struct {
	URL         string
	Cookies     []utils.Cookie
	UserAgent   string
	Referer     string
	Destination string
	OnProgress  utils.ProgressFunc
}

// Result is either a written file or a skip with its reason.
type Result struct {
	Skipped bool
	Reason  string
	Bytes   int64
}

type Fetcher struct {
	fs      afero.Fs
	client  utils.HTTPDoer
	minSize int64
}

func New(client utils.HTTPDoer, minSize int64) *Fetcher {
	return NewWithFS(afero.NewOsFs(), client, minSize)
}

func NewWithFS(fs afero.Fs, client utils.HTTPDoer, minSize int64) *Fetcher {
	if minSize <= 0 {
		minSize = 100
	}
	return &Fetcher{fs: fs, client: client, minSize: minSize}
}

// Existing reports the size of a valid file already at path.
func (f *Fetcher) Existing(path string) (int64, bool) {
	info, err := f.fs.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() < f.minSize {
		return 0, false
	}
	return info.Size(), true
}

// Fetch streams req.URL into req.Destination through a temporary .part file.
// Nothing is left at the destination unless the whole body was written and passed validation.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	if size, ok := f.Existing(req.Destination); ok {
		log.Debug().Str("op", "fetcher/fetcher").Int64("bytes", size).Msgf("Skipping existing %s", req.Destination)
		return &Result{Skipped: true, Reason: ReasonExists, Bytes: size}, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating GET request: %v", err)
	}
	if len(req.Cookies) > 0 {
		httpReq.Header.Set("Cookie", utils.CookieHeader(req.Cookies))
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}
	if req.Referer != "" {
		httpReq.Header.Set("Referer", req.Referer)
	}
	httpReq.Header.Set("Accept", "*/*")
	httpReq.Header.Set("Connection", "keep-alive")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error executing GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if isHTML(resp.Header.Get("Content-Type")) {
		io.Copy(io.Discard, resp.Body)
		log.Debug().Str("op", "fetcher/fetcher").Str("url", req.URL).Msg("Response is an HTML page, discarding")
		return &Result{Skipped: true, Reason: ReasonHTMLContent}, nil
	}

	return f.stream(resp, req)
}

// stream writes the body to a temp file unique to this call, so concurrent fetches
// of the same destination never share partial output.
func (f *Fetcher) stream(resp *http.Response, req Request) (*Result, error) {
	tempDir := utils.TempDir(filepath.Dir(req.Destination))
	if err := f.fs.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating temp directory: %v", err)
	}
	out, err := afero.TempFile(f.fs, tempDir, filepath.Base(req.Destination)+"-*.part")
	if err != nil {
		return nil, fmt.Errorf("error creating output file: %v", err)
	}
	tempPath := out.Name()
	written, copyErr := copyWithProgress(out, resp.Body, resp.ContentLength, req.OnProgress)
	closeErr := out.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = fmt.Errorf("error closing output file: %v", closeErr)
	}
	if copyErr != nil {
		f.fs.Remove(tempPath)
		return nil, fmt.Errorf("%w: %v", utils.ErrTransient, copyErr)
	}

	info, err := f.fs.Stat(tempPath)
	if err != nil {
		f.fs.Remove(tempPath)
		return nil, fmt.Errorf("error checking downloaded file: %v", err)
	}
	if info.Size() < f.minSize {
		f.fs.Remove(tempPath)
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooSmall, info.Size())
	}
	// another fetch of the same name may have finished first
	if size, ok := f.Existing(req.Destination); ok {
		f.fs.Remove(tempPath)
		log.Debug().Str("op", "fetcher/fetcher").Msgf("%s was written by another download, keeping it", req.Destination)
		return &Result{Skipped: true, Reason: ReasonExists, Bytes: size}, nil
	}
	f.fs.Chmod(tempPath, 0644)
	if err := f.fs.Rename(tempPath, req.Destination); err != nil {
		f.fs.Remove(tempPath)
		return nil, fmt.Errorf("error renaming (finalizing) output file: %v", err)
	}
	log.Info().Str("op", "fetcher/fetcher").Int64("bytes", written).Msgf("Downloaded %s", req.Destination)
	return &Result{Bytes: written}, nil
}

func copyWithProgress(w io.Writer, r io.Reader, total int64, onProgress utils.ProgressFunc) (int64, error) {
	if total < 0 {
		total = 0
	}
	buffer := make([]byte, utils.DefaultBufferSize)
	var written int64
	var lastReport time.Time
	for {
		bytesRead, readErr := r.Read(buffer)
		if bytesRead > 0 {
			if _, err := w.Write(buffer[:bytesRead]); err != nil {
				return written, fmt.Errorf("error writing to output file: %v", err)
			}
			written += int64(bytesRead)
			if onProgress != nil && time.Since(lastReport) >= progressInterval {
				lastReport = time.Now()
				onProgress(written, total)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return written, fmt.Errorf("error reading response body: %v", readErr)
		}
	}
	if onProgress != nil {
		onProgress(written, total)
	}
	return written, nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "text/html")
	}
	return mediaType == "text/html"
}
