package resolver

import (
	"context"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tanq16/coursefetch/internal/config"
	"github.com/tanq16/coursefetch/internal/utils"
)

// abortedNavigation: the page never rendered, so the original URL is the file.
type abortedNavigation struct{}

func (s *abortedNavigation) Kind() StrategyKind { return AbortedNavigationDirect }

func (s *abortedNavigation) Resolve(_ context.Context, nav *Navigation) (*Resolved, error) {
	if !nav.Aborted {
		return nil, nil
	}
	return &Resolved{
		URL:      nav.Descriptor.SourceURL,
		Filename: nav.Descriptor.Name,
	}, nil
}

// contentDisposition: the server declared the response an attachment.
type contentDisposition struct{}

func (s *contentDisposition) Kind() StrategyKind { return ContentDisposition }

func (s *contentDisposition) Resolve(_ context.Context, nav *Navigation) (*Resolved, error) {
	if nav.Response == nil {
		return nil, nil
	}
	header := nav.Response.Headers["content-disposition"]
	if header == "" {
		return nil, nil
	}
	filename, ok := ParseContentDisposition(header)
	if !ok {
		return nil, nil
	}
	return &Resolved{
		URL:      nav.FinalURL,
		Filename: utils.SanitizeFilename(filename),
	}, nil
}

// directURL: the final URL already points at a file.
type directURL struct {
	servingPaths []string
	extensions   []string
}

func (s *directURL) Kind() StrategyKind { return DirectURL }

func (s *directURL) Resolve(_ context.Context, nav *Navigation) (*Resolved, error) {
	if nav.Aborted || isBlank(nav.FinalURL) {
		return nil, nil
	}
	u, err := url.Parse(nav.FinalURL)
	if err != nil {
		return nil, nil
	}
	if !s.matches(u) {
		return nil, nil
	}
	name := lastSegment(nav.FinalURL)
	if name == "" {
		name = nav.Descriptor.Name
	}
	return &Resolved{URL: nav.FinalURL, Filename: name}, nil
}

func (s *directURL) matches(u *url.URL) bool {
	for _, p := range s.servingPaths {
		if p != "" && strings.Contains(u.Path, p) {
			return true
		}
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if ext == "" {
		return false
	}
	for _, known := range s.extensions {
		if ext == strings.ToLower(known) {
			return true
		}
	}
	return false
}

// scrapedLink looks inside the rendered page: folder "download all" form, then a
// download anchor, then embedded content.
type scrapedLink struct {
	selectors config.Selectors
	timeout   time.Duration
}

func (s *scrapedLink) Kind() StrategyKind { return ScrapedLink }

func (s *scrapedLink) Resolve(ctx context.Context, nav *Navigation) (*Resolved, error) {
	if nav.Aborted || isBlank(nav.FinalURL) {
		return nil, nil
	}
	doc, err := nav.Document(ctx, s.timeout)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(nav.FinalURL)
	if err != nil {
		return nil, nil
	}
	if res := s.folderForm(doc, base); res != nil {
		return res, nil
	}
	if res := s.downloadLink(doc, base); res != nil {
		return res, nil
	}
	return s.embedded(doc, base), nil
}

func (s *scrapedLink) folderForm(doc *goquery.Document, base *url.URL) *Resolved {
	if s.selectors.FolderDownloadButton == "" {
		return nil
	}
	button := doc.Find(s.selectors.FolderDownloadButton).First()
	if button.Length() == 0 {
		return nil
	}
	form := button.Closest("form")
	if id, ok := button.Attr("form"); ok && id != "" {
		form = doc.Find("form#" + id).First()
	}
	if form.Length() == 0 {
		return nil
	}
	action := base
	if raw, ok := form.Attr("action"); ok && strings.TrimSpace(raw) != "" {
		if ref, err := url.Parse(strings.TrimSpace(raw)); err == nil {
			action = base.ResolveReference(ref)
		}
	}
	target := action.String()
	if query := encodeForm(form); query != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query
	}
	return &Resolved{URL: target, Filename: s.selectors.FolderArchiveName, Method: "folder-zip-form"}
}

func (s *scrapedLink) downloadLink(doc *goquery.Document, base *url.URL) *Resolved {
	if len(s.selectors.DownloadLinks) == 0 {
		return nil
	}
	var res *Resolved
	doc.Find(strings.Join(s.selectors.DownloadLinks, ", ")).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return true
		}
		abs := resolveRef(base, href)
		name := strings.TrimSpace(a.AttrOr("download", ""))
		if name == "" {
			name = lastSegment(abs)
		}
		res = &Resolved{URL: abs, Filename: name, Method: "download-link"}
		return false
	})
	return res
}

func (s *scrapedLink) embedded(doc *goquery.Document, base *url.URL) *Resolved {
	if len(s.selectors.EmbeddedContent) == 0 {
		return nil
	}
	var res *Resolved
	doc.Find(strings.Join(s.selectors.EmbeddedContent, ", ")).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		src := strings.TrimSpace(el.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(el.AttrOr("data", ""))
		}
		if src == "" {
			return true
		}
		abs := resolveRef(base, src)
		res = &Resolved{URL: abs, Filename: lastSegment(abs), Method: "embedded-content"}
		return false
	})
	return res
}

// encodeForm serialises the successful controls of form in document order.
func encodeForm(form *goquery.Selection) string {
	var pairs []string
	form.Find("input[name], select[name], textarea[name]").Each(func(_ int, field *goquery.Selection) {
		if _, disabled := field.Attr("disabled"); disabled {
			return
		}
		name := field.AttrOr("name", "")
		value := ""
		switch goquery.NodeName(field) {
		case "input":
			switch strings.ToLower(field.AttrOr("type", "text")) {
			case "submit", "button", "image", "reset", "file":
				return
			case "checkbox", "radio":
				if _, checked := field.Attr("checked"); !checked {
					return
				}
				value = field.AttrOr("value", "on")
			default:
				value = field.AttrOr("value", "")
			}
		case "select":
			opt := field.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = field.Find("option").First()
			}
			if opt.Length() == 0 {
				return
			}
			value = opt.AttrOr("value", strings.TrimSpace(opt.Text()))
		case "textarea":
			value = field.Text()
		}
		pairs = append(pairs, url.QueryEscape(name)+"="+url.QueryEscape(value))
	})
	return strings.Join(pairs, "&")
}

func resolveRef(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// lastSegment is the final path segment of raw without its query, percent-decoded.
func lastSegment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.SplitN(raw[strings.LastIndex(raw, "/")+1:], "?", 2)[0]
	}
	escaped := u.EscapedPath()
	segment := escaped[strings.LastIndex(escaped, "/")+1:]
	if decoded, err := url.PathUnescape(segment); err == nil {
		return decoded
	}
	return segment
}
