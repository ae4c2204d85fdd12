package moodle

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tanq16/coursefetch/internal/config"
	"github.com/tanq16/coursefetch/internal/utils"
)

const defaultCategory = "My Courses"

var (
	coursePrefixes = regexp.MustCompile(`(Moduł|Ćwiczenia):\s*`)
	courseSuffix   = regexp.MustCompile(`\s*-\s*S$`)
	modPattern     = regexp.MustCompile(`/mod/(\w+)/`)
	spaces         = regexp.MustCompile(`\s+`)
)

var courseSelectors = []string{
	`li.type_course a[href*="view.php?id="]`,
	`[data-region="course-content"] a`,
}

var resourceSelectors = []string{
	`a[href*="/pluginfile.php/"]`,
	`a[href*="forcedownload=1"]`,
	`a[href*="public.php/dav/files"]`,
	`a[href*="accept=zip"]`,
	`.resourceworkaround a`,
	`a[class*="resource"]`,
	`a[class*="file"]`,
	`a[href*="/mod/resource/view.php"]`,
	`a[href*="/mod/folder/view.php"]`,
	`a[href*="/mod/url/view.php"]`,
	`a[href*="/mod/page/view.php"]`,
	`a.aalink`,
}

var allowedModules = map[string]bool{"resource": true, "folder": true, "url": true, "page": true, "file": true}

// ErrInvalidCredentials is returned when the site rejects the login.
var ErrInvalidCredentials = errors.New("login failed: invalid credentials")

// ParseCourses reads the course list out of a dashboard page. The first selector
// that matches anything wins; courses are unique by URL.
func ParseCourses(html, pageURL string) ([]utils.Course, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)
	var links *goquery.Selection
	for _, sel := range courseSelectors {
		links = doc.Find(sel)
		if links.Length() > 0 {
			break
		}
	}
	seen := make(map[string]bool)
	var courses []utils.Course
	links.Each(func(_ int, a *goquery.Selection) {
		href := absolute(base, a.AttrOr("href", ""))
		if href == "" || seen[href] {
			return
		}
		name := strings.TrimSpace(a.AttrOr("title", ""))
		if name == "" {
			name = linkText(a)
		}
		name = strings.TrimSpace(courseSuffix.ReplaceAllString(coursePrefixes.ReplaceAllString(name, ""), ""))
		if name == "" {
			return
		}
		seen[href] = true
		courses = append(courses, utils.Course{Name: name, URL: href, Category: defaultCategory})
	})
	return courses, nil
}

// ParseResources lists the candidate files linked from a course page. Activities
// such as quizzes and assignments are dropped unless they link a served file.
func ParseResources(html, pageURL string) ([]utils.ResourceDescriptor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)
	type key struct{ name, url string }
	seen := make(map[key]bool)
	var resources []utils.ResourceDescriptor
	doc.Find(strings.Join(resourceSelectors, ", ")).Each(func(_ int, a *goquery.Selection) {
		href := absolute(base, a.AttrOr("href", ""))
		name := linkText(a)
		if href == "" || name == "" {
			return
		}
		if m := modPattern.FindStringSubmatch(href); m != nil && !allowedModules[m[1]] && !strings.Contains(href, "/pluginfile.php/") {
			return
		}
		k := key{name, href}
		if seen[k] {
			return
		}
		seen[k] = true
		resources = append(resources, utils.ResourceDescriptor{Name: name, SourceURL: href, TypeHint: GuessType(href)})
	})
	return resources, nil
}

// GuessType derives a type hint from a link. It is only a hint; the resolver has
// the final word.
func GuessType(link string) string {
	lower := strings.ToLower(link)
	switch {
	case strings.Contains(lower, ".pdf"):
		return "pdf"
	case strings.Contains(lower, ".docx"):
		return "docx"
	case strings.Contains(lower, ".doc"):
		return "doc"
	case strings.Contains(lower, ".pptx"):
		return "pptx"
	case strings.Contains(lower, ".ppt"):
		return "ppt"
	case strings.Contains(lower, ".xlsx"):
		return "xlsx"
	case strings.Contains(lower, ".xls"):
		return "xls"
	case strings.Contains(lower, ".zip"), strings.Contains(lower, "accept=zip"):
		return "zip"
	case strings.Contains(lower, ".mp4"):
		return "mp4"
	case strings.Contains(lower, ".avi"):
		return "avi"
	case strings.Contains(lower, ".mov"):
		return "mov"
	}
	return "unknown"
}

// CheckLogin inspects the page reached after submitting the login form.
func CheckLogin(html, currentURL string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	if alert := doc.Find(".alert-danger").First(); alert.Length() > 0 {
		return ErrInvalidCredentials
	}
	if doc.Find(`a[href*="logout.php"], .userbutton`).Length() > 0 {
		return nil
	}
	if strings.Contains(strings.ToLower(currentURL), "login") {
		return ErrInvalidCredentials
	}
	return nil
}

func ValidateCourse(c utils.Course) bool {
	return strings.TrimSpace(c.Name) != "" && strings.TrimSpace(c.URL) != ""
}

func ValidateCredentials(c config.Credentials) bool {
	return strings.TrimSpace(c.Username) != "" && strings.TrimSpace(c.Password) != ""
}

func absolute(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// linkText is the visible label of a link without screen-reader-only suffixes.
func linkText(a *goquery.Selection) string {
	label := a.Clone()
	label.Find(".accesshide").Remove()
	return cleanText(label.Text())
}

func cleanText(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}
