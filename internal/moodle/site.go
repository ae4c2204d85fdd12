package moodle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/coursefetch/internal/config"
	"github.com/tanq16/coursefetch/internal/utils"
)

// Driver is a page that can also run raw browser actions, which form input needs.
type Driver interface {
	utils.Page
	Run(ctx context.Context, actions ...chromedp.Action) error
}

// Site drives the logged-in main tab: login, course list and course pages.
type Site struct {
	page         Driver
	loginTimeout time.Duration
	listTimeout  time.Duration
}

func New(page Driver) *Site {
	return &Site{page: page, loginTimeout: 10 * time.Second, listTimeout: 15 * time.Second}
}

func (s *Site) Login(ctx context.Context, creds config.Credentials, loginURL string) error {
	if !ValidateCredentials(creds) {
		return fmt.Errorf("username and password are required")
	}
	log.Info().Str("op", "moodle/site").Str("url", loginURL).Msg("Logging in")
	if _, err := s.page.Navigate(ctx, loginURL); err != nil {
		return fmt.Errorf("error loading login page: %w", err)
	}
	err := s.page.Run(ctx,
		chromedp.WaitVisible("#username", chromedp.ByQuery),
		chromedp.SendKeys("#username", creds.Username, chromedp.ByQuery),
		chromedp.WaitVisible("#password", chromedp.ByQuery),
		chromedp.SendKeys("#password", creds.Password, chromedp.ByQuery),
		chromedp.Click("#loginbtn", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("error submitting login form: %w", err)
	}

	current := s.waitLeaveLogin(ctx)
	html, err := s.page.Content(ctx)
	if err != nil {
		return fmt.Errorf("error reading page after login: %w", err)
	}
	if err := CheckLogin(html, current); err != nil {
		return err
	}
	log.Info().Str("op", "moodle/site").Str("url", current).Msg("Login successful")
	return nil
}

// waitLeaveLogin polls until the browser leaves the login page or the timeout passes.
func (s *Site) waitLeaveLogin(ctx context.Context) string {
	deadline := time.Now().Add(s.loginTimeout)
	var current string
	for time.Now().Before(deadline) {
		current, _ = s.page.URL(ctx)
		if strings.Contains(current, "/my/") || (current != "" && !strings.Contains(strings.ToLower(current), "login")) {
			return current
		}
		select {
		case <-ctx.Done():
			return current
		case <-time.After(500 * time.Millisecond):
		}
	}
	log.Warn().Str("op", "moodle/site").Str("url", current).Msg("Still on login page after timeout")
	return current
}

// Courses opens the course overview, expands "my courses" when present and parses the list.
func (s *Site) Courses(ctx context.Context, coursesURL string) ([]utils.Course, error) {
	log.Info().Str("op", "moodle/site").Str("url", coursesURL).Msg("Fetching courses")
	if _, err := s.page.Navigate(ctx, coursesURL); err != nil {
		return nil, fmt.Errorf("error loading courses page: %w", err)
	}
	expandCtx, cancel := context.WithTimeout(ctx, s.listTimeout)
	err := s.page.Run(expandCtx,
		chromedp.Click(`a[href$="/my/courses.php"]`, chromedp.ByQuery),
		chromedp.WaitVisible(`li.type_course a`, chromedp.ByQuery),
	)
	cancel()
	if err != nil {
		log.Warn().Str("op", "moodle/site").Err(err).Msg("Course list did not expand, using current content")
	}

	html, err := s.page.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading courses page: %w", err)
	}
	current, _ := s.page.URL(ctx)
	if current == "" {
		current = coursesURL
	}
	courses, err := ParseCourses(html, current)
	if err != nil {
		return nil, err
	}
	valid := courses[:0]
	for _, c := range courses {
		if ValidateCourse(c) {
			valid = append(valid, c)
		}
	}
	log.Info().Str("op", "moodle/site").Int("count", len(valid)).Msg("Courses found")
	return valid, nil
}

// Resources loads one course page and lists its resource links.
func (s *Site) Resources(ctx context.Context, course utils.Course) ([]utils.ResourceDescriptor, error) {
	if _, err := s.page.Navigate(ctx, course.URL); err != nil {
		return nil, fmt.Errorf("error loading course page: %w", err)
	}
	html, err := s.page.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading course page: %w", err)
	}
	resources, err := ParseResources(html, course.URL)
	if err != nil {
		return nil, err
	}
	log.Info().Str("op", "moodle/site").Str("course", course.Name).Int("count", len(resources)).Msg("Resources found")
	return resources, nil
}
