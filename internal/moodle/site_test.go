package moodle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/coursefetch/internal/config"
	"github.com/tanq16/coursefetch/internal/utils"
)

type fakeDriver struct {
	pages   map[string]string
	current string
	after   string
	runErr  error
	runs    int
}

func (d *fakeDriver) Navigate(_ context.Context, url string) (*utils.Response, error) {
	_, ok := d.pages[url]
	if !ok {
		return nil, errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	d.current = url
	return &utils.Response{URL: url, Status: 200, Headers: map[string]string{}}, nil
}

func (d *fakeDriver) Content(context.Context) (string, error) { return d.pages[d.current], nil }
func (d *fakeDriver) URL(context.Context) (string, error)     { return d.current, nil }
func (d *fakeDriver) Cookies(context.Context) ([]utils.Cookie, error) {
	return nil, nil
}
func (d *fakeDriver) Close() error { return nil }

func (d *fakeDriver) Run(context.Context, ...chromedp.Action) error {
	d.runs++
	if d.after != "" {
		d.current = d.after
	}
	return d.runErr
}

var creds = config.Credentials{Username: "student@example.edu", Password: "secret"}

func newTestSite(d *fakeDriver) *Site {
	s := New(d)
	s.loginTimeout = 50 * time.Millisecond
	s.listTimeout = 50 * time.Millisecond
	return s
}

func TestLoginSuccess(t *testing.T) {
	d := &fakeDriver{
		pages: map[string]string{
			"https://dl.example.edu/login/index.php": `<form><input id="username"></form>`,
			"https://dl.example.edu/my/":             `<a href="/login/logout.php?sesskey=x">Log out</a>`,
		},
		after: "https://dl.example.edu/my/",
	}
	require.NoError(t, newTestSite(d).Login(context.Background(), creds, "https://dl.example.edu/login/index.php"))
	assert.Equal(t, 1, d.runs)
}

func TestLoginRejected(t *testing.T) {
	d := &fakeDriver{pages: map[string]string{
		"https://dl.example.edu/login/index.php": `<div class="alert alert-danger">Invalid login, please try again</div>`,
	}}
	err := newTestSite(d).Login(context.Background(), creds, "https://dl.example.edu/login/index.php")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRequiresCredentials(t *testing.T) {
	d := &fakeDriver{pages: map[string]string{}}
	err := newTestSite(d).Login(context.Background(), config.Credentials{Username: "x"}, "https://dl.example.edu/login/index.php")
	require.Error(t, err)
	assert.Zero(t, d.runs)
}

func TestCoursesFallsBackWhenListDoesNotExpand(t *testing.T) {
	d := &fakeDriver{
		pages:  map[string]string{"https://dl.example.edu/my/": dashboardHTML},
		runErr: context.DeadlineExceeded,
	}
	courses, err := newTestSite(d).Courses(context.Background(), "https://dl.example.edu/my/")
	require.NoError(t, err)
	assert.Len(t, courses, 2)
}

func TestResources(t *testing.T) {
	course := utils.Course{Name: "Algebra", URL: "https://dl.example.edu/course/view.php?id=11"}
	d := &fakeDriver{pages: map[string]string{course.URL: coursePageHTML}}
	resources, err := newTestSite(d).Resources(context.Background(), course)
	require.NoError(t, err)
	assert.Len(t, resources, 3)

	_, err = newTestSite(d).Resources(context.Background(), utils.Course{Name: "Gone", URL: "https://dl.example.edu/course/view.php?id=404"})
	require.Error(t, err)
}
