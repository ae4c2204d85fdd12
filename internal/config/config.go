package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const DefaultFileName = "coursefetch.yaml"

type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type URLs struct {
	Login   string `yaml:"login"`
	Courses string `yaml:"courses"`
}

type BrowserConfig struct {
	Headless          bool          `yaml:"headless"`
	ExecPath          string        `yaml:"exec_path,omitempty"`
	UserAgent         string        `yaml:"user_agent,omitempty"`
	Flags             []string      `yaml:"flags,omitempty"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	ProxyURL          string        `yaml:"proxy,omitempty"`
}

type DownloadConfig struct {
	Concurrency      int           `yaml:"concurrency"`
	WindowPause      time.Duration `yaml:"window_pause"`
	MaxRetries       int           `yaml:"max_retries"`
	PageRetryDelay   time.Duration `yaml:"page_retry_delay"`
	FetchRetryDelay  time.Duration `yaml:"fetch_retry_delay"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	MaxRedirects     int           `yaml:"max_redirects"`
	MinFileSize      int64         `yaml:"min_file_size"`
	EvalTimeout      time.Duration `yaml:"eval_timeout"`
	IndicatorTimeout time.Duration `yaml:"indicator_timeout"`
}

// Selectors are the site-specific patterns the resolver and scraper look for.
type Selectors struct {
	FolderDownloadButton string   `yaml:"folder_download_button"`
	FolderArchiveName    string   `yaml:"folder_archive_name"`
	DownloadLinks        []string `yaml:"download_links"`
	EmbeddedContent      []string `yaml:"embedded_content"`
	FileIndicators       []string `yaml:"file_indicators"`
	FileServingPaths     []string `yaml:"file_serving_paths"`
	DirectExtensions     []string `yaml:"direct_extensions"`
}

type Config struct {
	Credentials Credentials    `yaml:"credentials"`
	URLs        URLs           `yaml:"urls"`
	DownloadDir string         `yaml:"download_dir"`
	Browser     BrowserConfig  `yaml:"browser"`
	Download    DownloadConfig `yaml:"download"`
	Selectors   Selectors      `yaml:"selectors"`
}

func Default() *Config {
	return &Config{
		Credentials: Credentials{
			Username: "your_email@example.com",
			Password: "your_password",
		},
		URLs: URLs{
			Login:   "https://dl.wsei.pl/login/index.php",
			Courses: "https://dl.wsei.pl/my/",
		},
		DownloadDir: "downloads",
		Browser: BrowserConfig{
			Headless: true,
			Flags: []string{
				"no-sandbox",
				"disable-setuid-sandbox",
				"disable-dev-shm-usage",
				"disable-gpu",
				"disable-extensions",
				"no-first-run",
			},
			NavigationTimeout: 30 * time.Second,
		},
		Download:  DefaultDownload(),
		Selectors: DefaultSelectors(),
	}
}

func DefaultDownload() DownloadConfig {
	return DownloadConfig{
		Concurrency:      2,
		WindowPause:      500 * time.Millisecond,
		MaxRetries:       3,
		PageRetryDelay:   2 * time.Second,
		FetchRetryDelay:  3 * time.Second,
		FetchTimeout:     120 * time.Second,
		MaxRedirects:     15,
		MinFileSize:      100,
		EvalTimeout:      10 * time.Second,
		IndicatorTimeout: 5 * time.Second,
	}
}

// DefaultSelectors match Moodle course pages.
func DefaultSelectors() Selectors {
	return Selectors{
		FolderDownloadButton: `button[type="submit"][name="download"]`,
		FolderArchiveName:    "folder.zip",
		DownloadLinks: []string{
			`a[href*="/pluginfile.php/"]`,
			`a.forcedownload`,
			`.resourceworkaround a`,
			`a[href*="forcedownload=1"]`,
			`a[href*="public.php/dav/files"]`,
		},
		EmbeddedContent: []string{
			`embed[type="application/pdf"]`,
			`object[type="application/pdf"]`,
			`iframe[src*=".pdf"]`,
			`object[data]`,
			`embed[src]`,
			`video source`,
			`video[src]`,
		},
		FileIndicators: []string{
			`a[href*="forcedownload"]`,
			`a.forcedownload`,
			`.resourceworkaround a`,
			`embed`,
			`object[data]`,
			`iframe[src*=".pdf"]`,
			`video`,
			`img[src*="/f/"]`,
			`.activityicon[src*="/f/"]`,
		},
		FileServingPaths: []string{"/pluginfile.php/"},
		DirectExtensions: []string{
			"pdf", "doc", "docx", "ppt", "pptx", "xls", "xlsx", "zip",
			"mp4", "avi", "mov", "mkv", "wmv", "flv", "webm",
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies .env and
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s not found (create one with `coursefetch init`)", path)
		}
		return nil, fmt.Errorf("error reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Credentials.Username = envOrDefault("COURSEFETCH_USERNAME", c.Credentials.Username)
	c.Credentials.Password = envOrDefault("COURSEFETCH_PASSWORD", c.Credentials.Password)
	c.DownloadDir = envOrDefault("COURSEFETCH_DOWNLOAD_DIR", c.DownloadDir)
}

// fillDefaults restores zero values a partial file may have left behind.
func (c *Config) fillDefaults() {
	def := DefaultDownload()
	d := &c.Download
	if d.Concurrency == 0 {
		d.Concurrency = def.Concurrency
	}
	if d.FetchTimeout == 0 {
		d.FetchTimeout = def.FetchTimeout
	}
	if d.MaxRedirects == 0 {
		d.MaxRedirects = def.MaxRedirects
	}
	if d.MinFileSize == 0 {
		d.MinFileSize = def.MinFileSize
	}
	if d.EvalTimeout == 0 {
		d.EvalTimeout = def.EvalTimeout
	}
	if d.IndicatorTimeout == 0 {
		d.IndicatorTimeout = def.IndicatorTimeout
	}
	if c.Browser.NavigationTimeout == 0 {
		c.Browser.NavigationTimeout = 30 * time.Second
	}
	sel := DefaultSelectors()
	if c.Selectors.FolderDownloadButton == "" {
		c.Selectors.FolderDownloadButton = sel.FolderDownloadButton
	}
	if c.Selectors.FolderArchiveName == "" {
		c.Selectors.FolderArchiveName = sel.FolderArchiveName
	}
	if len(c.Selectors.DownloadLinks) == 0 {
		c.Selectors.DownloadLinks = sel.DownloadLinks
	}
	if len(c.Selectors.EmbeddedContent) == 0 {
		c.Selectors.EmbeddedContent = sel.EmbeddedContent
	}
	if len(c.Selectors.FileIndicators) == 0 {
		c.Selectors.FileIndicators = sel.FileIndicators
	}
	if len(c.Selectors.FileServingPaths) == 0 {
		c.Selectors.FileServingPaths = sel.FileServingPaths
	}
	if len(c.Selectors.DirectExtensions) == 0 {
		c.Selectors.DirectExtensions = sel.DirectExtensions
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Credentials.Username) == "" {
		return errors.New("missing or empty required field: credentials.username")
	}
	if strings.TrimSpace(c.Credentials.Password) == "" {
		return errors.New("password cannot be empty")
	}
	if !isValidURL(c.URLs.Login) {
		return errors.New("invalid login URL format")
	}
	if !isValidURL(c.URLs.Courses) {
		return errors.New("invalid courses URL format")
	}
	if strings.TrimSpace(c.DownloadDir) == "" {
		return errors.New("missing or empty required field: download_dir")
	}
	if c.Download.Concurrency < 1 {
		return fmt.Errorf("download.concurrency must be at least 1, got %d", c.Download.Concurrency)
	}
	if c.Download.MaxRetries < 0 {
		return fmt.Errorf("download.max_retries cannot be negative, got %d", c.Download.MaxRetries)
	}
	return nil
}

// WriteExample writes the default configuration to path, refusing to overwrite.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
