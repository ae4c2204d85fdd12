package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/coursefetch/internal/browser"
	"github.com/tanq16/coursefetch/internal/config"
	"github.com/tanq16/coursefetch/internal/moodle"
	"github.com/tanq16/coursefetch/internal/output"
	"github.com/tanq16/coursefetch/internal/utils"
)

// app is a logged-in browser session plus everything derived from the config.
type app struct {
	cfg     *config.Config
	session *browser.Session
	site    *moodle.Site
	logs    io.Closer
}

func startApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logs, err := output.InitLogger(debug, logFile)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}
	output.WithRun(uuid.New().String())
	log.Info().Str("op", "cmd/session").Str("config", configPath).Msg("Configuration loaded")

	userAgent := cfg.Browser.UserAgent
	if userAgent == "randomize" {
		userAgent = utils.GetRandomUserAgent()
	}
	output.PrintInfo("Launching browser...")
	session, err := browser.New(ctx, browser.Options{
		Headless:          cfg.Browser.Headless,
		ExecPath:          cfg.Browser.ExecPath,
		UserAgent:         userAgent,
		Flags:             cfg.Browser.Flags,
		ProxyURL:          cfg.Browser.ProxyURL,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
	})
	if err != nil {
		logs.Close()
		return nil, err
	}
	a := &app{cfg: cfg, session: session, site: moodle.New(session.Main()), logs: logs}
	a.closeOnSignal()

	output.PrintInfo("Logging in...")
	if err := a.site.Login(ctx, cfg.Credentials, cfg.URLs.Login); err != nil {
		a.Close()
		return nil, err
	}
	output.PrintSuccess("Login successful")
	return a, nil
}

// closeOnSignal exits right away on SIGINT/SIGTERM after a best-effort browser shutdown.
// In-flight downloads are abandoned; their .part files are removed by `clean`.
func (a *app) closeOnSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("op", "cmd/session").Str("signal", sig.String()).Msg("Shutting down")
		fmt.Println()
		output.PrintWarning("Interrupted, closing browser...")
		a.session.Close()
		a.logs.Close()
		os.Exit(130)
	}()
}

func (a *app) Close() {
	a.session.Close()
	a.logs.Close()
}
