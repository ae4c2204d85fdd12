package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/coursefetch/internal/downloader"
	"github.com/tanq16/coursefetch/internal/fetcher"
	"github.com/tanq16/coursefetch/internal/output"
	"github.com/tanq16/coursefetch/internal/resolver"
	"github.com/tanq16/coursefetch/internal/scheduler"
	"github.com/tanq16/coursefetch/internal/utils"
)

func newRunCmd() *cobra.Command {
	var sel selection
	var outputDir string

	cmd := &cobra.Command{
		Use:   "run [--all | --course NAME | --index 1,3]",
		Short: "Log in and download the selected courses",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := sel.validate(); err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			ctx := context.Background()
			a, err := startApp(ctx)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			defer a.Close()
			if outputDir != "" {
				a.cfg.DownloadDir = outputDir
			}
			failed, err := runDownloads(ctx, a, sel)
			if err != nil {
				a.Close()
				output.PrintError(err.Error())
				os.Exit(1)
			}
			if failed > 0 {
				a.Close()
				output.PrintError("Encountered failed download(s)")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().BoolVar(&sel.all, "all", false, "Download every course")
	cmd.Flags().StringArrayVar(&sel.names, "course", []string{}, "Select courses whose name contains this text; can be repeated")
	cmd.Flags().StringVar(&sel.indexes, "index", "", "Select courses by their number in `list` (e.g. 1,3,5)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Download directory (overrides download_dir)")
	return cmd
}

func runDownloads(ctx context.Context, a *app, sel selection) (int, error) {
	courses, err := a.site.Courses(ctx, a.cfg.URLs.Courses)
	if err != nil {
		return 0, err
	}
	if len(courses) == 0 {
		output.PrintWarning("No courses found")
		return 0, nil
	}
	selected, err := sel.apply(courses)
	if err != nil {
		return 0, err
	}
	if len(selected) == 0 {
		output.PrintWarning("No courses selected")
		return 0, nil
	}
	output.PrintInfo(fmt.Sprintf("Scanning %d course(s)...", len(selected)))

	manager := output.NewManager()
	queue, err := scheduler.BuildQueue(ctx, a.site, selected, a.cfg.DownloadDir, manager)
	if err != nil {
		return 0, err
	}
	if len(queue) == 0 {
		output.PrintWarning("No resources found in the selected courses")
		return 0, nil
	}

	identity := downloader.Identity{UserAgent: a.cfg.Browser.UserAgent}
	if identity.UserAgent == "" || identity.UserAgent == "randomize" {
		identity.UserAgent = utils.ToolUserAgent
	}
	if cookies, err := a.session.Cookies(ctx); err == nil {
		identity.Cookies = cookies
	} else {
		log.Warn().Str("op", "cmd/run").Err(err).Msg("Could not read session cookies")
	}
	if ua, err := a.session.UserAgent(ctx); err == nil {
		identity.UserAgent = ua
	}

	d := a.cfg.Download
	client := utils.NewHTTPClient(utils.HTTPClientConfig{
		Timeout:      d.FetchTimeout,
		MaxRedirects: d.MaxRedirects,
		ProxyURL:     a.cfg.Browser.ProxyURL,
		UserAgent:    identity.UserAgent,
	})
	dl := downloader.New(
		a.session,
		resolver.New(a.cfg.Selectors, d.EvalTimeout, d.IndicatorTimeout),
		fetcher.New(client, d.MinFileSize),
		identity,
		downloader.Config{MaxRetries: d.MaxRetries, PageRetryDelay: d.PageRetryDelay, FetchRetryDelay: d.FetchRetryDelay},
	)

	output.PrintInfo(fmt.Sprintf("Downloading %d resource(s) to %s", len(queue), a.cfg.DownloadDir))
	manager.Start(len(queue))
	stats := scheduler.New(dl, manager, scheduler.Options{Concurrency: d.Concurrency, WindowPause: d.WindowPause}).Run(ctx, queue)
	manager.Stop()
	manager.ShowSummary(stats)
	return stats.FailedFiles, nil
}
