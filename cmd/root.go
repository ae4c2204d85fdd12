package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/coursefetch/internal/config"
	"github.com/tanq16/coursefetch/internal/utils"
)

var (
	configPath string
	logFile    string
	debug      bool
)

var CourseFetchVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "coursefetch",
	Short:   "coursefetch downloads every file from your online courses",
	Version: CourseFetchVersion,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFileName, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", utils.LogFile, "Path of the JSON log file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newInitCmd())
}
