package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/coursefetch/internal/config"
	"github.com/tanq16/coursefetch/internal/output"
	"github.com/tanq16/coursefetch/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [path]",
		Short: "Remove leftover partial downloads",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			root := config.Default().DownloadDir
			if len(args) > 0 {
				root = args[0]
			} else if cfg, err := config.Load(configPath); err == nil {
				root = cfg.DownloadDir
			}
			removed, err := utils.Clean(root)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error cleaning up temporary files: %v", err))
				os.Exit(1)
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d temporary folder(s) under %s", removed, root))
		},
	}
}
