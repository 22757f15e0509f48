package main

import (
	"github.com/artpar/monoclient/bootstrap"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load the page and keep it in sync",
	Long: `Load the page and run the client until the session expires,
the server reports an error, or the process is interrupted.

The configuration file is reloaded on change or SIGHUP. Without a
configuration file the client reads MONO_* environment variables:
  MONO_PAGE_URL            - Page URL (required)
  MONO_LOG_LEVEL           - Log level: debug, info, warn, error
  MONO_INSPECTOR_ENABLED   - Serve the inspector

Examples:
  monoclient run
  monoclient run --config /etc/monoclient/config.yaml
  MONO_PAGE_URL=http://localhost:8080/app monoclient run`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap.New(ctx, bootstrap.Options{
		ConfigPath: cfgFile,
		Version:    version,
	})
	if err != nil {
		return err
	}

	return a.Run(ctx)
}
