package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "monoclient",
	Short: "Headless client for server-driven mono pages",
	Long: `monoclient loads a mono page, keeps it in sync with its server
and sends the page's user events back.

Quick start:
  monoclient run --config monoclient.yaml
  monoclient validate
  monoclient version`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "monoclient.yaml", "config file path")
}
