package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/artpar/monoclient/adapters/transport"
	"github.com/artpar/monoclient/app"
	"github.com/artpar/monoclient/config"
	"github.com/artpar/monoclient/domain/dom"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before running",
	Long: `Validate the monoclient configuration.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - The page is reachable and has exactly one mono root (optional)

Examples:
  monoclient validate
  monoclient validate --check-page --config /etc/monoclient/config.yaml`,
	RunE: runValidate,
}

var validateCheckPage bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckPage, "check-page", false, "fetch the page and check its mono root")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	fmt.Fprintf(out, "  %s Page: %s\n", checkMark, cfg.Page.URL)
	if cfg.Page.DocumentFile != "" {
		fmt.Fprintf(out, "  %s Document file: %s\n", checkMark, cfg.Page.DocumentFile)
	}
	fmt.Fprintf(out, "  %s Event timeout: %s\n", checkMark, cfg.Transport.EventTimeout)
	fmt.Fprintf(out, "  %s Retry backoff: %s\n", checkMark, cfg.Sync.RetryBackoff)
	if cfg.Inspector.Enabled {
		fmt.Fprintf(out, "  %s Inspector: %s\n", checkMark, cfg.Inspector.Addr)
	}

	if validateCheckPage {
		monoID, err := checkPage(cmd.Context(), cfg)
		if err != nil {
			fmt.Fprintf(out, "  %s Page has one mono root\n", crossMark)
			return fmt.Errorf("page error: %w", err)
		}
		fmt.Fprintf(out, "  %s Page has one mono root (%s)\n", checkMark, monoID)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func checkPage(ctx context.Context, cfg *config.Config) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tr := transport.New(transport.Config{
		Headers: cfg.Transport.Headers,
		Logger:  zerolog.Nop(),
	})
	body, err := tr.Fetch(ctx, cfg.Page.URL)
	if err != nil {
		return "", err
	}
	doc, err := dom.Parse(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var ids []string
	doc.Do(func() { ids, err = app.Roots(doc) })
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", app.ErrNoRoot
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: found %d", app.ErrMultipleRoots, len(ids))
	}
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
