// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-scraper CLI. It acquires
// paper metadata for (conference, year) pairs from OpenReview, proceedings
// web pages, and local PDFs, and exports it as CSV, YAML, or SQLite.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-scraper/internal/config"
	"github.com/pdiddy/paper-scraper/internal/observability"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the loaded configuration, set before any subcommand runs.
	cfg *types.Config

	// logger is built from cfg.Logging.
	logger zerolog.Logger
)

// rootCmd is the base command for the paper-scraper CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-scraper",
	Short: "Acquire conference paper metadata into one tabular schema",
	Long: `paper-scraper fetches paper metadata for conferences and years from three
kinds of sources: the OpenReview API (ICLR, ICML, NeurIPS), proceedings web
pages (IJCAI, AAAI, AISTATS, ACL, EMNLP, NAACL), and directories of PDFs
(AAMAS). Records are normalized to id, title, keywords, abstract, pdf, forum,
year and presentation_type, optionally filtered by fuzzy keyword match, and
exported as CSV, YAML, or SQLite.

Configuration is read from paper-scraper.yaml in the working directory or
~/.config/paper-scraper/, then PAPER_SCRAPER_* environment variables, then
flags. OpenReview credentials come from OPENREVIEW_EMAIL/OPENREVIEW_PASSWORD
or the files .secrets/openreview-email and .secrets/openreview-password.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Logging.Format, _ = cmd.Flags().GetString("log-format")
		}
		cfg = loaded
		logger = observability.NewLogger(cfg.Logging)
		logger.Debug().
			Bool("credentials", cfg.Credentials.Complete()).
			Str("secrets_dir", cfg.SecretsDir).
			Msg("configuration loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-scraper.yaml or ~/.config/paper-scraper/paper-scraper.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default info)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json (default console)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
