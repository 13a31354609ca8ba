package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-scraper/internal/httputil"
	"github.com/pdiddy/paper-scraper/internal/sources/openreview"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <org>",
	Short: "List OpenReview main-track venue ids for an organization",
	Long: `Discover queries OpenReview for the venues an organization such as
ICLR.cc or NeurIPS.cc held in a year, leaving out workshops, tutorials and
other satellite groups. Use it to find identifiers for years the built-in
registry does not know yet.`,
	Example: `  paper-scraper discover ICLR.cc --year 2025`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		if year == 0 {
			year = time.Now().Year()
		}

		var opts []httputil.Option
		if cfg.Credentials.Complete() {
			opts = append(opts, httputil.WithAuthenticator(
				openreview.NewAuthenticator(cfg.Sources.OpenReviewBaseURL, cfg.Credentials)))
		}
		opts = append(opts, httputil.WithLogger(logger))
		client := httputil.New(cfg.Transport, opts...)

		ids, err := openreview.New(cfg.Sources, logger).DiscoverVenues(cmd.Context(), client, args[0], year)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("no main-track venues found for %s in %d", args[0], year)
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().Int("year", 0, "year to list (default current year)")
	rootCmd.AddCommand(discoverCmd)
}
