package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-scraper/internal/config"
	"github.com/pdiddy/paper-scraper/internal/export"
	"github.com/pdiddy/paper-scraper/internal/httputil"
	"github.com/pdiddy/paper-scraper/internal/observability"
	"github.com/pdiddy/paper-scraper/internal/pdftext"
	"github.com/pdiddy/paper-scraper/internal/scrape"
	"github.com/pdiddy/paper-scraper/internal/sources/openreview"
	"github.com/pdiddy/paper-scraper/internal/sources/pdf"
	"github.com/pdiddy/paper-scraper/internal/sources/web"
	"github.com/pdiddy/paper-scraper/internal/venue"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

const metricsNamespace = "paper_scraper"

var scrapeCmd = &cobra.Command{
	Use:   "scrape [conferences...]",
	Short: "Acquire paper metadata for conferences and years",
	Long: `Scrape processes every (conference, year) pair from --conferences and
--years, conference by conference. A pair that fails is reported and never
stops the others. Each successful pair is exported as soon as it completes.

Years accept lists and ranges: --years 2022,2024 or --years 2020-2024.
The command exits non-zero only when every pair failed or an export failed.
An interrupt lets the pairs in flight finish and be exported; a second
interrupt aborts them.`,
	Example: `  paper-scraper scrape -c ICLR -y 2024 -o iclr.csv
  paper-scraper scrape -c ICLR,NeurIPS -y 2023-2024 --output-dir out -k "graph neural"
  paper-scraper scrape -c AAMAS -y 2024 --pdf-dir pdfs/aamas/{year} -o aamas.csv`,
	RunE: runScrape,
}

func init() {
	f := scrapeCmd.Flags()
	f.StringSliceP("conferences", "c", nil, "conference names (comma-separated or repeated)")
	f.StringSliceP("years", "y", nil, "years, lists, or ranges such as 2020-2024")
	f.StringP("output", "o", "", "single output file for the whole run")
	f.String("output-dir", "", "write one file per pair as {conf}_{year}.{ext}")
	f.String("format", "", "export format: csv, yaml, or sqlite (default csv)")
	f.Bool("append", false, "merge into an existing CSV file instead of replacing it")
	f.StringSliceP("keywords", "k", nil, "keep only records fuzzily matching any keyword")
	f.StringSlice("fields", nil, "fields searched for keywords (default title,abstract,keywords)")
	f.Int("threshold", 0, "keyword similarity threshold 0-100 (default 85)")
	f.Int("workers", 0, "pairs processed concurrently (default 1)")
	f.Bool("include-submissions", false, "also fetch OpenReview submissions without a decision")
	f.String("pdf-dir", "", "PDF directory for PDF-extracted venues; may contain {conference} and {year}")
	f.String("pdf-backend", "", "PDF text backend: auto, pdftotext, or container")
	f.Int("max-retries", -1, "retries after the first attempt (default 5)")
	f.Duration("delay-min", 0, "smallest retry backoff delay (default 1s)")
	f.Duration("delay-max", 0, "largest retry backoff delay (default 60s)")
	f.Duration("timeout", 0, "per-attempt request timeout (default 30s)")
	f.Float64("rate-limit", 0, "ceiling in requests per second per transport (default off)")
	f.String("metrics-file", "", "write Prometheus metrics to this file at the end of the run")
	f.BoolP("quiet", "q", false, "suppress per-pair status lines")

	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	confFlag, _ := cmd.Flags().GetStringSlice("conferences")
	conferences := splitValues(append(confFlag, args...))
	if len(conferences) == 0 {
		return fmt.Errorf("provide one or more conferences with --conferences (see 'paper-scraper conferences')")
	}
	yearFlag, _ := cmd.Flags().GetStringSlice("years")
	years, err := parseYears(yearFlag)
	if err != nil {
		return err
	}
	if len(years) == 0 {
		return fmt.Errorf("provide one or more years with --years")
	}

	if err := applyScrapeFlags(cmd, cfg); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	runID := uuid.NewString()
	log := observability.WithRunContext(logger, runID)
	metrics := observability.NewMetrics(metricsNamespace)

	sink, err := export.New(cfg.Export, runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	status := out
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		status = io.Discard
	}

	ctx, abort, release := watchSignals(cmd.Context(), log)
	defer release()

	api, site := newTransports(cfg, log, metrics)
	orch := scrape.New(*cfg, venue.Default(), site,
		scrape.WithTransport(types.SourceOpenReview, api),
		scrape.WithAdapter(openreview.New(cfg.Sources, log)),
		scrape.WithAdapter(web.New(log)),
		scrape.WithAdapter(pdf.New(cfg.Sources.PDFDir, pdfConverter(cfg.Sources.PDFBackend), log)),
		scrape.WithSink(sink),
		scrape.WithMetrics(metrics),
		scrape.WithLogger(log),
		scrape.WithStatus(status),
		scrape.WithAbort(abort),
	)

	log.Info().
		Strs("conferences", conferences).
		Ints("years", years).
		Str("format", string(cfg.Export.Format)).
		Msg("starting run")

	sum := orch.Run(ctx, conferences, years)
	sum.Report(out)

	if err := sink.Close(); err != nil {
		return fmt.Errorf("closing export: %w", err)
	}
	if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("writing metrics failed")
		}
	}

	switch {
	case sum.Status() == scrape.StatusTotalFailure:
		return fmt.Errorf("all %d pair(s) failed", len(sum.Results))
	case sum.ExportFailed():
		return fmt.Errorf("export failed for one or more pairs")
	}
	return nil
}

// applyScrapeFlags overrides cfg with the flags set on cmd.
func applyScrapeFlags(cmd *cobra.Command, cfg *types.Config) error {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	str("output", &cfg.Export.Output)
	str("output-dir", &cfg.Export.OutputDir)
	str("pdf-dir", &cfg.Sources.PDFDir)
	str("pdf-backend", &cfg.Sources.PDFBackend)

	if f.Changed("format") {
		v, _ := f.GetString("format")
		cfg.Export.Format = types.ExportFormat(v)
	}
	if f.Changed("append") {
		cfg.Export.Append, _ = f.GetBool("append")
	}
	if f.Changed("include-submissions") {
		cfg.Sources.IncludeSubmissions, _ = f.GetBool("include-submissions")
	}
	if f.Changed("keywords") {
		v, _ := f.GetStringSlice("keywords")
		cfg.Filter.Keywords = splitValues(v)
	}
	if f.Changed("fields") {
		v, _ := f.GetStringSlice("fields")
		cfg.Filter.Fields = splitValues(v)
	}
	if f.Changed("threshold") {
		cfg.Filter.Threshold, _ = f.GetInt("threshold")
	}
	if f.Changed("workers") {
		cfg.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("max-retries") {
		cfg.Transport.Retry.MaxRetries, _ = f.GetInt("max-retries")
	}
	if f.Changed("delay-min") {
		cfg.Transport.Retry.DelayMin, _ = f.GetDuration("delay-min")
	}
	if f.Changed("delay-max") {
		cfg.Transport.Retry.DelayMax, _ = f.GetDuration("delay-max")
	}
	if f.Changed("timeout") {
		cfg.Transport.Timeout, _ = f.GetDuration("timeout")
		cfg.Transport.Retry.Timeout = cfg.Transport.Timeout
	}
	if f.Changed("rate-limit") {
		cfg.Transport.Politeness.RateLimit, _ = f.GetFloat64("rate-limit")
	}
	if cfg.Export.Output != "" && cfg.Export.OutputDir != "" {
		return fmt.Errorf("--output and --output-dir are mutually exclusive")
	}
	return nil
}

// watchSignals returns a context that is canceled on the first interrupt,
// which stops scheduling new pairs, and a channel closed on the second, which
// aborts the pairs in flight.
func watchSignals(parent context.Context, log zerolog.Logger) (context.Context, <-chan struct{}, func()) {
	ctx, stop := context.WithCancel(parent)
	abort := make(chan struct{})
	done := make(chan struct{})
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigs:
		case <-done:
			return
		}
		log.Warn().Msg("finishing pairs in flight; interrupt again to abort")
		stop()
		select {
		case <-sigs:
			log.Warn().Msg("aborting pairs in flight")
			close(abort)
		case <-done:
		}
	}()

	release := func() {
		signal.Stop(sigs)
		close(done)
		stop()
	}
	return ctx, abort, release
}

// newTransports builds the OpenReview API transport, which carries the
// session token, and the transport shared by the other sources, which
// rotates browser user agents unless one is configured.
func newTransports(cfg *types.Config, log zerolog.Logger, m *observability.Metrics) (api, site *httputil.Client) {
	apiCfg := cfg.Transport
	if apiCfg.UserAgent == "" {
		apiCfg.UserAgent = "paper-scraper/" + version
	}
	api = httputil.New(apiCfg,
		httputil.WithAuthenticator(openreview.NewAuthenticator(cfg.Sources.OpenReviewBaseURL, cfg.Credentials)),
		httputil.WithMetrics(m),
		httputil.WithLogger(log.With().Str("transport", "openreview").Logger()),
	)

	opts := []httputil.Option{
		httputil.WithMetrics(m),
		httputil.WithLogger(log.With().Str("transport", "web").Logger()),
	}
	if cfg.Transport.UserAgent == "" {
		opts = append(opts, httputil.WithUserAgents(web.UserAgents...))
	}
	site = httputil.New(cfg.Transport, opts...)
	return api, site
}

// pdfConverter defers backend detection until a PDF venue is processed.
func pdfConverter(backend string) pdf.ConverterFactory {
	return func(ctx context.Context) (pdftext.Converter, error) {
		return pdftext.New(ctx, backend)
	}
}
