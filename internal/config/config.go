// Package config loads the run configuration from defaults, an optional YAML
// file, PAPER_SCRAPER_* environment variables, and the secrets directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/paper-scraper/internal/filter"
	"github.com/pdiddy/paper-scraper/internal/observability"
	"github.com/pdiddy/paper-scraper/internal/pdftext"
	"github.com/pdiddy/paper-scraper/internal/secrets"
	"github.com/pdiddy/paper-scraper/internal/sources/openreview"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Name is the config file base name and the env prefix source.
const (
	Name      = "paper-scraper"
	EnvPrefix = "PAPER_SCRAPER"
)

// Defaults returns the configuration used when nothing else is set.
func Defaults() types.Config {
	return types.Config{
		Transport: types.TransportConfig{
			HTTPConfig: types.HTTPConfig{Timeout: 30 * time.Second},
			Retry:      types.DefaultRetryPolicy(),
			Politeness: types.PolitenessConfig{
				DelayMin: 1 * time.Second,
				DelayMax: 3 * time.Second,
				Burst:    1,
			},
		},
		Sources: types.SourcesConfig{
			OpenReviewBaseURL: openreview.DefaultBaseURL,
			PDFBackend:        pdftext.BackendAuto,
		},
		Filter: types.FilterConfig{
			Fields:    filter.DefaultFields,
			Threshold: filter.DefaultThreshold,
		},
		Export:     types.ExportConfig{Format: types.ExportCSV},
		Logging:    observability.DefaultLoggingConfig(),
		Workers:    1,
		SecretsDir: secrets.DefaultDir,
	}
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("transport.timeout", d.Transport.Timeout)
	v.SetDefault("transport.user_agent", d.Transport.UserAgent)
	v.SetDefault("transport.retry.max_retries", d.Transport.Retry.MaxRetries)
	v.SetDefault("transport.retry.delay_min", d.Transport.Retry.DelayMin)
	v.SetDefault("transport.retry.delay_max", d.Transport.Retry.DelayMax)
	v.SetDefault("transport.retry.timeout", d.Transport.Retry.Timeout)
	v.SetDefault("transport.retry.retryable_status_codes", d.Transport.Retry.RetryableStatusCodes)
	v.SetDefault("transport.retry.max_retry_after", d.Transport.Retry.MaxRetryAfter)
	v.SetDefault("transport.politeness.delay_min", d.Transport.Politeness.DelayMin)
	v.SetDefault("transport.politeness.delay_max", d.Transport.Politeness.DelayMax)
	v.SetDefault("transport.politeness.rate_limit", d.Transport.Politeness.RateLimit)
	v.SetDefault("transport.politeness.burst", d.Transport.Politeness.Burst)
	v.SetDefault("sources.openreview_base_url", d.Sources.OpenReviewBaseURL)
	v.SetDefault("sources.include_submissions", d.Sources.IncludeSubmissions)
	v.SetDefault("sources.pdf_dir", d.Sources.PDFDir)
	v.SetDefault("sources.pdf_backend", d.Sources.PDFBackend)
	v.SetDefault("filter.keywords", []string{})
	v.SetDefault("filter.fields", d.Filter.Fields)
	v.SetDefault("filter.threshold", d.Filter.Threshold)
	v.SetDefault("export.format", string(d.Export.Format))
	v.SetDefault("export.output", d.Export.Output)
	v.SetDefault("export.output_dir", d.Export.OutputDir)
	v.SetDefault("export.append", d.Export.Append)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("credentials.email", "")
	v.SetDefault("credentials.password", "")
	v.SetDefault("workers", d.Workers)
	v.SetDefault("secrets_dir", d.SecretsDir)
}

// Load builds the configuration. An explicit path must exist; without one
// paper-scraper.yaml is searched for in the working directory and in
// ~/.config/paper-scraper/, and its absence is not an error. Credentials
// from OPENREVIEW_EMAIL/OPENREVIEW_PASSWORD or the secrets directory
// replace those in the file. The result is validated.
func Load(path string) (*types.Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, &types.ConfigurationError{Source: "config file", Message: err.Error()}
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &types.ConfigurationError{Source: "config file", Message: fmt.Sprintf("decoding: %v", err)}
	}

	store, err := secrets.Load(cfg.SecretsDir)
	if err != nil {
		return nil, &types.ConfigurationError{Source: "secrets", Message: err.Error()}
	}
	creds := store.Credentials()
	if creds.Email != "" {
		cfg.Credentials.Email = creds.Email
	}
	if creds.Password != "" {
		cfg.Credentials.Password = creds.Password
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the transport, filter, or exporter cannot use.
func Validate(cfg *types.Config) error {
	bad := func(source, format string, args ...any) error {
		return &types.ConfigurationError{Source: source, Message: fmt.Sprintf(format, args...)}
	}
	r := cfg.Transport.Retry
	p := cfg.Transport.Politeness
	switch {
	case r.MaxRetries < 0:
		return bad("transport.retry.max_retries", "must not be negative, got %d", r.MaxRetries)
	case r.DelayMin < 0 || r.DelayMin > r.DelayMax:
		return bad("transport.retry", "delay_min %s must be between 0 and delay_max %s", r.DelayMin, r.DelayMax)
	case cfg.Transport.Timeout <= 0 && r.Timeout <= 0:
		return bad("transport.timeout", "must be positive")
	case r.Timeout < 0:
		return bad("transport.retry.timeout", "must not be negative, got %s", r.Timeout)
	case p.DelayMin < 0 || p.DelayMin > p.DelayMax:
		return bad("transport.politeness", "delay_min %s must be between 0 and delay_max %s", p.DelayMin, p.DelayMax)
	case p.RateLimit < 0:
		return bad("transport.politeness.rate_limit", "must not be negative, got %g", p.RateLimit)
	case cfg.Filter.Threshold < 0 || cfg.Filter.Threshold > 100:
		return bad("filter.threshold", "must be within 0-100, got %d", cfg.Filter.Threshold)
	case cfg.Workers < 1:
		return bad("workers", "must be at least 1, got %d", cfg.Workers)
	}

	for _, f := range cfg.Filter.Fields {
		switch f {
		case filter.FieldTitle, filter.FieldAbstract, filter.FieldKeywords:
		default:
			return bad("filter.fields", "unknown field %q", f)
		}
	}

	switch cfg.Export.Format {
	case types.ExportCSV, types.ExportYAML, types.ExportSQLite:
	default:
		return bad("export.format", "unknown format %q (want csv, yaml or sqlite)", cfg.Export.Format)
	}

	switch cfg.Sources.PDFBackend {
	case "", pdftext.BackendAuto, pdftext.BackendPdftotext, pdftext.BackendContainer:
	default:
		return bad("sources.pdf_backend", "unknown backend %q", cfg.Sources.PDFBackend)
	}
	return nil
}
