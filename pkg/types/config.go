package types

import (
	"net/http"
	"time"
)

// HTTPConfig holds shared HTTP settings used by every source adapter.
type HTTPConfig struct {
	// Timeout bounds a single request attempt.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header for API requests
	// (e.g. "paper-scraper/0.1"). HTML sources rotate browser agents instead.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// RetryPolicy controls how the transport retries failed calls.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// DelayMin is the smallest backoff delay (default 1s).
	DelayMin time.Duration `json:"delay_min" yaml:"delay_min" mapstructure:"delay_min"`

	// DelayMax caps every backoff delay (default 60s).
	DelayMax time.Duration `json:"delay_max" yaml:"delay_max" mapstructure:"delay_max"`

	// Timeout bounds a single attempt (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RetryableStatusCodes lists HTTP statuses that trigger a retry
	// (default 429, 500, 502, 503, 504).
	RetryableStatusCodes []int `json:"retryable_status_codes" yaml:"retryable_status_codes" mapstructure:"retryable_status_codes"`

	// MaxRetryAfter caps a server-supplied Retry-After hint (default 5m).
	MaxRetryAfter time.Duration `json:"max_retry_after" yaml:"max_retry_after" mapstructure:"max_retry_after"`
}

// DefaultRetryableStatusCodes are retried when a policy lists none.
var DefaultRetryableStatusCodes = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:           5,
		DelayMin:             1 * time.Second,
		DelayMax:             60 * time.Second,
		Timeout:              30 * time.Second,
		RetryableStatusCodes: DefaultRetryableStatusCodes,
		MaxRetryAfter:        5 * time.Minute,
	}
}

// Retryable reports whether status is in the policy's retryable set.
func (p RetryPolicy) Retryable(status int) bool {
	codes := p.RetryableStatusCodes
	if len(codes) == 0 {
		codes = DefaultRetryableStatusCodes
	}
	for _, c := range codes {
		if c == status {
			return true
		}
	}
	return false
}

// PolitenessConfig spaces consecutive calls to the same host.
type PolitenessConfig struct {
	// DelayMin and DelayMax bound the randomized gap between calls to one host.
	DelayMin time.Duration `json:"delay_min" yaml:"delay_min" mapstructure:"delay_min"`
	DelayMax time.Duration `json:"delay_max" yaml:"delay_max" mapstructure:"delay_max"`

	// RateLimit is an optional ceiling in requests per second (0 disables it).
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// Burst is the limiter burst size when RateLimit is set (default 1).
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst"`
}

// Credentials is the OpenReview login pair.
type Credentials struct {
	Email    string `json:"-" yaml:"-" mapstructure:"email"`
	Password string `json:"-" yaml:"-" mapstructure:"password"`
}

// Complete reports whether both halves of the pair are present.
func (c Credentials) Complete() bool {
	return c.Email != "" && c.Password != ""
}

// TransportConfig groups everything the transport needs.
type TransportConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	Retry      RetryPolicy      `json:"retry" yaml:"retry" mapstructure:"retry"`
	Politeness PolitenessConfig `json:"politeness" yaml:"politeness" mapstructure:"politeness"`
}

// SourcesConfig holds per-source adapter settings.
type SourcesConfig struct {
	// OpenReviewBaseURL is the API root (default "https://api2.openreview.net").
	OpenReviewBaseURL string `json:"openreview_base_url" yaml:"openreview_base_url" mapstructure:"openreview_base_url"`

	// IncludeSubmissions also fetches submissions that are not yet accepted.
	IncludeSubmissions bool `json:"include_submissions" yaml:"include_submissions" mapstructure:"include_submissions"`

	// PDFDir is the directory of PDFs for PDF-extracted venues.
	PDFDir string `json:"pdf_dir" yaml:"pdf_dir" mapstructure:"pdf_dir"`

	// PDFBackend selects the PDF text backend: pdftotext or container.
	PDFBackend string `json:"pdf_backend" yaml:"pdf_backend" mapstructure:"pdf_backend"`
}

// FilterConfig holds keyword filter settings.
type FilterConfig struct {
	// Keywords restricts output to records matching any keyword (empty keeps all).
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"keywords"`

	// Fields lists the record fields searched for keywords
	// (default title, abstract, keywords).
	Fields []string `json:"fields" yaml:"fields" mapstructure:"fields"`

	// Threshold is the minimum similarity on a 0-100 scale (default 85).
	Threshold int `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
}

// ExportFormat selects the output serializer.
type ExportFormat string

const (
	ExportCSV    ExportFormat = "csv"
	ExportYAML   ExportFormat = "yaml"
	ExportSQLite ExportFormat = "sqlite"
)

// ExportConfig holds exporter settings.
type ExportConfig struct {
	// Format selects csv, yaml, or sqlite (default csv).
	Format ExportFormat `json:"format" yaml:"format" mapstructure:"format"`

	// Output is a single output file for the whole run.
	Output string `json:"output" yaml:"output" mapstructure:"output"`

	// OutputDir writes one file per pair instead of a single file.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// Append merges into an existing CSV file instead of replacing it.
	Append bool `json:"append" yaml:"append" mapstructure:"append"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is debug, info, warn, or error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console (default console).
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// Output is stdout or stderr (default stderr).
	Output string `json:"output" yaml:"output" mapstructure:"output"`
}

// Config is the immutable run configuration threaded through the
// orchestrator and transport.
type Config struct {
	Transport   TransportConfig `json:"transport" yaml:"transport" mapstructure:"transport"`
	Sources     SourcesConfig   `json:"sources" yaml:"sources" mapstructure:"sources"`
	Filter      FilterConfig    `json:"filter" yaml:"filter" mapstructure:"filter"`
	Export      ExportConfig    `json:"export" yaml:"export" mapstructure:"export"`
	Logging     LoggingConfig   `json:"logging" yaml:"logging" mapstructure:"logging"`
	Credentials Credentials     `json:"-" yaml:"-" mapstructure:"credentials"`

	// Workers is the number of pairs processed concurrently (default 1).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// SecretsDir holds credential files (default ".secrets/").
	SecretsDir string `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`
}
