// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Typed errors below match these through errors.Is.
var (
	ErrConfiguration         = errors.New("configuration error")
	ErrUnsupportedConference = errors.New("unsupported conference")
	ErrUnsupportedYear       = errors.New("unsupported year")
	ErrTransport             = errors.New("transport error")
	ErrMissingField          = errors.New("missing field")
	ErrAdapterUnavailable    = errors.New("adapter unavailable")
)

// ConfigurationError reports missing or invalid configuration. Source names
// the source kind or setting at fault.
type ConfigurationError struct {
	Source  string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error for %s: %s", e.Source, e.Message)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// UnsupportedConferenceError reports a conference name absent from the registry.
type UnsupportedConferenceError struct {
	Conference string
}

func (e *UnsupportedConferenceError) Error() string {
	return fmt.Sprintf("unsupported conference %q", e.Conference)
}

func (e *UnsupportedConferenceError) Unwrap() error { return ErrUnsupportedConference }

// UnsupportedYearError reports a known conference with no data for the year.
type UnsupportedYearError struct {
	Conference string
	Year       int
}

func (e *UnsupportedYearError) Error() string {
	return fmt.Sprintf("no data for %s in %d", e.Conference, e.Year)
}

func (e *UnsupportedYearError) Unwrap() error { return ErrUnsupportedYear }

// TransportErrorKind tags why the transport gave up.
type TransportErrorKind string

const (
	TransportRateLimited TransportErrorKind = "rate_limited"
	TransportTimeout     TransportErrorKind = "timeout"
	TransportUnreachable TransportErrorKind = "unreachable"
)

// TransportError is returned once the retry budget for a call is exhausted.
type TransportError struct {
	Kind       TransportErrorKind
	URL        string
	Attempts   int
	StatusCode int
	RetryAfter time.Duration
	Cause      error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport %s after %d attempt(s): %s", e.Kind, e.Attempts, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *TransportError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Cause}
}

// MissingFieldError reports a raw record without its identifying field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing identifying field %q", e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// AdapterUnavailableError reports that a source adapter could not reach or
// parse its source at all.
type AdapterUnavailableError struct {
	Source SourceKind
	Venue  string
	Cause  error
}

func (e *AdapterUnavailableError) Error() string {
	msg := fmt.Sprintf("%s adapter unavailable for %s", e.Source, e.Venue)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AdapterUnavailableError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrAdapterUnavailable}
	}
	return []error{ErrAdapterUnavailable, e.Cause}
}

// NewAdapterUnavailable wraps cause as an AdapterUnavailableError unless it
// already is one.
func NewAdapterUnavailable(source SourceKind, venue Venue, cause error) error {
	var ae *AdapterUnavailableError
	if errors.As(cause, &ae) {
		return cause
	}
	return &AdapterUnavailableError{Source: source, Venue: venue.String(), Cause: cause}
}

// FailureKind returns a short tag for err, used in summaries and metrics.
func FailureKind(err error) string {
	var te *TransportError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrUnsupportedConference):
		return "unsupported_conference"
	case errors.Is(err, ErrUnsupportedYear):
		return "unsupported_year"
	case errors.As(err, &te):
		return "transport_" + string(te.Kind)
	case errors.Is(err, ErrAdapterUnavailable):
		return "adapter_unavailable"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
