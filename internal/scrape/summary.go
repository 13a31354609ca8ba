// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// PairResult is the outcome of one (conference, year) pair.
type PairResult struct {
	// Conference is the canonical name once resolved, else as requested.
	Conference string
	Year       int

	// Venue is zero when resolution failed.
	Venue types.Venue

	// Records holds the retained records in discovery order. It is nil
	// when the pair failed.
	Records []types.NormalizedRecord

	Fetched  int
	Skipped  int
	Filtered int
	Elapsed  time.Duration

	Err error
}

// OK reports whether the pair succeeded.
func (r PairResult) OK() bool { return r.Err == nil }

// Outcome is "ok" for a successful pair, "export" when the pair was
// acquired but could not be written, "panic" when processing panicked, and
// the failure kind otherwise.
func (r PairResult) Outcome() string {
	var ee *ExportError
	var pe *PanicError
	switch {
	case r.Err == nil:
		return "ok"
	case errors.As(r.Err, &ee):
		return "export"
	case errors.As(r.Err, &pe):
		return "panic"
	default:
		return types.FailureKind(r.Err)
	}
}

// ExportError reports a pair whose batch the sink rejected.
type ExportError struct {
	Venue types.Venue
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("exporting %s: %v", e.Venue, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// PanicError reports a pair whose processing panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Batch returns the pair's records as an export batch.
func (r PairResult) Batch() types.Batch {
	return types.Batch{Venue: r.Venue, Records: r.Records}
}

// Status classifies a whole run.
type Status string

const (
	StatusComplete     Status = "complete"
	StatusPartial      Status = "partial"
	StatusTotalFailure Status = "total_failure"
)

// Summary reports every pair of a run in request order.
type Summary struct {
	Results []PairResult
}

// Succeeded returns the successful pairs.
func (s *Summary) Succeeded() []PairResult {
	var out []PairResult
	for _, r := range s.Results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the failed pairs.
func (s *Summary) Failed() []PairResult {
	var out []PairResult
	for _, r := range s.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Records returns the total number of retained records.
func (s *Summary) Records() int {
	n := 0
	for _, r := range s.Results {
		n += len(r.Records)
	}
	return n
}

// Status is Complete when every pair succeeded, TotalFailure when none did
// (or there were no pairs), and Partial otherwise.
func (s *Summary) Status() Status {
	ok := len(s.Succeeded())
	switch {
	case ok == 0:
		return StatusTotalFailure
	case ok == len(s.Results):
		return StatusComplete
	default:
		return StatusPartial
	}
}

// ExportFailed reports whether any pair failed at the export boundary.
func (s *Summary) ExportFailed() bool {
	for _, r := range s.Results {
		var ee *ExportError
		if errors.As(r.Err, &ee) {
			return true
		}
	}
	return false
}

// Batches returns the batches of successful pairs in request order.
func (s *Summary) Batches() []types.Batch {
	var out []types.Batch
	for _, r := range s.Succeeded() {
		out = append(out, r.Batch())
	}
	return out
}

// Report writes a human-readable summary to w.
func (s *Summary) Report(w io.Writer) {
	failed := s.Failed()
	fmt.Fprintf(w, "\nBatch summary: %d succeeded, %d failed (total: %d), %d records\n",
		len(s.Results)-len(failed), len(failed), len(s.Results), s.Records())
	for _, r := range failed {
		fmt.Fprintf(w, "  %s %d: [%s] %v\n", r.Conference, r.Year, r.Outcome(), r.Err)
	}
}
