// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scrape drives acquisition across a batch of (conference, year)
// pairs. Each pair is resolved, fetched, extracted, filtered, and assembled
// in isolation: a failing pair is reported in the summary and never stops
// the others.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-scraper/internal/assemble"
	"github.com/pdiddy/paper-scraper/internal/extract"
	"github.com/pdiddy/paper-scraper/internal/filter"
	"github.com/pdiddy/paper-scraper/internal/httputil"
	"github.com/pdiddy/paper-scraper/internal/observability"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Resolver maps a (conference, year) pair to a venue.
type Resolver interface {
	Resolve(conference string, year int) (types.Venue, error)
	PosterOnly(conference string) bool
}

// Adapter acquires raw records for venues of one source kind.
type Adapter interface {
	// Kind is the source kind this adapter serves.
	Kind() types.SourceKind

	// RequiresCredentials reports whether Fetch needs a credential pair.
	RequiresCredentials() bool

	// Spec declares the fields to extract from each raw record.
	Spec() extract.Spec

	// Rewrite adjusts extracted fields in place before assembly, for
	// example turning relative links into absolute URLs.
	Rewrite(f extract.Fields)

	// Fetch returns a finite sequence of raw records in discovery order.
	// Ranging over it again fetches again. A non-nil error ends the
	// sequence and fails the pair.
	Fetch(ctx context.Context, venue types.Venue, c *httputil.Client) iter.Seq2[types.RawRecord, error]
}

// Sink receives the batch of each completed pair.
type Sink interface {
	Export(ctx context.Context, batch types.Batch) error
	Close() error
}

// Orchestrator runs batches. It holds no per-run state and may be reused.
type Orchestrator struct {
	resolver   Resolver
	transport  *httputil.Client
	transports map[types.SourceKind]*httputil.Client
	adapters   map[types.SourceKind]Adapter
	chain      *filter.Chain
	sink       Sink
	creds      types.Credentials
	workers    int
	metrics    *observability.Metrics
	logger     zerolog.Logger
	status     io.Writer
	abort      <-chan struct{}
	now        func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithAdapter registers a for its source kind, replacing any earlier one.
func WithAdapter(a Adapter) Option {
	return func(o *Orchestrator) { o.adapters[a.Kind()] = a }
}

// WithTransport gives adapters of kind their own transport instead of the
// shared one, for example to keep a session token off unrelated hosts.
func WithTransport(kind types.SourceKind, c *httputil.Client) Option {
	return func(o *Orchestrator) { o.transports[kind] = c }
}

// WithFilter sets the filter chain applied to assembled records.
func WithFilter(c *filter.Chain) Option {
	return func(o *Orchestrator) { o.chain = c }
}

// WithSink sets the export boundary. Without a sink batches are only
// returned in the summary.
func WithSink(s Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithMetrics records pair and record counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithStatus writes one human-readable status line per pair to w.
func WithStatus(w io.Writer) Option {
	return func(o *Orchestrator) { o.status = w }
}

// WithAbort interrupts pairs already in flight when abort is closed. Without
// it an in-flight pair always runs to completion and is exported.
func WithAbort(abort <-chan struct{}) Option {
	return func(o *Orchestrator) { o.abort = abort }
}

// New creates an Orchestrator from the run configuration.
func New(cfg types.Config, resolver Resolver, transport *httputil.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:   resolver,
		transport:  transport,
		transports: make(map[types.SourceKind]*httputil.Client),
		adapters:   make(map[types.SourceKind]Adapter),
		chain:      filter.FromConfig(cfg.Filter),
		creds:      cfg.Credentials,
		workers:    cfg.Workers,
		logger:     zerolog.Nop(),
		status:     io.Discard,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

// Run processes every (conference, year) pair, conference-major. It never
// returns an error: each pair's outcome is recorded in the Summary.
//
// ctx stops scheduling: pairs not yet started when ctx is done are reported
// as failed with ctx's error, while pairs already in flight finish and are
// exported. Only the abort channel interrupts an in-flight pair.
func (o *Orchestrator) Run(ctx context.Context, conferences []string, years []int) *Summary {
	sum := &Summary{Results: make([]PairResult, 0, len(conferences)*len(years))}
	for _, conf := range conferences {
		for _, year := range years {
			sum.Results = append(sum.Results, PairResult{Conference: conf, Year: year})
		}
	}

	work, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	if o.abort != nil {
		go func() {
			select {
			case <-o.abort:
				cancel()
			case <-work.Done():
			}
		}()
	}

	var emit sync.Mutex
	finish := func(i int, res PairResult) {
		emit.Lock()
		defer emit.Unlock()
		if res.Err == nil && o.sink != nil {
			if err := o.sink.Export(work, res.Batch()); err != nil {
				res.Err = &ExportError{Venue: res.Venue, Err: err}
				res.Records = nil
			} else {
				o.metrics.RecordRecords(observability.StageExported, len(res.Records))
			}
		}
		o.metrics.RecordPair(res.Outcome(), res.Elapsed.Seconds())
		o.report(res)
		sum.Results[i] = res
	}

	if o.workers == 1 {
		for i, p := range sum.Results {
			if err := ctx.Err(); err != nil {
				finish(i, o.canceled(p, err))
				continue
			}
			finish(i, o.safeRunPair(work, p.Conference, p.Year))
		}
		return sum
	}

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, p := range sum.Results {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				finish(i, o.canceled(p, err))
				return nil
			}
			finish(i, o.safeRunPair(work, p.Conference, p.Year))
			return nil
		})
	}
	g.Wait()
	return sum
}

func (o *Orchestrator) canceled(p PairResult, err error) PairResult {
	p.Err = err
	return p
}

// safeRunPair runs the pair and turns a panic in an adapter or parser into a
// failure of that pair alone.
func (o *Orchestrator) safeRunPair(ctx context.Context, conf string, year int) (res PairResult) {
	start := o.now()
	defer func() {
		if p := recover(); p != nil {
			log := observability.WithPairContext(o.logger, conf, year)
			log.Debug().Bytes("stack", debug.Stack()).Msg("recovered panic")
			failed := PairResult{Conference: conf, Year: year, Err: &PanicError{Value: p}}
			res = o.done(log, failed, start)
		}
	}()
	return o.runPair(ctx, conf, year)
}

// runPair processes one pair to completion and returns its result.
func (o *Orchestrator) runPair(ctx context.Context, conf string, year int) PairResult {
	start := o.now()
	res := PairResult{Conference: conf, Year: year}
	log := observability.WithPairContext(o.logger, conf, year)

	venue, err := o.resolver.Resolve(conf, year)
	if err != nil {
		res.Err = err
		return o.done(log, res, start)
	}
	res.Venue = venue
	res.Conference = venue.Conference

	adapter, ok := o.adapters[venue.SourceKind]
	if (venue.SourceKind.RequiresCredentials() || (ok && adapter.RequiresCredentials())) && !o.creds.Complete() {
		res.Err = &types.ConfigurationError{
			Source:  string(venue.SourceKind),
			Message: "credentials are required but not configured",
		}
		return o.done(log, res, start)
	}
	if !ok {
		res.Err = &types.AdapterUnavailableError{
			Source: venue.SourceKind,
			Venue:  venue.String(),
			Cause:  errors.New("no adapter registered"),
		}
		return o.done(log, res, start)
	}

	log.Debug().Str("identifier", venue.Identifier).Str("source", string(venue.SourceKind)).Msg("fetching")

	asm := assemble.New(venue, o.resolver.PosterOnly(venue.Conference))
	spec := adapter.Spec()
	records := []types.NormalizedRecord{}

	transport := o.transport
	if c, ok := o.transports[venue.SourceKind]; ok {
		transport = c
	}
	for raw, err := range adapter.Fetch(ctx, venue, transport) {
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				res.Err = err
			} else {
				res.Err = types.NewAdapterUnavailable(venue.SourceKind, venue, err)
			}
			return o.done(log, res, start)
		}
		res.Fetched++

		fields, err := extract.Extract(raw, spec)
		if err != nil {
			res.Skipped++
			log.Warn().Err(err).Int("position", res.Fetched).Msg("skipping record")
			continue
		}
		adapter.Rewrite(fields)

		r := asm.Build(fields)
		if !o.chain.Keep(r) {
			res.Filtered++
			continue
		}
		asm.Commit(&r)
		records = append(records, r)
	}

	res.Records = records
	return o.done(log, res, start)
}

func (o *Orchestrator) done(log zerolog.Logger, res PairResult, start time.Time) PairResult {
	elapsed := o.now().Sub(start)
	res.Elapsed = elapsed
	o.metrics.RecordRecords(observability.StageFetched, res.Fetched)
	o.metrics.RecordRecords(observability.StageSkipped, res.Skipped)
	o.metrics.RecordRecords(observability.StageFiltered, res.Filtered)
	o.metrics.RecordRecords(observability.StageRetained, len(res.Records))

	if res.Err != nil {
		log.Error().Err(res.Err).Str("kind", types.FailureKind(res.Err)).Dur("elapsed", elapsed).Msg("pair failed")
	} else {
		log.Info().
			Int("records", len(res.Records)).
			Int("fetched", res.Fetched).
			Int("skipped", res.Skipped).
			Int("filtered", res.Filtered).
			Dur("elapsed", elapsed).
			Msg("pair complete")
	}
	return res
}

func (o *Orchestrator) report(res PairResult) {
	if res.Err != nil {
		fmt.Fprintf(o.status, "failed:  %s %d (%v)\n", res.Conference, res.Year, res.Err)
		return
	}
	fmt.Fprintf(o.status, "scraped: %s %d (%d records)\n", res.Conference, res.Year, len(res.Records))
}
