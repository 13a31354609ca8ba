// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record stages counted by RecordsTotal.
const (
	StageFetched  = "fetched"
	StageSkipped  = "skipped"
	StageFiltered = "filtered"
	StageRetained = "retained"
	StageExported = "exported"
)

// Metrics holds the Prometheus collectors for a scrape run. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// RequestsTotal counts HTTP attempts by host and status ("error" for
	// transport failures).
	RequestsTotal *prometheus.CounterVec

	// RetriesTotal counts retries by host and reason.
	RetriesTotal *prometheus.CounterVec

	// Logins counts authentication calls.
	Logins prometheus.Counter

	// PairsTotal counts processed pairs by outcome ("ok" or a failure kind).
	PairsTotal *prometheus.CounterVec

	// RecordsTotal counts records by pipeline stage.
	RecordsTotal *prometheus.CounterVec

	// PairDuration observes per-pair wall time in seconds.
	PairDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics registers the collectors on a fresh registry under namespace.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP request attempts by host and status",
		}, []string{"host", "status"}),
		RetriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "HTTP retries by host and reason",
		}, []string{"host", "reason"}),
		Logins: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Authentication calls issued",
		}),
		PairsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_total",
			Help:      "Processed (conference, year) pairs by outcome",
		}, []string{"outcome"}),
		RecordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records by pipeline stage",
		}, []string{"stage"}),
		PairDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pair_duration_seconds",
			Help:      "Wall time per (conference, year) pair",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		registry: reg,
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest counts one HTTP attempt. status 0 means the attempt failed
// before a response arrived.
func (m *Metrics) RecordRequest(host string, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	m.RequestsTotal.WithLabelValues(host, label).Inc()
}

// RecordRetry counts one retry.
func (m *Metrics) RecordRetry(host, reason string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(host, reason).Inc()
}

// RecordLogin counts one authentication call.
func (m *Metrics) RecordLogin() {
	if m == nil {
		return
	}
	m.Logins.Inc()
}

// RecordPair counts a finished pair and its duration.
func (m *Metrics) RecordPair(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.PairsTotal.WithLabelValues(outcome).Inc()
	m.PairDuration.Observe(seconds)
}

// RecordRecords adds n records at stage.
func (m *Metrics) RecordRecords(stage string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(stage).Add(float64(n))
}

// WriteTextfile writes the current metric values to path in the Prometheus
// text exposition format, for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
