// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter decides which normalized records are retained. A Chain
// holds an ordered list of predicates and keeps a record only when every
// predicate keeps it.
package filter

import (
	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Predicate decides whether a record is retained. Predicates must not
// mutate the record.
type Predicate interface {
	Keep(r types.NormalizedRecord) bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(r types.NormalizedRecord) bool

// Keep calls f(r).
func (f PredicateFunc) Keep(r types.NormalizedRecord) bool { return f(r) }

// Chain is an ordered conjunction of predicates. The zero value keeps every
// record.
type Chain struct {
	preds []Predicate
}

// NewChain returns a chain of preds in the given order. Nil predicates are
// ignored.
func NewChain(preds ...Predicate) *Chain {
	c := &Chain{}
	for _, p := range preds {
		c.Add(p)
	}
	return c
}

// Add appends p to the chain and returns the chain.
func (c *Chain) Add(p Predicate) *Chain {
	if p != nil {
		c.preds = append(c.preds, p)
	}
	return c
}

// Len returns the number of registered predicates.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.preds)
}

// Keep reports whether every predicate keeps r. Evaluation stops at the
// first rejection.
func (c *Chain) Keep(r types.NormalizedRecord) bool {
	if c == nil {
		return true
	}
	for _, p := range c.preds {
		if !p.Keep(r) {
			return false
		}
	}
	return true
}

// Apply returns the retained records in input order. The input slice is not
// modified.
func (c *Chain) Apply(records []types.NormalizedRecord) []types.NormalizedRecord {
	out := make([]types.NormalizedRecord, 0, len(records))
	for _, r := range records {
		if c.Keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// FromConfig builds the chain described by cfg. With no keywords the chain
// is empty.
func FromConfig(cfg types.FilterConfig) *Chain {
	c := NewChain()
	if len(cfg.Keywords) > 0 {
		c.Add(&KeywordPredicate{
			Keywords:  cfg.Keywords,
			Fields:    cfg.Fields,
			Threshold: cfg.Threshold,
		})
	}
	return c
}
