// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract pulls declared fields out of source-native raw records.
// Records arrive in one of two shapes: fields directly at the top level, or
// fields nested one level under a container key (OpenReview's "content").
// The shape is detected per record, so one adapter may mix both.
package extract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Shape tags how a raw record lays out its fields.
type Shape int

const (
	// Flat records carry every field at the top level.
	Flat Shape = iota
	// Nested records carry sub-fields under a container key.
	Nested
)

func (s Shape) String() string {
	switch s {
	case Nested:
		return "nested"
	default:
		return "flat"
	}
}

// Spec declares which fields to pull from a raw record.
type Spec struct {
	// IDField identifies the record. Its absence is a MissingFieldError.
	IDField string

	// TopLevel lists fields read directly from the record.
	TopLevel []string

	// Nested maps a container key to the sub-fields read from it.
	Nested map[string][]string

	// Lists names list-valued fields; they default to an empty slice.
	Lists []string
}

func (s Spec) isList(name string) bool {
	for _, l := range s.Lists {
		if l == name {
			return true
		}
	}
	return false
}

// containers returns the nested container keys in a stable order.
func (s Spec) containers() []string {
	keys := make([]string, 0, len(s.Nested))
	for k := range s.Nested {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fields is the extracted field set. Scalar fields hold strings and list
// fields hold []string; every declared field is present.
type Fields map[string]any

// String returns a scalar field, or "" if absent.
func (f Fields) String(name string) string {
	switch v := f[name].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	default:
		return ""
	}
}

// List returns a list field, never nil.
func (f Fields) List(name string) []string {
	switch v := f[name].(type) {
	case []string:
		if v == nil {
			return []string{}
		}
		return v
	case string:
		return splitList(v)
	default:
		return []string{}
	}
}

// DetectShape reports Nested when any container key in spec addresses a
// mapping, and Flat otherwise.
func DetectShape(raw types.RawRecord, spec Spec) Shape {
	for _, key := range spec.containers() {
		if _, ok := asMap(raw[key]); ok {
			return Nested
		}
	}
	return Flat
}

// Extract pulls the fields declared by spec from raw. Missing fields take
// their defaults; a missing or empty spec.IDField is a
// *types.MissingFieldError.
func Extract(raw types.RawRecord, spec Spec) (Fields, error) {
	shape := DetectShape(raw, spec)
	out := make(Fields)

	for _, name := range spec.TopLevel {
		out[name] = convert(raw[name], spec.isList(name))
	}
	for _, container := range spec.containers() {
		src := map[string]any(raw)
		if shape == Nested {
			m, ok := asMap(raw[container])
			if !ok {
				m = nil
			}
			src = m
		}
		for _, name := range spec.Nested[container] {
			out[name] = convert(src[name], spec.isList(name))
		}
	}

	if spec.IDField != "" {
		if _, declared := out[spec.IDField]; !declared {
			out[spec.IDField] = convert(raw[spec.IDField], false)
		}
		if isEmpty(out[spec.IDField]) {
			return nil, &types.MissingFieldError{Field: spec.IDField}
		}
	}
	return out, nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	default:
		return true
	}
}

// asMap accepts both map[string]any and RawRecord.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case types.RawRecord:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

// unwrap strips OpenReview API v2 {"value": x} wrappers.
func unwrap(v any) any {
	for {
		m, ok := asMap(v)
		if !ok {
			return v
		}
		inner, ok := m["value"]
		if !ok {
			return v
		}
		v = inner
	}
}

// convert normalizes a raw value to string or []string.
func convert(v any, list bool) any {
	v = unwrap(v)
	if list {
		switch t := v.(type) {
		case nil:
			return []string{}
		case []any:
			out := make([]string, 0, len(t))
			for _, e := range t {
				if s := strings.TrimSpace(scalar(unwrap(e))); s != "" {
					out = append(out, s)
				}
			}
			return out
		case []string:
			out := make([]string, 0, len(t))
			for _, s := range t {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			return out
		default:
			return splitList(scalar(t))
		}
	}
	switch t := v.(type) {
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := scalar(unwrap(e)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	default:
		return scalar(t)
	}
}

// scalar renders a JSON scalar as a string. Maps without a "value" key have
// no scalar form and render as "".
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}

// splitList splits a delimited string on semicolons, or on commas when no
// semicolon is present.
func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	sep := ","
	if strings.Contains(s, ";") {
		sep = ";"
	}
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}
