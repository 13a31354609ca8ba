// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Record fields a KeywordPredicate can search.
const (
	FieldTitle    = "title"
	FieldAbstract = "abstract"
	FieldKeywords = "keywords"
)

// DefaultFields are searched when a KeywordPredicate names none.
var DefaultFields = []string{FieldTitle, FieldAbstract, FieldKeywords}

// DefaultThreshold is the similarity, on a 0-100 scale, a match must reach.
const DefaultThreshold = 85

// KeywordPredicate keeps a record when any keyword fuzzy-matches any value
// of any target field. Text fields are matched against their best-aligned
// window; the keywords field is matched keyword by keyword.
type KeywordPredicate struct {
	Keywords []string
	Fields   []string

	// Threshold is used as given; 0 admits every record.
	Threshold int
}

// Keep implements Predicate. A predicate with no keywords keeps everything.
func (p *KeywordPredicate) Keep(r types.NormalizedRecord) bool {
	if len(p.Keywords) == 0 {
		return true
	}
	fields := p.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}
	for _, kw := range p.Keywords {
		kw = normalize(kw)
		if kw == "" {
			continue
		}
		for _, field := range fields {
			if matchField(r, field, kw, p.Threshold) {
				return true
			}
		}
	}
	return false
}

func matchField(r types.NormalizedRecord, field, kw string, threshold int) bool {
	switch strings.ToLower(field) {
	case FieldTitle:
		return PartialRatio(kw, normalize(r.Title)) >= threshold
	case FieldAbstract:
		return PartialRatio(kw, normalize(r.Abstract)) >= threshold
	case FieldKeywords:
		for _, k := range r.Keywords {
			if Ratio(kw, normalize(k)) >= threshold {
				return true
			}
		}
	}
	return false
}

// normalize applies NFKC, lower-cases, and collapses whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFKC.String(s))), " ")
}

// Ratio is the normalized Levenshtein similarity of a and b on a 0-100
// scale, where 100 means identical.
func Ratio(a, b string) int {
	la, lb := len([]rune(a)), len([]rune(b))
	if la+lb == 0 {
		return 100
	}
	longest := max(la, lb)
	d := levenshtein.ComputeDistance(a, b)
	return int(float64(longest-d) / float64(longest) * 100)
}

// PartialRatio is the best Ratio of needle against any window of haystack of
// the same length. A needle longer than haystack is compared whole.
func PartialRatio(needle, haystack string) int {
	n, h := []rune(needle), []rune(haystack)
	if len(n) == 0 {
		return 0
	}
	if len(h) <= len(n) {
		return Ratio(needle, haystack)
	}
	if strings.Contains(haystack, needle) {
		return 100
	}
	best := 0
	for i := 0; i+len(n) <= len(h); i++ {
		if s := Ratio(needle, string(h[i:i+len(n)])); s > best {
			best = s
			if best == 100 {
				break
			}
		}
	}
	return best
}
