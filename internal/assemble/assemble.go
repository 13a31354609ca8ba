// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble turns extracted fields into normalized records. An
// Assembler is bound to one venue and numbers the records it builds in the
// order they arrive.
package assemble

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/paper-scraper/internal/extract"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Canonical field names adapters extract into.
const (
	FieldTitle    = "title"
	FieldAbstract = "abstract"
	FieldKeywords = "keywords"
	FieldPDF      = "pdf"
	FieldForum    = "forum"
	FieldYear     = "year"

	// FieldTier carries an explicit tier name ("oral", "poster").
	FieldTier = "presentation_type"

	// FieldVenue and FieldDecision carry free-text tier signals.
	FieldVenue    = "venue"
	FieldDecision = "decision"
)

// Assembler builds the records of one (conference, year) pair.
type Assembler struct {
	venue      types.Venue
	posterOnly bool
	prefix     string
	year       string
	seq        int
}

// New returns an Assembler for venue. posterOnly marks sources that publish
// only poster papers; their records default to Poster instead of Unknown.
func New(venue types.Venue, posterOnly bool) *Assembler {
	year := NormalizeYear(strconv.Itoa(venue.Year))
	return &Assembler{
		venue:      venue,
		posterOnly: posterOnly,
		prefix:     strings.ToLower(venue.Conference) + "_" + year + "_",
		year:       year,
	}
}

// Assemble builds the next record. Each call consumes one sequence number,
// so ids stay gapless when only retained records are assembled.
func (a *Assembler) Assemble(f extract.Fields) types.NormalizedRecord {
	r := a.Build(f)
	a.Commit(&r)
	return r
}

// Build builds a record without an id. Use it when a record must pass the
// filter chain before it is numbered, then Commit the ones retained.
func (a *Assembler) Build(f extract.Fields) types.NormalizedRecord {
	return types.NormalizedRecord{
		Title:            clean(f.String(FieldTitle)),
		Keywords:         keywords(f.List(FieldKeywords)),
		Abstract:         clean(f.String(FieldAbstract)),
		PDF:              strings.TrimSpace(f.String(FieldPDF)),
		Forum:            strings.TrimSpace(f.String(FieldForum)),
		Year:             a.year,
		PresentationType: Infer(a.posterOnly, f.String(FieldTier), f.String(FieldVenue), f.String(FieldDecision)),
		SourceKind:       a.venue.SourceKind,
	}
}

// Commit assigns the next id to r.
func (a *Assembler) Commit(r *types.NormalizedRecord) {
	a.seq++
	r.ID = a.prefix + strconv.Itoa(a.seq)
}

// Count returns the number of ids assigned so far.
func (a *Assembler) Count() int { return a.seq }

// ID formats the id of the seq-th record of conference in year.
func ID(conference string, year, seq int) string {
	return fmt.Sprintf("%s_%s_%d", strings.ToLower(conference), NormalizeYear(strconv.Itoa(year)), seq)
}

var (
	oralRe      = regexp.MustCompile(`(?i)\boral\b`)
	spotlightRe = regexp.MustCompile(`(?i)\bspotlight\b`)
	posterRe    = regexp.MustCompile(`(?i)\bposter\b`)
)

// Infer resolves the presentation tier. The first signal is an explicit
// tier name and wins when it names a tier. The remaining signals are free
// text; when several tiers appear, Oral beats Spotlight beats Poster. With no
// signal the tier is Unknown, or Poster when posterOnly.
func Infer(posterOnly bool, explicit string, text ...string) types.PresentationType {
	if t := types.ParsePresentationType(explicit); t != types.PresentationUnknown {
		return t
	}
	joined := strings.Join(text, " ")
	switch {
	case oralRe.MatchString(joined):
		return types.PresentationOral
	case spotlightRe.MatchString(joined):
		return types.PresentationSpotlight
	case posterRe.MatchString(joined):
		return types.PresentationPoster
	case posterOnly:
		return types.PresentationPoster
	default:
		return types.PresentationUnknown
	}
}

var yearRe = regexp.MustCompile(`\d{4}`)

// NormalizeYear returns the canonical four-digit form of a year given as an
// integer string, a float string ("2024.0"), or text containing a year.
// Input with no recognizable year is returned trimmed.
func NormalizeYear(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	if m := yearRe.FindString(s); m != "" {
		return m
	}
	return s
}

// clean collapses runs of whitespace, including newlines, to single spaces.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func keywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		if k = clean(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
