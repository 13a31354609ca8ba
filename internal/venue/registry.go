// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package venue maps (conference, year) pairs to source-specific venue
// identifiers. Resolution is pure: it consults a static registry and never
// touches the network.
package venue

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// LatestYear is the most recent year any registered source has data for.
var LatestYear = 2026

// Entry describes how one conference is acquired.
type Entry struct {
	// Name is the canonical spelling (e.g. "NeurIPS").
	Name string

	// Kind selects the source adapter.
	Kind types.SourceKind

	// Template builds the identifier; "{year}" is replaced with the year and
	// "{yy}" with its last two digits.
	Template string

	// FirstYear and LastYear bound the supported years. LastYear 0 means
	// LatestYear.
	FirstYear int
	LastYear  int

	// Years, when set, lists the only supported years (for conferences that
	// are not held annually).
	Years []int

	// Volumes maps year to a proceedings volume; when set it also defines
	// the supported years.
	Volumes map[int]int

	// Exceptions overrides the template for specific years whose naming
	// deviates from it.
	Exceptions map[int]string

	// PosterOnly marks sources whose listings are all poster-tier.
	PosterOnly bool
}

// Supports reports whether the entry has data for year.
func (e Entry) Supports(year int) bool {
	if e.Volumes != nil {
		_, ok := e.Volumes[year]
		return ok
	}
	if e.Years != nil {
		return slices.Contains(e.Years, year)
	}
	last := e.LastYear
	if last == 0 {
		last = LatestYear
	}
	return year >= e.FirstYear && year <= last
}

// Identifier builds the venue identifier for year. The caller must check
// Supports first.
func (e Entry) Identifier(year int) string {
	if id, ok := e.Exceptions[year]; ok {
		return id
	}
	r := strings.NewReplacer(
		"{year}", strconv.Itoa(year),
		"{yy}", fmt.Sprintf("%02d", year%100),
		"{volume}", strconv.Itoa(e.Volumes[year]),
	)
	return r.Replace(e.Template)
}

// Registry holds the known conferences keyed case-insensitively.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry builds a registry from entries. Later entries with the same
// name replace earlier ones.
func NewRegistry(entries ...Entry) *Registry {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		r.entries[strings.ToLower(e.Name)] = e
	}
	return r
}

// Lookup returns the entry for conference, ignoring case.
func (r *Registry) Lookup(conference string) (Entry, bool) {
	e, ok := r.entries[strings.ToLower(strings.TrimSpace(conference))]
	return e, ok
}

// Resolve maps (conference, year) to a Venue. It fails with
// *types.UnsupportedConferenceError or *types.UnsupportedYearError.
func (r *Registry) Resolve(conference string, year int) (types.Venue, error) {
	e, ok := r.Lookup(conference)
	if !ok {
		return types.Venue{}, &types.UnsupportedConferenceError{Conference: conference}
	}
	if !e.Supports(year) {
		return types.Venue{}, &types.UnsupportedYearError{Conference: e.Name, Year: year}
	}
	return types.Venue{
		Conference: e.Name,
		Year:       year,
		SourceKind: e.Kind,
		Identifier: e.Identifier(year),
	}, nil
}

// PosterOnly reports whether conference only lists poster-tier papers.
func (r *Registry) PosterOnly(conference string) bool {
	e, ok := r.Lookup(conference)
	return ok && e.PosterOnly
}

// Conferences returns all entries ordered by source kind, then name.
func (r *Registry) Conferences() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	rank := map[types.SourceKind]int{types.SourceOpenReview: 0, types.SourceWeb: 1, types.SourcePDF: 2}
	sort.Slice(out, func(i, j int) bool {
		if rank[out[i].Kind] != rank[out[j].Kind] {
			return rank[out[i].Kind] < rank[out[j].Kind]
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SupportedYears lists the years e supports, ascending.
func (e Entry) SupportedYears() []int {
	var years []int
	switch {
	case e.Volumes != nil:
		for y := range e.Volumes {
			years = append(years, y)
		}
		sort.Ints(years)
	case e.Years != nil:
		years = append(years, e.Years...)
		sort.Ints(years)
	default:
		last := e.LastYear
		if last == 0 {
			last = LatestYear
		}
		for y := e.FirstYear; y <= last; y++ {
			years = append(years, y)
		}
	}
	return years
}

// pmlrAISTATS maps AISTATS years to PMLR volume numbers.
var pmlrAISTATS = map[int]int{
	2025: 258, 2024: 238, 2023: 206, 2022: 151, 2021: 130,
	2020: 108, 2019: 89, 2018: 84, 2017: 54, 2016: 51,
	2015: 38, 2014: 33, 2013: 31, 2012: 22, 2011: 15,
	2010: 9, 2009: 5, 2007: 2,
}

// naaclYears lists the years NAACL was held as a standalone conference.
var naaclYears = []int{
	2000, 2001, 2003, 2004, 2006, 2007, 2009, 2010, 2012, 2013,
	2015, 2016, 2018, 2019, 2021, 2022, 2024, 2025,
}

// defaultEntries is the built-in registry.
var defaultEntries = []Entry{
	{
		Name: "ICLR", Kind: types.SourceOpenReview,
		Template: "ICLR.cc/{year}/Conference", FirstYear: 2017,
		Exceptions: map[int]string{2017: "ICLR.cc/2017/conference"},
	},
	{Name: "ICML", Kind: types.SourceOpenReview, Template: "ICML.cc/{year}/Conference", FirstYear: 2023},
	{Name: "NeurIPS", Kind: types.SourceOpenReview, Template: "NeurIPS.cc/{year}/Conference", FirstYear: 2021},
	{Name: "IJCAI", Kind: types.SourceWeb, Template: "ijcai", FirstYear: 2003},
	{Name: "AAAI", Kind: types.SourceWeb, Template: "aaai", FirstYear: 2023},
	{Name: "AISTATS", Kind: types.SourceWeb, Template: "pmlr/v{volume}", Volumes: pmlrAISTATS, PosterOnly: true},
	{Name: "ACL", Kind: types.SourceWeb, Template: "acl/acl", FirstYear: 2000},
	{Name: "EMNLP", Kind: types.SourceWeb, Template: "acl/emnlp", FirstYear: 2000},
	{Name: "NAACL", Kind: types.SourceWeb, Template: "acl/naacl", Years: naaclYears},
	{Name: "AAMAS", Kind: types.SourcePDF, Template: "aamas", FirstYear: 2000},
}

// Default returns the built-in registry.
func Default() *Registry {
	return NewRegistry(defaultEntries...)
}

// Resolve resolves against the built-in registry.
func Resolve(conference string, year int) (types.Venue, error) {
	return Default().Resolve(conference, year)
}
