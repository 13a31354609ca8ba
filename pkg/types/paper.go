// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// SourceKind identifies how metadata for a venue is acquired.
type SourceKind string

const (
	// SourceOpenReview is the authenticated, rate-limited OpenReview API.
	SourceOpenReview SourceKind = "openreview"
	// SourceWeb is scraping of proceedings HTML pages.
	SourceWeb SourceKind = "web"
	// SourcePDF is heuristic extraction from downloaded PDF documents.
	SourcePDF SourceKind = "pdf"
)

// RequiresCredentials reports whether acquiring from this source kind needs
// a configured credential pair.
func (k SourceKind) RequiresCredentials() bool {
	return k == SourceOpenReview
}

// PresentationType is the acceptance tier of a paper.
type PresentationType string

const (
	PresentationOral      PresentationType = "Oral"
	PresentationSpotlight PresentationType = "Spotlight"
	PresentationPoster    PresentationType = "Poster"
	PresentationUnknown   PresentationType = "Unknown"
)

// ParsePresentationType maps a tier name, case-insensitively, to a
// PresentationType. Unrecognized names map to PresentationUnknown.
func ParsePresentationType(s string) PresentationType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "oral":
		return PresentationOral
	case "spotlight":
		return PresentationSpotlight
	case "poster":
		return PresentationPoster
	default:
		return PresentationUnknown
	}
}

// Venue is a resolved (conference, year) bound to a source-specific
// identifier. Venues are values and are not modified after resolution.
type Venue struct {
	// Conference is the canonical conference name (e.g. "ICLR").
	Conference string `json:"conference" yaml:"conference"`

	// Year is the requested year.
	Year int `json:"year" yaml:"year"`

	// SourceKind selects the adapter that serves this venue.
	SourceKind SourceKind `json:"source_kind" yaml:"source_kind"`

	// Identifier is source-specific: an OpenReview venue id such as
	// "ICLR.cc/2024/Conference", or a logical key such as "pmlr/238".
	Identifier string `json:"identifier" yaml:"identifier"`
}

// String returns "CONF YEAR", the form used in status output.
func (v Venue) String() string {
	return fmt.Sprintf("%s %d", v.Conference, v.Year)
}

// RawRecord is a source-native nested record: a tree of maps, slices and
// scalars as decoded from JSON or assembled by an HTML parser.
type RawRecord map[string]any

// NormalizedRecord is the canonical cross-source paper record.
type NormalizedRecord struct {
	// ID is "{conference_lowercased}_{year}_{sequence}".
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Keywords lists author keywords in source order. Never nil.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// Abstract is the paper abstract, or empty when unknown.
	Abstract string `json:"abstract" yaml:"abstract"`

	// PDF is the PDF URL, or empty when unknown.
	PDF string `json:"pdf" yaml:"pdf"`

	// Forum is the discussion page URL, or empty when unknown.
	Forum string `json:"forum" yaml:"forum"`

	// Year is the canonical form of the requested year.
	Year string `json:"year" yaml:"year"`

	// PresentationType is the acceptance tier.
	PresentationType PresentationType `json:"presentation_type" yaml:"presentation_type"`

	// SourceKind records which adapter produced the record.
	SourceKind SourceKind `json:"source_kind" yaml:"source_kind"`
}

// Batch is the ordered output of one (conference, year) pair.
type Batch struct {
	Venue   Venue              `json:"venue" yaml:"venue"`
	Records []NormalizedRecord `json:"records" yaml:"records"`
}
