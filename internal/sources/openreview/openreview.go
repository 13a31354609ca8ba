// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package openreview acquires accepted papers from the OpenReview API v2.
// Requests go through the shared transport, which holds the session token.
package openreview

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-scraper/internal/extract"
	"github.com/pdiddy/paper-scraper/internal/httputil"
	"github.com/pdiddy/paper-scraper/internal/venue"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

// DefaultBaseURL is the OpenReview API v2 root.
const DefaultBaseURL = "https://api2.openreview.net"

// SiteURL is the public site that forum and PDF links resolve against.
var SiteURL = "https://openreview.net"

// PageSize is the number of notes requested per page.
var PageSize = 1000

// Adapter fetches notes for OpenReview venues.
type Adapter struct {
	baseURL     string
	submissions bool
	logger      zerolog.Logger
}

// New creates an Adapter from the source settings.
func New(cfg types.SourcesConfig, logger zerolog.Logger) *Adapter {
	base := cfg.OpenReviewBaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Adapter{
		baseURL:     strings.TrimRight(base, "/"),
		submissions: cfg.IncludeSubmissions,
		logger:      logger,
	}
}

// Kind implements scrape.Adapter.
func (a *Adapter) Kind() types.SourceKind { return types.SourceOpenReview }

// RequiresCredentials implements scrape.Adapter.
func (a *Adapter) RequiresCredentials() bool { return true }

// Spec implements scrape.Adapter. Notes carry their metadata under
// "content"; the decision is lifted to the top level by Fetch.
func (a *Adapter) Spec() extract.Spec {
	return extract.Spec{
		IDField:  "id",
		TopLevel: []string{"id", "forum", "decision"},
		Nested: map[string][]string{
			"content": {"title", "abstract", "keywords", "pdf", "venue", "presentation_type"},
		},
		Lists: []string{"keywords"},
	}
}

// Rewrite turns forum ids and PDF paths into absolute site URLs.
func (a *Adapter) Rewrite(f extract.Fields) {
	if forum := f.String("forum"); forum != "" && !isURL(forum) {
		f["forum"] = SiteURL + "/forum?id=" + forum
	}
	if pdf := f.String("pdf"); pdf != "" && !isURL(pdf) {
		if !strings.HasPrefix(pdf, "/") {
			pdf = "/" + pdf
		}
		f["pdf"] = SiteURL + pdf
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// notesPage is one page of GET /notes.
type notesPage struct {
	Notes []types.RawRecord `json:"notes"`
	Count int               `json:"count"`
}

// queries returns the note queries for v: accepted papers by venue id, or
// every submission when submissions are included.
func (a *Adapter) queries(v types.Venue) []url.Values {
	if !a.submissions {
		return []url.Values{{"content.venueid": {v.Identifier}, "details": {"directReplies"}}}
	}
	return []url.Values{
		{"invitation": {v.Identifier + "/-/Submission"}, "details": {"directReplies"}},
		{"invitation": {v.Identifier + "/-/Blind_Submission"}, "details": {"directReplies"}},
	}
}

// Fetch implements scrape.Adapter. Notes are yielded in API order with
// duplicate forums dropped. Each range over the sequence queries the API
// again.
func (a *Adapter) Fetch(ctx context.Context, v types.Venue, c *httputil.Client) iter.Seq2[types.RawRecord, error] {
	return func(yield func(types.RawRecord, error) bool) {
		seen := make(map[string]bool)
		for _, q := range a.queries(v) {
			for offset := 0; ; {
				q.Set("limit", strconv.Itoa(PageSize))
				q.Set("offset", strconv.Itoa(offset))

				var page notesPage
				if err := c.GetJSON(ctx, a.baseURL+"/notes?"+q.Encode(), &page); err != nil {
					yield(nil, types.NewAdapterUnavailable(types.SourceOpenReview, v, fmt.Errorf("listing notes: %w", err)))
					return
				}
				a.logger.Debug().
					Str("venue", v.Identifier).
					Int("offset", offset).
					Int("notes", len(page.Notes)).
					Msg("fetched notes page")

				for _, n := range page.Notes {
					forum, _ := n["forum"].(string)
					if forum != "" {
						if seen[forum] {
							continue
						}
						seen[forum] = true
					}
					if d := decision(n); d != "" {
						n["decision"] = d
					}
					if !yield(n, nil) {
						return
					}
				}

				offset += len(page.Notes)
				if len(page.Notes) < PageSize || (page.Count > 0 && offset >= page.Count) {
					break
				}
			}
		}
	}
}

// decision returns the program chairs' decision among a note's direct
// replies, e.g. "Accept (Oral)".
func decision(n types.RawRecord) string {
	details, ok := n["details"].(map[string]any)
	if !ok {
		return ""
	}
	replies, _ := details["directReplies"].([]any)
	for _, r := range replies {
		reply, ok := r.(map[string]any)
		if !ok || !isDecision(reply) {
			continue
		}
		content, _ := reply["content"].(map[string]any)
		switch d := content["decision"].(type) {
		case string:
			return d
		case map[string]any:
			if s, ok := d["value"].(string); ok {
				return s
			}
		}
	}
	return ""
}

func isDecision(reply map[string]any) bool {
	if inv, ok := reply["invitation"].(string); ok && strings.HasSuffix(inv, "/-/Decision") {
		return true
	}
	invs, _ := reply["invitations"].([]any)
	for _, i := range invs {
		if s, ok := i.(string); ok && strings.HasSuffix(s, "/Decision") {
			return true
		}
	}
	return false
}

// DiscoverVenues lists the main-track venue ids the API knows for org in
// year, for example "ICLR.cc/2025/Conference".
func (a *Adapter) DiscoverVenues(ctx context.Context, c *httputil.Client, org string, year int) ([]string, error) {
	var resp struct {
		Groups []struct {
			Members []string `json:"members"`
		} `json:"groups"`
	}
	if err := c.GetJSON(ctx, a.baseURL+"/groups?id=venues", &resp); err != nil {
		return nil, fmt.Errorf("listing venues: %w", err)
	}
	var members []string
	for _, g := range resp.Groups {
		members = append(members, g.Members...)
	}
	return venue.MainTrackVenues(members, org, strconv.Itoa(year)), nil
}
