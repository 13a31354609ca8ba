// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package web acquires paper listings by parsing proceedings pages: IJCAI
// proceedings, the AAAI OJS archive, PMLR volumes, and ACL Anthology events.
// Listings carry titles and links only, so records are flat and keyed by
// title.
package web

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-scraper/internal/extract"
	"github.com/pdiddy/paper-scraper/internal/httputil"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Site roots. Tests point these at local servers.
var (
	IJCAIBaseURL = "https://www.ijcai.org"
	AAAIBaseURL  = "https://ojs.aaai.org"
	PMLRBaseURL  = "https://proceedings.mlr.press"
	ACLBaseURL   = "https://aclanthology.org"
)

// UserAgents are browser agents rotated across requests to HTML sources.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Record fields produced by the parsers.
const (
	fieldTitle = "title"
	fieldPDF   = "pdf"
	fieldForum = "forum"
	fieldTrack = "venue"
)

// Adapter serves every SourceWeb venue, dispatching on the identifier.
type Adapter struct {
	logger zerolog.Logger
}

// New creates an Adapter.
func New(logger zerolog.Logger) *Adapter {
	return &Adapter{logger: logger}
}

// Kind implements scrape.Adapter.
func (a *Adapter) Kind() types.SourceKind { return types.SourceWeb }

// RequiresCredentials implements scrape.Adapter.
func (a *Adapter) RequiresCredentials() bool { return false }

// Spec implements scrape.Adapter.
func (a *Adapter) Spec() extract.Spec {
	return extract.Spec{
		IDField:  fieldTitle,
		TopLevel: []string{fieldTitle, fieldPDF, fieldForum, fieldTrack, "abstract", "keywords"},
		Lists:    []string{"keywords"},
	}
}

// Rewrite implements scrape.Adapter. Parsers already emit absolute URLs.
func (a *Adapter) Rewrite(extract.Fields) {}

// page is one listing page to fetch and parse.
type page struct {
	url     string
	referer string
	parse   func(doc *goquery.Document, base *url.URL) []types.RawRecord
}

// Fetch implements scrape.Adapter. Pages are fetched lazily in order; a
// page that cannot be fetched, or a listing with no papers at all, fails
// the venue.
func (a *Adapter) Fetch(ctx context.Context, v types.Venue, c *httputil.Client) iter.Seq2[types.RawRecord, error] {
	return func(yield func(types.RawRecord, error) bool) {
		fail := func(err error) { yield(nil, types.NewAdapterUnavailable(types.SourceWeb, v, err)) }

		pages, err := a.pages(ctx, v, c)
		if err != nil {
			fail(err)
			return
		}

		total := 0
		for _, p := range pages {
			doc, base, err := load(ctx, c, p.url, p.referer)
			if err != nil {
				fail(err)
				return
			}
			records := p.parse(doc, base)
			a.logger.Debug().Str("url", p.url).Int("papers", len(records)).Msg("parsed listing")
			for _, r := range records {
				if !yield(r, nil) {
					return
				}
			}
			total += len(records)
		}
		if total == 0 {
			fail(fmt.Errorf("no papers found for %s", v.Identifier))
		}
	}
}

// pages returns the listing pages for v.
func (a *Adapter) pages(ctx context.Context, v types.Venue, c *httputil.Client) ([]page, error) {
	kind, arg, _ := strings.Cut(v.Identifier, "/")
	switch kind {
	case "ijcai":
		return []page{ijcaiPage(v.Year)}, nil
	case "aaai":
		return aaaiPages(ctx, c, v.Year)
	case "pmlr":
		if arg == "" {
			return nil, fmt.Errorf("pmlr identifier %q has no volume", v.Identifier)
		}
		return []page{pmlrPage(arg)}, nil
	case "acl":
		if arg == "" {
			return nil, fmt.Errorf("acl identifier %q has no event code", v.Identifier)
		}
		return []page{aclPage(arg, v.Year)}, nil
	default:
		return nil, fmt.Errorf("unknown web source %q", v.Identifier)
	}
}

// load fetches rawURL and parses it as HTML.
func load(ctx context.Context, c *httputil.Client, rawURL, referer string) (*goquery.Document, *url.URL, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	header := http.Header{}
	header.Set("Accept", "text/html")
	if referer != "" {
		header.Set("Referer", referer)
	}
	body, err := c.Fetch(ctx, rawURL, header)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	return doc, base, nil
}

// resolve makes href absolute against base. Unparseable hrefs resolve to "".
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// text returns the whitespace-collapsed text of s.
func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func record(title, pdf, forum, track string) types.RawRecord {
	return types.RawRecord{fieldTitle: title, fieldPDF: pdf, fieldForum: forum, fieldTrack: track}
}
