// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-scraper/internal/httputil"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lower-cases s and joins its alphanumeric runs with hyphens.
func slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// aaaiPages discovers the technical-track issues of year from the OJS
// archive. Issue titles such as "AAAI-24 Technical Tracks 1" identify the
// year by its two-digit suffix.
func aaaiPages(ctx context.Context, c *httputil.Client, year int) ([]page, error) {
	archive := AAAIBaseURL + "/index.php/AAAI/issue/archive"
	doc, base, err := load(ctx, c, archive, AAAIBaseURL)
	if err != nil {
		return nil, err
	}

	marker := fmt.Sprintf("aaai-%02d", year%100)
	var pages []page
	doc.Find("ul.issues_archive li h2 a").Each(func(_ int, a *goquery.Selection) {
		if !strings.Contains(slugify(a.Text()), marker) {
			return
		}
		href, _ := a.Attr("href")
		if u := resolve(base, href); u != "" {
			pages = append(pages, page{url: u, parse: parseAAAITrack})
		}
	})
	if len(pages) == 0 {
		return nil, fmt.Errorf("no AAAI %d issues in the archive", year)
	}
	return pages, nil
}

func parseAAAITrack(doc *goquery.Document, base *url.URL) []types.RawRecord {
	var out []types.RawRecord
	doc.Find("div.section").Each(func(_ int, section *goquery.Selection) {
		track := text(section.Find("h2").First())
		section.Find("li").Each(func(_ int, li *goquery.Selection) {
			h3 := li.Find("h3.title").First()
			if h3.Length() == 0 {
				return
			}
			title := text(h3)
			if title == "" {
				return
			}
			var forum string
			if href, ok := h3.Find("a").Attr("href"); ok {
				forum = resolve(base, href)
			}
			var pdf string
			if href, ok := li.Find("a.obj_galley_link").First().Attr("href"); ok {
				pdf = strings.ReplaceAll(resolve(base, href), "view", "download")
			}
			out = append(out, record(title, pdf, forum, track))
		})
	})
	return out
}
