// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// ijcaiPage returns the proceedings index for year. Indexes from 2017 on are
// grouped by track; older ones are a flat list of PDF links.
func ijcaiPage(year int) page {
	dir := "proceedings"
	parse := parseIJCAI
	if year < 2017 {
		dir = "Proceedings"
		parse = parseIJCAILegacy
	}
	return page{
		url:     fmt.Sprintf("%s/%s/%d/", IJCAIBaseURL, dir, year),
		referer: IJCAIBaseURL,
		parse:   parse,
	}
}

func parseIJCAI(doc *goquery.Document, base *url.URL) []types.RawRecord {
	var out []types.RawRecord
	seen := make(map[string]bool)
	doc.Find("div.section_title").Each(func(_ int, section *goquery.Selection) {
		track := text(section)
		section.Parent().Find("div.paper_wrapper").Each(func(_ int, w *goquery.Selection) {
			title := text(w.Find("div.title").First())
			if title == "" {
				return
			}
			var pdf string
			w.Find("div.details a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
				if strings.Contains(a.Text(), "PDF") {
					href, _ := a.Attr("href")
					pdf = resolve(base, href)
					return false
				}
				return true
			})
			key := title + "\x00" + pdf
			if seen[key] {
				return
			}
			seen[key] = true
			out = append(out, record(title, pdf, "", track))
		})
	})
	return out
}

func parseIJCAILegacy(doc *goquery.Document, base *url.URL) []types.RawRecord {
	var out []types.RawRecord
	doc.Find(`a[href$=".pdf"]`).Each(func(_ int, a *goquery.Selection) {
		title := text(a)
		if title == "" {
			return
		}
		href, _ := a.Attr("href")
		out = append(out, record(title, resolve(base, href), "", ""))
	})
	return out
}
