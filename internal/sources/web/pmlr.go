// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// pmlrPage returns the index of a PMLR volume such as "v238".
func pmlrPage(volume string) page {
	return page{url: PMLRBaseURL + "/" + volume + "/", parse: parsePMLR}
}

func parsePMLR(doc *goquery.Document, base *url.URL) []types.RawRecord {
	var out []types.RawRecord
	doc.Find("div.paper").Each(func(_ int, div *goquery.Selection) {
		title := text(div.Find("p.title").First())
		if title == "" {
			return
		}
		var pdf, forum string
		div.Find("p.links a").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			label := strings.ToLower(text(a))
			switch {
			case pdf == "" && (strings.Contains(label, "pdf") || strings.Contains(label, "download")):
				pdf = resolve(base, href)
			case forum == "" && strings.Contains(label, "abs"):
				forum = resolve(base, href)
			}
		})
		out = append(out, record(title, pdf, forum, ""))
	})
	return out
}
