// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// aclPage returns the ACL Anthology event page for code ("acl", "emnlp",
// "naacl") in year.
func aclPage(code string, year int) page {
	return page{url: fmt.Sprintf("%s/events/%s-%d/", ACLBaseURL, code, year), parse: parseACL}
}

// parseACL reads the event listing. Paper pages live at /{anthology id}/
// and their PDFs at /{anthology id}.pdf.
func parseACL(doc *goquery.Document, base *url.URL) []types.RawRecord {
	var out []types.RawRecord
	doc.Find("p.d-sm-flex").Each(func(_ int, entry *goquery.Selection) {
		link := entry.Find("span.d-block a.align-middle").First()
		title := text(link)
		if title == "" {
			return
		}
		var pdf, forum string
		if href, ok := link.Attr("href"); ok && href != "" {
			forum = resolve(base, href)
			pdf = strings.TrimRight(forum, "/") + ".pdf"
		}
		out = append(out, record(title, pdf, forum, ""))
	})
	return out
}
