// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdf

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

const (
	maxAbstract    = 2000
	maxKeywords    = 500
	titleScanLines = 10
)

var (
	abstractHeading = regexp.MustCompile(`(?i)^\s*abstract\b[\s.:\-–—]*`)
	keywordsHeading = regexp.MustCompile(`(?i)^\s*(?:keywords?|index terms)\b[\s.:\-–—]*`)
	abstractStop    = regexp.MustCompile(`(?i)^\s*(?:keywords?|introduction|1\.|i\.|§)`)
	keywordsStop    = regexp.MustCompile(`(?i)^\s*(?:introduction|1\.|i\.|§|abstract)`)
	digitsOnly      = regexp.MustCompile(`^\d+$`)
	dateLike        = regexp.MustCompile(`^\d{4}[-/]\d{1,2}`)
)

// Parse builds a raw record from the text of the PDF at path. The title
// falls back to the file name without extension.
func Parse(text, path string) types.RawRecord {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	title := Title(lines)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return types.RawRecord{
		fieldTitle:    title,
		fieldAbstract: Abstract(lines),
		fieldKeywords: Keywords(lines),
		fieldPDF:      path,
	}
}

// Title returns the first plausible title line among the leading lines:
// 5 to 300 characters, not an affiliation, a page number, or a date.
func Title(lines []string) string {
	n := 0
	for _, l := range lines {
		if n == titleScanLines {
			break
		}
		n++
		l = strings.TrimSpace(l)
		if len(l) < 5 || len(l) > 300 {
			continue
		}
		if strings.Contains(l, "@") || strings.Contains(l, "University") || strings.Contains(l, "Institute") {
			continue
		}
		if digitsOnly.MatchString(l) || dateLike.MatchString(l) {
			continue
		}
		return l
	}
	return ""
}

// Abstract returns the paragraph following an "Abstract" heading, up to a
// blank line or the next section. Overlong paragraphs keep their first five
// sentences.
func Abstract(lines []string) string {
	for i, l := range lines {
		loc := abstractHeading.FindStringIndex(l)
		if loc == nil {
			continue
		}
		body := paragraph(l[loc[1]:], lines[i+1:], abstractStop)
		if body == "" {
			continue
		}
		if len(body) > maxAbstract {
			sentences := strings.Split(body, ".")
			if len(sentences) > 5 {
				sentences = sentences[:5]
			}
			body = strings.Join(sentences, ". ")
		}
		return truncate(body, maxAbstract)
	}
	return ""
}

// Keywords returns the text following a "Keywords" or "Index Terms" label
// at the start of a line. Overlong values
// are cut at the first ';' or '.'.
func Keywords(lines []string) string {
	for i, l := range lines {
		loc := keywordsHeading.FindStringIndex(l)
		if loc == nil {
			continue
		}
		body := paragraph(l[loc[1]:], lines[i+1:], keywordsStop)
		if body == "" {
			continue
		}
		if len(body) > maxKeywords {
			if j := strings.IndexAny(body, ";."); j >= 0 {
				body = body[:j]
			}
		}
		return truncate(body, maxKeywords)
	}
	return ""
}

// paragraph collects rest plus the following non-blank lines until stop
// matches, and collapses whitespace. When rest is blank the paragraph starts
// on the next non-blank line.
func paragraph(rest string, next []string, stop *regexp.Regexp) string {
	var parts []string
	if strings.TrimSpace(rest) != "" {
		parts = append(parts, rest)
	} else {
		for len(next) > 0 && strings.TrimSpace(next[0]) == "" {
			next = next[1:]
		}
		if len(next) == 0 || stop.MatchString(next[0]) {
			return ""
		}
		parts = append(parts, next[0])
		next = next[1:]
	}
	for _, l := range next {
		if strings.TrimSpace(l) == "" || stop.MatchString(l) {
			break
		}
		parts = append(parts, l)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
