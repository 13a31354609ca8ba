// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdf acquires paper metadata from a local directory of PDFs, for
// venues whose proceedings are only published as files. Text is extracted
// with a pdftext.Converter and title, abstract, and keywords are recovered
// heuristically.
package pdf

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-scraper/internal/extract"
	"github.com/pdiddy/paper-scraper/internal/httputil"
	"github.com/pdiddy/paper-scraper/internal/pdftext"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

const (
	fieldTitle    = "title"
	fieldAbstract = "abstract"
	fieldKeywords = "keywords"
	fieldPDF      = "pdf"
)

// ConverterFactory builds the text converter on first use.
type ConverterFactory func(ctx context.Context) (pdftext.Converter, error)

// Adapter serves SourcePDF venues from a directory tree.
type Adapter struct {
	dir     string
	factory ConverterFactory
	logger  zerolog.Logger

	mu   sync.Mutex
	conv pdftext.Converter
}

// New creates an Adapter reading PDFs under dir. The directory may contain
// "{conference}" and "{year}" placeholders, expanded per venue.
func New(dir string, factory ConverterFactory, logger zerolog.Logger) *Adapter {
	return &Adapter{dir: dir, factory: factory, logger: logger}
}

// Kind implements scrape.Adapter.
func (a *Adapter) Kind() types.SourceKind { return types.SourcePDF }

// RequiresCredentials implements scrape.Adapter.
func (a *Adapter) RequiresCredentials() bool { return false }

// Spec implements scrape.Adapter.
func (a *Adapter) Spec() extract.Spec {
	return extract.Spec{
		IDField:  fieldTitle,
		TopLevel: []string{fieldTitle, fieldAbstract, fieldKeywords, fieldPDF},
		Lists:    []string{fieldKeywords},
	}
}

// Rewrite implements scrape.Adapter.
func (a *Adapter) Rewrite(extract.Fields) {}

// Fetch implements scrape.Adapter. The transport is unused. Files are read
// in lexical order; a file whose text cannot be extracted still yields a
// record titled after its file name.
func (a *Adapter) Fetch(ctx context.Context, v types.Venue, _ *httputil.Client) iter.Seq2[types.RawRecord, error] {
	return func(yield func(types.RawRecord, error) bool) {
		fail := func(err error) { yield(nil, types.NewAdapterUnavailable(types.SourcePDF, v, err)) }

		dir := a.venueDir(v)
		if dir == "" {
			fail(&types.ConfigurationError{Source: "sources.pdf_dir", Message: "no PDF directory configured"})
			return
		}
		files, err := listPDFs(dir)
		if err != nil {
			fail(err)
			return
		}
		if len(files) == 0 {
			fail(fmt.Errorf("no PDF files in %s", dir))
			return
		}
		conv, err := a.converter(ctx)
		if err != nil {
			fail(err)
			return
		}

		for _, path := range files {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			text, err := conv.Convert(ctx, path)
			if err != nil {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return
				}
				a.logger.Warn().Err(err).Str("file", path).Msg("text extraction failed")
				text = ""
			}
			if !yield(Parse(text, path), nil) {
				return
			}
		}
	}
}

func (a *Adapter) venueDir(v types.Venue) string {
	if a.dir == "" {
		return ""
	}
	r := strings.NewReplacer(
		"{conference}", strings.ToLower(v.Conference),
		"{year}", strconv.Itoa(v.Year),
	)
	return r.Replace(a.dir)
}

// converter builds the converter once and caches it.
func (a *Adapter) converter(ctx context.Context) (pdftext.Converter, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conv != nil {
		return a.conv, nil
	}
	if a.factory == nil {
		return nil, fmt.Errorf("no PDF text backend configured")
	}
	conv, err := a.factory(ctx)
	if err != nil {
		return nil, err
	}
	a.conv = conv
	return conv, nil
}

// listPDFs returns the *.pdf files directly under dir, sorted.
func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading PDF directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
