// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Columns is the CSV header, in order.
var Columns = []string{"id", "title", "keywords", "abstract", "pdf", "forum", "year", "presentation_type"}

// KeywordSeparator joins keywords in a single CSV cell.
const KeywordSeparator = "; "

const bom = "\ufeff"

// CSVSink writes UTF-8 CSV files with a byte-order mark.
type CSVSink struct {
	cfg types.ExportConfig

	mu    sync.Mutex
	files map[string]*csvFile
}

// csvFile is the full content of one output file.
type csvFile struct {
	rows [][]string
	seen map[string]bool
}

// NewCSV creates a CSV sink.
func NewCSV(cfg types.ExportConfig) *CSVSink {
	return &CSVSink{cfg: cfg, files: make(map[string]*csvFile)}
}

// Export implements Sink. In append mode the rows already in the file are
// kept and new rows whose forum (or title and year) is already present are
// dropped.
func (s *CSVSink) Export(ctx context.Context, batch types.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := targetPath(s.cfg, batch.Venue, "csv")
	f, ok := s.files[path]
	if !ok {
		f = &csvFile{seen: make(map[string]bool)}
		if s.cfg.Append {
			existing, err := ReadCSV(path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			for _, r := range existing {
				f.add(r, false)
			}
		}
	}

	n := len(f.rows)
	var added []string
	for _, r := range batch.Records {
		if key, ok := f.add(r, s.cfg.Append); ok {
			added = append(added, key)
		}
	}
	if err := writeAtomic(path, f.write); err != nil {
		f.rows = f.rows[:n]
		for _, k := range added {
			delete(f.seen, k)
		}
		return err
	}
	s.files[path] = f
	return nil
}

// Close implements Sink.
func (s *CSVSink) Close() error { return nil }

// add appends r unless dedup is set and its key was seen. It reports the
// key when the key is new to the file.
func (f *csvFile) add(r types.NormalizedRecord, dedup bool) (string, bool) {
	key := DedupKey(r)
	seen := f.seen[key]
	if dedup && seen {
		return "", false
	}
	f.rows = append(f.rows, Row(r))
	if seen {
		return "", false
	}
	f.seen[key] = true
	return key, true
}

func (f *csvFile) write(w *os.File) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(bom); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	cw := csv.NewWriter(bw)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	if err := cw.WriteAll(f.rows); err != nil {
		return fmt.Errorf("writing CSV rows: %w", err)
	}
	return bw.Flush()
}

// Row renders r in Columns order.
func Row(r types.NormalizedRecord) []string {
	keywords := make([]string, 0, len(r.Keywords))
	for _, k := range r.Keywords {
		if k = flatten(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	tier := r.PresentationType
	if tier == "" {
		tier = types.PresentationUnknown
	}
	return []string{
		r.ID,
		flatten(r.Title),
		strings.Join(keywords, KeywordSeparator),
		flatten(r.Abstract),
		r.PDF,
		r.Forum,
		r.Year,
		string(tier),
	}
}

// flatten collapses newlines and runs of whitespace to single spaces.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DedupKey identifies a paper across runs: its forum id when known,
// otherwise "title|year".
func DedupKey(r types.NormalizedRecord) string {
	if id := forumID(r.Forum); id != "" {
		return id
	}
	return strings.TrimSpace(r.Title) + "|" + strings.TrimSpace(r.Year)
}

// forumID reduces a forum URL to its identifying part.
func forumID(forum string) string {
	forum = strings.TrimSpace(forum)
	if forum == "" {
		return ""
	}
	if _, id, ok := strings.Cut(forum, "forum?id="); ok {
		id, _, _ = strings.Cut(id, "&")
		return id
	}
	if strings.Contains(forum, "/") {
		trimmed := strings.TrimRight(forum, "/")
		last := trimmed[strings.LastIndex(trimmed, "/")+1:]
		last, _, _ = strings.Cut(last, "?")
		if last != "" {
			return last
		}
	}
	return forum
}

// ReadCSV parses a file written by CSVSink. Columns are matched by header
// name; missing columns read as empty.
func ReadCSV(path string) ([]types.NormalizedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	return ParseCSV(bytes.NewReader(data))
}

// ParseCSV parses CSV rows from r into records.
func ParseCSV(r io.Reader) ([]types.NormalizedRecord, error) {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(bom)); err == nil && string(lead) == bom {
		br.Discard(len(bom))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}

	var out []types.NormalizedRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}
		out = append(out, types.NormalizedRecord{
			ID:               get("id"),
			Title:            get("title"),
			Keywords:         SplitKeywords(get("keywords")),
			Abstract:         get("abstract"),
			PDF:              get("pdf"),
			Forum:            get("forum"),
			Year:             get("year"),
			PresentationType: types.ParsePresentationType(get("presentation_type")),
		})
	}
}

// SplitKeywords is the inverse of the keyword join in Row. It never
// returns nil.
func SplitKeywords(s string) []string {
	out := []string{}
	if strings.TrimSpace(s) == "" {
		return out
	}
	for _, k := range strings.Split(s, KeywordSeparator) {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
