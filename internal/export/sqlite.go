// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// SQLiteSink upserts records into a papers table keyed by id and logs each
// exported batch in a batches table.
type SQLiteSink struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// OpenSQLite opens or creates the database at path and its schema.
func OpenSQLite(path, runID string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Batches arrive from one writer at a time.
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{db: db, runID: runID, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			keywords TEXT NOT NULL,
			abstract TEXT NOT NULL,
			pdf TEXT NOT NULL,
			forum TEXT NOT NULL,
			year TEXT NOT NULL,
			presentation_type TEXT NOT NULL,
			source_kind TEXT NOT NULL,
			conference TEXT NOT NULL,
			run_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_venue ON papers(conference, year)`,
		`CREATE TABLE IF NOT EXISTS batches (
			run_id TEXT NOT NULL,
			conference TEXT NOT NULL,
			year INTEGER NOT NULL,
			source_kind TEXT NOT NULL,
			identifier TEXT NOT NULL,
			records INTEGER NOT NULL,
			exported_at TEXT NOT NULL,
			PRIMARY KEY (run_id, conference, year)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Export implements Sink. The batch is written in one transaction.
func (s *SQLiteSink) Export(ctx context.Context, batch types.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO papers
		(id, title, keywords, abstract, pdf, forum, year, presentation_type, source_kind, conference, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			keywords = excluded.keywords,
			abstract = excluded.abstract,
			pdf = excluded.pdf,
			forum = excluded.forum,
			year = excluded.year,
			presentation_type = excluded.presentation_type,
			source_kind = excluded.source_kind,
			conference = excluded.conference,
			run_id = excluded.run_id`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	v := batch.Venue
	for _, r := range batch.Records {
		row := Row(r)
		source := r.SourceKind
		if source == "" {
			source = v.SourceKind
		}
		if _, err := stmt.ExecContext(ctx,
			row[0], row[1], row[2], row[3], row[4], row[5], row[6], row[7],
			string(source), v.Conference, s.runID,
		); err != nil {
			return fmt.Errorf("upserting %s: %w", r.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO batches
		(run_id, conference, year, source_kind, identifier, records, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.runID, v.Conference, v.Year, string(v.SourceKind), v.Identifier,
		len(batch.Records), s.now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("recording batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

// Papers returns the stored records of conference and year, ordered by
// their sequence number.
func (s *SQLiteSink) Papers(ctx context.Context, conference string, year int) ([]types.NormalizedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, keywords, abstract, pdf, forum, year, presentation_type, source_kind
		FROM papers WHERE conference = ? AND year = ?
		ORDER BY CAST(substr(id, length(?) + 2) AS INTEGER)`,
		conference, fmt.Sprint(year), strings.ToLower(conference)+"_"+fmt.Sprint(year))
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var out []types.NormalizedRecord
	for rows.Next() {
		var r types.NormalizedRecord
		var keywords, tier, source string
		if err := rows.Scan(&r.ID, &r.Title, &keywords, &r.Abstract, &r.PDF, &r.Forum, &r.Year, &tier, &source); err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		r.Keywords = SplitKeywords(keywords)
		r.PresentationType = types.ParsePresentationType(tier)
		r.SourceKind = types.SourceKind(source)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
