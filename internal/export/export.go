// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes completed batches to CSV, YAML, or SQLite. Every
// sink writes on each Export call, so a file on disk always reflects the
// batches exported so far and a failed write is reported against the pair
// that caused it.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Sink receives the batch of each completed pair.
type Sink interface {
	Export(ctx context.Context, batch types.Batch) error
	Close() error
}

// DefaultBaseName is the output file name, without extension, used when
// neither an output file nor an output directory is configured.
const DefaultBaseName = "papers"

// New returns the sink selected by cfg.Format. runID is recorded by the
// sinks that keep run metadata.
func New(cfg types.ExportConfig, runID string) (Sink, error) {
	switch cfg.Format {
	case "", types.ExportCSV:
		return NewCSV(cfg), nil
	case types.ExportYAML:
		return NewYAML(cfg, runID), nil
	case types.ExportSQLite:
		path := cfg.Output
		if path == "" {
			path = filepath.Join(cfg.OutputDir, DefaultBaseName+".db")
		}
		return OpenSQLite(path, runID)
	default:
		return nil, &types.ConfigurationError{
			Source:  "export.format",
			Message: fmt.Sprintf("unknown export format %q (want csv, yaml or sqlite)", cfg.Format),
		}
	}
}

// targetPath returns the file a batch is written to: the single output file
// when set, else {dir}/{conf}_{year}.{ext}.
func targetPath(cfg types.ExportConfig, v types.Venue, ext string) string {
	if cfg.Output != "" {
		return cfg.Output
	}
	if cfg.OutputDir != "" {
		name := strings.ToLower(v.Conference) + "_" + strconv.Itoa(v.Year) + "." + ext
		return filepath.Join(cfg.OutputDir, name)
	}
	return DefaultBaseName + "." + ext
}

// writeAtomic writes data to path through a temporary file in the same
// directory, creating parent directories as needed.
func writeAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
