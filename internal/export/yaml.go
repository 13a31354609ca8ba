// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Document is the YAML file layout.
type Document struct {
	RunID       string        `yaml:"run_id"`
	GeneratedAt time.Time     `yaml:"generated_at"`
	Batches     []types.Batch `yaml:"batches"`
}

// YAMLSink writes one YAML document per output file listing its batches.
type YAMLSink struct {
	cfg   types.ExportConfig
	runID string
	now   func() time.Time

	mu   sync.Mutex
	docs map[string]*Document
}

// NewYAML creates a YAML sink. runID is written to every document header.
func NewYAML(cfg types.ExportConfig, runID string) *YAMLSink {
	return &YAMLSink{cfg: cfg, runID: runID, now: time.Now, docs: make(map[string]*Document)}
}

// Export implements Sink.
func (s *YAMLSink) Export(ctx context.Context, batch types.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := targetPath(s.cfg, batch.Venue, "yaml")
	doc, ok := s.docs[path]
	if !ok {
		doc = &Document{RunID: s.runID}
	}
	batches := append(doc.Batches[:len(doc.Batches):len(doc.Batches)], batch)
	next := &Document{RunID: doc.RunID, GeneratedAt: s.now().UTC(), Batches: batches}

	data, err := yaml.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	err = writeAtomic(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
	if err != nil {
		return err
	}
	s.docs[path] = next
	return nil
}

// Close implements Sink.
func (s *YAMLSink) Close() error { return nil }

// ReadYAML parses a file written by YAMLSink.
func ReadYAML(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading YAML: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	return &doc, nil
}
