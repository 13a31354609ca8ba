// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-scraper/internal/extract"
	"github.com/pdiddy/paper-scraper/internal/pdftext"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

const samplePaper = `2024-05
Cooperative Learning in Sparse Multi-Agent Systems
Jane Roe
University of Somewhere
jane@example.org

ABSTRACT
We study cooperation among agents
with sparse rewards.

KEYWORDS
multi-agent systems; reinforcement learning
cooperation

1. INTRODUCTION
Agents are everywhere.
`

type fakeConverter struct {
	texts map[string]string
	calls []string
}

func (f *fakeConverter) Convert(_ context.Context, path string) (string, error) {
	f.calls = append(f.calls, filepath.Base(path))
	text, ok := f.texts[filepath.Base(path)]
	if !ok {
		return "", errors.New("corrupt file")
	}
	return text, nil
}

func factory(c pdftext.Converter) ConverterFactory {
	return func(context.Context) (pdftext.Converter, error) { return c, nil }
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("%PDF"), 0o644))
	}
}

func collect(t *testing.T, a *Adapter, v types.Venue) ([]types.RawRecord, error) {
	t.Helper()
	var out []types.RawRecord
	for r, err := range a.Fetch(context.Background(), v, nil) {
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

var aamas = types.Venue{Conference: "AAMAS", Year: 2024, SourceKind: types.SourcePDF, Identifier: "aamas"}

func TestParse(t *testing.T) {
	r := Parse(samplePaper, "/papers/p1.pdf")
	assert.Equal(t, "Cooperative Learning in Sparse Multi-Agent Systems", r[fieldTitle])
	assert.Equal(t, "We study cooperation among agents with sparse rewards.", r[fieldAbstract])
	assert.Equal(t, "multi-agent systems; reinforcement learning cooperation", r[fieldKeywords])
	assert.Equal(t, "/papers/p1.pdf", r[fieldPDF])
}

func TestParseFallsBackToFileName(t *testing.T) {
	r := Parse("", "/papers/paper_042.pdf")
	assert.Equal(t, "paper_042", r[fieldTitle])
	assert.Equal(t, "", r[fieldAbstract])
	assert.Equal(t, "", r[fieldKeywords])
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"first line", []string{"A Good Title"}, "A Good Title"},
		{"skips short and numbers", []string{"", "12", "123456", "Real Title Here"}, "Real Title Here"},
		{"skips affiliations", []string{"MIT Institute of Tech", "bob@x.org", "Paper Title"}, "Paper Title"},
		{"skips dates", []string{"2023/11 draft", "Paper Title"}, "Paper Title"},
		{"only first ten lines", append(make([]string, 10), "Too Late Title"), ""},
		{"too long", []string{strings.Repeat("x", 301)}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Title(tc.lines))
		})
	}
}

func TestAbstract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"inline", "Abstract. We do things.\nMore things.\n\nIntro", "We do things. More things."},
		{"heading then text", "Abstract\n\nFirst line\nsecond line\nKeywords: a, b", "First line second line"},
		{"stops at section number", "Abstract\nBody text\n1. Introduction", "Body text"},
		{"missing", "Nothing here\n", ""},
		{"heading without body", "Abstract\nIntroduction\n", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Abstract(strings.Split(tc.text, "\n")))
		})
	}
}

func TestAbstractTruncation(t *testing.T) {
	sentence := strings.Repeat("word ", 50) + "end."
	text := "Abstract\n" + strings.Repeat(sentence+" ", 10)
	got := Abstract(strings.Split(text, "\n"))
	assert.LessOrEqual(t, len(got), maxAbstract)
	assert.Equal(t, 4, strings.Count(got, ". "))
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"inline", "Keywords: agents; games", "agents; games"},
		{"index terms", "Index Terms—graphs, learning", "graphs, learning"},
		{"heading then text", "KEYWORDS\nplanning, search\n\nbody", "planning, search"},
		{"mid-sentence ignored", "we list keywords here", ""},
		{"overlong cut", "Keywords: " + strings.Repeat("a", 300) + "; " + strings.Repeat("b", 300), strings.Repeat("a", 300)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Keywords(strings.Split(tc.text, "\n")))
		})
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "ab", truncate("abé", 3))
	assert.Equal(t, "abc", truncate("abc", 5))
}

func TestFetchReadsSortedPDFs(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.pdf", "a.PDF", "notes.txt", "c.pdf")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	conv := &fakeConverter{texts: map[string]string{
		"a.PDF": "Alpha Paper Title\n",
		"b.pdf": samplePaper,
	}}
	a := New(dir, factory(conv), zerolog.Nop())

	records, err := collect(t, a, aamas)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.PDF", "b.pdf", "c.pdf"}, conv.calls)
	require.Len(t, records, 3)
	assert.Equal(t, "Alpha Paper Title", records[0][fieldTitle])
	assert.Equal(t, "Cooperative Learning in Sparse Multi-Agent Systems", records[1][fieldTitle])
	assert.Equal(t, "c", records[2][fieldTitle], "conversion failure falls back to the file name")
}

func TestFetchExpandsPlaceholders(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "aamas", "2024"), "x.pdf")
	conv := &fakeConverter{texts: map[string]string{"x.pdf": "Placeholder Paper\n"}}
	a := New(filepath.Join(root, "{conference}", "{year}"), factory(conv), zerolog.Nop())

	records, err := collect(t, a, aamas)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, filepath.Join(root, "aamas", "2024", "x.pdf"), records[0][fieldPDF])
}

func TestFetchFailures(t *testing.T) {
	empty := t.TempDir()
	withPDF := t.TempDir()
	touch(t, withPDF, "p.pdf")

	tests := []struct {
		name     string
		dir      string
		factory  ConverterFactory
		wantKind string
		wantMsg  string
	}{
		{"no directory configured", "", factory(&fakeConverter{}), "configuration", "no PDF directory"},
		{"missing directory", filepath.Join(empty, "absent"), factory(&fakeConverter{}), "adapter_unavailable", "reading PDF directory"},
		{"no files", empty, factory(&fakeConverter{}), "adapter_unavailable", "no PDF files"},
		{"no backend", withPDF, nil, "adapter_unavailable", "no PDF text backend"},
		{"backend fails", withPDF, func(context.Context) (pdftext.Converter, error) {
			return nil, errors.New("no runtime")
		}, "adapter_unavailable", "no runtime"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			records, err := collect(t, New(tc.dir, tc.factory, zerolog.Nop()), aamas)
			require.Error(t, err)
			assert.Empty(t, records)
			assert.Equal(t, tc.wantKind, types.FailureKind(err))
			assert.ErrorIs(t, err, types.ErrAdapterUnavailable)
			assert.ErrorContains(t, err, tc.wantMsg)
		})
	}
}

func TestFetchCanceled(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.pdf", "b.pdf")
	a := New(dir, factory(&fakeConverter{texts: map[string]string{}}), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var got error
	for _, err := range a.Fetch(ctx, aamas, nil) {
		got = err
	}
	assert.ErrorIs(t, got, context.Canceled)
}

func TestConverterBuiltOnce(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.pdf")
	builds := 0
	a := New(dir, func(context.Context) (pdftext.Converter, error) {
		builds++
		return &fakeConverter{texts: map[string]string{"a.pdf": "Some Title Text"}}, nil
	}, zerolog.Nop())

	for range 2 {
		_, err := collect(t, a, aamas)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, builds)
}

func TestExtractWithSpec(t *testing.T) {
	a := New("", nil, zerolog.Nop())
	f, err := extract.Extract(Parse(samplePaper, "p.pdf"), a.Spec())
	require.NoError(t, err)
	assert.Equal(t, []string{"multi-agent systems", "reinforcement learning cooperation"}, f.List(fieldKeywords))
	assert.Equal(t, types.SourcePDF, a.Kind())
	assert.False(t, a.RequiresCredentials())
}
