// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdftext

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-scraper/internal/container"
)

type fakeRunner struct {
	found bool
	out   string
	err   error
	args  []string
}

func (f *fakeRunner) LookPath(file string) (string, error) {
	if !f.found {
		return "", errors.New("not found")
	}
	return "/usr/bin/" + file, nil
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.args = append([]string{name}, args...)
	return []byte(f.out), f.err
}

type fakeRuntime struct {
	images map[string]bool
	out    string
	err    error
	stdin  string
	cmd    []string
}

func (f *fakeRuntime) Name() string                      { return "fake" }
func (f *fakeRuntime) Available(context.Context) bool    { return true }
func (f *fakeRuntime) ImageExists(_ context.Context, image string) error {
	if f.images[image] {
		return nil
	}
	return errors.New("no such image")
}

func (f *fakeRuntime) Run(_ context.Context, _ string, cmd []string, stdin io.Reader, stdout io.Writer) error {
	data, _ := io.ReadAll(stdin)
	f.stdin = string(data)
	f.cmd = cmd
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(stdout, f.out)
	return err
}

func writePDF(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPdftotextConverter(t *testing.T) {
	r := &fakeRunner{found: true, out: "Title\nAbstract\nText."}
	c, err := newPdftotextConverter(r)
	require.NoError(t, err)

	text, err := c.Convert(context.Background(), "/tmp/p.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Title\nAbstract\nText.", text)
	assert.Equal(t, []string{"/usr/bin/pdftotext", "-q", "-enc", "UTF-8", "/tmp/p.pdf", "-"}, r.args)
}

func TestPdftotextConverterErrors(t *testing.T) {
	_, err := newPdftotextConverter(&fakeRunner{})
	assert.ErrorContains(t, err, "not found on PATH")

	c, err := newPdftotextConverter(&fakeRunner{found: true, out: "  \n"})
	require.NoError(t, err)
	_, err = c.Convert(context.Background(), "p.pdf")
	assert.ErrorContains(t, err, "empty output")

	c, err = newPdftotextConverter(&fakeRunner{found: true, err: errors.New("exit status 1")})
	require.NoError(t, err)
	_, err = c.Convert(context.Background(), "p.pdf")
	assert.ErrorContains(t, err, "exit status 1")
}

func TestContainerConverter(t *testing.T) {
	rt := &fakeRuntime{images: map[string]bool{DefaultImage: true}, out: "extracted"}
	c, err := NewContainerConverter(context.Background(), rt, "")
	require.NoError(t, err)

	text, err := c.Convert(context.Background(), writePDF(t, "%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "extracted", text)
	assert.Equal(t, "%PDF-1.7", rt.stdin)
	assert.Equal(t, []string{"pdftotext", "-q", "-enc", "UTF-8", "-", "-"}, rt.cmd)
}

func TestContainerConverterErrors(t *testing.T) {
	_, err := NewContainerConverter(context.Background(), &fakeRuntime{}, "missing:latest")
	assert.ErrorContains(t, err, "not available in fake")

	rt := &fakeRuntime{images: map[string]bool{"img": true}, err: errors.New("oom")}
	c, err := NewContainerConverter(context.Background(), rt, "img")
	require.NoError(t, err)

	_, err = c.Convert(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	assert.ErrorContains(t, err, "opening PDF")

	_, err = c.Convert(context.Background(), writePDF(t, "x"))
	assert.ErrorContains(t, err, "oom")
}

func TestNew(t *testing.T) {
	savedRunner, savedDetect := defaultRunner, detectRuntime
	t.Cleanup(func() { defaultRunner, detectRuntime = savedRunner, savedDetect })

	rt := &fakeRuntime{images: map[string]bool{DefaultImage: true}}
	detectRuntime = func(context.Context) (container.Runtime, error) { return rt, nil }

	defaultRunner = &fakeRunner{found: true}
	c, err := New(context.Background(), BackendAuto)
	require.NoError(t, err)
	assert.IsType(t, &PdftotextConverter{}, c)

	defaultRunner = &fakeRunner{}
	c, err = New(context.Background(), "")
	require.NoError(t, err)
	assert.IsType(t, &ContainerConverter{}, c)

	c, err = New(context.Background(), BackendContainer)
	require.NoError(t, err)
	assert.IsType(t, &ContainerConverter{}, c)

	_, err = New(context.Background(), BackendPdftotext)
	assert.Error(t, err)

	detectRuntime = func(context.Context) (container.Runtime, error) { return nil, errors.New("no runtime") }
	_, err = New(context.Background(), BackendAuto)
	assert.ErrorContains(t, err, "no PDF text backend")

	_, err = New(context.Background(), "ocr")
	assert.ErrorContains(t, err, `unknown PDF backend "ocr"`)
}
