// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdftext extracts plain text from PDF files with pluggable
// backends: a host pdftotext binary, or pdftotext inside a container image
// run by docker or podman.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/pdiddy/paper-scraper/internal/container"
)

// Backend names accepted by New.
const (
	BackendAuto      = "auto"
	BackendPdftotext = "pdftotext"
	BackendContainer = "container"
)

// DefaultImage is a poppler image that provides pdftotext.
var DefaultImage = "minidocks/poppler:latest"

// Converter turns a PDF file into plain text.
type Converter interface {
	// Convert reads the PDF at pdfPath and returns its text.
	Convert(ctx context.Context, pdfPath string) (string, error)
}

// runner abstracts host command execution for testing.
type runner interface {
	LookPath(file string) (string, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type osRunner struct{}

func (osRunner) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

var (
	defaultRunner runner = osRunner{}
	detectRuntime        = container.DetectRuntime
)

// PdftotextConverter runs the host pdftotext binary.
type PdftotextConverter struct {
	bin string
	run runner
}

// NewPdftotextConverter locates pdftotext on PATH.
func NewPdftotextConverter() (*PdftotextConverter, error) {
	return newPdftotextConverter(defaultRunner)
}

func newPdftotextConverter(r runner) (*PdftotextConverter, error) {
	bin, err := r.LookPath("pdftotext")
	if err != nil {
		return nil, fmt.Errorf("pdftotext not found on PATH: %w", err)
	}
	return &PdftotextConverter{bin: bin, run: r}, nil
}

// Convert implements Converter.
func (p *PdftotextConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	out, err := p.run.Output(ctx, p.bin, "-q", "-enc", "UTF-8", pdfPath, "-")
	if err != nil {
		return "", fmt.Errorf("converting %s with pdftotext: %w", pdfPath, err)
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return "", fmt.Errorf("pdftotext produced empty output for %s", pdfPath)
	}
	return string(out), nil
}

// ContainerConverter pipes PDFs through pdftotext in a container image. It
// depends on a container.Runtime injected at construction time.
type ContainerConverter struct {
	runtime container.Runtime
	image   string
}

// NewContainerConverter verifies that image exists in rt.
func NewContainerConverter(ctx context.Context, rt container.Runtime, image string) (*ContainerConverter, error) {
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("pdftotext image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerConverter{runtime: rt, image: image}, nil
}

// Convert implements Converter.
func (c *ContainerConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	cmd := []string{"pdftotext", "-q", "-enc", "UTF-8", "-", "-"}
	if err := c.runtime.Run(ctx, c.image, cmd, f, &out); err != nil {
		return "", fmt.Errorf("converting %s in %s: %w", pdfPath, c.image, err)
	}
	if len(bytes.TrimSpace(out.Bytes())) == 0 {
		return "", fmt.Errorf("pdftotext produced empty output for %s", pdfPath)
	}
	return out.String(), nil
}

// New returns the converter for backend. The auto backend prefers a host
// pdftotext and falls back to a container.
func New(ctx context.Context, backend string) (Converter, error) {
	switch backend {
	case BackendPdftotext:
		return NewPdftotextConverter()
	case BackendContainer:
		return newContainer(ctx)
	case "", BackendAuto:
		if c, err := NewPdftotextConverter(); err == nil {
			return c, nil
		}
		c, err := newContainer(ctx)
		if err != nil {
			return nil, fmt.Errorf("no PDF text backend: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown PDF backend %q (want %s, %s or %s)",
			backend, BackendAuto, BackendPdftotext, BackendContainer)
	}
}

func newContainer(ctx context.Context) (Converter, error) {
	rt, err := detectRuntime(ctx)
	if err != nil {
		return nil, err
	}
	return NewContainerConverter(ctx, rt, DefaultImage)
}
