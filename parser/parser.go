// Package parser extracts plain text from uploaded resume files. Resumes
// arrive as raw bytes, so every parser works from memory rather than a
// path. The output is a single newline-joined text block; downstream
// extractors do their own slicing and never see document structure.
package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no parser
	// handles. Legacy .doc needs an external converter and is reported
	// with this error too.
	ErrUnsupportedFormat = errors.New("parser: unsupported document format")

	// ErrEmptyDocument is returned when a file parses but yields no text.
	// Scanned image-only PDFs land here; they are OCR candidates.
	ErrEmptyDocument = errors.New("parser: no text extracted")
)

// Parser extracts text from one document format.
type Parser interface {
	Extract(ctx context.Context, data []byte) (string, error)
	SupportedFormats() []string
}

// Registry routes files to parsers by extension.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds a registry with the built-in parsers registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&PDFParser{}, &DOCXParser{}, &XLSXParser{}, &TextParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Register adds or replaces the parser for a format.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[strings.ToLower(format)] = p
}

// Get returns the parser for a format.
func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return p, nil
}

// Extract routes by the filename's extension and returns cleaned text.
func (r *Registry) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	p, err := r.Get(format)
	if err != nil {
		return "", err
	}

	text, err := p.Extract(ctx, data)
	if err != nil {
		return "", err
	}

	text = cleanText(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return text, nil
}

// cleanText normalizes line endings, strips NUL and other stray control
// characters PDF extraction sometimes leaves behind, and collapses runs
// of blank lines.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	text = b.String()

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			blank++
			if blank > 1 {
				continue
			}
			trimmed = ""
		} else {
			blank = 0
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
