// Package parser splits documents into front-matter and body, decodes the
// front-matter and renders the Markdown body to HTML.
//
// A document is laid out as a block of YAML, a separator line made of three
// or more dashes, then the Markdown body:
//
//	title: Hello World
//	tags: [go, blog]
//	---
//	# Hello
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/blogit/internal/apperr"
)

var sectionSplitter = regexp.MustCompile(`\s+-{3,}\s+`)

// Renderer turns Markdown into HTML.
type Renderer interface {
	Render(markdown []byte) ([]byte, error)
}

// Result holds the output of parsing a raw document.
type Result struct {
	Metadata map[string]any
	Body     string
	HTML     string
}

// Parser combines section splitting, metadata decoding and rendering.
type Parser struct {
	renderer Renderer
}

// New returns a Parser that renders with r. A nil r selects the goldmark renderer.
func New(r Renderer) *Parser {
	if r == nil {
		r = NewGoldmarkRenderer()
	}
	return &Parser{renderer: r}
}

// Parse decodes metadata, extracts the body and renders it.
func (p *Parser) Parse(raw []byte) (*Result, error) {
	meta, body, err := SplitSections(string(raw))
	if err != nil {
		return nil, err
	}
	fm, err := DecodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	html, err := p.Render(body)
	if err != nil {
		return nil, err
	}
	return &Result{Metadata: fm, Body: body, HTML: html}, nil
}

// Render passes body through the configured renderer.
func (p *Parser) Render(body string) (string, error) {
	out, err := p.renderer.Render([]byte(body))
	if err != nil {
		return "", fmt.Errorf("parser: render: %w", err)
	}
	return string(out), nil
}

// SplitSections separates the metadata section from the body. A separator is
// three or more dashes with whitespace on both sides, so it may sit within a
// line. Exactly one separator must be present; both sections are trimmed.
func SplitSections(raw string) (string, string, error) {
	sections := sectionSplitter.Split(raw, -1)
	if len(sections) != 2 {
		return "", "", fmt.Errorf("parser: expected 2 sections, found %d: %w", len(sections), apperr.ErrMalformedDocument)
	}
	return strings.TrimSpace(sections[0]), strings.TrimSpace(sections[1]), nil
}

// DecodeMetadata decodes the metadata section as a YAML mapping.
func DecodeMetadata(text string) (map[string]any, error) {
	var fm map[string]any
	if err := yaml.Unmarshal([]byte(text), &fm); err != nil {
		return nil, fmt.Errorf("parser: decode metadata: %v: %w", err, apperr.ErrMissingMetadata)
	}
	if len(fm) == 0 {
		return nil, fmt.Errorf("parser: decode metadata: %w", apperr.ErrMissingMetadata)
	}
	return fm, nil
}

// Body returns the trimmed body section of raw.
func Body(raw string) (string, error) {
	_, body, err := SplitSections(raw)
	return body, err
}
