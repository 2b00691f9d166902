// Package render turns the Markdown content of file nodes into sanitized
// HTML for the browser preview and into styled text for the terminal.
package render

import (
	"bytes"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// HTMLRenderer converts Markdown to HTML and strips anything unsafe.
// Safe for concurrent use.
type HTMLRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewHTML creates a GFM renderer with heading anchors and a UGC policy.
func NewHTML() *HTMLRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &HTMLRenderer{md: md, policy: bluemonday.UGCPolicy()}
}

// Render returns the sanitized HTML for src.
func (r *HTMLRenderer) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render: markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Terminal renders src for a terminal. Style is a glamour style name such
// as "dark", "light" or "notty"; "auto" or empty picks one from the
// environment. A width of zero disables wrapping.
func Terminal(src, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("render: terminal: %w", err)
	}
	out, err := r.Render(src)
	if err != nil {
		return "", fmt.Errorf("render: terminal: %w", err)
	}
	return out, nil
}
