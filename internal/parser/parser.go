// Package parser extracts frontmatter, headings and tags from the Markdown
// content of a file node.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

var md = goldmark.New()

// Heading is one ATX or setext heading.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Result holds what was extracted from one document.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Title       string
	Headings    []Heading
	Tags        []string
}

// Parse never fails on malformed input: unreadable frontmatter is treated
// as part of the body.
func Parse(content string) *Result {
	fm, body := splitFrontmatter([]byte(content))
	headings := extractHeadings([]byte(body))
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, headings),
		Headings:    headings,
		Tags:        extractTags(body, fm),
	}
}

func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

func extractHeadings(src []byte) []Heading {
	doc := md.Parser().Parse(text.NewReader(src))
	var out []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		out = append(out, Heading{Level: h.Level, Text: strings.TrimSpace(inlineText(h, src))})
		return ast.WalkSkipChildren, nil
	})
	return out
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}

// extractTags merges the frontmatter "tags" list with inline #tags,
// first occurrence wins.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	if list, ok := fm["tags"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

func deriveTitle(fm map[string]any, headings []Heading) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, h := range headings {
		if h.Level == 1 && h.Text != "" {
			return h.Text
		}
	}
	return ""
}
