package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	r := Parse("---\ntitle: Hello\ntags:\n  - go\n  - arbor\n---\n# Heading\nBody text.\n")
	assert.Equal(t, "Hello", r.Title)
	assert.Equal(t, []string{"go", "arbor"}, r.Tags)
	assert.Equal(t, "# Heading\nBody text.\n", r.Body)
}

func TestParse_NoFrontmatter(t *testing.T) {
	r := Parse("# Just a heading\nSome text.\n")
	assert.Nil(t, r.Frontmatter)
	assert.Equal(t, "Just a heading", r.Title)
}

func TestParse_Empty(t *testing.T) {
	r := Parse("")
	assert.Empty(t, r.Title)
	assert.Empty(t, r.Headings)
	assert.Empty(t, r.Tags)
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := "---\n: invalid: yaml: {{{\n---\nBody\n"
	r := Parse(input)
	assert.Nil(t, r.Frontmatter)
	assert.Equal(t, input, r.Body, "body should be the whole input")
}

func TestParse_UnclosedFrontmatter(t *testing.T) {
	input := "---\ntitle: x\nno closing delimiter"
	r := Parse(input)
	assert.Nil(t, r.Frontmatter)
	assert.Equal(t, input, r.Body)
}

func TestExtractHeadings(t *testing.T) {
	src := "# Top *emphasis*\n\nText\n\n## Second `code`\n\nSetext\n======\n"
	assert.Equal(t, []Heading{
		{Level: 1, Text: "Top emphasis"},
		{Level: 2, Text: "Second code"},
		{Level: 1, Text: "Setext"},
	}, extractHeadings([]byte(src)))
}

func TestExtractHeadings_IgnoresCodeBlocks(t *testing.T) {
	assert.Empty(t, extractHeadings([]byte("```\n# not a heading\n```\n")))
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]any{
		"tags": []any{"alpha"},
	}
	assert.Equal(t, []string{"alpha", "beta"}, extractTags("Some text #beta and #alpha again.", fm))
}

func TestExtractTags_HeadingIsNotTag(t *testing.T) {
	assert.Equal(t, []string{"real"}, extractTags("# Title\n#real", nil))
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	fm := map[string]any{"title": "FM Title"}
	assert.Equal(t, "FM Title", deriveTitle(fm, []Heading{{Level: 1, Text: "H1"}}))
}

func TestDeriveTitle_SkipsLowerLevels(t *testing.T) {
	assert.Equal(t, "Main", deriveTitle(nil, []Heading{{Level: 2, Text: "Sub"}, {Level: 1, Text: "Main"}}))
}
