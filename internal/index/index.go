package index

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NodeIndex is what the API and MCP layers need from the search index.
type NodeIndex interface {
	UpsertNode(n NodeRow, body string) error
	DeleteNode(id string) error
	GetNode(id string) (*NodeRow, error)
	ListByTag(tag string) ([]NodeRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ NodeIndex = (*DB)(nil)

// Fold normalizes s for case- and width-insensitive matching.
// A Caser holds state, so each call builds its own.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
