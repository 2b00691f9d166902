//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 the folded column of the nodes table is searched instead.
func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _ NodeRow, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search matches every whitespace-separated term, case-insensitively,
// against name, path, title, tags and body.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	terms := strings.Fields(Fold(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var where []string
	args := make([]any, 0, len(terms)+1)
	for _, t := range terms {
		where = append(where, `folded LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(t))
	}
	args = append(args, limit)

	rows, err := db.conn.Query(`
		SELECT id, kind, name, path, title, substr(body, 1, 200)
		FROM nodes
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY path
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}
