//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
			id UNINDEXED,
			name,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, n NodeRow, body string) error {
	_, _ = tx.Exec(`DELETE FROM nodes_fts WHERE id = ?`, n.ID)
	_, err := tx.Exec(`INSERT INTO nodes_fts (id, name, title, body, tags) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.Name, n.Title, body, strings.Join(n.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM nodes_fts WHERE id = ?`, id)
}

// ftsQuery quotes every term so user input cannot trip the FTS5 query syntax.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// Search performs an FTS5 full-text search and returns matching nodes with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT n.id, n.kind, n.name, n.path, n.title,
		       snippet(nodes_fts, 3, '<b>', '</b>', '...', 32)
		FROM nodes_fts
		JOIN nodes n ON n.id = nodes_fts.id
		WHERE nodes_fts MATCH ?
		ORDER BY nodes_fts.rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}
