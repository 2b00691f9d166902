package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/models"
)

// NodeRow represents a row in the nodes table.
type NodeRow struct {
	ID        string      `json:"id"`
	Kind      models.Kind `json:"type"`
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	Title     string      `json:"title,omitempty"`
	Tags      []string    `json:"tags,omitempty"`
	Checksum  string      `json:"-"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string      `json:"id"`
	Kind    models.Kind `json:"type"`
	Name    string      `json:"name"`
	Path    string      `json:"path"`
	Title   string      `json:"title,omitempty"`
	Snippet string      `json:"snippet,omitempty"`
}

// UpsertNode inserts or replaces a node and its FTS entry within a transaction.
func (db *DB) UpsertNode(n NodeRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if n.Tags == nil {
		n.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(n.Tags)
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now().UTC()
	}
	folded := Fold(strings.Join([]string{n.Name, n.Path, n.Title, strings.Join(n.Tags, " "), body}, "\n"))

	_, err = tx.Exec(`
		INSERT INTO nodes (id, kind, name, path, title, tags, body, folded, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind       = excluded.kind,
			name       = excluded.name,
			path       = excluded.path,
			title      = excluded.title,
			tags       = excluded.tags,
			body       = excluded.body,
			folded     = excluded.folded,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, n.ID, string(n.Kind), n.Name, n.Path, n.Title, string(tagsJSON), body, folded, n.Checksum, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert node: %w", err)
	}

	if err := ftsUpsert(tx, n, body); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteNode removes a node and its FTS entry.
func (db *DB) DeleteNode(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete node: %w", err)
	}
	return tx.Commit()
}

// GetNode returns the indexed metadata of one node.
func (db *DB) GetNode(id string) (*NodeRow, error) {
	row := db.conn.QueryRow(`
		SELECT id, kind, name, path, title, tags, checksum, updated_at
		FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: node %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get node: %w", err)
	}
	return n, nil
}

// ListByTag returns the files carrying tag, ordered by path.
func (db *DB) ListByTag(tag string) ([]NodeRow, error) {
	rows, err := db.conn.Query(`
		SELECT n.id, n.kind, n.name, n.path, n.title, n.tags, n.checksum, n.updated_at
		FROM nodes n, json_each(n.tags) t
		WHERE t.value = ?
		ORDER BY n.path`, tag)
	if err != nil {
		return nil, fmt.Errorf("index: list by tag: %w", err)
	}
	defer rows.Close()

	var out []NodeRow
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// AllChecksums returns id → checksum for every indexed node.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*NodeRow, error) {
	var (
		n        NodeRow
		kind     string
		tagsJSON string
	)
	if err := s.Scan(&n.ID, &kind, &n.Name, &n.Path, &n.Title, &tagsJSON, &n.Checksum, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Kind = models.Kind(kind)
	_ = json.Unmarshal([]byte(tagsJSON), &n.Tags)
	return &n, nil
}

// likePattern escapes LIKE wildcards in a folded query.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			kind string
		)
		if err := rows.Scan(&r.ID, &kind, &r.Name, &r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		r.Kind = models.Kind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}
