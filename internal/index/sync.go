package index

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/arbor/internal/checksum"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/parser"
)

// Sync brings the index up to date with f:
//   - new or changed nodes are parsed and upserted
//   - nodes no longer in the forest are deleted
//
// A node counts as changed when its kind, name, path or content differ.
func Sync(db *DB, f models.Forest, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	live := make(map[string]struct{}, len(checksums))
	var walk func(nodes []*models.Node, parent string)
	walk = func(nodes []*models.Node, parent string) {
		for _, n := range nodes {
			path := n.Name
			if parent != "" {
				path = parent + "/" + n.Name
			}
			live[n.ID] = struct{}{}

			cs := checksum.Fields(string(n.Kind), n.Name, path, n.Content)
			if checksums[n.ID] != cs {
				if err := indexNode(db, n, path, cs); err != nil {
					logger.Warn("sync: index failed", slog.String("id", n.ID), slog.String("error", err.Error()))
				} else {
					logger.Debug("sync: indexed", slog.String("id", n.ID), slog.String("path", path))
				}
			}
			walk(n.Children, path)
		}
	}
	walk(f, "")

	for id := range checksums {
		if _, ok := live[id]; ok {
			continue
		}
		if err := db.DeleteNode(id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("id", id))
		}
	}
	return nil
}

func indexNode(db *DB, n *models.Node, path, cs string) error {
	row := NodeRow{
		ID:       n.ID,
		Kind:     n.Kind,
		Name:     n.Name,
		Path:     path,
		Checksum: cs,
	}
	var body string
	if n.IsFile() {
		res := parser.Parse(n.Content)
		row.Title = res.Title
		row.Tags = res.Tags
		body = res.Body
	}
	if row.Title == "" {
		row.Title = strings.TrimSuffix(n.Name, ".md")
	}
	return db.UpsertNode(row, body)
}

// Indexer re-syncs the index in the background whenever a newer forest is
// handed to Notify. Intermediate forests are skipped.
type Indexer struct {
	db     *DB
	logger *slog.Logger
	wake   chan struct{}

	mu     sync.Mutex
	latest models.Forest
	rev    uint64
	synced uint64
}

// NewIndexer creates an indexer over db.
func NewIndexer(db *DB, logger *slog.Logger) *Indexer {
	return &Indexer{db: db, logger: logger, wake: make(chan struct{}, 1)}
}

// Notify queues f, committed at revision rev, for indexing. It never blocks.
func (ix *Indexer) Notify(f models.Forest, rev uint64) {
	ix.mu.Lock()
	if rev < ix.rev {
		ix.mu.Unlock()
		return
	}
	ix.latest, ix.rev = f, rev
	ix.mu.Unlock()

	select {
	case ix.wake <- struct{}{}:
	default:
	}
}

// Run syncs queued forests until ctx is cancelled.
func (ix *Indexer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ix.wake:
		}

		ix.mu.Lock()
		f, rev := ix.latest, ix.rev
		ix.mu.Unlock()

		if err := Sync(ix.db, f, ix.logger); err != nil {
			ix.logger.Warn("index: sync failed", slog.Uint64("revision", rev), slog.String("error", err.Error()))
			continue
		}
		ix.mu.Lock()
		ix.synced = rev
		ix.mu.Unlock()
	}
}

// Synced returns the last revision the index reflects.
func (ix *Indexer) Synced() uint64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.synced
}
