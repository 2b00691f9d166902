// Package testutil provides shared test helpers for building editors,
// stores and indexes.
package testutil

import (
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/starford/arbor/internal/editor"
	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/storage"
)

// Counter issues "1", "2", ... so tests can predict ids.
type Counter struct {
	mu sync.Mutex
	n  int
}

// NewID implements identity.Generator.
func (c *Counter) NewID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return strconv.Itoa(c.n)
}

// TestEditor creates an editor seeded with f and a Counter generator.
func TestEditor(t *testing.T, f models.Forest, opts ...editor.Option) *editor.Editor {
	t.Helper()
	opts = append([]editor.Option{editor.WithForest(f), editor.WithGenerator(&Counter{n: 100})}, opts...)
	ed, err := editor.New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	return ed
}

// SampleForest is docs/{readme.md, drafts/{idea.md}}, todo.md with ids 1..5.
func SampleForest() models.Forest {
	return models.Forest{
		models.NewFolder("1", "docs").WithChildren([]*models.Node{
			models.NewFile("2", "readme.md", "# Readme\nWelcome to the #handbook."),
			models.NewFolder("3", "drafts").WithChildren([]*models.Node{
				models.NewFile("4", "idea.md", "An unfinished idea."),
			}),
		}),
		models.NewFile("5", "todo.md", "- [ ] write tests"),
	}
}

// TestDB creates a temporary SQLite index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary file system store.
func TestStore(t *testing.T) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}
