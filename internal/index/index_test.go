package index

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/models"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleForest() models.Forest {
	return models.Forest{
		models.NewFolder("1", "Projects").WithChildren([]*models.Node{
			models.NewFile("2", "plan.md", "---\ntags: [roadmap]\n---\n# Quarterly Plan\nShip the uniqueword release. #q3\n"),
			models.NewFolder("3", "Archive").WithChildren([]*models.Node{
				models.NewFile("4", "old.md", "stale notes"),
			}),
		}),
		models.NewFile("5", "Ünïcode.md", "Straße café"),
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	require.NoError(t, db.conn.QueryRow(`SELECT count(*) FROM nodes`).Scan(&count), "nodes table missing")
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.UpsertNode(NodeRow{ID: "1", Kind: models.KindFile, Name: "a.md", Path: "a.md"}, "x"))
	_, err = db.GetNode("1")
	assert.NoError(t, err)
}

func TestUpsertAndGetNode(t *testing.T) {
	db := testDB(t)
	row := NodeRow{ID: "7", Kind: models.KindFile, Name: "hello.md", Path: "docs/hello.md", Title: "Hello", Checksum: "abc", Tags: []string{"go"}}
	require.NoError(t, db.UpsertNode(row, "This is a hello world note."))

	got, err := db.GetNode("7")
	require.NoError(t, err)
	assert.Equal(t, "docs/hello.md", got.Path)
	assert.Equal(t, "Hello", got.Title)
	assert.Equal(t, models.KindFile, got.Kind)
	assert.Equal(t, []string{"go"}, got.Tags)
}

func TestGetNode_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetNode("missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteNode(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.UpsertNode(NodeRow{ID: "d", Kind: models.KindFile, Name: "del.md", Path: "del.md"}, "vanishing content"))
	require.NoError(t, db.DeleteNode("d"))

	_, err := db.GetNode("d")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	results, err := db.Search("vanishing", 10)
	require.NoError(t, err)
	assert.Empty(t, results, "deleted node still searchable")
}

func TestSync_IndexesForest(t *testing.T) {
	db := testDB(t)
	require.NoError(t, Sync(db, sampleForest(), quiet))
	cs, err := db.AllChecksums()
	require.NoError(t, err)
	require.Len(t, cs, 5)

	n, err := db.GetNode("4")
	require.NoError(t, err)
	assert.Equal(t, "Projects/Archive/old.md", n.Path)
	assert.Equal(t, "old", n.Title, "title should be the name without extension")

	plan, err := db.GetNode("2")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly Plan", plan.Title)
}

func TestSync_RemovesStaleAndUpdatesChanged(t *testing.T) {
	db := testDB(t)
	f := sampleForest()
	require.NoError(t, Sync(db, f, quiet))
	before, err := db.AllChecksums()
	require.NoError(t, err)

	next := models.Forest{f[0].WithName("Work"), f[1]}
	next[0].Children = next[0].Children[:1]
	require.NoError(t, Sync(db, next, quiet))

	after, err := db.AllChecksums()
	require.NoError(t, err)
	assert.NotContains(t, after, "3", "dropped folder still indexed")
	assert.NotContains(t, after, "4", "dropped descendant still indexed")
	assert.NotEqual(t, before["2"], after["2"], "renaming a parent should change the child's checksum")
	assert.Equal(t, before["5"], after["5"], "untouched node should keep its checksum")

	n, err := db.GetNode("2")
	require.NoError(t, err)
	assert.Equal(t, "Work/plan.md", n.Path)
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	require.NoError(t, Sync(db, sampleForest(), quiet))

	results, err := db.Search("uniqueword", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].ID)
	assert.Equal(t, "Projects/plan.md", results[0].Path)
}

func TestSearch_EmptyQuery(t *testing.T) {
	db := testDB(t)
	require.NoError(t, Sync(db, sampleForest(), quiet))
	results, err := db.Search("   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_CaseInsensitive(t *testing.T) {
	db := testDB(t)
	require.NoError(t, Sync(db, sampleForest(), quiet))
	results, err := db.Search("UNIQUEWORD", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestListByTag(t *testing.T) {
	db := testDB(t)
	require.NoError(t, Sync(db, sampleForest(), quiet))

	rows, err := db.ListByTag("roadmap")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].ID)

	rows, err = db.ListByTag("q3")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "inline tag not indexed")
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("STRASSE"), Fold("Straße"))
}
