package nodeservice

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/editor"
	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/persist"
	"github.com/starford/arbor/internal/testutil"
	"github.com/starford/arbor/internal/tree"
)

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return New(testutil.TestEditor(t, testutil.SampleForest()), opts...)
}

func TestTree(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	v := s.Tree(ctx)
	assert.Equal(t, uint64(0), v.Revision)
	assert.Len(t, v.Forest, 2)
	assert.Empty(t, v.SelectedID)

	_, err := s.Open(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, "4", s.Tree(ctx).SelectedID)
}

func TestGetNode(t *testing.T) {
	s := newService(t)
	d, err := s.GetNode(context.Background(), "2")
	require.NoError(t, err)

	assert.Equal(t, "readme.md", d.Node.Name)
	assert.Equal(t, []Crumb{{ID: "1", Name: "docs"}, {ID: "2", Name: "readme.md"}}, d.Path)
	assert.Equal(t, "Readme", d.Title)
	assert.Equal(t, []string{"handbook"}, d.Tags)
	require.Len(t, d.Headings, 1)
	assert.False(t, d.Selected)
}

func TestGetNode_Folder(t *testing.T) {
	s := newService(t)
	d, err := s.GetNode(context.Background(), "3")
	require.NoError(t, err)
	assert.True(t, d.Node.IsFolder())
	assert.Empty(t, d.Title)
	assert.NotNil(t, d.Tags)
}

func TestGetNode_NotFound(t *testing.T) {
	s := newService(t)
	_, err := s.GetNode(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreate(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	folder, err := s.Create(ctx, "", models.KindFolder)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultFolderName, folder.Name)

	file, err := s.Create(ctx, folder.ID, models.KindFile)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultFileName, file.Name)

	chain, ok := tree.Path(s.Editor().Forest(), file.ID)
	require.True(t, ok)
	assert.Equal(t, folder.ID, chain[0].ID)

	_, err = s.Create(ctx, tree.RootID, models.Kind("widget"))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = s.Create(ctx, "5", models.KindFile)
	assert.ErrorIs(t, err, apperr.ErrNotFolder)
}

func TestCreateNode_NamedFileInOneRevision(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	name := "plan.md"

	n, err := s.CreateNode(ctx, "", editor.NewNode{Kind: models.KindFile, Name: &name, Content: "# Plan"})
	require.NoError(t, err)
	assert.Equal(t, "plan.md", n.Name)
	assert.Equal(t, "# Plan", n.Content)
	assert.Equal(t, uint64(1), s.Tree(ctx).Revision)
}

func TestMove_EmptyTargetIsTopLevel(t *testing.T) {
	s := newService(t)
	_, err := s.Move(context.Background(), "4", "")
	require.NoError(t, err)
	f := s.Editor().Forest()
	assert.Equal(t, "4", f[len(f)-1].ID)
}

func TestPreview(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	html, err := s.Preview(ctx, "2")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "Readme")

	_, err = s.Preview(ctx, "1")
	assert.ErrorIs(t, err, apperr.ErrNotFile)
	_, err = s.Preview(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSearch_ScanWithoutIndex(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	res, err := s.Search(ctx, "UNFINISHED", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "4", res[0].ID)
	assert.Equal(t, "docs/drafts/idea.md", res[0].Path)

	res, err = s.Search(ctx, "docs", 10)
	require.NoError(t, err)
	assert.Len(t, res, 4)

	res, err = s.Search(ctx, "docs", 2)
	require.NoError(t, err)
	assert.Len(t, res, 2)

	_, err = s.Search(ctx, "  ", 10)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestSearch_WithIndex(t *testing.T) {
	db := testutil.TestDB(t)
	require.NoError(t, index.Sync(db, testutil.SampleForest(), slog.New(slog.NewTextHandler(io.Discard, nil))))
	s := newService(t, WithIndex(db))

	res, err := s.Search(context.Background(), "unfinished", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "4", res[0].ID)
}

func TestTagged(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	rows, err := s.Tagged(ctx, "#handbook")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].ID)
	assert.Equal(t, "docs/readme.md", rows[0].Path)

	rows, err = s.Tagged(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = s.Tagged(ctx, " ")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestTagged_WithIndex(t *testing.T) {
	db := testutil.TestDB(t)
	require.NoError(t, index.Sync(db, testutil.SampleForest(), slog.New(slog.NewTextHandler(io.Discard, nil))))
	s := newService(t, WithIndex(db))

	rows, err := s.Tagged(context.Background(), "handbook")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].ID)
}

func TestStatus(t *testing.T) {
	s := newService(t)
	assert.Equal(t, persist.Status{}, s.Status(context.Background()))

	want := persist.Status{SavedRevision: 3, PendingRevision: 4}
	s = newService(t, WithStatus(func() persist.Status { return want }))
	assert.Equal(t, want, s.Status(context.Background()))
}
