package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/arbor/internal/models"
)

func TestIndexer_FollowsLatestRevision(t *testing.T) {
	db := testDB(t)
	ix := NewIndexer(db, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ix.Run(ctx) }()

	ix.Notify(sampleForest(), 1)
	ix.Notify(models.Forest{models.NewFile("9", "only.md", "")}, 2)
	ix.Notify(sampleForest(), 1) // stale, ignored

	require.Eventually(t, func() bool { return ix.Synced() == 2 }, 2*time.Second, 10*time.Millisecond,
		"indexer never reached revision 2")

	cs, err := db.AllChecksums()
	require.NoError(t, err)
	assert.Len(t, cs, 1)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
