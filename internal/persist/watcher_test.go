package persist

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/storage"
)

func TestWatch_ReloadsExternalChanges(t *testing.T) {
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	saver := NewSaver(fs, DefaultKey, WithSaverLogger(quiet))

	var mu sync.Mutex
	var reloaded []models.Forest
	reload := func(f models.Forest) error {
		mu.Lock()
		defer mu.Unlock()
		reloaded = append(reloaded, f)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, fs, DefaultKey, saver, quiet, reload) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	data, err := Encode(sample())
	require.NoError(t, err)
	path, err := fs.Path(DefaultKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reloaded) == 1
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, sample(), reloaded[0])
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}

func TestReloadFromStore_SkipsOwnWrites(t *testing.T) {
	ctx := context.Background()
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	saver := NewSaver(fs, DefaultKey, WithSaverLogger(quiet))

	saver.Notify(sample(), 1)
	require.NoError(t, saver.Flush(ctx))

	calls := 0
	reloadFromStore(ctx, fs, DefaultKey, saver, quiet, func(models.Forest) error {
		calls++
		return nil
	})
	assert.Equal(t, 0, calls)
}

func TestReloadFromStore_IgnoresInvalidContent(t *testing.T) {
	ctx := context.Background()
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	saver := NewSaver(fs, DefaultKey, WithSaverLogger(quiet))
	require.NoError(t, fs.Put(ctx, DefaultKey, []byte(`[{"id":"1","type":"widget","name":"x"}]`)))

	calls := 0
	reloadFromStore(ctx, fs, DefaultKey, saver, quiet, func(models.Forest) error {
		calls++
		return nil
	})
	assert.Equal(t, 0, calls)
	assert.Empty(t, saver.LastChecksum())
}
