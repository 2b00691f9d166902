// Package persist serializes the forest to a storage.Store and keeps the
// stored copy current while the editor runs.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/checksum"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/storage"
	"github.com/starford/arbor/internal/tree"
)

// DefaultKey is the well-known key the forest is stored under.
const DefaultKey = "fileTree"

// Snapshot is a forest as read from the store.
type Snapshot struct {
	Forest   models.Forest
	Checksum string // of the stored bytes; empty when nothing was stored
}

// Encode serializes f in the persisted layout. A nil forest encodes as [].
func Encode(f models.Forest) ([]byte, error) {
	if f == nil {
		f = models.Forest{}
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("persist: encode: %w", err)
	}
	return data, nil
}

// Decode parses and validates a persisted forest.
func Decode(data []byte) (models.Forest, error) {
	var f models.Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("persist: decode: %w", err)
	}
	if f == nil {
		f = models.Forest{}
	}
	if err := tree.Validate(f); err != nil {
		return nil, fmt.Errorf("persist: decode: %w", err)
	}
	return f, nil
}

// Load reads the forest stored under key. Nothing stored yet yields an
// empty forest.
func Load(ctx context.Context, store storage.Store, key string) (Snapshot, error) {
	data, err := store.Get(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return Snapshot{Forest: models.Forest{}}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("persist: load: %w", err)
	}
	f, err := Decode(data)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Forest: f, Checksum: checksum.Sum(data)}, nil
}
