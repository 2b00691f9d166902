// Package storage provides the string-keyed persistence medium the forest
// is written to.
package storage

import (
	"context"
	"fmt"
)

// Drivers accepted by Open.
const (
	DriverFS       = "fs"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is a flat key-value store. Get on a missing key returns an error
// wrapping apperr.ErrNotFound.
type Store interface {
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the underlying resources.
	Close() error
}

// Open returns the store for driver. location is a directory for fs, a
// database file for sqlite and a connection string for postgres.
func Open(ctx context.Context, driver, location string) (Store, error) {
	switch driver {
	case DriverFS:
		return NewFS(location)
	case DriverSQLite:
		return OpenSQLite(location)
	case DriverPostgres:
		return OpenPostgres(ctx, location)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}
