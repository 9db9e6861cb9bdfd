// Package kvstore persists small string values under string keys. It backs
// the remembered login flag.
package kvstore

import (
	"context"
	"fmt"
)

// Provider is a string key-value store.
type Provider interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverFS     = "fs"
	DriverMemory = "memory"
)

var (
	_ Provider = (*SQLite)(nil)
	_ Provider = (*FS)(nil)
	_ Provider = (*Memory)(nil)
)

// Open returns the provider for driver. path is the database file for sqlite
// and the directory for fs; memory ignores it.
func Open(driver, path string) (Provider, error) {
	switch driver {
	case DriverSQLite:
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverFS:
		f, err := NewFS(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	case DriverMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("kvstore: unknown driver %q", driver)
	}
}
