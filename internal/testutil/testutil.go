// Package testutil provides shared test helpers for seeded stores and
// persisted-flag databases.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/certhub/internal/certstore"
	"github.com/starford/certhub/internal/directory"
	"github.com/starford/certhub/internal/fixtures"
	"github.com/starford/certhub/internal/kvstore"
	"github.com/starford/certhub/internal/latency"
)

// Seed returns the embedded fixture seed.
func Seed(t *testing.T) fixtures.Seed {
	t.Helper()
	seed, err := fixtures.Embedded().Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return seed
}

// Store returns a certificate store loaded from the embedded seed with no
// simulated latency. Later options override the defaults.
func Store(t *testing.T, opts ...certstore.Option) *certstore.Store {
	t.Helper()
	all := append([]certstore.Option{certstore.WithLatency(latency.None())}, opts...)
	s := certstore.New(all...)
	if _, err := s.Load(context.Background(), fixtures.Embedded()); err != nil {
		t.Fatal(err)
	}
	return s
}

// Directory returns a user directory built from the embedded seed.
func Directory(t *testing.T) *directory.Directory {
	t.Helper()
	return directory.New(Seed(t).Users)
}

// KV creates a temporary SQLite kv store that is automatically cleaned up.
func KV(t *testing.T) *kvstore.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "certhub-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	kv, err := kvstore.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}
