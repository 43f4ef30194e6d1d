// Package testutil provides shared test fixtures.
package testutil

import (
	"testing"

	"github.com/nhle/plannerd/internal/ident"
	"github.com/nhle/plannerd/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewRegistry builds a codec registry, failing the test on error.
func NewRegistry(t *testing.T) *ident.Registry {
	t.Helper()

	ids, err := ident.New()
	if err != nil {
		t.Fatalf("building codec registry: %v", err)
	}
	return ids
}
