package testsupport

import (
	"context"
	"testing"

	"capstan/internal/config"
	"capstan/internal/manifest"
)

// MustOpenStore opens a manifest.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *manifest.Store {
	t.Helper()

	store, err := manifest.Open(cfg.Paths.ManifestPath)
	if err != nil {
		t.Fatalf("manifest.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedRecord upserts a manifest row for tests.
func SeedRecord(t testing.TB, store *manifest.Store, record *manifest.Record) {
	t.Helper()

	if err := store.Upsert(context.Background(), record); err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
}
