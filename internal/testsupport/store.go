package testsupport

import (
	"context"
	"testing"

	"kura/internal/catalog"
	"kura/internal/config"
	"kura/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SaveJob persists a job built from entry with the given status.
func SaveJob(t testing.TB, store *queue.Store, id string, entry catalog.Entry, status queue.Status) queue.Job {
	t.Helper()

	job := queue.Job{ID: id, Entry: entry, Status: status, Attempt: 1}
	if err := store.Save(context.Background(), job); err != nil {
		t.Fatalf("store.Save: %v", err)
	}
	return job
}
