package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"kura/internal/catalog"
	"kura/internal/constraints"
	"kura/internal/queue"
	"kura/internal/testsupport"
)

func sampleEntry(id int64, title string) catalog.Entry {
	return catalog.Entry{
		ID:       catalog.Int64(id),
		Title:    title,
		ImageURL: "https://img.example/" + title + ".jpg",
		KindCode: catalog.Int(1),
		Genres:   "Action, Comedy",
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := queue.Job{
		ID:          "job-1",
		Entry:       sampleEntry(42, "Demo"),
		Status:      queue.StatusRunning,
		Attempt:     2,
		Progress:    50,
		StatusText:  "Downloading image for Demo",
		Constraints: constraints.Set{Network: constraints.NetworkWiFi, RequireCharging: true},
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	if err := store.Save(ctx, job); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected job to be found")
	}
	if !got.Entry.Equal(job.Entry) {
		t.Fatalf("entry mismatch: %#v", got.Entry)
	}
	if got.Status != queue.StatusRunning || got.Attempt != 2 || got.Progress != 50 {
		t.Fatalf("unexpected state: %#v", got)
	}
	if got.Constraints.Network != constraints.NetworkWiFi || !got.Constraints.RequireCharging || !got.Constraints.RequireBatteryNotLow {
		t.Fatalf("unexpected constraints: %#v", got.Constraints)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, created)
	}

	job.Status = queue.StatusSucceeded
	job.Progress = 100
	job.ResultPath = "/library/Anime/Action/Demo_42.jpg"
	if err := store.Save(ctx, job); err != nil {
		t.Fatalf("Save update: %v", err)
	}
	got, err = store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.Status != queue.StatusSucceeded || got.ResultPath != job.ResultPath {
		t.Fatalf("update not persisted: %#v", got)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SaveJob(t, store, "a", sampleEntry(1, "A"), queue.StatusQueued)
	testsupport.SaveJob(t, store, "b", sampleEntry(2, "B"), queue.StatusFailed)
	testsupport.SaveJob(t, store, "c", sampleEntry(3, "C"), queue.StatusSucceeded)

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(all))
	}

	failed, err := store.List(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "b" {
		t.Fatalf("unexpected failed jobs: %#v", failed)
	}
}

func TestStatsAggregatesByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.SaveJob(t, store, "a", sampleEntry(1, "A"), queue.StatusQueued)
	testsupport.SaveJob(t, store, "b", sampleEntry(2, "B"), queue.StatusQueued)
	testsupport.SaveJob(t, store, "c", sampleEntry(3, "C"), queue.StatusSucceeded)
	testsupport.SaveJob(t, store, "d", sampleEntry(4, "D"), queue.StatusFailed)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := queue.DownloadStatus{Queued: 2, Succeeded: 1, Failed: 1, Total: 4}
	if stats != want {
		t.Fatalf("stats = %#v, want %#v", stats, want)
	}
	if stats.Queued+stats.Running+stats.Succeeded+stats.Failed+stats.Cancelled != stats.Total {
		t.Fatal("status counts do not sum to total")
	}
}

func TestResolveID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SaveJob(t, store, "abc123", sampleEntry(1, "A"), queue.StatusQueued)
	testsupport.SaveJob(t, store, "abd456", sampleEntry(2, "B"), queue.StatusQueued)

	id, err := store.ResolveID(ctx, "abc")
	if err != nil || id != "abc123" {
		t.Fatalf("ResolveID(abc) = %q, %v", id, err)
	}
	if _, err := store.ResolveID(ctx, "ab"); !errors.Is(err, queue.ErrAmbiguousID) {
		t.Fatalf("expected ambiguous error, got %v", err)
	}
	if _, err := store.ResolveID(ctx, "zzz"); !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.ResolveID(ctx, "a%"); !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("wildcards must be literal, got %v", err)
	}
}

func TestCancelRequestsAndMarkCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SaveJob(t, store, "q", sampleEntry(1, "Q"), queue.StatusQueued)
	testsupport.SaveJob(t, store, "r", sampleEntry(2, "R"), queue.StatusRunning)
	testsupport.SaveJob(t, store, "s", sampleEntry(3, "S"), queue.StatusSucceeded)

	n, err := store.RequestCancel(ctx, nil)
	if err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 flagged jobs, got %d", n)
	}
	ids, err := store.CancelRequests(ctx)
	if err != nil {
		t.Fatalf("CancelRequests: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 requests, got %v", ids)
	}

	n, err = store.MarkCancelled(ctx, []string{"q"})
	if err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 cancelled, got %d", n)
	}
	got, _ := store.Get(ctx, "q")
	if got.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	ids, err = store.CancelRequests(ctx)
	if err != nil {
		t.Fatalf("CancelRequests: %v", err)
	}
	if len(ids) != 1 || ids[0] != "r" {
		t.Fatalf("expected only r pending, got %v", ids)
	}

	// Terminal jobs are never touched.
	if n, _ := store.MarkCancelled(ctx, []string{"s"}); n != 0 {
		t.Fatalf("succeeded job was cancelled")
	}
}

func TestRetryFailedStartsNewAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.SaveJob(t, store, "f", sampleEntry(1, "F"), queue.StatusFailed)
	job.LastError = "HTTP 502"
	job.Attempt = 3
	if err := store.Save(ctx, job); err != nil {
		t.Fatalf("Save: %v", err)
	}
	testsupport.SaveJob(t, store, "ok", sampleEntry(2, "OK"), queue.StatusSucceeded)

	n, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 retried, got %d", n)
	}
	got, _ := store.Get(ctx, "f")
	if got.Status != queue.StatusQueued || got.Attempt != 4 || got.Progress != 0 {
		t.Fatalf("unexpected retried job: %#v", got)
	}
}

func TestClearTerminalKeepsActiveJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SaveJob(t, store, "q", sampleEntry(1, "Q"), queue.StatusQueued)
	testsupport.SaveJob(t, store, "s", sampleEntry(2, "S"), queue.StatusSucceeded)
	testsupport.SaveJob(t, store, "c", sampleEntry(3, "C"), queue.StatusCancelled)

	n, err := store.ClearTerminal(ctx)
	if err != nil {
		t.Fatalf("ClearTerminal: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 cleared, got %d", n)
	}
	left, _ := store.List(ctx)
	if len(left) != 1 || left[0].ID != "q" {
		t.Fatalf("unexpected remaining jobs: %#v", left)
	}

	if err := store.Delete(ctx, []string{"q"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if left, _ := store.List(ctx); len(left) != 0 {
		t.Fatalf("expected empty store, got %d", len(left))
	}
}

func TestSettings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, ok, err := store.GetSetting(ctx, "wifi_only"); err != nil || ok {
		t.Fatalf("expected missing setting, ok=%v err=%v", ok, err)
	}
	if err := store.SetSetting(ctx, "wifi_only", "true"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := store.SetSetting(ctx, "wifi_only", "false"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	value, ok, err := store.GetSetting(ctx, "wifi_only")
	if err != nil || !ok || value != "false" {
		t.Fatalf("GetSetting = %q, %v, %v", value, ok, err)
	}
	all, err := store.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("unexpected settings: %v", all)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SaveJob(t, store, "a", sampleEntry(1, "A"), queue.StatusQueued)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unhealthy database: %#v", health)
	}
	if len(health.MissingTables) != 0 {
		t.Fatalf("missing tables: %v", health.MissingTables)
	}
	if health.SchemaVersion != 2 || health.TotalJobs != 1 {
		t.Fatalf("unexpected health: %#v", health)
	}
}

func TestReopenKeepsJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	path := filepath.Join(cfg.Paths.StateDir, "reopen.db")

	store, err := queue.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	testsupport.SaveJob(t, store, "keep", sampleEntry(7, "Keep"), queue.StatusQueued)
	store.Close()

	store, err = queue.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	got, err := store.Get(context.Background(), "keep")
	if err != nil || got == nil {
		t.Fatalf("job lost across reopen: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	jobs := []queue.Job{
		{Status: queue.StatusQueued},
		{Status: queue.StatusRunning},
		{Status: queue.StatusSucceeded},
		{Status: queue.StatusSucceeded},
		{Status: queue.StatusCancelled},
	}
	got := queue.Summarize(jobs)
	if got.Total != 5 || got.Succeeded != 2 || !got.Active() {
		t.Fatalf("unexpected summary: %#v", got)
	}
	if got.SuccessRate() != 0.4 {
		t.Fatalf("success rate = %v", got.SuccessRate())
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := queue.ParseStatus(" Failed "); err != nil || s != queue.StatusFailed {
		t.Fatalf("ParseStatus = %q, %v", s, err)
	}
	if _, err := queue.ParseStatus("ripping"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestOpenMigratesVersionOneDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	v1 := `CREATE TABLE schema_version (version INTEGER NOT NULL);
INSERT INTO schema_version (version) VALUES (1);
CREATE TABLE jobs (
    id TEXT PRIMARY KEY, entry_key TEXT, entry_json TEXT NOT NULL, status TEXT NOT NULL,
    attempt INTEGER NOT NULL DEFAULT 0, progress INTEGER NOT NULL DEFAULT 0,
    status_text TEXT, result_path TEXT, last_error TEXT, constraints_json TEXT,
    created_at TEXT NOT NULL, updated_at TEXT NOT NULL
);
CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TEXT NOT NULL);`
	if _, err := db.Exec(v1); err != nil {
		t.Fatalf("create v1 schema: %v", err)
	}
	db.Close()

	store, err := queue.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	testsupport.SaveJob(t, store, "old", sampleEntry(4, "Old"), queue.StatusQueued)
	if n, err := store.RequestCancel(ctx, []string{"old"}); err != nil || n != 1 {
		t.Fatalf("RequestCancel after migration: n=%d err=%v", n, err)
	}
	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if health.SchemaVersion != 2 {
		t.Fatalf("schema version = %d, want 2", health.SchemaVersion)
	}
}

func TestOpenRejectsNewerDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")
	store, err := queue.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := queue.OpenPath(path); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
