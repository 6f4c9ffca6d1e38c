package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gofrs/flock"

	"kura/internal/catalog"
	"kura/internal/config"
	"kura/internal/queue"
	"kura/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, maxAttempts int) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
library_root = %q
state_dir = %q
log_dir = %q

[download]
max_attempts = %d
backoff_initial_seconds = 1
backoff_max_seconds = 1

[constraints]
sysfs_root = %q
watch_uevents = false
`, filepath.Join(base, "library"), filepath.Join(base, "state"), filepath.Join(base, "logs"),
		maxAttempts, filepath.Join(base, "sys"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func (e *cliTestEnv) writeCatalog(t *testing.T, entries ...map[string]any) string {
	t.Helper()
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(e.baseDir, "catalog.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (e *cliTestEnv) openStore(t *testing.T) *queue.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, e.cfg)
}

func newImageServer(t *testing.T, available *atomic.Bool) *httptest.Server {
	t.Helper()
	jpeg := testsupport.JPEGBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !available.Load() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpeg)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadCommandEndToEnd(t *testing.T) {
	env := setupCLITestEnv(t, 3)
	var available atomic.Bool
	available.Store(true)
	srv := newImageServer(t, &available)

	catalogPath := env.writeCatalog(t,
		map[string]any{"id": 1, "title": "Sample!!", "imageUrl": srv.URL + "/img/1.jpg", "kindCode": 1, "genres": "Comedy"},
		map[string]any{"id": 2, "title": "No Image", "kindCode": 1},
	)

	out, err := env.run(t, "download", catalogPath, "--quiet")
	if err != nil {
		t.Fatalf("download: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Skipping 1 entry without an image URL") {
		t.Fatalf("missing skip notice: %q", out)
	}
	image := filepath.Join(env.cfg.Paths.LibraryRoot, "Anime", "Comedy", "Sample_1.jpg")
	if _, err := os.Stat(image); err != nil {
		t.Fatalf("expected downloaded image: %v", err)
	}

	out, err = env.run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var view statusView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if view.Jobs.Succeeded != 1 || view.Jobs.Total != 1 || view.Images != 1 || view.SessionActive {
		t.Fatalf("unexpected status: %+v", view)
	}

	out, err = env.run(t, "download", catalogPath, "--quiet")
	if err != nil {
		t.Fatalf("second download: %v", err)
	}
	if !strings.Contains(out, "0 new") {
		t.Fatalf("tracked entry should not be queued again: %q", out)
	}

	out, err = env.run(t, "inspect", image)
	if err != nil {
		t.Fatalf("inspect: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Sample!!") || !strings.Contains(out, "Comedy") {
		t.Fatalf("inspect output missing metadata: %q", out)
	}

	out, err = env.run(t, "jobs", "--status", "succeeded")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	if !strings.Contains(out, "Sample!!") {
		t.Fatalf("jobs output missing entry: %q", out)
	}

	out, err = env.run(t, "folders")
	if err != nil {
		t.Fatalf("folders: %v", err)
	}
	if !strings.Contains(out, filepath.Join("Anime", "Comedy")) {
		t.Fatalf("folders output missing leaf: %q", out)
	}
}

func TestDownloadSendsSessionNotifications(t *testing.T) {
	var (
		mu     sync.Mutex
		titles []string
	)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
	}))
	t.Cleanup(ntfy.Close)
	t.Setenv("KURA_NTFY_TOPIC", ntfy.URL+"/kura")

	env := setupCLITestEnv(t, 3)
	var available atomic.Bool
	available.Store(true)
	srv := newImageServer(t, &available)
	catalogPath := env.writeCatalog(t,
		map[string]any{"id": 3, "title": "Ping", "imageUrl": srv.URL + "/img/3.jpg", "kindCode": 1},
	)

	if out, err := env.run(t, "download", catalogPath, "--quiet"); err != nil {
		t.Fatalf("download: %v\n%s", err, out)
	}
	out, err := env.run(t, "doctor", "--test-notify")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Test message sent") {
		t.Fatalf("doctor output missing ntfy result: %q", out)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"Kura - Downloads Started", "Kura - Downloads Complete", "Kura - Test"}
	if strings.Join(titles, "|") != strings.Join(want, "|") {
		t.Fatalf("notifications = %q, want %q", titles, want)
	}
}

func TestDownloadFailureRetryAndResume(t *testing.T) {
	env := setupCLITestEnv(t, 1)
	var available atomic.Bool
	srv := newImageServer(t, &available)

	catalogPath := env.writeCatalog(t,
		map[string]any{"id": 9, "title": "Later", "imageUrl": srv.URL + "/img/9.png", "kindCode": 7, "genres": "Drama"},
	)

	out, err := env.run(t, "download", catalogPath, "--quiet")
	if err == nil || !strings.Contains(err.Error(), "1 job(s) failed") {
		t.Fatalf("expected failure, got %v\n%s", err, out)
	}

	out, err = env.run(t, "retry")
	if err != nil || !strings.Contains(out, "Queued 1 failed job(s)") {
		t.Fatalf("retry: %v %q", err, out)
	}

	store := env.openStore(t)
	jobs, err := store.List(context.Background())
	if err != nil || len(jobs) != 1 {
		t.Fatalf("list: %v %d", err, len(jobs))
	}
	if jobs[0].Status != queue.StatusQueued || jobs[0].Attempt != 2 {
		t.Fatalf("unexpected retried job: %+v", jobs[0])
	}

	available.Store(true)
	out, err = env.run(t, "resume", "--quiet")
	if err != nil {
		t.Fatalf("resume: %v\n%s", err, out)
	}
	saved, err := store.Get(context.Background(), jobs[0].ID)
	if err != nil || saved == nil || saved.Status != queue.StatusSucceeded {
		t.Fatalf("job not completed after resume: %+v %v", saved, err)
	}
	if _, err := os.Stat(saved.ResultPath); err != nil {
		t.Fatalf("result file missing: %v", err)
	}
}

func TestCancelWithoutSessionMarksJobs(t *testing.T) {
	env := setupCLITestEnv(t, 3)
	store := env.openStore(t)
	testsupport.SaveJob(t, store, "aaaa1111", catalog.Entry{ID: catalog.Int64(1), Title: "One", ImageURL: "https://x/1.jpg"}, queue.StatusQueued)
	testsupport.SaveJob(t, store, "bbbb2222", catalog.Entry{ID: catalog.Int64(2), Title: "Two", ImageURL: "https://x/2.jpg"}, queue.StatusQueued)

	out, err := env.run(t, "cancel", "aaaa")
	if err != nil || !strings.Contains(out, "Cancelled 1 job(s)") {
		t.Fatalf("cancel: %v %q", err, out)
	}
	one, _ := store.Get(context.Background(), "aaaa1111")
	two, _ := store.Get(context.Background(), "bbbb2222")
	if one.Status != queue.StatusCancelled || two.Status != queue.StatusQueued {
		t.Fatalf("unexpected statuses: %s %s", one.Status, two.Status)
	}

	if _, err := env.run(t, "cancel"); err == nil {
		t.Fatal("cancel without ids or --all should fail")
	}
	out, err = env.run(t, "cancel", "--all")
	if err != nil || !strings.Contains(out, "Cancelled 1 job(s)") {
		t.Fatalf("cancel --all: %v %q", err, out)
	}

	out, err = env.run(t, "clear")
	if err != nil || !strings.Contains(out, "Cleared 2 finished job(s)") {
		t.Fatalf("clear: %v %q", err, out)
	}
}

func TestCancelDuringSessionRequestsCancellation(t *testing.T) {
	env := setupCLITestEnv(t, 3)
	store := env.openStore(t)
	testsupport.SaveJob(t, store, "cccc3333", catalog.Entry{ID: catalog.Int64(3), Title: "Three", ImageURL: "https://x/3.jpg"}, queue.StatusRunning)

	lock := flock.New(env.cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("take session lock: %v %v", ok, err)
	}
	defer lock.Unlock()

	out, err := env.run(t, "cancel", "cccc3333")
	if err != nil || !strings.Contains(out, "Requested cancellation of 1 job(s)") {
		t.Fatalf("cancel: %v %q", err, out)
	}
	ids, err := store.CancelRequests(context.Background())
	if err != nil || len(ids) != 1 || ids[0] != "cccc3333" {
		t.Fatalf("cancel requests = %v, %v", ids, err)
	}

	if _, err := env.run(t, "clear"); err == nil || !strings.Contains(err.Error(), "download is running") {
		t.Fatalf("clear should refuse while a session runs, got %v", err)
	}
	if _, err := env.run(t, "download", env.writeCatalog(t, map[string]any{"id": 4, "imageUrl": "https://x/4.jpg"})); err == nil {
		t.Fatal("second download session should be refused")
	}
}

func TestSettingsCommands(t *testing.T) {
	env := setupCLITestEnv(t, 3)

	out, err := env.run(t, "settings", "get", "wifi_only")
	if err != nil || !strings.Contains(out, "unset") {
		t.Fatalf("get unset: %v %q", err, out)
	}
	out, err = env.run(t, "settings", "set", "WIFI_ONLY", "yes")
	if err == nil {
		t.Fatalf("non-boolean value should be rejected: %q", out)
	}
	out, err = env.run(t, "settings", "set", "wifi_only", "1")
	if err != nil || strings.TrimSpace(out) != "wifi_only = true" {
		t.Fatalf("set: %v %q", err, out)
	}
	out, err = env.run(t, "settings", "get", "wifi_only")
	if err != nil || strings.TrimSpace(out) != "true" {
		t.Fatalf("get: %v %q", err, out)
	}
	out, err = env.run(t, "settings", "list")
	if err != nil || !strings.Contains(out, "require_charging") || !strings.Contains(out, "true") {
		t.Fatalf("list: %v %q", err, out)
	}
	if _, err := env.run(t, "settings", "set", "theme", "true"); err == nil {
		t.Fatal("unknown setting should be rejected")
	}
}

func TestClassifyCommandDryRun(t *testing.T) {
	env := setupCLITestEnv(t, 3)
	catalogPath := env.writeCatalog(t,
		map[string]any{"id": 5, "title": "Hentai Party", "imageUrl": "https://x/5.png", "kindCode": 1},
		map[string]any{"id": 6, "title": "Quiet Manga", "imageUrl": "https://x/6", "kindCode": 8, "genres": "Slice of Life, Drama"},
	)

	out, err := env.run(t, "classify", catalogPath, "--json")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	var views []classifyView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(views))
	}
	if !strings.HasPrefix(views[0].Folder, filepath.Join("Anime", "SENSITIVE")) || views[0].File != "Hentai Party_5.png" {
		t.Fatalf("unexpected sensitive row: %+v", views[0])
	}
	if views[1].Kind != "Manga" || views[1].File != "Quiet Manga_6.jpg" {
		t.Fatalf("unexpected manga row: %+v", views[1])
	}
	if entries, _ := os.ReadDir(env.cfg.Paths.LibraryRoot); len(entries) != 0 {
		t.Fatal("classify must not create folders")
	}
}

func TestDoctorAndCleanup(t *testing.T) {
	env := setupCLITestEnv(t, 3)

	out, err := env.run(t, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	for _, want := range []string{"Library root", "Job database", "Privacy markers", "Default constraints"} {
		if !strings.Contains(out, want) {
			t.Fatalf("doctor output missing %q: %q", want, out)
		}
	}

	empty := filepath.Join(env.cfg.Paths.LibraryRoot, "Manga", "Action")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	out, err = env.run(t, "cleanup")
	if err != nil || !strings.Contains(out, "Removed") {
		t.Fatalf("cleanup: %v %q", err, out)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Fatal("empty folder should be removed")
	}
	if _, err := os.Stat(env.cfg.Paths.LibraryRoot); err != nil {
		t.Fatal("library root must survive cleanup")
	}
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "kura.toml")

	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	cmd = newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
}

func TestConfigValidateAndShow(t *testing.T) {
	t.Setenv("AWS_SECRET_ACCESS_KEY", "hunter2")
	env := setupCLITestEnv(t, 3)

	out, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	for _, want := range []string{"Configuration valid", env.cfg.Paths.LibraryRoot, "3 (backoff 1s to 1s)", "disabled"} {
		if !strings.Contains(out, want) {
			t.Fatalf("validate output missing %q: %q", want, out)
		}
	}

	out, err = env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[download]") || !strings.Contains(out, "library_root") {
		t.Fatalf("show output is not the effective config: %q", out)
	}
	if strings.Contains(out, "hunter2") || !strings.Contains(out, "<redacted>") {
		t.Fatalf("secret key must be redacted: %q", out)
	}
}

func TestRenderJobStatus(t *testing.T) {
	if got := renderJobStatus(queue.StatusFailed, false); got != "failed" {
		t.Fatalf("plain status = %q", got)
	}
	if got := renderJobStatus(queue.StatusSucceeded, true); got != ansiGreen+"succeeded"+ansiReset {
		t.Fatalf("colored status = %q", got)
	}
	if got := renderJobStatus(queue.StatusQueued, true); !strings.HasPrefix(got, ansiBlue) {
		t.Fatalf("queued status = %q", got)
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := map[int]string{
		-5:  "[....................]   0%",
		50:  "[##########..........]  50%",
		100: "[####################] 100%",
		130: "[####################] 100%",
	}
	for in, want := range tests {
		if got := renderProgressBar(in); got != want {
			t.Errorf("renderProgressBar(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t, 3)

	out, err := env.run(t, "logs")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if !strings.Contains(out, "No log entries available") {
		t.Fatalf("expected empty notice, got %q", out)
	}

	content := "2026-01-02 10:00:01 INFO [download] Job 1a2b3c4d - fetching image\n" +
		"    - url: https://img.example/1.jpg\n" +
		"2026-01-02 10:00:02 INFO [download] Job 9f8e7d6c - fetching image\n" +
		"2026-01-02 10:00:03 INFO [download] Job 1a2b3c4d - image saved\n"
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(env.cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err = env.run(t, "logs", "--job", "1a2b", "-n", "5")
	if err != nil {
		t.Fatalf("logs --job: %v", err)
	}
	if strings.Contains(out, "9f8e7d6c") || !strings.Contains(out, "url: https://img.example/1.jpg") || !strings.Contains(out, "image saved") {
		t.Fatalf("unexpected filtered logs: %q", out)
	}

	out, err = env.run(t, "logs", "-n", "1")
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	if strings.TrimSpace(out) != "2026-01-02 10:00:03 INFO [download] Job 1a2b3c4d - image saved" {
		t.Fatalf("unexpected tail: %q", out)
	}
}
