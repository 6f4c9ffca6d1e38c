package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kura/internal/logs"
)

const consoleLog = `2026-01-02 10:00:00 INFO [scheduler] - session started
2026-01-02 10:00:01 INFO [download] Job 1a2b3c4d - fetching image
    - url: https://img.example/1.jpg
2026-01-02 10:00:02 WARN [download] Job 9f8e7d6c - attempt failed
    - error: HTTP 503
    - attempt: 1
2026-01-02 10:00:03 INFO [download] Job 1a2b3c4d - image saved
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kura.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastRecords(t *testing.T) {
	path := writeLog(t, consoleLog)

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %#v", result.Records)
	}
	if !strings.HasSuffix(result.Records[0], "    - attempt: 1") {
		t.Fatalf("continuation lines should stay with their record: %q", result.Records[0])
	}
	if !strings.HasSuffix(result.Records[1], "image saved") {
		t.Fatalf("unexpected last record: %q", result.Records[1])
	}
	if result.Offset != int64(len(consoleLog)) {
		t.Fatalf("offset = %d, want %d", result.Offset, len(consoleLog))
	}
}

func TestTailFiltersByJob(t *testing.T) {
	path := writeLog(t, consoleLog+`{"time":"2026-01-02T10:00:04Z","level":"INFO","msg":"image saved","job_id":"1a2b3c4d-0000-4000-8000-000000000000"}
`)

	tests := []struct {
		name string
		job  string
		want int
	}{
		{"short prefix", "1a2b", 3},
		{"full id", "1a2b3c4d-0000-4000-8000-000000000000", 3},
		{"other job", "9f8e7d6c", 1},
		{"unknown job", "ffff", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10, Job: tc.job})
			if err != nil {
				t.Fatalf("tail: %v", err)
			}
			if len(result.Records) != tc.want {
				t.Fatalf("expected %d records, got %#v", tc.want, result.Records)
			}
		})
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Records) != 0 || result.Offset != 0 {
		t.Fatalf("unexpected result for missing file: %+v", result)
	}
}

func TestTailRestartsAfterTruncation(t *testing.T) {
	path := writeLog(t, "2026-01-02 10:00:00 INFO - fresh\n")
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 4096})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected record from the start of a truncated file, got %#v", result.Records)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "2026-01-02 10:00:00 INFO - start\n")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected initial record, got %#v", result.Records)
	}

	done := make(chan struct{})
	go func(offset int64) {
		defer close(done)
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		if len(res.Records) != 1 || !strings.HasSuffix(res.Records[0], "later") {
			t.Errorf("unexpected follow records: %#v", res.Records)
		}
	}(result.Offset)

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("2026-01-02 10:00:05 INFO - later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestTailFollowHonoursContext(t *testing.T) {
	path := writeLog(t, "2026-01-02 10:00:00 INFO - start\n")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 0, Follow: true, Wait: time.Minute})
	if err == nil {
		t.Fatal("expected context error")
	}
}
