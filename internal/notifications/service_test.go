package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"kura/internal/config"
	"kura/internal/notifications"
	"kura/internal/queue"
)

type captured struct {
	mu       sync.Mutex
	calls    int
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		got.mu.Lock()
		defer got.mu.Unlock()
		got.calls++
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		got.body = string(body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("topic rejected"))
	}))
	t.Cleanup(server.Close)
	return server, got
}

func newService(url string) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	cfg.Notifications.RequestTimeoutSeconds = 5
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "download"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.NotifySessionCompleted(context.Background(), queue.DownloadStatus{Succeeded: 1, Total: 1}, time.Second); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "session started",
			send: func(s notifications.Service) error {
				return s.NotifySessionStarted(context.Background(), 12)
			},
			expectTitle:   "Kura - Downloads Started",
			expectMessage: "Downloading 12 image(s)",
			expectTags:    "kura,session,started",
		},
		{
			name: "session completed",
			send: func(s notifications.Service) error {
				return s.NotifySessionCompleted(context.Background(),
					queue.DownloadStatus{Succeeded: 5, Total: 5}, 90*time.Second+400*time.Millisecond)
			},
			expectTitle:   "Kura - Downloads Complete",
			expectMessage: "5 image(s) saved in 1m30s",
			expectTags:    "kura,session,completed",
		},
		{
			name: "session completed with failures",
			send: func(s notifications.Service) error {
				return s.NotifySessionCompleted(context.Background(),
					queue.DownloadStatus{Succeeded: 3, Failed: 1, Cancelled: 2, Total: 6}, 0)
			},
			expectTitle:   "Kura - Downloads Complete (with errors)",
			expectMessage: "3 saved, 1 failed, 2 cancelled in 0s",
			expectTags:    "kura,session,completed",
		},
		{
			name: "session interrupted",
			send: func(s notifications.Service) error {
				return s.NotifySessionCompleted(context.Background(),
					queue.DownloadStatus{Succeeded: 2, Queued: 4, Total: 6}, 5*time.Second)
			},
			expectTitle:   "Kura - Downloads Interrupted",
			expectMessage: "2 image(s) saved in 5s\n4 job(s) still queued",
			expectTags:    "kura,session,completed",
		},
		{
			name: "error",
			send: func(s notifications.Service) error {
				return s.NotifyError(context.Background(), errors.New("preflight failed"), "download session")
			},
			expectTitle:    "Kura - Error",
			expectMessage:  "Error with download session: preflight failed",
			expectTags:     "kura,error,alert",
			expectPriority: "high",
		},
		{
			name: "test",
			send: func(s notifications.Service) error {
				return s.TestNotification(context.Background())
			},
			expectTitle:    "Kura - Test",
			expectMessage:  "Notification system test",
			expectTags:     "kura,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, got := newCaptureServer(t, http.StatusOK)
			if err := tc.send(newService(server.URL)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceSkipsEmptySessions(t *testing.T) {
	server, got := newCaptureServer(t, http.StatusOK)
	svc := newService(server.URL)

	if err := svc.NotifySessionStarted(context.Background(), 0); err != nil {
		t.Fatalf("NotifySessionStarted: %v", err)
	}
	if err := svc.NotifySessionCompleted(context.Background(), queue.DownloadStatus{}, time.Minute); err != nil {
		t.Fatalf("NotifySessionCompleted: %v", err)
	}
	if got.calls != 0 {
		t.Fatalf("expected no requests for an empty session, got %d", got.calls)
	}
}

func TestNtfyServiceReportsRejectedRequests(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusForbidden)
	err := newService(server.URL).TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for rejected request")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic rejected") {
		t.Fatalf("unexpected error: %v", err)
	}
}
