package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kura/internal/config"
	"kura/internal/queue"
)

const userAgent = "kura-notify/1.0"

// Service defines the notification surface exposed to download sessions.
type Service interface {
	NotifySessionStarted(ctx context.Context, active int) error
	NotifySessionCompleted(ctx context.Context, status queue.DownloadStatus, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifySessionStarted(ctx context.Context, active int) error {
	if active <= 0 {
		return nil
	}
	data := payload{
		title:   "Kura - Downloads Started",
		message: fmt.Sprintf("Downloading %d image(s)", active),
		tags:    []string{"kura", "session", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySessionCompleted(ctx context.Context, status queue.DownloadStatus, duration time.Duration) error {
	finished := status.Succeeded + status.Failed + status.Cancelled
	if finished == 0 {
		return nil
	}
	durationText := formatDuration(duration)

	data := payload{
		title:   "Kura - Downloads Complete",
		message: fmt.Sprintf("%d image(s) saved in %s", status.Succeeded, durationText),
		tags:    []string{"kura", "session", "completed"},
	}
	if status.Failed > 0 || status.Cancelled > 0 {
		data.title = "Kura - Downloads Complete (with errors)"
		data.message = fmt.Sprintf("%d saved, %d failed, %d cancelled in %s",
			status.Succeeded, status.Failed, status.Cancelled, durationText)
	}
	if status.Active() {
		data.title = "Kura - Downloads Interrupted"
		data.message = fmt.Sprintf("%s\n%d job(s) still queued", data.message, status.Queued+status.Running)
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Kura - Error",
		message:  builder.String(),
		tags:     []string{"kura", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Kura - Test",
		message:  "Notification system test",
		tags:     []string{"kura", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) NotifySessionStarted(context.Context, int) error { return nil }
func (noopService) NotifySessionCompleted(context.Context, queue.DownloadStatus, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
