package scheduler

import (
	"context"
	"time"

	"kura/internal/logging"
)

// CancelSource lists jobs another process asked to cancel.
type CancelSource interface {
	CancelRequests(ctx context.Context) ([]string, error)
}

// WatchCancelRequests polls src and cancels the listed jobs until ctx ends.
func (m *Manager) WatchCancelRequests(ctx context.Context, src CancelSource, interval time.Duration) {
	if interval <= 0 {
		interval = m.opts.PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		ids, err := src.CancelRequests(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Debug("cancel request poll failed", logging.Error(err))
			}
			continue
		}
		if len(ids) > 0 {
			m.CancelJobs(ids)
		}
	}
}
