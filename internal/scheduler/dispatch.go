package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"kura/internal/catalog"
	"kura/internal/constraints"
	"kura/internal/download"
	"kura/internal/logging"
	"kura/internal/metrics"
	"kura/internal/queue"
	"kura/internal/services"
)

type candidate struct {
	id   string
	set  constraints.Set
	host string
}

type verdict struct {
	ok     bool
	reason string
}

func (m *Manager) dispatchLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		m.dispatchReady(ctx)

		timer := time.NewTimer(m.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-m.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// nextDelay is the poll interval, shortened to the earliest backoff expiry.
func (m *Manager) nextDelay() time.Duration {
	delay := m.opts.PollInterval
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.jobs {
		if st.job.Status != queue.StatusQueued || !st.notBefore.After(now) {
			continue
		}
		if d := st.notBefore.Sub(now); d < delay {
			delay = d
		}
	}
	return delay
}

func (m *Manager) dispatchReady(ctx context.Context) {
	now := m.now()
	m.mu.Lock()
	var candidates []candidate
	for _, id := range m.order {
		st := m.jobs[id]
		if st.job.Status != queue.StatusQueued || now.Before(st.notBefore) {
			continue
		}
		candidates = append(candidates, candidate{
			id:   id,
			set:  st.job.Constraints,
			host: sourceHost(st.job.Entry.ImageURL),
		})
	}
	m.mu.Unlock()

	verdicts := make(map[constraints.Set]verdict)
	for _, c := range candidates {
		if ctx.Err() != nil {
			return
		}
		v, ok := verdicts[c.set]
		if !ok {
			v.ok, v.reason = m.gate.Satisfied(ctx, c.set)
			verdicts[c.set] = v
		}
		if !v.ok {
			m.hold(c.id, v.reason)
			continue
		}

		hostSem := m.hostSemaphore(c.host)
		if hostSem != nil && !hostSem.TryAcquire(1) {
			continue
		}
		if !m.global.TryAcquire(1) {
			if hostSem != nil {
				hostSem.Release(1)
			}
			return
		}
		release := func() {
			m.global.Release(1)
			if hostSem != nil {
				hostSem.Release(1)
			}
		}
		if !m.startJob(ctx, c.id, release) {
			release()
		}
	}
}

func (m *Manager) hold(id, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.jobs[id]
	if st == nil || st.job.Status != queue.StatusQueued {
		return
	}
	text := "Waiting: " + strings.TrimSpace(reason)
	if st.job.StatusText == text {
		return
	}
	st.job.StatusText = text
	st.job.UpdatedAt = m.now()
	m.persistLocked(st.job)
	m.logger.Debug("job held by constraints",
		logging.String(logging.FieldJobID, id),
		logging.String("reason", reason),
	)
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *Manager) startJob(ctx context.Context, id string, release func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.jobs[id]
	if st == nil || st.job.Status != queue.StatusQueued || ctx.Err() != nil {
		return false
	}
	jobCtx, cancel := context.WithCancel(ctx)
	st.cancel = cancel
	st.cancelRequested = false
	st.sampler.Reset()
	st.job.Status = queue.StatusRunning
	st.job.Progress = 0
	st.job.StatusText = "Starting " + st.job.Entry.DisplayTitle()
	st.job.UpdatedAt = m.now()
	m.persistLocked(st.job)
	m.signalLocked()

	attempt := st.executions + 1
	entry := st.job.Entry.Clone()
	m.wg.Add(1)
	go m.execute(jobCtx, id, entry, attempt, release)
	return true
}

func (m *Manager) execute(ctx context.Context, id string, entry catalog.Entry, attempt int, release func()) {
	defer m.wg.Done()
	defer release()

	ctx = services.WithJobID(ctx, id)
	logger := logging.WithContext(ctx, m.logger).With(
		logging.String(logging.FieldEntryID, entry.IDString()),
		logging.Int(logging.FieldAttempt, attempt),
	)
	logger.Info("download started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("title", entry.DisplayTitle()),
	)

	start := m.now()
	res, err := m.runAttempt(ctx, id, entry)
	m.finish(ctx, id, res, err, m.now().Sub(start))
}

func (m *Manager) runAttempt(ctx context.Context, id string, entry catalog.Entry) (res download.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = services.Wrap(services.ErrTransient, "scheduler", "run", fmt.Sprintf("unexpected panic: %v", rec), nil)
		}
	}()
	return m.runner.Run(ctx, entry, func(p download.Progress) {
		m.onProgress(ctx, id, p)
	})
}

func (m *Manager) onProgress(ctx context.Context, id string, p download.Progress) {
	if p.Phase == download.PhaseFailed || p.Phase == download.PhaseCancelled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.jobs[id]
	if st == nil || st.job.Status != queue.StatusRunning || p.Percent < st.job.Progress {
		return
	}
	st.job.Progress = min(p.Percent, 100)
	if text := strings.TrimSpace(p.Text); text != "" {
		st.job.StatusText = text
	}
	st.job.UpdatedAt = m.now()
	m.persistLocked(st.job)
	m.signalLocked()

	if st.sampler.ShouldLog(st.job.Progress, string(p.Phase)) {
		logging.WithContext(ctx, m.logger).Info("download progress",
			logging.String(logging.FieldEventType, "job_progress"),
			logging.String(logging.FieldStage, string(p.Phase)),
			logging.Int(logging.FieldProgressPercent, st.job.Progress),
			logging.String(logging.FieldProgressMessage, st.job.StatusText),
		)
	}
}

func (m *Manager) finish(ctx context.Context, id string, res download.Result, runErr error, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.jobs[id]
	if st == nil {
		return
	}
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	logger := logging.WithContext(ctx, m.logger)
	title := st.job.Entry.DisplayTitle()
	now := m.now()
	st.job.UpdatedAt = now

	outcome := services.FailureOutcome(runErr)
	switch {
	case runErr == nil:
		st.executions++
		st.job.Status = queue.StatusSucceeded
		st.job.Progress = 100
		st.job.ResultPath = res.Path
		st.job.StatusText = "Completed " + title
		st.job.LastError = ""
		m.metrics.ObserveJob(metrics.OutcomeSucceeded, elapsed)
		logger.Info("download completed",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.String("path", res.Path),
			logging.Bool("metadata_embedded", res.Embedded),
			logging.Duration("duration", elapsed),
		)

	case st.cancelRequested:
		st.job.Status = queue.StatusCancelled
		st.job.ResultPath = res.Path
		st.job.StatusText = "Cancelled " + title
		m.metrics.ObserveJob(metrics.OutcomeCancelled, elapsed)
		logger.Info("download cancelled",
			logging.String(logging.FieldEventType, "job_cancelled"),
			logging.String("path", res.Path),
		)

	case outcome == services.OutcomeCancel:
		// Shutdown interrupted the attempt; it does not count.
		st.job.Status = queue.StatusQueued
		st.job.Progress = 0
		st.job.StatusText = "Interrupted; queued"
		st.notBefore = time.Time{}
		logger.Info("download interrupted by shutdown",
			logging.String(logging.FieldEventType, "job_interrupted"),
		)

	case outcome == services.OutcomeFail:
		st.executions++
		m.failLocked(st, runErr, elapsed)

	default:
		st.executions++
		if st.executions >= m.opts.MaxAttempts {
			m.failLocked(st, runErr, elapsed)
			break
		}
		delay := m.opts.Backoff(st.executions)
		st.notBefore = now.Add(delay)
		st.job.Status = queue.StatusQueued
		st.job.Progress = 0
		st.job.LastError = runErr.Error()
		st.job.StatusText = fmt.Sprintf("Retrying %s (attempt %d of %d)", title, st.executions+1, m.opts.MaxAttempts)
		m.metrics.ObserveJob(metrics.OutcomeRetried, elapsed)
		logging.WarnWithContext(logger, "download attempt failed; retrying", "job_retry",
			logging.Error(runErr),
			logging.Int("executions", st.executions),
			logging.Duration("backoff", delay),
			logging.String(logging.FieldImpact, "entry will be retried after backoff"),
			logging.String(logging.FieldErrorHint, "check network access to the image host"),
		)
	}

	m.persistLocked(st.job)
	m.signalLocked()
}

func (m *Manager) failLocked(st *tracked, runErr error, elapsed time.Duration) {
	st.job.Status = queue.StatusFailed
	st.job.LastError = runErr.Error()
	st.job.StatusText = "Failed " + st.job.Entry.DisplayTitle()
	m.metrics.ObserveJob(metrics.OutcomeFailed, elapsed)
	m.logger.Error("download failed",
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String(logging.FieldJobID, st.job.ID),
		logging.Int("executions", st.executions),
		logging.Error(runErr),
		logging.String(logging.FieldErrorHint, "run kura retry once the cause is fixed"),
	)
}

func sourceHost(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
