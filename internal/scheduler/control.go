package scheduler

import (
	"context"

	"kura/internal/logging"
	"kura/internal/metrics"
	"kura/internal/queue"
)

// CancelAll requests cancellation of every unfinished job.
func (m *Manager) CancelAll() int {
	m.mu.Lock()
	ids := append([]string(nil), m.order...)
	m.mu.Unlock()
	return m.CancelJobs(ids)
}

// CancelJobs cancels queued jobs at once and signals running ones, which
// settle as cancelled when their attempt returns. Unknown and terminal IDs
// are ignored. It returns the number of jobs affected.
func (m *Manager) CancelJobs(ids []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	affected := 0
	for _, id := range ids {
		st := m.jobs[id]
		if st == nil || st.job.Status.IsTerminal() {
			continue
		}
		switch st.job.Status {
		case queue.StatusQueued:
			st.job.Status = queue.StatusCancelled
			st.job.StatusText = "Cancelled " + st.job.Entry.DisplayTitle()
			st.job.UpdatedAt = m.now()
			m.metrics.ObserveJob(metrics.OutcomeCancelled, 0)
			m.persistLocked(st.job)
		case queue.StatusRunning:
			if st.cancelRequested {
				continue
			}
			st.cancelRequested = true
			st.job.StatusText = "Cancelling " + st.job.Entry.DisplayTitle()
			if st.cancel != nil {
				st.cancel()
			}
		}
		affected++
	}
	if affected > 0 {
		m.logger.Info("cancellation requested",
			logging.String(logging.FieldEventType, "jobs_cancel_requested"),
			logging.Int("jobs", affected),
		)
		m.signalLocked()
	}
	return affected
}

// RetryFailed re-queues every failed job as a new attempt on the same ID
// with a fresh execution budget. Succeeded and cancelled jobs are untouched.
func (m *Manager) RetryFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	retried := 0
	for _, id := range m.order {
		st := m.jobs[id]
		if st.job.Status != queue.StatusFailed {
			continue
		}
		st.executions = 0
		st.notBefore = m.now()
		st.cancelRequested = false
		st.job.Status = queue.StatusQueued
		st.job.Attempt++
		st.job.Progress = 0
		st.job.ResultPath = ""
		st.job.StatusText = "Queued for retry"
		st.job.UpdatedAt = m.now()
		m.persistLocked(st.job)
		retried++
	}
	if retried > 0 {
		m.logger.Info("failed jobs re-queued",
			logging.String(logging.FieldEventType, "jobs_retried"),
			logging.Int("jobs", retried),
		)
		m.signalLocked()
	}
	return retried
}

// Clear evicts terminal jobs from tracking and the journal.
func (m *Manager) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	kept := m.order[:0]
	for _, id := range m.order {
		st := m.jobs[id]
		if !st.job.Status.IsTerminal() {
			kept = append(kept, id)
			continue
		}
		if key, ok := st.job.Entry.Key(); ok && m.keys[key] == id {
			delete(m.keys, key)
		}
		delete(m.jobs, id)
		removed = append(removed, id)
	}
	m.order = kept
	if len(removed) == 0 {
		return 0
	}
	if m.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		defer cancel()
		if err := m.journal.Delete(ctx, removed); err != nil {
			logging.WarnWithContext(m.logger, "failed to delete cleared jobs", "journal_delete_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "cleared jobs reappear after a restart"),
				logging.String(logging.FieldErrorHint, "run kura clear again"),
			)
		}
	}
	m.signalLocked()
	return len(removed)
}
