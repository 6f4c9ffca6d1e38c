package scheduler

import "kura/internal/queue"

// Status aggregates tracked jobs by state.
func (m *Manager) Status() queue.DownloadStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summarizeLocked()
}

// RunningProgress reports running jobs in enqueue order.
func (m *Manager) RunningProgress() []Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Progress
	for _, id := range m.order {
		st := m.jobs[id]
		if st.job.Status != queue.StatusRunning {
			continue
		}
		out = append(out, Progress{JobID: id, Text: st.job.StatusText, Percent: st.job.Progress})
	}
	return out
}

// Job returns a copy of one tracked job.
func (m *Manager) Job(id string) (queue.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.jobs[id]
	if !ok {
		return queue.Job{}, false
	}
	return st.job.Clone(), true
}

// Jobs returns copies of every tracked job in enqueue order.
func (m *Manager) Jobs() []queue.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]queue.Job, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.jobs[id].job.Clone())
	}
	return out
}
