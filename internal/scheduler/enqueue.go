package scheduler

import (
	"time"

	"github.com/google/uuid"

	"kura/internal/catalog"
	"kura/internal/constraints"
	"kura/internal/logging"
	"kura/internal/queue"
)

const progressBucket = 25

// EnqueueBatch tracks a new job per entry and returns job IDs in input
// order. An entry whose key already has a tracked job, in any state, maps
// to that job instead of a new one. Entries without an ID are never
// deduplicated.
func (m *Manager) EnqueueBatch(entries []catalog.Entry, set constraints.Set) []string {
	set = set.Normalize()
	now := m.now()
	ids := make([]string, 0, len(entries))
	added, kept := 0, 0

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range entries {
		key, hasKey := e.Key()
		if hasKey {
			if id, ok := m.keys[key]; ok {
				ids = append(ids, id)
				kept++
				continue
			}
		}
		// Distinct timestamps keep batch order stable in the journal.
		created := now.Add(time.Duration(i))
		st := &tracked{
			job: queue.Job{
				ID:          uuid.NewString(),
				Entry:       e.Clone(),
				Status:      queue.StatusQueued,
				Attempt:     1,
				StatusText:  "Queued",
				Constraints: set,
				CreatedAt:   created,
				UpdatedAt:   created,
			},
			sampler: logging.NewProgressSampler(progressBucket),
		}
		m.addLocked(st, key, hasKey)
		m.persistLocked(st.job)
		ids = append(ids, st.job.ID)
		added++
	}

	if added > 0 {
		m.signalLocked()
	}
	m.logger.Info("batch enqueued",
		logging.String(logging.FieldEventType, "batch_enqueued"),
		logging.Int("added", added),
		logging.Int("kept_existing", kept),
		logging.String("constraints", set.String()),
	)
	return ids
}

// Restore tracks jobs loaded from the journal. Unfinished jobs come back
// queued with a fresh attempt budget; terminal jobs keep their state.
// Jobs whose ID or entry key is already tracked are skipped.
func (m *Manager) Restore(jobs []queue.Job) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	restored := 0
	for _, j := range jobs {
		if _, ok := m.jobs[j.ID]; ok || j.ID == "" {
			continue
		}
		key, hasKey := j.Entry.Key()
		if hasKey {
			if _, dup := m.keys[key]; dup {
				continue
			}
		}
		st := &tracked{job: j.Clone(), sampler: logging.NewProgressSampler(progressBucket)}
		st.job.Constraints = st.job.Constraints.Normalize()
		if st.job.Attempt < 1 {
			st.job.Attempt = 1
		}
		if !st.job.Status.IsTerminal() && (st.job.Status != queue.StatusQueued || st.job.Progress != 0) {
			st.job.Status = queue.StatusQueued
			st.job.Progress = 0
			st.job.StatusText = "Queued"
			st.job.UpdatedAt = m.now()
			m.persistLocked(st.job)
		}
		m.addLocked(st, key, hasKey)
		restored++
	}
	if restored > 0 {
		m.signalLocked()
	}
	return restored
}

func (m *Manager) addLocked(st *tracked, key string, hasKey bool) {
	m.jobs[st.job.ID] = st
	m.order = append(m.order, st.job.ID)
	if hasKey {
		m.keys[key] = st.job.ID
	}
}
