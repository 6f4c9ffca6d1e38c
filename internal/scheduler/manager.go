package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"kura/internal/catalog"
	"kura/internal/constraints"
	"kura/internal/download"
	"kura/internal/logging"
	"kura/internal/metrics"
	"kura/internal/queue"
)

// JobRunner executes one attempt of a job.
type JobRunner interface {
	Run(ctx context.Context, e catalog.Entry, report download.Reporter) (download.Result, error)
}

// Journal persists job transitions.
type Journal interface {
	Save(ctx context.Context, job queue.Job) error
	Delete(ctx context.Context, ids []string) error
}

// Progress is a running job's latest report.
type Progress struct {
	JobID   string
	Text    string
	Percent int
}

const journalTimeout = 5 * time.Second

type tracked struct {
	job             queue.Job
	executions      int
	notBefore       time.Time
	cancel          context.CancelFunc
	cancelRequested bool
	sampler         *logging.ProgressSampler
}

// Manager owns the job tracking table.
type Manager struct {
	opts    Options
	runner  JobRunner
	gate    constraints.Gate
	journal Journal
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	global *semaphore.Weighted
	hostMu sync.Mutex
	hosts  map[string]*semaphore.Weighted

	mu      sync.Mutex
	jobs    map[string]*tracked
	order   []string
	keys    map[string]string
	changed chan struct{}
	wake    chan struct{}

	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Manager. A nil gate never holds jobs and a nil journal
// disables persistence.
func New(opts Options, runner JobRunner, gate constraints.Gate, journal Journal, logger *slog.Logger, options ...Option) *Manager {
	cfg := &managerOptions{now: time.Now}
	for _, opt := range options {
		opt(cfg)
	}
	opts = opts.withDefaults()
	if gate == nil {
		gate = constraints.Always
	}
	return &Manager{
		opts:    opts,
		runner:  runner,
		gate:    gate,
		journal: journal,
		logger:  logging.NewComponentLogger(logger, "scheduler"),
		metrics: cfg.metrics,
		now:     cfg.now,
		global:  semaphore.NewWeighted(opts.MaxConcurrent),
		hosts:   make(map[string]*semaphore.Weighted),
		jobs:    make(map[string]*tracked),
		keys:    make(map[string]string),
		changed: make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Start launches the dispatcher. Jobs enqueued before Start wait for it.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.dispatchLoop(runCtx)

	m.logger.Debug("scheduler started",
		logging.String(logging.FieldEventType, "scheduler_started"),
		logging.Int64("max_concurrent", m.opts.MaxConcurrent),
		logging.Int64("per_host", m.opts.PerHost),
		logging.Int("max_attempts", m.opts.MaxAttempts),
	)
	return nil
}

// Stop cancels running attempts and waits for them to return. Interrupted
// jobs go back to queued without consuming an attempt.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Wait blocks until no job is queued or running, or ctx ends. Jobs held by
// constraints keep Wait blocked.
func (m *Manager) Wait(ctx context.Context) error {
	for {
		m.mu.Lock()
		active := m.summarizeLocked().Active()
		ch := m.changed
		m.mu.Unlock()
		if !active {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Changed returns a channel closed at the next state change.
func (m *Manager) Changed() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// Wake asks the dispatcher to re-evaluate held jobs now.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) signalLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
	m.metrics.SetJobStates(m.summarizeLocked())
	m.Wake()
}

func (m *Manager) persistLocked(job queue.Job) {
	if m.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := m.journal.Save(ctx, job.Clone()); err != nil {
		logging.WarnWithContext(m.logger, "failed to persist job state", "journal_save_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("status", string(job.Status)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job state may be stale after a restart"),
			logging.String(logging.FieldErrorHint, "run kura doctor to check the job database"),
		)
	}
}

func (m *Manager) summarizeLocked() queue.DownloadStatus {
	var status queue.DownloadStatus
	for _, st := range m.jobs {
		status.Add(st.job.Status)
	}
	return status
}

func (m *Manager) hostSemaphore(host string) *semaphore.Weighted {
	if m.opts.PerHost <= 0 || host == "" {
		return nil
	}
	m.hostMu.Lock()
	defer m.hostMu.Unlock()
	sem, ok := m.hosts[host]
	if !ok {
		sem = semaphore.NewWeighted(m.opts.PerHost)
		m.hosts[host] = sem
	}
	return sem
}
