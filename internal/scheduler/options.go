package scheduler

import (
	"time"

	"kura/internal/config"
	"kura/internal/metrics"
)

// Options tunes dispatch.
type Options struct {
	MaxConcurrent  int64
	PerHost        int64
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	PollInterval   time.Duration
}

const (
	defaultMaxConcurrent  = 4
	defaultMaxAttempts    = 3
	defaultBackoffInitial = 10 * time.Second
	defaultBackoffMax     = 5 * time.Minute
	defaultPollInterval   = 2 * time.Second
)

// OptionsFromConfig maps the [download] section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxConcurrent:  int64(cfg.Download.MaxConcurrent),
		PerHost:        int64(cfg.Download.PerHost),
		MaxAttempts:    cfg.Download.MaxAttempts,
		BackoffInitial: cfg.BackoffInitial(),
		BackoffMax:     cfg.BackoffMax(),
	}
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = defaultMaxConcurrent
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = defaultBackoffInitial
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = defaultBackoffMax
	}
	if o.BackoffMax < o.BackoffInitial {
		o.BackoffMax = o.BackoffInitial
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	return o
}

// Backoff is the delay before execution n+1 after n failed executions:
// BackoffInitial doubled per prior failure, capped at BackoffMax.
func (o Options) Backoff(failures int) time.Duration {
	o = o.withDefaults()
	if failures < 1 {
		failures = 1
	}
	delay := o.BackoffInitial
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= o.BackoffMax {
			return o.BackoffMax
		}
	}
	if delay > o.BackoffMax {
		return o.BackoffMax
	}
	return delay
}

// Option configures optional Manager behavior.
type Option func(*managerOptions)

type managerOptions struct {
	metrics *metrics.Metrics
	now     func() time.Time
}

// WithMetrics publishes job outcomes and state gauges.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *managerOptions) {
		o.metrics = m
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) {
		o.now = now
	}
}
