// Package metrics exposes download pipeline counters on a private Prometheus
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kura/internal/logging"
	"kura/internal/queue"
)

const namespace = "kura"

// Job outcome label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeRetried   = "retried"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	registry      *prometheus.Registry
	jobsTotal     *prometheus.CounterVec
	jobDuration   prometheus.Histogram
	fetchBytes    prometheus.Counter
	embedFailures prometheus.Counter
	jobs          *prometheus.GaugeVec
}

// New builds and registers the collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished download attempts by outcome.",
		},
		[]string{"outcome"},
	)
	m.jobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Wall time of one download attempt.",
		Buckets:   prometheus.DefBuckets,
	})
	m.fetchBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_bytes_total",
		Help:      "Image bytes fetched.",
	})
	m.embedFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "embed_failures_total",
		Help:      "Metadata embeds that failed and were skipped.",
	})
	m.jobs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs",
			Help:      "Tracked jobs by state.",
		},
		[]string{"state"},
	)

	m.registry.MustRegister(m.jobsTotal, m.jobDuration, m.fetchBytes, m.embedFailures, m.jobs)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveJob records one finished attempt.
func (m *Metrics) ObserveJob(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(outcome).Inc()
	m.jobDuration.Observe(d.Seconds())
}

// AddFetchedBytes counts downloaded payload bytes.
func (m *Metrics) AddFetchedBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.fetchBytes.Add(float64(n))
}

// IncEmbedFailure counts a swallowed metadata embed error.
func (m *Metrics) IncEmbedFailure() {
	if m == nil {
		return
	}
	m.embedFailures.Inc()
}

// SetJobStates publishes the current aggregate.
func (m *Metrics) SetJobStates(status queue.DownloadStatus) {
	if m == nil {
		return
	}
	for _, s := range queue.AllStatuses() {
		m.jobs.WithLabelValues(string(s)).Set(float64(status.Count(s)))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	if logger != nil {
		logger.Info("metrics listener started",
			logging.String(logging.FieldEventType, "metrics_listen"),
			logging.String("addr", addr),
		)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
