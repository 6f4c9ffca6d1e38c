package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"kura/internal/metrics"
	"kura/internal/queue"
)

func gather(t *testing.T, m *metrics.Metrics) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestCountersAndGauges(t *testing.T) {
	m := metrics.New()
	m.ObserveJob(metrics.OutcomeSucceeded, 250*time.Millisecond)
	m.ObserveJob(metrics.OutcomeSucceeded, time.Second)
	m.ObserveJob(metrics.OutcomeFailed, time.Second)
	m.AddFetchedBytes(1024)
	m.IncEmbedFailure()
	m.SetJobStates(queue.DownloadStatus{Queued: 2, Running: 1, Total: 3})

	families := gather(t, m)

	jobs := families["kura_jobs_total"]
	if jobs == nil {
		t.Fatal("kura_jobs_total missing")
	}
	counts := map[string]float64{}
	for _, metric := range jobs.GetMetric() {
		counts[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
	}
	if counts["succeeded"] != 2 || counts["failed"] != 1 {
		t.Fatalf("unexpected job counts: %v", counts)
	}

	if got := families["kura_fetch_bytes_total"].GetMetric()[0].GetCounter().GetValue(); got != 1024 {
		t.Fatalf("fetch bytes = %v", got)
	}
	if got := families["kura_embed_failures_total"].GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("embed failures = %v", got)
	}
	if got := families["kura_job_duration_seconds"].GetMetric()[0].GetHistogram().GetSampleCount(); got != 3 {
		t.Fatalf("duration samples = %d", got)
	}

	states := map[string]float64{}
	for _, metric := range families["kura_jobs"].GetMetric() {
		states[metric.GetLabel()[0].GetValue()] = metric.GetGauge().GetValue()
	}
	if states["queued"] != 2 || states["running"] != 1 || states["failed"] != 0 {
		t.Fatalf("unexpected states: %v", states)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.ObserveJob(metrics.OutcomeFailed, time.Second)
	m.AddFetchedBytes(10)
	m.IncEmbedFailure()
	m.SetJobStates(queue.DownloadStatus{})
	if m.Registry() != nil {
		t.Fatal("nil metrics should have no registry")
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	m := metrics.New()
	m.AddFetchedBytes(5)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "kura_fetch_bytes_total 5") {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}
}
