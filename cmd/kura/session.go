package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"kura/internal/catalog"
	"kura/internal/config"
	"kura/internal/constraints"
	"kura/internal/download"
	"kura/internal/fetch"
	"kura/internal/logging"
	"kura/internal/metadata"
	"kura/internal/metrics"
	"kura/internal/notifications"
	"kura/internal/preflight"
	"kura/internal/queue"
	"kura/internal/scheduler"
	"kura/internal/services"
	"kura/internal/settings"
)

const cancelPollInterval = time.Second

// runSession restores tracked jobs, enqueues entries and blocks until every
// job has finished or the process is interrupted.
func runSession(cmd *cobra.Command, ctx *commandContext, entries []catalog.Entry, flags sessionFlags) error {
	signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	out := cmd.OutOrStdout()

	lock, ok, err := ctx.tryRunnerLock()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("another kura download is already running")
	}
	defer lock.Unlock()

	runCtx := services.WithRequestID(signalCtx, uuid.NewString())
	logger := logging.WithContext(runCtx, ctx.loggerValue())

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job database: %w", err)
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	started := time.Now()

	org := ctx.organizer()
	if failed := preflight.Failed(preflight.RunAll(runCtx, cfg, store, org)); len(failed) > 0 {
		colorize := shouldColorize(out)
		for _, r := range failed {
			fmt.Fprintln(out, renderResult(r, statusError, colorize))
		}
		err := fmt.Errorf("%d preflight check(s) failed; run kura doctor for details", len(failed))
		notify(logger, "error", notifier.NotifyError(runCtx, err, "download session"))
		return err
	}

	set, err := sessionConstraints(runCtx, cfg, store, cmd, flags)
	if err != nil {
		return err
	}

	fetcher, err := fetch.New(runCtx, cfg)
	if err != nil {
		return fmt.Errorf("configure fetchers: %w", err)
	}
	m := metrics.New()
	var embedder download.Embedder
	if cfg.Metadata.Embed {
		embedder = metadata.NewCodec(cfg.Metadata.Software)
	}
	runner := download.New(fetcher, org, embedder, logger, m)

	gate := constraints.NewStorageGate(
		constraints.NewSysfsProbe(cfg.Constraints.SysfsRoot),
		cfg.Paths.LibraryRoot,
		cfg.Constraints.MinFreeMiB<<20,
	)
	manager := scheduler.New(scheduler.OptionsFromConfig(cfg), runner, gate, store, logger, scheduler.WithMetrics(m))

	jobs, err := store.List(runCtx)
	if err != nil {
		return fmt.Errorf("load tracked jobs: %w", err)
	}
	restored := manager.Restore(jobs)

	if err := manager.Start(runCtx); err != nil {
		return err
	}
	defer manager.Stop()

	if cfg.Constraints.WatchUevents {
		monitor := constraints.NewMonitor(logger, manager.Wake)
		_ = monitor.Start(runCtx)
		defer monitor.Stop()
	}

	addr := strings.TrimSpace(flags.metricsAddr)
	if addr == "" {
		addr = strings.TrimSpace(cfg.Metrics.Listen)
	}
	if addr != "" {
		go func() {
			if err := m.Serve(runCtx, addr, logger); err != nil {
				logging.WarnWithContext(logger, "metrics endpoint stopped", "metrics_serve_failed",
					logging.String("addr", addr),
					logging.Error(err),
					logging.String(logging.FieldImpact, "metrics are not exported for this session"),
					logging.String(logging.FieldErrorHint, "choose a free address with --metrics-addr"),
				)
			}
		}()
	}

	go manager.WatchCancelRequests(runCtx, store, cancelPollInterval)

	var ids []string
	if len(entries) > 0 {
		ids = manager.EnqueueBatch(entries, set)
	}
	before := manager.Status()
	fmt.Fprintf(out, "Tracking %d job(s): %d new, %d restored, %d active (%s)\n",
		before.Total, countNew(ids, jobs), restored, before.Queued+before.Running, set.String())
	notify(logger, "session_started", notifier.NotifySessionStarted(runCtx, before.Queued+before.Running))

	waitErr := watchSession(runCtx, manager, out, flags.quiet)
	manager.Stop()

	final := manager.Status()
	fmt.Fprintln(out, renderDownloadStatus(final))
	// runCtx may already be cancelled by a signal; the summary still goes out.
	notify(logger, "session_completed", notifier.NotifySessionCompleted(context.WithoutCancel(runCtx), final, time.Since(started)))
	if waitErr != nil {
		fmt.Fprintln(out, "Interrupted; unfinished jobs stay queued. Run kura resume to continue.")
		return nil
	}
	if final.Failed > 0 {
		return fmt.Errorf("%d job(s) failed; run kura jobs --status failed for details and kura retry to queue them again", final.Failed)
	}
	return nil
}

// notify logs a failed notification; delivery never fails a session.
func notify(logger *slog.Logger, event string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logger, "notification not delivered", "notification_failed",
		logging.String("event", event),
		logging.Error(err),
		logging.String(logging.FieldImpact, "no ntfy message for this event"),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
	)
}

// sessionConstraints layers config defaults, stored preferences and flags.
func sessionConstraints(ctx context.Context, cfg *config.Config, store *queue.Store, cmd *cobra.Command, flags sessionFlags) (constraints.Set, error) {
	network, err := constraints.ParseNetwork(cfg.Constraints.Network)
	if err != nil {
		return constraints.Set{}, err
	}
	set, err := settings.Apply(ctx, settings.NewSQLite(store), constraints.Set{
		Network:         network,
		RequireCharging: cfg.Constraints.RequireCharging,
	})
	if err != nil {
		return constraints.Set{}, fmt.Errorf("load settings: %w", err)
	}
	if cmd.Flags().Changed("wifi-only") {
		set.Network = constraints.NetworkAny
		if flags.wifiOnly {
			set.Network = constraints.NetworkWiFi
		}
	}
	if cmd.Flags().Changed("require-charging") {
		set.RequireCharging = flags.requireCharging
	}
	return set.Normalize(), nil
}

// watchSession prints progress until no job is active or ctx ends.
func watchSession(ctx context.Context, manager *scheduler.Manager, out io.Writer, quiet bool) error {
	lastText := make(map[string]string)
	for {
		changed := manager.Changed()
		if !quiet {
			printProgress(manager, out, lastText)
		}
		if !manager.Status().Active() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func printProgress(manager *scheduler.Manager, out io.Writer, lastText map[string]string) {
	for _, job := range manager.Jobs() {
		line := job.StatusText
		if job.Status == queue.StatusRunning {
			line = renderProgressBar(job.Progress) + " " + job.StatusText
		}
		if lastText[job.ID] == line {
			continue
		}
		_, seen := lastText[job.ID]
		lastText[job.ID] = line
		if !seen && job.Status.IsTerminal() {
			// Terminal jobs restored from earlier sessions are not news.
			continue
		}
		fmt.Fprintf(out, "%s %s\n", shortID(job.ID), line)
	}
}

func countNew(ids []string, before []queue.Job) int {
	known := make(map[string]struct{}, len(before))
	for _, j := range before {
		known[j.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(ids))
	n := 0
	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		n++
	}
	return n
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
