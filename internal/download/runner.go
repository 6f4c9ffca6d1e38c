package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kura/internal/catalog"
	"kura/internal/fetch"
	"kura/internal/fileutil"
	"kura/internal/logging"
	"kura/internal/metrics"
	"kura/internal/services"
	"kura/internal/textutil"
)

const (
	stageName = "download"
	fileMode  = os.FileMode(0o644)
)

// FolderResolver returns, creating if needed, the directory an entry belongs in.
type FolderResolver interface {
	ResolveFolder(e catalog.Entry) (string, error)
}

// Embedder writes metadata tags into a persisted image.
type Embedder interface {
	Embed(path string, e catalog.Entry) error
}

// Result describes a finished attempt. Path is set once the image is on disk,
// including when the attempt is cancelled after persisting.
type Result struct {
	Path     string
	Bytes    int
	Embedded bool
	Duration time.Duration
}

// Runner executes download attempts. It is safe for concurrent use.
type Runner struct {
	fetcher   fetch.Fetcher
	organizer FolderResolver
	embedder  Embedder
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New builds a Runner. A nil embedder skips metadata embedding; nil metrics
// records nothing.
func New(fetcher fetch.Fetcher, organizer FolderResolver, embedder Embedder, logger *slog.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		fetcher:   fetcher,
		organizer: organizer,
		embedder:  embedder,
		logger:    logging.NewComponentLogger(logger, "download"),
		metrics:   m,
	}
}

// FileName is the on-disk name for an entry's image.
func FileName(e catalog.Entry, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = fetch.FallbackExtension
	}
	return textutil.Sanitize(e.Title) + "_" + e.IDString() + "." + ext
}

// Run performs one attempt for e. Errors carry a services marker: fetch
// problems are transient, filesystem and input problems are fatal, and a
// cancelled context yields services.ErrCancelled. Panics are recovered and
// reported as transient.
func (r *Runner) Run(ctx context.Context, e catalog.Entry, report Reporter) (res Result, err error) {
	start := time.Now()
	logger := logging.WithContext(ctx, r.logger).With(
		logging.String(logging.FieldEntryID, e.IDString()),
	)
	title := e.DisplayTitle()
	percent := 0
	emit := func(phase Phase, pct int, text string) {
		percent = pct
		report.emit(phase, pct, text)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = services.Wrap(services.ErrTransient, stageName, "run", fmt.Sprintf("unexpected panic: %v", rec), nil)
			logger.Error("download attempt panicked",
				logging.String(logging.FieldEventType, "download_panic"),
				logging.Any("panic", rec),
			)
		}
		res.Duration = time.Since(start)
		switch {
		case err == nil:
		case services.FailureOutcome(err) == services.OutcomeCancel:
			report.emit(PhaseCancelled, percent, "Cancelled "+title)
		default:
			report.emit(PhaseFailed, percent, "Failed "+title)
		}
	}()

	if err := cancelled(ctx, PhaseInit); err != nil {
		return res, err
	}

	emit(PhaseFetching, 0, "Downloading "+title)
	rawURL := strings.TrimSpace(e.ImageURL)
	if rawURL == "" {
		return res, services.Wrap(services.ErrValidation, stageName, "fetch", "Entry has no image URL", nil)
	}
	payload, err := r.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return res, classifyFetchError(ctx, err)
	}
	res.Bytes = len(payload.Data)
	r.metrics.AddFetchedBytes(len(payload.Data))
	logger.Debug("image fetched",
		logging.String(logging.FieldStage, string(PhaseFetching)),
		logging.Host(rawURL),
		logging.Bytes("size", int64(len(payload.Data))),
		logging.String("content_type", payload.ContentType),
	)

	if err := cancelled(ctx, PhaseFetching); err != nil {
		return res, err
	}

	emit(PhaseOrganizing, 50, "Organizing "+title)
	dir, err := r.organizer.ResolveFolder(e)
	if err != nil {
		if !services.IsMarked(err) {
			err = services.Wrap(services.ErrFatal, stageName, "organize", "Failed to resolve library folder", err)
		}
		return res, err
	}
	path := filepath.Join(dir, FileName(e, fetch.Extension(rawURL, payload.ContentType)))

	if err := cancelled(ctx, PhaseOrganizing); err != nil {
		return res, err
	}

	// The write itself is never interrupted.
	emit(PhasePersisting, 50, "Organizing "+title)
	if err := fileutil.WriteAtomic(path, payload.Data, fileMode); err != nil {
		return res, services.Wrap(services.ErrFatal, stageName, "persist", "Failed to write image", err)
	}
	res.Path = path
	logger.Debug("image persisted",
		logging.String(logging.FieldStage, string(PhasePersisting)),
		logging.String("path", path),
	)

	if err := cancelled(ctx, PhasePersisting); err != nil {
		logger.Info("cancelled after image was written; metadata skipped",
			logging.String(logging.FieldEventType, "download_cancelled_after_persist"),
			logging.String("path", path),
		)
		return res, err
	}

	emit(PhaseEmbedding, 80, "Adding metadata to "+title)
	if r.embedder != nil {
		if embedErr := r.embedder.Embed(path, e); embedErr != nil {
			r.metrics.IncEmbedFailure()
			logging.WarnWithContext(logger, "metadata embedding failed", "metadata_embed_failed",
				logging.String("path", path),
				logging.Error(embedErr),
				logging.String(logging.FieldImpact, "image saved without embedded metadata"),
				logging.String(logging.FieldErrorHint, "run kura inspect on the file to check its tags"),
			)
		} else {
			res.Embedded = true
		}
	}

	emit(PhaseCompleted, 100, "Completed "+title)
	return res, nil
}

func cancelled(ctx context.Context, phase Phase) error {
	if ctx.Err() == nil {
		return nil
	}
	return services.Wrap(services.ErrCancelled, stageName, string(phase), "Download cancelled", ctx.Err())
}

func classifyFetchError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return services.Wrap(services.ErrCancelled, stageName, "fetch", "Download cancelled", ctx.Err())
	}
	if errors.Is(err, fetch.ErrTooLarge) || errors.Is(err, fetch.ErrUnsupportedScheme) {
		return services.Wrap(services.ErrValidation, stageName, "fetch", "Image source rejected", err)
	}
	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) {
		return services.Wrap(services.ErrTransient, stageName, "fetch", fmt.Sprintf("HTTP %d", statusErr.Code), err)
	}
	return services.Wrap(services.ErrTransient, stageName, "fetch", "Image fetch failed", err)
}
