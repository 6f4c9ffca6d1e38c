package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrJobNotFound is returned when an ID or prefix matches no job.
var ErrJobNotFound = errors.New("job not found")

// ErrAmbiguousID is returned when a prefix matches more than one job.
var ErrAmbiguousID = errors.New("job id prefix is ambiguous")

var terminalStatuses = []Status{StatusSucceeded, StatusFailed, StatusCancelled}

// Save inserts or replaces the persisted state of a job.
func (s *Store) Save(ctx context.Context, job Job) error {
	entryJSON, err := encodeEntry(job.Entry)
	if err != nil {
		return err
	}
	constraintsJSON, err := encodeConstraints(job.Constraints)
	if err != nil {
		return err
	}
	key, _ := job.Entry.Key()
	err = s.execWithoutResultRetry(ctx, `INSERT INTO jobs (
            id, entry_key, entry_json, status, attempt, progress, status_text,
            result_path, last_error, constraints_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            entry_key = excluded.entry_key,
            entry_json = excluded.entry_json,
            status = excluded.status,
            attempt = excluded.attempt,
            progress = excluded.progress,
            status_text = excluded.status_text,
            result_path = excluded.result_path,
            last_error = excluded.last_error,
            constraints_json = excluded.constraints_json,
            updated_at = excluded.updated_at`,
		job.ID,
		nullableString(key),
		entryJSON,
		string(job.Status),
		job.Attempt,
		job.Progress,
		nullableString(job.StatusText),
		nullableString(job.ResultPath),
		nullableString(job.LastError),
		constraintsJSON,
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// Delete removes jobs by ID.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM jobs WHERE id IN (%s)", makePlaceholders(len(ids)))
	if err := s.execWithoutResultRetry(ctx, query, stringArgs(ids)...); err != nil {
		return fmt.Errorf("delete jobs: %w", err)
	}
	return nil
}

// Get returns the job with the given ID, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// List returns jobs in creation order, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	var args []any
	if len(statuses) > 0 {
		query += fmt.Sprintf(" WHERE status IN (%s)", makePlaceholders(len(statuses)))
		args = statusArgs(statuses)
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats aggregates persisted jobs by status.
func (s *Store) Stats(ctx context.Context) (DownloadStatus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return DownloadStatus{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	var stats DownloadStatus
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return DownloadStatus{}, err
		}
		for range count {
			stats.Add(Status(status))
		}
	}
	return stats, rows.Err()
}

// ResolveID expands a unique ID prefix to the full job ID.
func (s *Store) ResolveID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", ErrJobNotFound
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM jobs WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escaped+"%")
	if err != nil {
		return "", fmt.Errorf("resolve job id: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, prefix)
	}
}

// RequestCancel flags non-terminal jobs for a running download to cancel.
// An empty ids slice flags every non-terminal job.
func (s *Store) RequestCancel(ctx context.Context, ids []string) (int64, error) {
	query := fmt.Sprintf("UPDATE jobs SET cancel_requested = 1 WHERE status NOT IN (%s)", makePlaceholders(len(terminalStatuses)))
	args := statusArgs(terminalStatuses)
	if len(ids) > 0 {
		query += fmt.Sprintf(" AND id IN (%s)", makePlaceholders(len(ids)))
		args = append(args, stringArgs(ids)...)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("request cancel: %w", err)
	}
	return res.RowsAffected()
}

// CancelRequests returns non-terminal jobs flagged by RequestCancel.
func (s *Store) CancelRequests(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT id FROM jobs WHERE cancel_requested = 1 AND status NOT IN (%s)", makePlaceholders(len(terminalStatuses)))
	rows, err := s.db.QueryContext(ctx, query, statusArgs(terminalStatuses)...)
	if err != nil {
		return nil, fmt.Errorf("list cancel requests: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkCancelled moves non-terminal jobs straight to cancelled. It is used
// when no download process owns them. An empty ids slice targets every
// non-terminal job.
func (s *Store) MarkCancelled(ctx context.Context, ids []string) (int64, error) {
	query := fmt.Sprintf(`UPDATE jobs SET status = ?, status_text = 'Cancelled', cancel_requested = 0, updated_at = ?
        WHERE status NOT IN (%s)`, makePlaceholders(len(terminalStatuses)))
	args := append([]any{string(StatusCancelled), formatTime(time.Now())}, statusArgs(terminalStatuses)...)
	if len(ids) > 0 {
		query += fmt.Sprintf(" AND id IN (%s)", makePlaceholders(len(ids)))
		args = append(args, stringArgs(ids)...)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark cancelled: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed re-queues every failed job as a new attempt on the same ID.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `UPDATE jobs SET
            status = ?, attempt = attempt + 1, progress = 0, status_text = 'Queued for retry',
            result_path = NULL, cancel_requested = 0, updated_at = ?
        WHERE status = ?`,
		string(StatusQueued), formatTime(time.Now()), string(StatusFailed),
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearTerminal evicts succeeded, failed and cancelled jobs.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("DELETE FROM jobs WHERE status IN (%s)", makePlaceholders(len(terminalStatuses)))
	res, err := s.execWithRetry(ctx, query, statusArgs(terminalStatuses)...)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}
