package queue

import (
	"fmt"
	"strings"
	"time"

	"kura/internal/catalog"
	"kura/internal/constraints"
)

// Status represents the lifecycle of a download job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
	StatusCancelled,
}

// AllStatuses returns every status in display order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus validates a status name.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range allStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown job status %q", value)
}

// IsTerminal reports whether no further automatic transition can happen.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Job is one entry's download attempt as tracked by the scheduler.
type Job struct {
	ID          string
	Entry       catalog.Entry
	Status      Status
	Attempt     int
	Progress    int
	StatusText  string
	ResultPath  string
	LastError   string
	Constraints constraints.Set
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a copy that shares no memory with j.
func (j Job) Clone() Job {
	out := j
	out.Entry = j.Entry.Clone()
	return out
}

// DownloadStatus is an aggregate snapshot of tracked jobs.
type DownloadStatus struct {
	Queued    int
	Running   int
	Succeeded int
	Failed    int
	Cancelled int
	Total     int
}

// Add counts one job in the given status.
func (d *DownloadStatus) Add(status Status) {
	switch status {
	case StatusQueued:
		d.Queued++
	case StatusRunning:
		d.Running++
	case StatusSucceeded:
		d.Succeeded++
	case StatusFailed:
		d.Failed++
	case StatusCancelled:
		d.Cancelled++
	default:
		return
	}
	d.Total++
}

// Count returns the number of jobs in status.
func (d DownloadStatus) Count(status Status) int {
	switch status {
	case StatusQueued:
		return d.Queued
	case StatusRunning:
		return d.Running
	case StatusSucceeded:
		return d.Succeeded
	case StatusFailed:
		return d.Failed
	case StatusCancelled:
		return d.Cancelled
	}
	return 0
}

// SuccessRate is succeeded/total, or 0 when nothing is tracked.
func (d DownloadStatus) SuccessRate() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Succeeded) / float64(d.Total)
}

// Active reports whether any job may still change state on its own.
func (d DownloadStatus) Active() bool {
	return d.Queued+d.Running > 0
}

// Summarize aggregates jobs into a DownloadStatus.
func Summarize(jobs []Job) DownloadStatus {
	var d DownloadStatus
	for _, j := range jobs {
		d.Add(j.Status)
	}
	return d
}

// DatabaseHealth captures diagnostic information about the tracking database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	MissingTables    []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}
