package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kura/internal/catalog"
	"kura/internal/constraints"
)

const jobColumns = "id, entry_json, status, attempt, progress, status_text, result_path, last_error, constraints_json, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (Job, error) {
	var (
		id          string
		entryJSON   string
		statusStr   string
		attempt     int
		progress    int
		statusText  sql.NullString
		resultPath  sql.NullString
		lastError   sql.NullString
		constraints sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&entryJSON,
		&statusStr,
		&attempt,
		&progress,
		&statusText,
		&resultPath,
		&lastError,
		&constraints,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return Job{}, err
	}

	job := Job{
		ID:         id,
		Status:     Status(statusStr),
		Attempt:    attempt,
		Progress:   progress,
		StatusText: statusText.String,
		ResultPath: resultPath.String,
		LastError:  lastError.String,
	}
	if err := json.Unmarshal([]byte(entryJSON), &job.Entry); err != nil {
		return Job{}, fmt.Errorf("decode entry of job %s: %w", id, err)
	}
	if constraints.Valid && constraints.String != "" {
		if err := json.Unmarshal([]byte(constraints.String), &job.Constraints); err != nil {
			return Job{}, fmt.Errorf("decode constraints of job %s: %w", id, err)
		}
	}
	job.Constraints = job.Constraints.Normalize()

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func encodeEntry(e catalog.Entry) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode entry: %w", err)
	}
	return string(data), nil
}

func encodeConstraints(set constraints.Set) (string, error) {
	data, err := json.Marshal(set.Normalize())
	if err != nil {
		return "", fmt.Errorf("encode constraints: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		value = time.Now()
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func statusArgs(values []Status) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = string(v)
	}
	return args
}
