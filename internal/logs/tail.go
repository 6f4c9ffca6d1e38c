package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const pollInterval = 250 * time.Millisecond

// TailOptions selects which records Tail returns. A negative Offset returns
// the last Limit records; otherwise reading starts at Offset bytes.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	// Job keeps only records mentioning this job ID or ID prefix.
	Job string
}

// TailResult carries the matching records and the offset to resume from.
type TailResult struct {
	Records []string
	Offset  int64
}

func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Offset = 0
			return result, nil
		}
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	match := jobMatcher(opts.Job)

	if opts.Offset < 0 {
		records, offset, err := readLastRecords(path, opts.Limit, match)
		if err != nil {
			return result, err
		}
		result.Records = records
		result.Offset = offset
		if opts.Follow && opts.Wait > 0 && len(records) == 0 {
			return waitForRecords(ctx, path, offset, opts.Wait, match)
		}
		return result, nil
	}

	offset := opts.Offset
	if offset > info.Size() {
		// Truncated or rotated underneath us.
		offset = 0
	}
	records, newOffset, err := readForward(path, offset, match)
	if err != nil {
		return result, err
	}
	result.Records = records
	result.Offset = newOffset
	if opts.Follow && opts.Wait > 0 && len(records) == 0 {
		return waitForRecords(ctx, path, newOffset, opts.Wait, match)
	}
	return result, nil
}

// jobMatcher matches both formats: console headers carry "Job <first 8>",
// JSON records carry the full job_id.
func jobMatcher(job string) func(string) bool {
	job = strings.TrimSpace(job)
	if job == "" {
		return func(string) bool { return true }
	}
	short := job
	if len(short) > 8 {
		short = short[:8]
	}
	return func(record string) bool {
		return strings.Contains(record, "Job "+short) || strings.Contains(record, `"job_id":"`+job)
	}
}

// scanRecords calls fn once per record. Indented lines continue the record
// above them.
func scanRecords(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			fn(current.String())
			current.Reset()
		}
	}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, " ") && current.Len() > 0 {
			current.WriteByte('\n')
			current.WriteString(line)
			continue
		}
		flush()
		if strings.TrimSpace(line) != "" {
			current.WriteString(line)
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	return nil
}

func readLastRecords(path string, limit int, match func(string) bool) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		offset, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, offset, nil
	}

	ring := make([]string, limit)
	count, idx := 0, 0
	err = scanRecords(file, func(record string) {
		if !match(record) {
			return
		}
		ring[idx] = record
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}

	records := make([]string, count)
	if count == limit {
		for i := range count {
			records[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(records, ring[:count])
	}
	return records, offset, nil
}

func readForward(path string, offset int64, match func(string) bool) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	var records []string
	err = scanRecords(file, func(record string) {
		if match(record) {
			records = append(records, record)
		}
	})
	if err != nil {
		return nil, 0, err
	}

	newOffset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}
	return records, newOffset, nil
}

func waitForRecords(ctx context.Context, path string, offset int64, wait time.Duration, match func(string) bool) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	result := TailResult{Offset: offset}
	for {
		records, newOffset, err := readForward(path, offset, match)
		if err != nil {
			return result, err
		}
		offset = newOffset
		result.Offset = newOffset
		if len(records) > 0 {
			result.Records = records
			return result, nil
		}
		if time.Now().After(deadline) {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
