package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient     = errors.New("transient failure")
	ErrFatal         = errors.New("fatal failure")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrCancelled     = errors.New("cancelled")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Outcome is the terminal classification of a failed job attempt.
type Outcome int

const (
	// OutcomeRetry means the attempt may be retried within the attempt cap.
	OutcomeRetry Outcome = iota
	// OutcomeFail ends the job as failed without further automatic attempts.
	OutcomeFail
	// OutcomeCancel ends the job as cancelled.
	OutcomeCancel
)

// FailureOutcome maps a job error to what the scheduler should do next.
// Unmarked errors count as transient.
func FailureOutcome(err error) Outcome {
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return OutcomeCancel
	case errors.Is(err, ErrFatal), errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return OutcomeFail
	default:
		return OutcomeRetry
	}
}

// Retryable reports whether err should be retried by the scheduler.
func Retryable(err error) bool {
	return err != nil && FailureOutcome(err) == OutcomeRetry
}

// IsMarked reports whether err already carries one of the sentinel markers.
func IsMarked(err error) bool {
	for _, marker := range []error{ErrTransient, ErrFatal, ErrValidation, ErrConfiguration, ErrNotFound, ErrCancelled} {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
