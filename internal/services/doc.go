// Package services defines the error markers and context helpers shared by the
// download pipeline.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, phase names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the scheduler
//     decide between retrying, failing, and cancelling a job.
package services
