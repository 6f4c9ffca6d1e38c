// Package scheduler tracks download jobs in memory and dispatches them to a
// JobRunner under constraint gating, bounded concurrency and retry with
// exponential backoff.
//
// Every state transition is mirrored to an optional Journal so a later
// process can Restore unfinished work. Jobs are only evicted by Clear.
package scheduler
