// Package download runs one catalog entry through fetch, organize, persist and
// metadata embedding. A Runner holds no per-job state; the scheduler owns
// attempts, retries and cancellation.
package download
