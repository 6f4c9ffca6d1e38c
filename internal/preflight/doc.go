// Package preflight provides readiness checks for the filesystem, the job
// database and the host conditions that kura downloads depend on.
//
// These checks run in two contexts:
//   - "kura download" calls RunAll before dispatching. A failed check stops
//     the run before any job is enqueued.
//   - "kura doctor" and "kura status" render the individual results,
//     including the informational host probe from HostStatus.
package preflight
