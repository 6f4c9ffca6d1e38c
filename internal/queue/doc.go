// Package queue persists download jobs and user settings in SQLite.
//
// The scheduler keeps its tracking table in memory and journals every job
// transition here so `kura status` and `kura jobs` can read state from
// another process and a restarted run can pick up unfinished work. The
// database is a local record of in-flight and recent jobs, not a durable
// distributed queue.
//
// Schema changes bump schemaVersion in schema.go and add a forward migration.
// A database written by a newer kura is refused.
package queue
