// Package scheduler runs named periodic jobs on a cron engine with a
// small worker pool. Schedules are upserted by name, each job gets a
// per-run timeout, and the overlap policy defaults to skip-if-running:
// a tick that fires while the previous run is still in flight is
// dropped, not queued.
package scheduler
