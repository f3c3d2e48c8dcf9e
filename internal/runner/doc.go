// Package runner wires one batch run end to end: preflight, work-item
// listing, the worker pool and poller, draft assembly, source status
// updates, and run history. A file lock keeps runs exclusive per state
// directory.
package runner
