// Package store persists batch run history in a local SQLite database:
// one row per run plus one row per item outcome, pruned to a configured
// number of recent runs.
package store
