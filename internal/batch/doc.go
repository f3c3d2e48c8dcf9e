// Package batch fans work items out to a bounded worker pool and folds
// per-item outcomes into an aggregate report. Workers communicate with the
// coordinator only through immutable result values; the report itself is
// written by a single goroutine.
package batch
