package preflight

import (
	"context"

	"vidbatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The batch runner refuses to start when any check fails; the CLI status
// command renders the full list.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Draft directory", cfg.Paths.DraftDir))
	results = append(results, CheckDirectoryAccess("Materials directory", cfg.Paths.MaterialsDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	if cfg.Batch.MinFreeGiB > 0 {
		results = append(results, CheckFreeSpace("Draft disk space", cfg.Paths.DraftDir, cfg.Batch.MinFreeGiB))
	}

	results = append(results, CheckCozeConfig(cfg.Coze))
	results = append(results, CheckFeishu(ctx, cfg.Feishu))

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Failures returns the subset of results that did not pass.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
