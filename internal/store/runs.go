package store

import (
	"context"
	"fmt"
	"time"

	"vidbatch/internal/batch"
)

const timeLayout = time.RFC3339Nano

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Succeeded  int
	Failed     int
	Invalid    int
}

// Finished reports whether the run has been closed out.
func (r RunSummary) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// ItemRecord is one persisted item outcome.
type ItemRecord struct {
	RunID      string
	ItemID     string
	RecordRef  string
	Title      string
	State      string
	ExecuteID  string
	Attempts   int
	Worker     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// BeginRun inserts the run row before any items are processed.
func (s *Store) BeginRun(ctx context.Context, runID string, total int, startedAt time.Time) error {
	return s.execWithRetry(ctx,
		"INSERT INTO runs (id, started_at, total) VALUES (?, ?, ?)",
		runID, startedAt.UTC().Format(timeLayout), total,
	)
}

// RecordItem persists one item outcome under the run.
func (s *Store) RecordItem(ctx context.Context, runID string, result batch.ItemResult) error {
	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}
	return s.execWithRetry(ctx,
		`INSERT INTO item_results
		   (run_id, item_id, record_ref, title, state, execute_id, attempts, worker, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		result.Item.ID,
		result.Item.RecordRef,
		result.Item.Title,
		string(result.State),
		result.Handle.ExecuteID,
		result.Attempts,
		result.Worker,
		errText,
		formatTime(result.Started),
		formatTime(result.Finished),
	)
}

// FinishRun stamps the final counters and end timestamp onto the run row.
func (s *Store) FinishRun(ctx context.Context, report batch.Report) error {
	return s.execWithRetry(ctx,
		"UPDATE runs SET finished_at = ?, total = ?, succeeded = ?, failed = ?, invalid = ? WHERE id = ?",
		report.FinishedAt.UTC().Format(timeLayout),
		report.Total, report.Succeeded, report.Failed, report.Invalid,
		report.BatchID,
	)
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, COALESCE(finished_at, ''), total, succeeded, failed, invalid
		   FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var run RunSummary
		var started, finished string
		if err := rows.Scan(&run.ID, &started, &finished, &run.Total, &run.Succeeded, &run.Failed, &run.Invalid); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		out = append(out, run)
	}
	return out, rows.Err()
}

// RunItems returns the persisted outcomes for one run in insertion order.
func (s *Store) RunItems(ctx context.Context, runID string) ([]ItemRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, item_id, record_ref, title, state, execute_id, attempts, worker, error,
		        COALESCE(started_at, ''), COALESCE(finished_at, '')
		   FROM item_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query item results: %w", err)
	}
	defer rows.Close()

	var out []ItemRecord
	for rows.Next() {
		var rec ItemRecord
		var started, finished string
		if err := rows.Scan(&rec.RunID, &rec.ItemID, &rec.RecordRef, &rec.Title, &rec.State,
			&rec.ExecuteID, &rec.Attempts, &rec.Worker, &rec.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan item result: %w", err)
		}
		rec.StartedAt = parseTime(started)
		rec.FinishedAt = parseTime(finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs, cascading to their item rows.
func (s *Store) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	return s.execWithRetry(ctx,
		`DELETE FROM runs WHERE id NOT IN
		   (SELECT id FROM runs ORDER BY started_at DESC LIMIT ?)`, keep)
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ batch.Recorder = (*Store)(nil)
