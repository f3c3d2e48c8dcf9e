package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vidbatch/internal/jobs"
	"vidbatch/internal/logging"
	"vidbatch/internal/naming"
)

// SourceUpdater pushes a terminal item outcome back to the originating
// record. Implementations are called outside the hot polling path, once per
// item, from the coordinator's drain goroutine.
type SourceUpdater interface {
	UpdateStatus(ctx context.Context, result ItemResult) error
}

// Recorder persists per-item outcomes for later inspection. Like the
// updater it runs on the drain goroutine only.
type Recorder interface {
	RecordItem(ctx context.Context, batchID string, result ItemResult) error
}

// ProgressFunc observes batch completion. completed increases monotonically
// from 1 to total across invocations.
type ProgressFunc func(message string, completed, total int)

// Coordinator owns a batch run: it partitions items, feeds the valid ones
// to the pool, and folds results into a report. Workers never touch the
// report; the single drain loop below is its only writer.
type Coordinator struct {
	pool     *Pool
	updater  SourceUpdater
	recorder Recorder
	progress ProgressFunc
	logger   *slog.Logger
	now      func() time.Time
}

// CoordinatorOption customizes coordinator behavior.
type CoordinatorOption func(*Coordinator)

// WithSourceUpdater enables status writes back to the work-item source.
func WithSourceUpdater(updater SourceUpdater) CoordinatorOption {
	return func(c *Coordinator) { c.updater = updater }
}

// WithRecorder enables run-history persistence.
func WithRecorder(recorder Recorder) CoordinatorOption {
	return func(c *Coordinator) { c.recorder = recorder }
}

// WithProgress attaches a per-item completion callback.
func WithProgress(fn ProgressFunc) CoordinatorOption {
	return func(c *Coordinator) { c.progress = fn }
}

// WithLogger attaches a logger for batch lifecycle events.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator constructs a coordinator over the given pool.
func NewCoordinator(pool *Pool, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		pool:   pool,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs one batch to completion and returns its report. Every
// enumerated item contributes exactly one outcome: invalid items are
// recorded up front without occupying a worker slot, the rest flow through
// the pool. The report is well-formed even when every item fails.
func (c *Coordinator) Execute(ctx context.Context, batchID string, items []WorkItem) Report {
	report := Report{
		BatchID:   batchID,
		Total:     len(items),
		StartedAt: c.now(),
	}
	c.logger.Info("batch started",
		logging.String(logging.FieldBatchID, batchID),
		logging.Int("items", len(items)),
		logging.Int("workers", c.pool.Size()),
	)

	valid := make([]WorkItem, 0, len(items))
	completed := 0
	for _, item := range items {
		if err := item.Validate(); err != nil {
			report.Invalid++
			completed++
			result := invalidResult(item, err, c.now())
			report.Errors = append(report.Errors, result.ErrorMessage())
			c.afterResult(ctx, batchID, result, completed, report.Total)
			continue
		}
		valid = append(valid, item)
	}

	for result := range c.pool.Run(ctx, valid) {
		completed++
		if result.Succeeded() {
			report.Succeeded++
		} else {
			report.Failed++
			report.Errors = append(report.Errors, result.ErrorMessage())
		}
		c.afterResult(ctx, batchID, result, completed, report.Total)
	}

	report.FinishedAt = c.now()
	c.logger.Info("batch finished",
		logging.String(logging.FieldBatchID, batchID),
		logging.String("summary", report.Summary()),
	)
	return report
}

// afterResult runs the per-item side effects: source status write, history
// record, progress callback. Failures here are logged, never fatal to the
// batch.
func (c *Coordinator) afterResult(ctx context.Context, batchID string, result ItemResult, completed, total int) {
	if c.updater != nil {
		if err := c.updater.UpdateStatus(ctx, result); err != nil {
			c.logger.Warn("source status update failed",
				logging.String(logging.FieldItemID, result.Item.ID),
				logging.Error(err),
			)
		}
	}
	if c.recorder != nil {
		if err := c.recorder.RecordItem(ctx, batchID, result); err != nil {
			c.logger.Warn("run history record failed",
				logging.String(logging.FieldItemID, result.Item.ID),
				logging.Error(err),
			)
		}
	}
	if c.progress != nil {
		c.progress(progressMessage(result), completed, total)
	}
}

func progressMessage(result ItemResult) string {
	label := result.Item.ID
	if result.Item.Title != "" {
		label = naming.DisplayTitle(result.Item.Title)
	}
	return fmt.Sprintf("%s: %s", label, result.State)
}

func invalidResult(item WorkItem, err error, now time.Time) ItemResult {
	return ItemResult{
		Item:     item,
		State:    jobs.StateFailed,
		Err:      err,
		Started:  now,
		Finished: now,
	}
}
