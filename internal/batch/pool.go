package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vidbatch/internal/jobs"
	"vidbatch/internal/logging"
	"vidbatch/internal/services"
)

// Processor runs one work item to a terminal state. Implementations block
// for the full submit/poll lifetime of the item; the pool provides the
// bounded concurrency around them.
type Processor func(ctx context.Context, worker string, item WorkItem) ItemResult

// Pool executes work items on a bounded set of worker goroutines. Results
// are emitted in completion order, which matches submission order only when
// the pool has a single worker.
type Pool struct {
	size      int
	processor Processor
	logger    *slog.Logger
}

// PoolOption customizes pool behavior.
type PoolOption func(*Pool)

// WithPoolLogger attaches a logger for per-worker diagnostics.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool constructs a pool with the given worker count. Sizes below one
// are clamped to one.
func NewPool(size int, processor Processor, opts ...PoolOption) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		size:      size,
		processor: processor,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the number of worker slots.
func (p *Pool) Size() int {
	return p.size
}

// Run fans the items out to the worker slots and returns a channel carrying
// exactly one result per item. The channel is closed once every item has
// produced its result. Cancelling ctx stops workers from picking up further
// items; items never started still produce a result marked failed so the
// caller's accounting stays complete.
func (p *Pool) Run(ctx context.Context, items []WorkItem) <-chan ItemResult {
	feed := make(chan WorkItem)
	results := make(chan ItemResult, len(items))

	var wg sync.WaitGroup
	wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		worker := fmt.Sprintf("worker-%d", i+1)
		go func() {
			defer wg.Done()
			for item := range feed {
				results <- p.runOne(ctx, worker, item)
			}
		}()
	}

	go func() {
		defer close(feed)
		for _, item := range items {
			// Once cancelled, every undelivered item is reported failed so
			// the caller's accounting stays complete.
			if err := ctx.Err(); err != nil {
				results <- canceledResult(item, err)
				continue
			}
			select {
			case feed <- item:
			case <-ctx.Done():
				results <- canceledResult(item, ctx.Err())
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// runOne executes the processor for a single item, converting panics into a
// failed result so one item can never take down its siblings.
func (p *Pool) runOne(ctx context.Context, worker string, item WorkItem) (result ItemResult) {
	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("worker panic recovered",
				logging.String(logging.FieldItemID, item.ID),
				logging.Any("panic", rec),
			)
			result = ItemResult{
				Item:     item,
				State:    jobs.StateFailed,
				Err:      services.Wrap(services.ErrFatal, "batch", "process", fmt.Sprintf("panic while processing item: %v", rec), nil),
				Worker:   worker,
				Started:  started,
				Finished: time.Now(),
			}
		}
	}()

	result = p.processor(ctx, worker, item)
	result.Item = item
	result.Worker = worker
	if result.Started.IsZero() {
		result.Started = started
	}
	if result.Finished.IsZero() {
		result.Finished = time.Now()
	}
	if !result.State.IsTerminal() {
		result.State = jobs.StateFailed
		if result.Err == nil {
			result.Err = services.Wrap(services.ErrTransient, "batch", "process", "processor returned without a terminal state", nil)
		}
	}
	return result
}

func canceledResult(item WorkItem, cause error) ItemResult {
	now := time.Now()
	return ItemResult{
		Item:     item,
		State:    jobs.StateFailed,
		Err:      services.Wrap(services.ErrTransient, "batch", "process", "batch stopped before item started", cause),
		Started:  now,
		Finished: now,
	}
}
