package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vidbatch/internal/jobs"
	"vidbatch/internal/services"
)

func makeItems(n int) []WorkItem {
	items := make([]WorkItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, WorkItem{
			ID:      fmt.Sprintf("item-%02d", i),
			Content: fmt.Sprintf("content %d", i),
		})
	}
	return items
}

func succeedProcessor(delay time.Duration) Processor {
	return func(ctx context.Context, worker string, item WorkItem) ItemResult {
		if delay > 0 {
			time.Sleep(delay)
		}
		return ItemResult{State: jobs.StateSucceeded}
	}
}

func TestPoolSingleWorkerPreservesSubmissionOrder(t *testing.T) {
	items := makeItems(8)
	pool := NewPool(1, succeedProcessor(0))

	var got []string
	for result := range pool.Run(context.Background(), items) {
		got = append(got, result.Item.ID)
	}
	if len(got) != len(items) {
		t.Fatalf("results = %d, want %d", len(got), len(items))
	}
	for i, id := range got {
		if id != items[i].ID {
			t.Fatalf("result %d = %s, want %s (single worker must preserve order)", i, id, items[i].ID)
		}
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const workers = 3
	var mu sync.Mutex
	inFlight, peak := 0, 0

	processor := func(ctx context.Context, worker string, item WorkItem) ItemResult {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return ItemResult{State: jobs.StateSucceeded}
	}

	pool := NewPool(workers, processor)
	count := 0
	for range pool.Run(context.Background(), makeItems(12)) {
		count++
	}
	if count != 12 {
		t.Fatalf("results = %d, want 12", count)
	}
	mu.Lock()
	observed := peak
	mu.Unlock()
	if observed > workers {
		t.Fatalf("peak concurrency = %d, must not exceed %d", observed, workers)
	}
	if observed < 2 {
		t.Fatalf("peak concurrency = %d, expected overlap with %d workers and slow work", observed, workers)
	}
}

func TestPoolPanicIsolatedToSingleItem(t *testing.T) {
	processor := func(ctx context.Context, worker string, item WorkItem) ItemResult {
		if item.ID == "item-02" {
			panic("synthetic failure")
		}
		return ItemResult{State: jobs.StateSucceeded}
	}

	pool := NewPool(2, processor)
	results := make(map[string]ItemResult)
	for result := range pool.Run(context.Background(), makeItems(5)) {
		results[result.Item.ID] = result
	}
	if len(results) != 5 {
		t.Fatalf("results = %d, want 5 (panic must not lose sibling items)", len(results))
	}
	bad := results["item-02"]
	if bad.State != jobs.StateFailed {
		t.Fatalf("panicked item state = %s, want failed", bad.State)
	}
	if !errors.Is(bad.Err, services.ErrFatal) {
		t.Fatalf("panicked item error = %v, want fatal marker", bad.Err)
	}
	for id, result := range results {
		if id == "item-02" {
			continue
		}
		if result.State != jobs.StateSucceeded {
			t.Fatalf("sibling %s state = %s, want succeeded", id, result.State)
		}
	}
}

func TestPoolCancellationStillYieldsOneResultPerItem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int64
	release := make(chan struct{})

	processor := func(ctx context.Context, worker string, item WorkItem) ItemResult {
		started.Add(1)
		<-release
		return ItemResult{State: jobs.StateSucceeded}
	}

	pool := NewPool(2, processor)
	out := pool.Run(ctx, makeItems(6))

	for started.Load() < 2 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	close(release)

	count, failed := 0, 0
	for result := range out {
		count++
		if result.State == jobs.StateFailed {
			failed++
		}
	}
	if count != 6 {
		t.Fatalf("results = %d, want 6 (cancelled items still need outcomes)", count)
	}
	if failed == 0 {
		t.Fatal("expected at least one item marked failed after cancellation")
	}
}

func TestPoolNonTerminalProcessorResultIsCoerced(t *testing.T) {
	processor := func(ctx context.Context, worker string, item WorkItem) ItemResult {
		return ItemResult{State: jobs.StateRunning}
	}

	pool := NewPool(1, processor)
	for result := range pool.Run(context.Background(), makeItems(1)) {
		if result.State != jobs.StateFailed {
			t.Fatalf("state = %s, want failed for non-terminal processor result", result.State)
		}
		if result.Err == nil {
			t.Fatal("expected an error describing the coercion")
		}
	}
}
