package batch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"vidbatch/internal/jobs"
	"vidbatch/internal/poller"
)

type recordingUpdater struct {
	mu      sync.Mutex
	updates []ItemResult
	err     error
}

func (u *recordingUpdater) UpdateStatus(ctx context.Context, result ItemResult) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.updates = append(u.updates, result)
	return u.err
}

type recordingRecorder struct {
	mu      sync.Mutex
	records []ItemResult
}

func (r *recordingRecorder) RecordItem(ctx context.Context, batchID string, result ItemResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, result)
	return nil
}

func stateProcessor(states map[string]jobs.State) Processor {
	return func(ctx context.Context, worker string, item WorkItem) ItemResult {
		state, ok := states[item.ID]
		if !ok {
			state = jobs.StateSucceeded
		}
		result := ItemResult{State: state}
		if state != jobs.StateSucceeded {
			result.Err = errors.New("synthetic failure")
		}
		return result
	}
}

func TestExecuteAccountsForEveryItem(t *testing.T) {
	items := []WorkItem{
		{ID: "a", Content: "first"},
		{ID: "b", Content: ""},
		{ID: "c", Content: "third"},
		{ID: "d", Content: "fourth"},
	}
	processor := stateProcessor(map[string]jobs.State{"d": jobs.StateFailed})
	coord := NewCoordinator(NewPool(2, processor))

	report := coord.Execute(context.Background(), "run-1", items)
	if report.Total != 4 {
		t.Fatalf("total = %d, want 4", report.Total)
	}
	if report.Succeeded+report.Failed+report.Invalid != report.Total {
		t.Fatalf("counts do not add up: %s", report.Summary())
	}
	if report.Invalid != 1 {
		t.Fatalf("invalid = %d, want 1", report.Invalid)
	}
	if report.Failed != 1 {
		t.Fatalf("failed = %d, want 1", report.Failed)
	}
	if report.Succeeded != 2 {
		t.Fatalf("succeeded = %d, want 2", report.Succeeded)
	}
	if len(report.Errors) != 2 {
		t.Fatalf("errors = %d, want 2", len(report.Errors))
	}
	if report.AllSucceeded() {
		t.Fatal("AllSucceeded must be false when items failed")
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Fatal("finish timestamp precedes start")
	}
}

func TestExecuteProgressIsMonotonic(t *testing.T) {
	items := makeItems(6)
	items = append(items, WorkItem{ID: "empty"})

	var mu sync.Mutex
	var seen []int
	progress := func(message string, completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		if total != len(items) {
			t.Errorf("total = %d, want %d", total, len(items))
		}
		seen = append(seen, completed)
	}

	coord := NewCoordinator(NewPool(3, succeedProcessor(time.Millisecond)), WithProgress(progress))
	coord.Execute(context.Background(), "run-2", items)

	if len(seen) != len(items) {
		t.Fatalf("progress calls = %d, want %d", len(seen), len(items))
	}
	for i, completed := range seen {
		if completed != i+1 {
			t.Fatalf("progress[%d] = %d, want %d (must increase monotonically)", i, completed, i+1)
		}
	}
}

func TestExecuteSideEffectsRunOncePerItem(t *testing.T) {
	updater := &recordingUpdater{}
	recorder := &recordingRecorder{}
	coord := NewCoordinator(
		NewPool(2, succeedProcessor(0)),
		WithSourceUpdater(updater),
		WithRecorder(recorder),
	)

	report := coord.Execute(context.Background(), "run-3", makeItems(5))
	if report.Succeeded != 5 {
		t.Fatalf("succeeded = %d, want 5", report.Succeeded)
	}
	if !report.AllSucceeded() {
		t.Fatalf("AllSucceeded must hold for a clean batch: %s", report.Summary())
	}
	if len(updater.updates) != 5 {
		t.Fatalf("updates = %d, want 5", len(updater.updates))
	}
	if len(recorder.records) != 5 {
		t.Fatalf("records = %d, want 5", len(recorder.records))
	}
}

func TestExecuteUpdaterFailureDoesNotAbortBatch(t *testing.T) {
	updater := &recordingUpdater{err: errors.New("source unavailable")}
	coord := NewCoordinator(NewPool(1, succeedProcessor(0)), WithSourceUpdater(updater))

	report := coord.Execute(context.Background(), "run-4", makeItems(3))
	if report.Succeeded != 3 {
		t.Fatalf("succeeded = %d, want 3 (updater failures are non-fatal)", report.Succeeded)
	}
}

// scenarioClient scripts per-item remote behavior for the end-to-end
// coordinator/poller path.
type scenarioClient struct {
	polls []pollReply
	calls int
}

type pollReply struct {
	status jobs.PollStatus
	err    error
}

func (c *scenarioClient) Submit(ctx context.Context, params jobs.SubmitParams) (jobs.Handle, error) {
	return jobs.Handle{ExecuteID: "exec", WorkflowID: "wf"}, nil
}

func (c *scenarioClient) Poll(ctx context.Context, handle jobs.Handle) (jobs.PollStatus, error) {
	var reply pollReply
	if c.calls < len(c.polls) {
		reply = c.polls[c.calls]
	} else if len(c.polls) > 0 {
		reply = c.polls[len(c.polls)-1]
	}
	c.calls++
	return reply.status, reply.err
}

func TestExecuteThreeItemScenario(t *testing.T) {
	classifier := jobs.NewFatalClassifier([]string{"timeout", "access plugin"}, []string{"720701001"})
	clients := map[string]*scenarioClient{
		"A": {polls: []pollReply{
			{status: jobs.PollStatus{State: jobs.StateRunning}},
			{status: jobs.PollStatus{State: jobs.StateSucceeded, Output: json.RawMessage(`{"video":"a"}`)}},
		}},
		"B": {polls: []pollReply{
			{status: jobs.PollStatus{State: jobs.StateFailed, ErrorDetail: "Access plugin server url request failed"}},
		}},
		"C": {polls: []pollReply{
			{status: jobs.PollStatus{State: jobs.StateRunning}},
		}},
	}

	noSleep := func(context.Context, time.Duration) error { return nil }
	processor := func(ctx context.Context, worker string, item WorkItem) ItemResult {
		p := poller.New(clients[item.ID], classifier, time.Second, 5, poller.WithSleeper(noSleep))
		outcome := p.Run(ctx, item.SubmitParams())
		return ItemResult{
			State:    outcome.State,
			Output:   outcome.Output,
			Handle:   outcome.Handle,
			Err:      outcome.Err,
			Attempts: outcome.Attempts,
		}
	}

	items := []WorkItem{
		{ID: "A", Content: "alpha"},
		{ID: "B", Content: "beta"},
		{ID: "C", Content: "gamma"},
	}
	report := NewCoordinator(NewPool(3, processor)).Execute(context.Background(), "run-5", items)

	if report.Total != 3 || report.Succeeded != 1 {
		t.Fatalf("unexpected report: %s", report.Summary())
	}
	if report.Failed != 2 {
		t.Fatalf("failed = %d, want 2 (fatal plus timed out)", report.Failed)
	}
	if clients["A"].calls != 2 {
		t.Fatalf("item A polls = %d, want 2", clients["A"].calls)
	}
	if clients["B"].calls != 1 {
		t.Fatalf("item B polls = %d, want 1 (fatal stops immediately)", clients["B"].calls)
	}
	if clients["C"].calls != 5 {
		t.Fatalf("item C polls = %d, want 5 (attempt budget)", clients["C"].calls)
	}

	var fatalMsg, timeoutMsg bool
	for _, msg := range report.Errors {
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "access plugin") {
			fatalMsg = true
		}
		if strings.Contains(lower, "attempts") || strings.Contains(lower, "timed_out") {
			timeoutMsg = true
		}
	}
	if !fatalMsg {
		t.Fatalf("errors missing fatal signature: %v", report.Errors)
	}
	if !timeoutMsg {
		t.Fatalf("errors missing timeout description: %v", report.Errors)
	}
}
