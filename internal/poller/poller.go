package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vidbatch/internal/jobs"
	"vidbatch/internal/logging"
	"vidbatch/internal/services"
)

// Outcome is the terminal result of driving one job: exactly one terminal
// state, the remote output when succeeded, and the handle for traceability.
type Outcome struct {
	State    jobs.State
	Output   json.RawMessage
	Err      error
	Handle   jobs.Handle
	Attempts int
}

// Poller drives a single job through submit and repeated polls until a
// terminal state. The state transition logic lives in step; Run owns the
// inter-poll sleep so tests can exercise the machine without real delays.
type Poller struct {
	client      jobs.Client
	classifier  *jobs.FatalClassifier
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
	sleeper     func(context.Context, time.Duration) error
}

// Option customizes poller behavior.
type Option func(*Poller)

// WithSleeper overrides how inter-poll delays are performed (used in tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(p *Poller) {
		if sleeper != nil {
			p.sleeper = sleeper
		}
	}
}

// WithLogger attaches a logger for per-attempt diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New constructs a poller over the given client. interval is the fixed delay
// between polls and maxAttempts bounds how many polls are issued before the
// job is declared timed out.
func New(client jobs.Client, classifier *jobs.FatalClassifier, interval time.Duration, maxAttempts int, opts ...Option) *Poller {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	p := &Poller{
		client:      client,
		classifier:  classifier,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logging.NewNop(),
		sleeper:     sleepWithContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// state carries the machine between steps. Terminal is reached when
// phase.IsTerminal(); at most one transition into a terminal phase occurs.
type state struct {
	phase    jobs.State
	handle   jobs.Handle
	attempts int
	output   json.RawMessage
	err      error
}

// Run submits the job and polls it to a terminal state. It always returns
// an outcome; it never returns early without one.
func (p *Poller) Run(ctx context.Context, params jobs.SubmitParams) Outcome {
	st := state{phase: jobs.StatePending}

	for {
		st = p.step(ctx, st, params)
		if st.phase.IsTerminal() {
			return Outcome{
				State:    st.phase,
				Output:   st.output,
				Err:      st.err,
				Handle:   st.handle,
				Attempts: st.attempts,
			}
		}
		if st.attempts >= p.maxAttempts {
			// Budget exhausted without a terminal remote status.
			return Outcome{
				State:    jobs.StateTimedOut,
				Err:      services.Wrap(services.ErrTimeout, "poller", "poll", fmt.Sprintf("no terminal status after %d attempts", st.attempts), nil),
				Handle:   st.handle,
				Attempts: st.attempts,
			}
		}
		if err := p.sleeper(ctx, p.interval); err != nil {
			return Outcome{
				State:    jobs.StateFailed,
				Err:      services.Wrap(services.ErrTransient, "poller", "wait", "interrupted between polls", err),
				Handle:   st.handle,
				Attempts: st.attempts,
			}
		}
	}
}

// step performs exactly one transition: Pending submits, Submitted/Running
// polls once. It never sleeps.
func (p *Poller) step(ctx context.Context, st state, params jobs.SubmitParams) state {
	switch st.phase {
	case jobs.StatePending:
		handle, err := p.client.Submit(ctx, params)
		if err != nil {
			st.phase = jobs.StateFailed
			st.err = err
			return st
		}
		p.logger.Info("job submitted", logging.String(logging.FieldExecuteID, handle.ExecuteID))
		st.phase = jobs.StateSubmitted
		st.handle = handle
		return st

	case jobs.StateSubmitted, jobs.StateRunning:
		st.attempts++
		status, err := p.client.Poll(ctx, st.handle)
		if err != nil {
			return p.afterPollError(st, err)
		}
		return p.afterPollStatus(st, status)

	default:
		// Terminal phases never re-enter step.
		return st
	}
}

func (p *Poller) afterPollError(st state, err error) state {
	if p.classifier.IsFatal(err.Error(), "") {
		st.phase = jobs.StateFailed
		st.err = services.Wrap(services.ErrFatal, "poller", "poll", "fatal transport condition", err)
		return st
	}
	if !services.IsRetryable(err) {
		st.phase = jobs.StateFailed
		st.err = err
		return st
	}
	p.logger.Warn("poll attempt failed",
		logging.Int(logging.FieldAttempt, st.attempts),
		logging.String(logging.FieldExecuteID, st.handle.ExecuteID),
		logging.Error(err),
	)
	st.phase = jobs.StateRunning
	st.err = err
	return st
}

func (p *Poller) afterPollStatus(st state, status jobs.PollStatus) state {
	switch status.State {
	case jobs.StateSucceeded:
		st.phase = jobs.StateSucceeded
		st.output = status.Output
		st.err = nil
		return st
	case jobs.StateFailed:
		st.phase = jobs.StateFailed
		if p.classifier.IsFatal(status.ErrorDetail, status.ErrorCode) {
			st.err = services.Wrap(services.ErrFatal, "poller", "poll", describeRemoteError(status), nil)
		} else {
			st.err = errors.New(describeRemoteError(status))
		}
		return st
	default:
		st.phase = jobs.StateRunning
		st.err = nil
		return st
	}
}

func describeRemoteError(status jobs.PollStatus) string {
	if status.ErrorCode != "" {
		return fmt.Sprintf("remote failure %s: %s", status.ErrorCode, status.ErrorDetail)
	}
	return "remote failure: " + status.ErrorDetail
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		return errors.New("nil context")
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
