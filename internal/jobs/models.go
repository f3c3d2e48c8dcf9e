package jobs

import (
	"context"
	"encoding/json"
	"strings"
)

// State represents the lifecycle of one remote job.
type State string

const (
	StatePending   State = "pending"
	StateSubmitted State = "submitted"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// IsTerminal reports whether no further transition can occur from the state.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut:
		return true
	default:
		return false
	}
}

// Handle identifies one submitted job on the remote service. It is owned
// exclusively by the poller instance that created it and never shared
// between workers.
type Handle struct {
	ExecuteID  string
	WorkflowID string
}

// SubmitParams carries the payload fields the remote workflow expects.
type SubmitParams struct {
	Content   string `json:"content"`
	DigitalNo string `json:"digitalNo"`
	VoiceID   string `json:"voiceId"`
	Title     string `json:"title"`
}

// PollStatus is one observation of a remote job, already mapped onto the
// closed State enumeration. Raw remote status strings never leave the
// client boundary.
type PollStatus struct {
	State       State
	Output      json.RawMessage
	ErrorCode   string
	ErrorDetail string
}

// Client is the synchronous submit/poll surface of the remote execution
// service.
type Client interface {
	Submit(ctx context.Context, params SubmitParams) (Handle, error)
	Poll(ctx context.Context, handle Handle) (PollStatus, error)
}

// FatalClassifier recognizes unrecoverable poll responses from configured
// message substrings and exact business codes. Substring matching on
// human-readable text is fragile by nature; the lists are configuration so
// operators can adjust them when the remote wording changes.
type FatalClassifier struct {
	keywords []string
	codes    map[string]struct{}
}

// NewFatalClassifier builds a classifier from keyword substrings and exact
// error codes.
func NewFatalClassifier(keywords, codes []string) *FatalClassifier {
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			normalized = append(normalized, kw)
		}
	}
	codeSet := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if code = strings.TrimSpace(code); code != "" {
			codeSet[code] = struct{}{}
		}
	}
	return &FatalClassifier{keywords: normalized, codes: codeSet}
}

// IsFatal reports whether the given error detail or business code marks the
// job as unrecoverable.
func (f *FatalClassifier) IsFatal(detail, code string) bool {
	if f == nil {
		return false
	}
	if code = strings.TrimSpace(code); code != "" {
		if _, ok := f.codes[code]; ok {
			return true
		}
	}
	lowered := strings.ToLower(detail)
	for _, kw := range f.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
