package batch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vidbatch/internal/jobs"
	"vidbatch/internal/services"
)

// WorkItem is one unit of synthesis work drawn from the source table. It is
// immutable for the duration of a batch run; workers receive copies.
type WorkItem struct {
	ID          string
	RecordRef   string
	Content     string
	Title       string
	ProjectName string
	DigitalNo   string
	VoiceID     string
	Account     string
}

// Validate reports whether the item carries the fields a submission needs.
func (w WorkItem) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return services.Wrap(services.ErrValidation, "batch", "validate", "work item missing identifier", nil)
	}
	if strings.TrimSpace(w.Content) == "" {
		return services.Wrap(services.ErrValidation, "batch", "validate", fmt.Sprintf("work item %s has empty content", w.ID), nil)
	}
	return nil
}

// SubmitParams maps the item onto the remote workflow's payload shape.
func (w WorkItem) SubmitParams() jobs.SubmitParams {
	return jobs.SubmitParams{
		Content:   w.Content,
		DigitalNo: w.DigitalNo,
		VoiceID:   w.VoiceID,
		Title:     w.Title,
	}
}

// ItemResult is the single outcome produced for one work item. It is created
// exactly once by the worker that processed the item and never mutated after
// it is handed to the coordinator.
type ItemResult struct {
	Item     WorkItem
	State    jobs.State
	Output   json.RawMessage
	Handle   jobs.Handle
	Err      error
	Attempts int
	Worker   string
	Started  time.Time
	Finished time.Time
}

// Succeeded reports whether the item reached the successful terminal state.
func (r ItemResult) Succeeded() bool {
	return r.State == jobs.StateSucceeded
}

// ErrorMessage renders a human-readable description for the report's error
// list, empty for successful items.
func (r ItemResult) ErrorMessage() string {
	if r.Succeeded() {
		return ""
	}
	label := r.Item.Title
	if label == "" {
		label = r.Item.ID
	}
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", label, r.Err)
	}
	return fmt.Sprintf("%s: %s", label, r.State)
}

// Report aggregates one batch run. Only the coordinator's drain loop writes
// to it, so no locking is needed.
type Report struct {
	BatchID    string
	Total      int
	Succeeded  int
	Failed     int
	Invalid    int
	Errors     []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// AllSucceeded reports whether every enumerated item succeeded.
func (r Report) AllSucceeded() bool {
	return r.Total > 0 && r.Succeeded == r.Total
}

// Duration returns the wall-clock span of the run.
func (r Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary renders a one-line digest suitable for logs and CLI output.
func (r Report) Summary() string {
	return fmt.Sprintf("total=%d succeeded=%d failed=%d invalid=%d elapsed=%s",
		r.Total, r.Succeeded, r.Failed, r.Invalid, r.Duration().Round(time.Second))
}
