package coze

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"vidbatch/internal/jobs"
	"vidbatch/internal/services"
)

func newTestClient(url string) *Client {
	return NewClient(Config{Token: "test-token", WorkflowID: "wf-1", BaseURL: url})
}

func TestSubmitReturnsHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workflow/run" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.IsAsync || req.WorkflowID != "wf-1" {
			t.Fatalf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(submitResponse{Code: 0, ExecuteID: "exec-42"})
	}))
	defer server.Close()

	handle, err := newTestClient(server.URL).Submit(context.Background(), jobs.SubmitParams{Content: "hello"})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if handle.ExecuteID != "exec-42" || handle.WorkflowID != "wf-1" {
		t.Fatalf("unexpected handle: %+v", handle)
	}
}

func TestSubmitBusinessErrorIsSubmissionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(submitResponse{Code: 4000, Msg: "invalid parameters"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Submit(context.Background(), jobs.SubmitParams{})
	if !errors.Is(err, services.ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
}

func TestSubmitMissingExecuteID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(submitResponse{Code: 0})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Submit(context.Background(), jobs.SubmitParams{})
	if !errors.Is(err, services.ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
}

func TestPollMapsStatuses(t *testing.T) {
	cases := []struct {
		name   string
		record runHistoryRecord
		want   jobs.State
	}{
		{"success", runHistoryRecord{ExecuteStatus: "Success", Output: `{"videoUrl":"u"}`}, jobs.StateSucceeded},
		{"success without output", runHistoryRecord{ExecuteStatus: "Success"}, jobs.StateFailed},
		{"failed", runHistoryRecord{ExecuteStatus: "Failed", ErrorCode: "720701001", ErrorMessage: "access plugin timed out"}, jobs.StateFailed},
		{"running", runHistoryRecord{ExecuteStatus: "Running"}, jobs.StateRunning},
		{"unknown status stays running", runHistoryRecord{ExecuteStatus: "Queued"}, jobs.StateRunning},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/workflows/wf-1/run_histories/exec-1" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			_ = json.NewEncoder(w).Encode(runHistoryResponse{Code: 0, Data: []runHistoryRecord{tc.record}})
		}))

		status, err := newTestClient(server.URL).Poll(context.Background(), jobs.Handle{ExecuteID: "exec-1", WorkflowID: "wf-1"})
		server.Close()
		if err != nil {
			t.Fatalf("%s: Poll returned error: %v", tc.name, err)
		}
		if status.State != tc.want {
			t.Fatalf("%s: state = %s, want %s", tc.name, status.State, tc.want)
		}
	}
}

func TestPollCarriesErrorCodeAndDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record := runHistoryRecord{ExecuteStatus: "Failed", ErrorCode: "720701002", ErrorMessage: "server error"}
		_ = json.NewEncoder(w).Encode(runHistoryResponse{Code: 0, Data: []runHistoryRecord{record}})
	}))
	defer server.Close()

	status, err := newTestClient(server.URL).Poll(context.Background(), jobs.Handle{ExecuteID: "exec-1", WorkflowID: "wf-1"})
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if status.ErrorCode != "720701002" || status.ErrorDetail != "server error" {
		t.Fatalf("error fields not mapped: %+v", status)
	}
}

func TestPollEmptyHistoryIsStillRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(runHistoryResponse{Code: 0})
	}))
	defer server.Close()

	status, err := newTestClient(server.URL).Poll(context.Background(), jobs.Handle{ExecuteID: "exec-1", WorkflowID: "wf-1"})
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if status.State != jobs.StateRunning {
		t.Fatalf("expected running, got %s", status.State)
	}
}

func TestPollTransportErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Poll(context.Background(), jobs.Handle{ExecuteID: "exec-1", WorkflowID: "wf-1"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestPollBusinessErrorBodyIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(runHistoryResponse{Code: 500, Msg: "rate limited"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Poll(context.Background(), jobs.Handle{ExecuteID: "exec-1", WorkflowID: "wf-1"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
