package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vidbatch/internal/jobs"
	"vidbatch/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// Config captures the runtime settings required to talk to the workflow API.
type Config struct {
	Token          string
	WorkflowID     string
	BaseURL        string
	TimeoutSeconds int
}

// Client wraps the asynchronous workflow-execution API: one call submits a
// run and returns a handle, another fetches the run history for that handle.
// The client performs network I/O only and holds no mutable state beyond
// its configuration.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a workflow API client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			Token:          strings.TrimSpace(cfg.Token),
			WorkflowID:     strings.TrimSpace(cfg.WorkflowID),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.coze.cn/v1"
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("coze request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type submitRequest struct {
	WorkflowID string            `json:"workflow_id"`
	Parameters jobs.SubmitParams `json:"parameters"`
	IsAsync    bool              `json:"is_async"`
}

type submitResponse struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	ExecuteID string `json:"execute_id"`
	DebugURL  string `json:"debug_url"`
}

// Submit starts an asynchronous workflow run and returns its handle.
// Transport failures and non-zero business codes both surface as
// services.ErrSubmission so the caller can fail the item without polling.
func (c *Client) Submit(ctx context.Context, params jobs.SubmitParams) (jobs.Handle, error) {
	var empty jobs.Handle
	if c.cfg.Token == "" {
		return empty, services.Wrap(services.ErrConfiguration, "coze", "submit", "api token required", nil)
	}
	if c.cfg.WorkflowID == "" {
		return empty, services.Wrap(services.ErrConfiguration, "coze", "submit", "workflow id required", nil)
	}

	payload := submitRequest{
		WorkflowID: c.cfg.WorkflowID,
		Parameters: params,
		IsAsync:    true,
	}
	body, err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/workflow/run", payload)
	if err != nil {
		return empty, services.Wrap(services.ErrSubmission, "coze", "submit", "", err)
	}

	var parsed submitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return empty, services.Wrap(services.ErrSubmission, "coze", "submit", "decode response", err)
	}
	if parsed.Code != 0 {
		return empty, services.Wrap(services.ErrSubmission, "coze", "submit",
			fmt.Sprintf("api code %d: %s", parsed.Code, parsed.Msg), nil)
	}
	if strings.TrimSpace(parsed.ExecuteID) == "" {
		return empty, services.Wrap(services.ErrSubmission, "coze", "submit", "response missing execute_id", nil)
	}

	return jobs.Handle{ExecuteID: parsed.ExecuteID, WorkflowID: c.cfg.WorkflowID}, nil
}

type runHistoryResponse struct {
	Code int                `json:"code"`
	Msg  string             `json:"msg"`
	Data []runHistoryRecord `json:"data"`
}

type runHistoryRecord struct {
	ExecuteStatus string `json:"execute_status"`
	Output        string `json:"output"`
	ErrorCode     string `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

// Poll fetches the latest run-history record for the handle and maps the
// remote status string onto the closed state enumeration. Transport-level
// failures surface as services.ErrTransient; an explicit remote failure is
// a successful poll whose state is StateFailed.
func (c *Client) Poll(ctx context.Context, handle jobs.Handle) (jobs.PollStatus, error) {
	var empty jobs.PollStatus
	if handle.ExecuteID == "" {
		return empty, services.Wrap(services.ErrValidation, "coze", "poll", "empty execute id", nil)
	}

	url := fmt.Sprintf("%s/workflows/%s/run_histories/%s", c.cfg.BaseURL, handle.WorkflowID, handle.ExecuteID)
	body, err := c.doJSON(ctx, http.MethodGet, url, nil)
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "coze", "poll", "", err)
	}

	var parsed runHistoryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return empty, services.Wrap(services.ErrTransient, "coze", "poll", "decode response", err)
	}
	if parsed.Code != 0 {
		return empty, services.Wrap(services.ErrTransient, "coze", "poll",
			fmt.Sprintf("api code %d: %s", parsed.Code, parsed.Msg), nil)
	}
	if len(parsed.Data) == 0 {
		// The run exists but has no history record yet; treat as still running.
		return jobs.PollStatus{State: jobs.StateRunning}, nil
	}

	record := parsed.Data[0]
	return mapRecord(record), nil
}

func mapRecord(record runHistoryRecord) jobs.PollStatus {
	switch strings.ToLower(strings.TrimSpace(record.ExecuteStatus)) {
	case "success":
		output := strings.TrimSpace(record.Output)
		if output == "" {
			return jobs.PollStatus{
				State:       jobs.StateFailed,
				ErrorDetail: "workflow succeeded without output",
			}
		}
		return jobs.PollStatus{State: jobs.StateSucceeded, Output: json.RawMessage(output)}
	case "fail", "failed":
		detail := strings.TrimSpace(record.ErrorMessage)
		if detail == "" {
			detail = "workflow execution failed"
		}
		return jobs.PollStatus{
			State:       jobs.StateFailed,
			ErrorCode:   strings.TrimSpace(record.ErrorCode),
			ErrorDetail: detail,
		}
	default:
		// "Running" and any unrecognized status keep the job in flight; the
		// attempt budget bounds how long that can continue.
		return jobs.PollStatus{State: jobs.StateRunning}
	}
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

var _ jobs.Client = (*Client)(nil)
