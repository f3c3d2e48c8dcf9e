package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"vidbatch/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultPageSize    = 100

	// Tokens are refreshed five minutes before the server-reported expiry.
	tokenExpirySlack = 5 * time.Minute
)

// Config captures the runtime settings for the bitable API.
type Config struct {
	AppID          string
	AppSecret      string
	AppToken       string
	BaseURL        string
	TimeoutSeconds int
}

// Client is a low-level bitable API client: tenant token management,
// record search with pagination, and record updates. One instance is safe
// for concurrent use; the cached token is guarded by a mutex.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
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

// NewClient constructs a bitable API client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			AppID:          strings.TrimSpace(cfg.AppID),
			AppSecret:      strings.TrimSpace(cfg.AppSecret),
			AppToken:       strings.TrimSpace(cfg.AppToken),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://open.feishu.cn/open-apis"
	}
	return client
}

// Record is one bitable row. Field values keep their raw JSON form; use
// FieldString to read text fields regardless of plain or rich-text shape.
type Record struct {
	RecordID string                     `json:"record_id"`
	Fields   map[string]json.RawMessage `json:"fields"`
}

// FieldString extracts a text value from the named field. Bitable returns
// plain strings for some field types and rich-text segment arrays for
// others; both collapse to their concatenated text.
func (r Record) FieldString(name string) string {
	raw, ok := r.Fields[name]
	if !ok {
		return ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return strings.TrimSpace(plain)
	}
	var segments []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &segments); err == nil {
		var b strings.Builder
		for _, seg := range segments {
			b.WriteString(seg.Text)
		}
		return strings.TrimSpace(b.String())
	}
	return ""
}

// Filter narrows a record search. The zero value matches everything.
type Filter struct {
	Conjunction string      `json:"conjunction"`
	Conditions  []Condition `json:"conditions"`
}

// Condition is one field predicate inside a filter.
type Condition struct {
	FieldName string   `json:"field_name"`
	Operator  string   `json:"operator"`
	Value     []string `json:"value"`
}

// StatusFilter builds the standard single-condition filter matching rows
// whose status field holds the given value.
func StatusFilter(statusField, status string) *Filter {
	return &Filter{
		Conjunction: "and",
		Conditions: []Condition{
			{FieldName: statusField, Operator: "is", Value: []string{status}},
		},
	}
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

// tenantAccessToken returns a valid tenant token, fetching a fresh one when
// the cached token is missing or near expiry.
func (c *Client) tenantAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	if c.cfg.AppID == "" || c.cfg.AppSecret == "" {
		return "", services.Wrap(services.ErrConfiguration, "feishu", "auth", "app id and secret required", nil)
	}

	payload := map[string]string{"app_id": c.cfg.AppID, "app_secret": c.cfg.AppSecret}
	body, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/auth/v3/tenant_access_token/internal", "", payload)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "feishu", "auth", "", err)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(services.ErrTransient, "feishu", "auth", "decode response", err)
	}
	if parsed.Code != 0 {
		return "", services.Wrap(services.ErrConfiguration, "feishu", "auth",
			fmt.Sprintf("api code %d: %s", parsed.Code, parsed.Msg), nil)
	}

	expire := parsed.Expire
	if expire <= 0 {
		expire = 3600
	}
	c.token = parsed.TenantAccessToken
	c.tokenExpiry = c.now().Add(time.Duration(expire)*time.Second - tokenExpirySlack)
	return c.token, nil
}

// HealthCheck verifies the credentials by fetching a tenant token.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.tenantAccessToken(ctx)
	return err
}

type searchRequest struct {
	PageSize  int     `json:"page_size"`
	PageToken string  `json:"page_token,omitempty"`
	Filter    *Filter `json:"filter,omitempty"`
}

type searchResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Items     []Record `json:"items"`
		HasMore   bool     `json:"has_more"`
		PageToken string   `json:"page_token"`
	} `json:"data"`
}

// SearchRecords fetches every record in the table matching the filter,
// following pagination until exhausted.
func (c *Client) SearchRecords(ctx context.Context, tableID string, filter *Filter) ([]Record, error) {
	if strings.TrimSpace(tableID) == "" {
		return nil, services.Wrap(services.ErrValidation, "feishu", "search", "empty table id", nil)
	}
	token, err := c.tenantAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/bitable/v1/apps/%s/tables/%s/records/search", c.cfg.BaseURL, c.cfg.AppToken, tableID)
	var all []Record
	pageToken := ""
	for {
		payload := searchRequest{PageSize: defaultPageSize, PageToken: pageToken, Filter: filter}
		body, err := c.do(ctx, http.MethodPost, url, token, payload)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "feishu", "search", "", err)
		}
		var parsed searchResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, services.Wrap(services.ErrTransient, "feishu", "search", "decode response", err)
		}
		if parsed.Code != 0 {
			return nil, services.Wrap(services.ErrTransient, "feishu", "search",
				fmt.Sprintf("api code %d: %s", parsed.Code, parsed.Msg), nil)
		}
		all = append(all, parsed.Data.Items...)
		if !parsed.Data.HasMore || parsed.Data.PageToken == "" {
			return all, nil
		}
		pageToken = parsed.Data.PageToken
	}
}

type updateResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// UpdateRecord writes the given field values onto one record.
func (c *Client) UpdateRecord(ctx context.Context, tableID, recordID string, fields map[string]any) error {
	if strings.TrimSpace(recordID) == "" {
		return services.Wrap(services.ErrValidation, "feishu", "update", "empty record id", nil)
	}
	token, err := c.tenantAccessToken(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bitable/v1/apps/%s/tables/%s/records/%s", c.cfg.BaseURL, c.cfg.AppToken, tableID, recordID)
	payload := map[string]any{"fields": fields}
	body, err := c.do(ctx, http.MethodPut, url, token, payload)
	if err != nil {
		return services.Wrap(services.ErrTransient, "feishu", "update", "", err)
	}
	var parsed updateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return services.Wrap(services.ErrTransient, "feishu", "update", "decode response", err)
	}
	if parsed.Code != 0 {
		return services.Wrap(services.ErrTransient, "feishu", "update",
			fmt.Sprintf("api code %d: %s", parsed.Code, parsed.Msg), nil)
	}
	return nil
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("feishu request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (c *Client) do(ctx context.Context, method, url, bearer string, payload any) ([]byte, error) {
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
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
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
