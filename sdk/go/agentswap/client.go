// Package agentswap is a Go client for the AgentSwap direct client HTTP API.
package agentswap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. Calls that wait for completion add their wait on top.
const DefaultHTTPTimeout = 15 * time.Second

// Task statuses reported by the server.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Client wraps the HTTP interactions with the AgentSwap REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Message is the payload sent to an agent.
type Message struct {
	// ID is an optional idempotency key; resubmitting it returns the existing task.
	ID     string `json:"id,omitempty"`
	RoomID string `json:"room_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Text   string `json:"text"`
	Action string `json:"action,omitempty"`
}

// Result is the agent reply stored on a finished task.
type Result struct {
	MessageID string         `json:"message_id,omitempty"`
	Text      string         `json:"text"`
	Action    string         `json:"action,omitempty"`
	Success   bool           `json:"success"`
	Content   map[string]any `json:"content,omitempty"`
}

// Task is the server view of a queued message.
type Task struct {
	ID         string  `json:"id"`
	AgentID    string  `json:"agent_id"`
	RoomID     string  `json:"room_id,omitempty"`
	UserID     string  `json:"user_id,omitempty"`
	Text       string  `json:"text"`
	Action     string  `json:"action,omitempty"`
	Status     string  `json:"status"`
	Attempts   int     `json:"attempts"`
	MaxRetries int     `json:"max_retries"`
	LastError  string  `json:"last_error,omitempty"`
	ErrorCode  string  `json:"error_code,omitempty"`
	Result     *Result `json:"result,omitempty"`
	CreatedAt  int64   `json:"created_at"`
	UpdatedAt  int64   `json:"updated_at"`
}

// Done reports whether the task reached a terminal status.
func (t Task) Done() bool {
	return t.Status == StatusSucceeded || t.Status == StatusFailed
}

// Agent describes a running agent.
type Agent struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Clients  []string `json:"clients"`
	Actions  []string `json:"actions"`
}

// TaskQuery filters ListTasks and Stats.
type TaskQuery struct {
	AgentID  string
	RoomID   string
	Action   string
	Statuses []string
	Query    string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

func (q TaskQuery) values() url.Values {
	v := url.Values{}
	if q.AgentID != "" {
		v.Set("agent", q.AgentID)
	}
	if q.RoomID != "" {
		v.Set("room", q.RoomID)
	}
	if q.Action != "" {
		v.Set("action", q.Action)
	}
	if !q.Since.IsZero() {
		v.Set("since", q.Since.UTC().Format(time.RFC3339))
	}
	if !q.Until.IsZero() {
		v.Set("until", q.Until.UTC().Format(time.RFC3339))
	}
	if len(q.Statuses) > 0 {
		v.Set("status", strings.Join(q.Statuses, ","))
	}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// TaskStats aggregates task counts.
type TaskStats struct {
	Total           int   `json:"total"`
	Pending         int   `json:"pending"`
	Running         int   `json:"running"`
	Succeeded       int   `json:"succeeded"`
	Failed          int   `json:"failed"`
	OldestUpdatedAt int64 `json:"oldest_updated_at"`
	NewestUpdatedAt int64 `json:"newest_updated_at"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("agentswap api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("agentswap api error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NewClient instantiates a client for the AgentSwap API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SendMessage queues msg for the agent identified by id, name or username.
// With wait > 0 the server holds the request until the task finishes or the
// wait elapses; the returned task may still be pending in the latter case.
func (c *Client) SendMessage(ctx context.Context, agent string, msg Message, wait time.Duration) (Task, error) {
	if strings.TrimSpace(agent) == "" {
		return Task{}, errors.New("agentswap: agent is required")
	}
	query := url.Values{}
	if wait > 0 {
		query.Set("wait", wait.String())
	}
	var task Task
	endpoint := "/api/v1/agents/" + agent + "/messages"
	if err := c.do(ctx, http.MethodPost, endpoint, query, msg, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// GetTask fetches task details by identifier.
func (c *Client) GetTask(ctx context.Context, taskID string) (Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+taskID, nil, nil, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// WaitTask polls GetTask until the task is done or ctx ends.
func (c *Client) WaitTask(ctx context.Context, taskID string, interval time.Duration) (Task, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		task, err := c.GetTask(ctx, taskID)
		if err != nil {
			return Task{}, err
		}
		if task.Done() {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ListTasks returns tasks matching q, most recently updated first.
func (c *Client) ListTasks(ctx context.Context, q TaskQuery) ([]Task, error) {
	var out struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Stats returns aggregate counts for tasks matching q.
func (c *Client) Stats(ctx context.Context, q TaskQuery) (TaskStats, error) {
	var stats TaskStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/stats", q.values(), nil, &stats); err != nil {
		return TaskStats{}, err
	}
	return stats, nil
}

// ListAgents returns the agents running in the server process.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var out struct {
		Agents []Agent `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/agents", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

// Health checks the server liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, endpoint)
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: apiErr})
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
