package lifi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/pkg/logger"
)

const (
	defaultBaseURL = "https://li.quest/v1"
	defaultTimeout = 60 * time.Second
)

// Option customises a Client.
type Option func(*Client)

// WithAPIKey sets the x-lifi-api-key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = strings.TrimSpace(key) }
}

// WithIntegrator sets the x-lifi-integrator header.
func WithIntegrator(name string) Option {
	return func(c *Client) { c.integrator = strings.TrimSpace(name) }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client talks to the LI.FI REST API.
type Client struct {
	baseURL    string
	apiKey     string
	integrator string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client for baseURL, defaulting to the public endpoint.
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.Named("lifi"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// APIError is the error body returned by the API.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("lifi api status %d (code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("lifi api status %d: %s", e.Status, e.Message)
}

// GetRoutes queries candidate routes for a transfer.
func (c *Client) GetRoutes(ctx context.Context, req RoutesRequest) (*RoutesResponse, error) {
	var out RoutesResponse
	if err := c.post(ctx, "/advanced/routes", req, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("routes fetched",
		slog.Int64("chain_id", req.FromChainID),
		slog.String("from_token", req.FromTokenAddress),
		slog.String("to_token", req.ToTokenAddress),
		slog.Int("routes", len(out.Routes)))
	return &out, nil
}

// GetStepTransaction populates the transaction request of a step.
func (c *Client) GetStepTransaction(ctx context.Context, step Step) (*Step, error) {
	step.Execution = nil
	var out Step
	if err := c.post(ctx, "/advanced/stepTransaction", step, &out); err != nil {
		return nil, err
	}
	if out.TransactionRequest == nil {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure, "lifi returned a step without transaction request")
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode lifi request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "build lifi request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-lifi-api-key", c.apiKey)
	}
	if c.integrator != "" {
		httpReq.Header.Set("x-lifi-integrator", c.integrator)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "lifi request "+path+" failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return xerrors.Wrap(xerrors.CodeUpstreamFailure, apiErr, "lifi request "+path+" rejected",
			xerrors.WithRetryable(resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "decode lifi response "+path)
	}
	return nil
}
