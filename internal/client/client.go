// ABOUTME: HTTP client for the cauldron-gateway API used by cauldron-admin
// ABOUTME: Wraps resty with bearer auth, JSON envelopes, and API error decoding

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/2389/cauldron-gateway/internal/envelope"
	"github.com/2389/cauldron-gateway/internal/orchestrator"
)

// DefaultTimeout bounds every non-streaming call.
const DefaultTimeout = 60 * time.Second

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client talks to one gateway.
type Client struct {
	http    *resty.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential on every call.
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.http.SetAuthToken(token)
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a client for the gateway at baseURL, e.g. "http://localhost:8000"
// or "http://localhost:8000/api/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:    resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.SetHeader("Accept", "application/json")
	return c
}

// Deploy deploys (or redeploys) an agent.
func (c *Client) Deploy(ctx context.Context, req orchestrator.DeployRequest) (*envelope.Envelope, error) {
	return c.envelope(ctx, "/agent/deploy", req)
}

// Stop tears an agent down.
func (c *Client) Stop(ctx context.Context, req orchestrator.AgentRequest) (*envelope.Envelope, error) {
	return c.envelope(ctx, "/agent/stop", req)
}

// Execute sends one prompt and returns the envelope carrying the answer.
func (c *Client) Execute(ctx context.Context, req orchestrator.ExecuteRequest) (*envelope.Envelope, error) {
	return c.envelope(ctx, "/agent/execute", req)
}

// NewSession opens a runtime session for an agent.
func (c *Client) NewSession(ctx context.Context, req orchestrator.AgentRequest) (*envelope.Envelope, error) {
	return c.envelope(ctx, "/session/new", req)
}

// RemoveSession deletes a runtime session.
func (c *Client) RemoveSession(ctx context.Context, req orchestrator.SessionRequest) (*envelope.Envelope, error) {
	return c.envelope(ctx, "/session/remove", req)
}

// ListSessions returns the session ids the gateway knows for a user, optionally
// narrowed to one agent.
func (c *Client) ListSessions(ctx context.Context, userID, agentName string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r := c.http.R().SetContext(ctx).SetQueryParam("user_id", userID)
	if agentName != "" {
		r.SetQueryParam("agent_name", agentName)
	}
	resp, err := r.Get("/session/list")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var out struct {
		SessionID []string `json:"session_id"`
	}
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out.SessionID, nil
}

// ListAgents returns the deployment service's agent listing unchanged.
func (c *Client) ListAgents(ctx context.Context, userID string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("user_id", userID).
		Get("/agent/user/{user_id}/agents")
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	var out json.RawMessage
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RequestCounts returns per-route request totals from the gateway's Prometheus.
func (c *Client) RequestCounts(ctx context.Context) ([]orchestrator.RequestCount, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().SetContext(ctx).Get("/prometheus/metrics/requests")
	if err != nil {
		return nil, fmt.Errorf("request counts: %w", err)
	}

	var out []orchestrator.RequestCount
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ready reports the gateway's readiness body ("ready").
func (c *Client) Ready(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().SetContext(ctx).SetHeader("Accept", "text/plain").Get("/health/ready")
	if err != nil {
		return "", fmt.Errorf("readiness: %w", err)
	}
	if resp.IsError() {
		return "", &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	}
	return strings.TrimSpace(resp.String()), nil
}

// envelope POSTs body to path and decodes the lifecycle envelope. A failed
// operation still comes back as an envelope with success_ind=false; only
// rejected requests (400, 401, 403) become an APIError.
func (c *Client) envelope(ctx context.Context, path string, body any) (*envelope.Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}

	var env envelope.Envelope
	if err := decode(resp, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// decode turns a resty response into out, or an APIError for non-2xx.
func decode(resp *resty.Response, out any) error {
	if resp.IsError() {
		return apiError(resp.StatusCode(), resp.Body())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decoding %s response: %w", resp.Request.URL, err)
	}
	return nil
}

// apiError pulls the {"error": "..."} message the gateway writes, falling
// back to the raw body.
func apiError(status int, body []byte) *APIError {
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{Status: status, Message: msg}
}
