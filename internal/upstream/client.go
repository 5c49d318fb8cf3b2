// ABOUTME: HTTP client for the agent runtime and deployment services
// ABOUTME: Applies per-call timeouts and a circuit breaker per host, and raises TransportError on failures

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// DefaultTimeout bounds every upstream call unless overridden.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response body is kept for diagnostics.
const maxErrorBody = 64 << 10

var (
	errHandshakeTimeout = errors.New("stream handshake timed out")
	errStreamClosed     = errors.New("stream closed by consumer")
)

// Client issues JSON and streaming requests to upstream services. It is safe
// for concurrent use; the connection pool is shared across requests.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	breakerCfg BreakerSettings
	logger     *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*http.Response]
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the pooled http.Client. Its Timeout should be zero
// so streams are not cut off; the Client applies its own deadlines.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBreaker configures the circuit breaker.
func WithBreaker(settings BreakerSettings) Option {
	return func(c *Client) {
		c.breakerCfg = settings
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client with a pooled transport. Each upstream host:port gets
// its own breaker, so a failing runtime does not block the deployment service.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Transport: NewPooledTransport(PoolSettings{})},
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
		breakers:   make(map[string]*gobreaker.CircuitBreaker[*http.Response]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// breakerFor returns the breaker for host, creating it on first use.
func (c *Client) breakerFor(host string) *gobreaker.CircuitBreaker[*http.Response] {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.breakers[host]
	if !ok {
		cb = newBreaker("upstream "+host, c.breakerCfg, c.logger)
		c.breakers[host] = cb
	}
	return cb
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Post sends payload as JSON and returns the decoded JSON response.
func (c *Client) Post(ctx context.Context, url string, payload any) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, url, payload)
}

// Get fetches url and returns the decoded JSON response.
func (c *Client) Get(ctx context.Context, url string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, url, nil)
}

// Delete issues a DELETE and returns the decoded JSON response.
func (c *Client) Delete(ctx context.Context, url string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodDelete, url, nil)
}

// OpenStream posts payload and returns the response body for incremental
// reading. The timeout covers connecting and receiving response headers; the
// body lives until ctx is done or the caller closes it. Closing the body
// releases the underlying connection.
func (c *Client) OpenStream(ctx context.Context, url string, payload any) (io.ReadCloser, error) {
	streamCtx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(c.timeout, func() { cancel(errHandshakeTimeout) })

	resp, err := c.send(streamCtx, http.MethodPost, url, payload, "text/event-stream")
	if err != nil {
		timer.Stop()
		cancel(err)
		return nil, err
	}
	if !timer.Stop() {
		resp.Body.Close()
		cancel(errHandshakeTimeout)
		return nil, &TransportError{Kind: KindTimeout, Method: http.MethodPost, URL: url, Err: errHandshakeTimeout}
	}

	return &streamBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

// doJSON performs a bounded request and validates the JSON response body.
func (c *Client) doJSON(ctx context.Context, method, url string, payload any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.send(ctx, method, url, payload, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, method, url, err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(body) {
		return nil, &TransportError{
			Kind:   KindDecode,
			Method: method,
			URL:    url,
			Err:    fmt.Errorf("response is not valid JSON: %.200s", body),
		}
	}
	return json.RawMessage(body), nil
}

// send executes the request through the circuit breaker. It returns a 2xx
// response with an open body, or an error; non-2xx bodies are read and closed.
func (c *Client) send(ctx context.Context, method, url string, payload any, accept string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s payload: %w", method, url, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s request: %w", method, url, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)

	start := time.Now()
	resp, err := c.breakerFor(req.URL.Host).Execute(func() (*http.Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, classify(ctx, method, url, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			return nil, &TransportError{
				Kind:   KindStatus,
				Method: method,
				URL:    url,
				Status: resp.StatusCode,
				Body:   string(bytes.TrimSpace(raw)),
			}
		}
		return resp, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &TransportError{Kind: KindCircuitOpen, Method: method, URL: url, Err: fmt.Errorf("%w: %v", ErrCircuitOpen, err)}
		}
		c.logger.Debug("upstream call failed", "method", method, "url", url, "error", err, "elapsed", time.Since(start))
		return nil, err
	}

	c.logger.Debug("upstream call", "method", method, "url", url, "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

// classify maps a client or read error to a TransportError. Cancellation by
// the caller is returned as context.Canceled rather than a transport failure.
func classify(ctx context.Context, method, url string, err error) error {
	switch {
	case errors.Is(context.Cause(ctx), errHandshakeTimeout), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &TransportError{Kind: KindTimeout, Method: method, URL: url, Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%s %s: %w", method, url, context.Canceled)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: KindTimeout, Method: method, URL: url, Err: err}
	}
	return &TransportError{Kind: KindConnection, Method: method, URL: url, Err: err}
}

// streamBody cancels the request context when closed so the connection is
// torn down even if the server is still sending.
type streamBody struct {
	io.ReadCloser
	cancel context.CancelCauseFunc
	once   sync.Once
}

func (b *streamBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() { b.cancel(errStreamClosed) })
	return err
}
