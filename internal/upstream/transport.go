// ABOUTME: Connection pooling and circuit breaker construction for upstream calls
// ABOUTME: One pooled transport is shared by every request; breakers are kept per upstream host

package upstream

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultMaxFailures uint32 = 5
	defaultOpenTimeout        = 30 * time.Second
	defaultInterval           = 60 * time.Second

	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 20
	defaultIdleConnTimeout     = 120 * time.Second
)

// BreakerSettings configures the circuit breaker. Zero fields take defaults.
type BreakerSettings struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a half-open probe.
	Timeout time.Duration
	// Interval clears failure counts periodically while closed.
	Interval time.Duration
}

// PoolSettings sizes the connection pool. Zero fields take defaults.
type PoolSettings struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
}

// NewPooledTransport creates an http.Transport with keep-alive pooling sized
// for a handful of upstream hosts under high concurrency. It sets no response
// header timeout; the Client bounds each call with its own deadline.
func NewPooledTransport(pool PoolSettings) *http.Transport {
	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	maxIdlePerHost := pool.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = defaultMaxIdleConnsPerHost
	}
	maxConnsPerHost := pool.MaxConnsPerHost
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = defaultMaxConnsPerHost
	}
	idleTimeout := pool.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleConnTimeout
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxIdlePerHost,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     idleTimeout,
		ForceAttemptHTTP2:   true,
	}
}

// newBreaker builds the breaker for one upstream host. Only transport
// failures and 5xx responses count against it; 4xx answers mean the upstream
// is alive, and caller cancellation is not the upstream's fault.
func newBreaker(name string, s BreakerSettings, logger *slog.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	maxFailures := s.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = defaultOpenTimeout
	}
	interval := s.Interval
	if interval == 0 {
		interval = defaultInterval
	}

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			te, ok := AsTransportError(err)
			return ok && te.Kind == KindStatus && te.Status < http.StatusInternalServerError
		},
	})
}
