// ABOUTME: Gateway wiring the HTTP server, orchestrator, upstream client, and session store
// ABOUTME: Manages server lifecycle and health endpoints

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/cauldron-gateway/internal/auth"
	"github.com/2389/cauldron-gateway/internal/config"
	"github.com/2389/cauldron-gateway/internal/orchestrator"
	"github.com/2389/cauldron-gateway/internal/store"
	"github.com/2389/cauldron-gateway/internal/upstream"
)

// Gateway serves the agent orchestration API.
type Gateway struct {
	config     *config.Config
	orch       *orchestrator.Orchestrator
	store      store.SessionStore
	httpServer *http.Server
	logger     *slog.Logger

	// stopBackground ends goroutines owned by middleware
	stopBackground context.CancelFunc
}

// New creates a gateway from configuration, opening the session store and
// the pooled upstream client.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	sessions, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	up := newUpstreamClient(cfg, logger)

	gw, err := newGateway(cfg, sessions, up, logger)
	if err != nil {
		sessions.Close()
		return nil, err
	}
	return gw, nil
}

func newUpstreamClient(cfg *config.Config, logger *slog.Logger) *upstream.Client {
	transport := upstream.NewPooledTransport(upstream.PoolSettings{
		MaxIdleConns:        cfg.Upstream.Pool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Upstream.Pool.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.Upstream.Pool.MaxConnsPerHost,
	})
	return upstream.New(
		upstream.WithTimeout(cfg.Upstream.Timeout),
		upstream.WithHTTPClient(&http.Client{Transport: transport}),
		upstream.WithBreaker(upstream.BreakerSettings{
			MaxFailures: cfg.Upstream.Breaker.MaxFailures,
			Timeout:     cfg.Upstream.Breaker.Timeout,
			Interval:    cfg.Upstream.Breaker.Interval,
		}),
		upstream.WithLogger(logger.With("component", "upstream")),
	)
}

// newGateway assembles a gateway around an already-open store and upstream.
func newGateway(cfg *config.Config, sessions store.SessionStore, up orchestrator.Upstream, logger *slog.Logger) (*Gateway, error) {
	orch := orchestrator.New(orchestrator.Config{
		RuntimeBase:    cfg.RuntimeBase(),
		DeployBase:     cfg.DeployBase(),
		PrometheusURL:  cfg.Metrics.PrometheusURL,
		MetricsWindow:  cfg.Metrics.Window,
		RenderMarkdown: cfg.Execute.RenderMarkdown,
		DedupeWindow:   cfg.Deploy.DedupeWindow,
	}, up, sessions, logger)

	bgCtx, stop := context.WithCancel(context.Background())
	gw := &Gateway{
		config:         cfg,
		orch:           orch,
		store:          sessions,
		logger:         logger.With("component", "gateway"),
		stopBackground: stop,
	}

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			stop()
			orch.Close()
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		verifier = v
		gw.logger.Info("bearer token auth enabled")
	} else {
		gw.logger.Warn("auth disabled - no jwt_secret configured")
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.buildHandler(bgCtx, verifier),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return gw, nil
}

// Handler returns the gateway's root HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts down.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}
	return g.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "api_prefix", g.config.Server.APIPrefix)
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	serverErr := g.waitForShutdownSignal(ctx, errCh)
	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	g.stopBackground()
	g.orch.Close()
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the session store answers.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
