// ABOUTME: Orchestrator coordinating multi-step calls to the agent runtime and deployment service
// ABOUTME: Every operation returns an envelope; only read-only listings return raw errors

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/2389/cauldron-gateway/internal/dedupe"
	"github.com/2389/cauldron-gateway/internal/store"
)

// Upstream is the transport the orchestrator drives. *upstream.Client
// satisfies it.
type Upstream interface {
	Post(ctx context.Context, url string, payload any) (json.RawMessage, error)
	Get(ctx context.Context, url string) (json.RawMessage, error)
	Delete(ctx context.Context, url string) (json.RawMessage, error)
	OpenStream(ctx context.Context, url string, payload any) (io.ReadCloser, error)
}

var (
	// ErrDeployInFlight is reported when the same agent is already being deployed.
	ErrDeployInFlight = errors.New("deploy already in progress")

	// ErrMetricsDisabled is returned by RequestCounts without a Prometheus URL.
	ErrMetricsDisabled = errors.New("metrics: prometheus_url is not configured")

	// ErrEmptyAnswer is reported when the runtime answered without any text.
	ErrEmptyAnswer = errors.New("runtime response has no text part")
)

// Config holds the orchestrator's endpoints and behavior switches.
type Config struct {
	RuntimeBase    string
	DeployBase     string
	PrometheusURL  string
	MetricsWindow  string
	RenderMarkdown bool
	DedupeWindow   time.Duration
}

// Orchestrator implements deploy, stop, execute, session, and chat flows.
type Orchestrator struct {
	cfg       Config
	urls      endpoints
	upstream  Upstream
	sessions  store.SessionStore
	deploying *dedupe.Guard
	logger    *slog.Logger
}

// New creates an Orchestrator. sessions may be nil, in which case created
// sessions are not recorded locally.
func New(cfg Config, up Upstream, sessions store.SessionStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MetricsWindow == "" {
		cfg.MetricsWindow = "15d"
	}
	return &Orchestrator{
		cfg:       cfg,
		urls:      newEndpoints(cfg.RuntimeBase, cfg.DeployBase, cfg.PrometheusURL),
		upstream:  up,
		sessions:  sessions,
		deploying: dedupe.New(cfg.DedupeWindow),
		logger:    logger.With("component", "orchestrator"),
	}
}

// Close stops background work.
func (o *Orchestrator) Close() {
	o.deploying.Close()
}
