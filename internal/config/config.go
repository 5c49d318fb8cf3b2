// ABOUTME: Configuration loading and parsing for cauldron-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Default values applied when a field is left empty.
const (
	DefaultHTTPAddr        = "0.0.0.0:8000"
	DefaultRuntimePort     = 30080
	DefaultDeployPort      = 3001
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultDatabaseDriver  = "sqlite"
)

// Config represents the complete cauldron-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream" toml:"upstream"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Deploy    DeployConfig    `yaml:"deploy" toml:"deploy"`
	Execute   ExecuteConfig   `yaml:"execute" toml:"execute"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing" toml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the inbound HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// APIPrefix additionally mounts every route under this prefix (e.g. "/api/v1")
	APIPrefix string `yaml:"api_prefix" toml:"api_prefix"`
}

// UpstreamConfig describes the agent runtime and deployment services
type UpstreamConfig struct {
	// BaseURL is scheme + host without a port, e.g. "http://192.168.150.200"
	BaseURL     string        `yaml:"base_url" toml:"base_url"`
	RuntimePort int           `yaml:"runtime_port" toml:"runtime_port"`
	DeployPort  int           `yaml:"deploy_port" toml:"deploy_port"`
	Timeout     time.Duration `yaml:"-" toml:"-"`
	Breaker     BreakerConfig `yaml:"breaker" toml:"breaker"`
	Pool        PoolConfig    `yaml:"pool" toml:"pool"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// BreakerConfig configures the upstream circuit breaker
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures" toml:"max_failures"`
	Timeout     time.Duration `yaml:"-" toml:"-"`
	Interval    time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw  string `yaml:"timeout" toml:"timeout"`
	IntervalRaw string `yaml:"interval" toml:"interval"`
}

// PoolConfig sizes the shared upstream connection pool
type PoolConfig struct {
	MaxIdleConns        int `yaml:"max_idle_conns" toml:"max_idle_conns"`
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host" toml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int `yaml:"max_conns_per_host" toml:"max_conns_per_host"`
}

// DatabaseConfig holds session registry storage configuration
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// RateLimitConfig configures per-caller inbound rate limiting. Zero disables it.
type RateLimitConfig struct {
	RequestsPerMin int `yaml:"requests_per_min" toml:"requests_per_min"`
	Burst          int `yaml:"burst" toml:"burst"`
}

// DeployConfig holds deploy workflow settings
type DeployConfig struct {
	// DedupeWindow keeps rejecting repeat deploys of an agent for this long
	// after one finishes. Zero rejects only deploys still in flight.
	DedupeWindow    time.Duration `yaml:"-" toml:"-"`
	DedupeWindowRaw string        `yaml:"dedupe_window" toml:"dedupe_window"`
}

// ExecuteConfig holds execute workflow settings
type ExecuteConfig struct {
	// RenderMarkdown adds an HTML rendering of markdown answers to the envelope
	RenderMarkdown bool `yaml:"render_markdown" toml:"render_markdown"`
}

// MetricsConfig points at the Prometheus server used by the request-count listing
type MetricsConfig struct {
	PrometheusURL string `yaml:"prometheus_url" toml:"prometheus_url"`
	// Window is the PromQL range used for request counts, e.g. "15d"
	Window string `yaml:"window" toml:"window"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Exporter string `yaml:"exporter" toml:"exporter"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// ApplyDefaults fills unset fields with their default values.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Upstream.RuntimePort == 0 {
		c.Upstream.RuntimePort = DefaultRuntimePort
	}
	if c.Upstream.DeployPort == 0 {
		c.Upstream.DeployPort = DefaultDeployPort
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}
	if c.Metrics.Window == "" {
		c.Metrics.Window = "15d"
	}
	c.Upstream.BaseURL = strings.TrimRight(c.Upstream.BaseURL, "/")
	if c.Server.APIPrefix != "" {
		c.Server.APIPrefix = "/" + strings.Trim(c.Server.APIPrefix, "/")
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url %q must be an absolute URL", c.Upstream.BaseURL)
	}
	if u.Port() != "" {
		return fmt.Errorf("upstream.base_url must not carry a port; use upstream.runtime_port and upstream.deploy_port")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver %q", c.Database.Driver)
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver %q is not supported (sqlite, postgres)", c.Database.Driver)
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	if c.RateLimit.RequestsPerMin < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}

	switch c.Tracing.Exporter {
	case "", "noop", "stdout":
	default:
		return fmt.Errorf("tracing.exporter %q is not supported (stdout, noop)", c.Tracing.Exporter)
	}

	return nil
}

// RuntimeBase returns the agent runtime root, e.g. "http://host:30080".
func (c *Config) RuntimeBase() string {
	return fmt.Sprintf("%s:%d", c.Upstream.BaseURL, c.Upstream.RuntimePort)
}

// DeployBase returns the deployment service root, e.g. "http://host:3001".
func (c *Config) DeployBase() string {
	return fmt.Sprintf("%s:%d", c.Upstream.BaseURL, c.Upstream.DeployPort)
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"upstream.timeout", cfg.Upstream.TimeoutRaw, &cfg.Upstream.Timeout},
		{"upstream.breaker.timeout", cfg.Upstream.Breaker.TimeoutRaw, &cfg.Upstream.Breaker.Timeout},
		{"upstream.breaker.interval", cfg.Upstream.Breaker.IntervalRaw, &cfg.Upstream.Breaker.Interval},
		{"deploy.dedupe_window", cfg.Deploy.DedupeWindowRaw, &cfg.Deploy.DedupeWindow},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}

	return nil
}
