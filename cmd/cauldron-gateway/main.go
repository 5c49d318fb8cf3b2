// ABOUTME: Entry point for the cauldron-gateway HTTP server
// ABOUTME: Dispatches serve, init, health, ready and token subcommands

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/cauldron-gateway/internal/auth"
	"github.com/2389/cauldron-gateway/internal/config"
	"github.com/2389/cauldron-gateway/internal/gateway"
	"github.com/2389/cauldron-gateway/internal/tracer"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                 _     _
  ___ __ _ _   _| | __| |_ __ ___  _ __
 / __/ _' | | | | |/ _' | '__/ _ \| '_ \
| (_| (_| | |_| | | (_| | | | (_) | | | |
 \___\__,_|\__,_|_|\__,_|_|  \___/|_| |_|   gateway
`

// defaultTokenTTL is used by "token" when --ttl is not given.
const defaultTokenTTL = 30 * 24 * time.Hour

// getConfigPath returns the path to the gateway config file.
// Priority: CAULDRON_CONFIG env var > XDG_CONFIG_HOME/cauldron/gateway.yaml > ~/.config/cauldron/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CAULDRON_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "cauldron", "gateway.yaml")
}

// getDataPath returns the path to the cauldron data directory.
// Priority: XDG_DATA_HOME/cauldron > ~/.local/share/cauldron
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "cauldron")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: cauldron-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                              Start the gateway server")
		fmt.Println("  init                               Create a new config file interactively")
		fmt.Println("  health                             Check gateway liveness")
		fmt.Println("  ready                              Check gateway readiness")
		fmt.Println("  token --sub NAME [--user ID] [--ttl 720h]  Mint a bearer token")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runProbe(ctx, "/health", os.Stdout)
	case "ready":
		err = runProbe(ctx, "/health/ready", os.Stdout)
	case "token":
		err = runToken(os.Args[2:], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	shutdownTracing, err := tracer.Setup(ctx, cfg.Tracing, os.Stdout)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s", cfg.Server.HTTPAddr)
	if cfg.Server.APIPrefix != "" {
		gray.Printf(" (+ %s)", cfg.Server.APIPrefix)
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("Runtime:   %s\n", cfg.RuntimeBase())
	green.Print("    ▶ ")
	fmt.Printf("Deploy:    %s\n", cfg.DeployBase())
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s\n", cfg.Database.Driver)
	if cfg.Auth.JWTSecret == "" {
		yellow.Println("    ! auth disabled: API routes accept anonymous callers")
	}
	fmt.Println()

	logger.Info("starting cauldron-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"runtime", cfg.RuntimeBase(),
		"deploy", cfg.DeployBase(),
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// runProbe calls a health endpoint of the configured gateway and prints its body.
func runProbe(ctx context.Context, path string, out io.Writer) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s%s", probeHost(cfg.Server.HTTPAddr), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Fprintln(out, strings.TrimSpace(string(body)))
	return nil
}

// probeHost turns a wildcard listen address into one a client can dial.
func probeHost(addr string) string {
	switch {
	case strings.HasPrefix(addr, "0.0.0.0:"):
		return "127.0.0.1" + strings.TrimPrefix(addr, "0.0.0.0")
	case strings.HasPrefix(addr, ":"):
		return "127.0.0.1" + addr
	}
	return addr
}

type tokenArgs struct {
	subject string
	userID  string
	ttl     time.Duration
}

// parseTokenArgs accepts both "--flag value" and "--flag=value".
func parseTokenArgs(args []string) (tokenArgs, error) {
	parsed := tokenArgs{ttl: defaultTokenTTL}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, inline := strings.Cut(arg, "=")
		if !strings.HasPrefix(name, "-") {
			return parsed, fmt.Errorf("unexpected argument: %s", arg)
		}
		if !inline {
			if i+1 >= len(args) {
				return parsed, fmt.Errorf("%s requires a value", name)
			}
			value = args[i+1]
			i++
		}

		switch name {
		case "--sub", "-s":
			parsed.subject = strings.TrimSpace(value)
		case "--user", "-u":
			parsed.userID = strings.TrimSpace(value)
		case "--ttl":
			ttl, err := time.ParseDuration(value)
			if err != nil {
				return parsed, fmt.Errorf("invalid --ttl %q: %w", value, err)
			}
			if ttl <= 0 {
				return parsed, fmt.Errorf("--ttl must be positive")
			}
			parsed.ttl = ttl
		default:
			return parsed, fmt.Errorf("unknown flag: %s", name)
		}
	}

	if parsed.subject == "" {
		return parsed, fmt.Errorf("--sub flag is required")
	}
	return parsed, nil
}

// runToken mints a bearer token signed with the configured JWT secret.
// Without --user the token may act for any user.
func runToken(args []string, out io.Writer) error {
	parsed, err := parseTokenArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(parsed.subject, parsed.userID, parsed.ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Fprintln(out, token)
	return nil
}
