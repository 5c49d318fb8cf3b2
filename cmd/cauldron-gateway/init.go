// ABOUTME: Interactive "init" subcommand that writes a starter gateway.yaml
// ABOUTME: Generates a random JWT secret when auth is enabled

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// initAnswers are the values collected by runInit.
type initAnswers struct {
	HTTPAddr      string
	APIPrefix     string
	BaseURL       string
	RuntimePort   string
	DeployPort    string
	DBPath        string
	JWTSecret     string
	PrometheusURL string
	LogLevel      string
	LogFormat     string
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("cauldron-gateway configuration setup")
	fmt.Println("====================================")
	fmt.Println()

	defaultDBPath := filepath.Join(getDataPath(), "gateway.db")

	outputFile := prompt(reader, os.Stdout, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, os.Stdout, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Println("\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, os.Stdout, "HTTP address", "0.0.0.0:8000")
	a.APIPrefix = prompt(reader, os.Stdout, "Extra API prefix (empty for none)", "/api/v1")

	fmt.Println("\n--- Upstream Configuration ---")
	a.BaseURL = prompt(reader, os.Stdout, "Agent cluster base URL", "http://127.0.0.1")
	a.RuntimePort = prompt(reader, os.Stdout, "Runtime port", "30080")
	a.DeployPort = prompt(reader, os.Stdout, "Deployment service port", "3001")

	fmt.Println("\n--- Database Configuration ---")
	a.DBPath = prompt(reader, os.Stdout, "SQLite database path", defaultDBPath)

	fmt.Println("\n--- Auth Configuration ---")
	if yes(prompt(reader, os.Stdout, "Require bearer tokens?", "yes")) {
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		a.JWTSecret = secret
	}

	fmt.Println("\n--- Metrics Configuration ---")
	a.PrometheusURL = prompt(reader, os.Stdout, "Prometheus URL (empty to disable)", "")

	fmt.Println("\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, os.Stdout, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, os.Stdout, "Log format (text/json)", "text")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// 0600: the file may hold the JWT secret.
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(a.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Println("  cauldron-gateway serve")
	if a.JWTSecret != "" {
		fmt.Println("\nTo mint a token:")
		fmt.Println("  cauldron-gateway token --sub you --user <user_id>")
	}

	return nil
}

// renderConfig produces the YAML written by init.
func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# cauldron-gateway configuration\n")
	cfg.WriteString("# Generated by cauldron-gateway init\n\n")

	cfg.WriteString("server:\n")
	fmt.Fprintf(&cfg, "  http_addr: %q\n", a.HTTPAddr)
	if a.APIPrefix != "" {
		fmt.Fprintf(&cfg, "  api_prefix: %q\n", a.APIPrefix)
	}
	cfg.WriteString("\n")

	cfg.WriteString("upstream:\n")
	fmt.Fprintf(&cfg, "  base_url: %q\n", a.BaseURL)
	fmt.Fprintf(&cfg, "  runtime_port: %s\n", a.RuntimePort)
	fmt.Fprintf(&cfg, "  deploy_port: %s\n", a.DeployPort)
	cfg.WriteString("  timeout: \"30s\"\n")
	cfg.WriteString("  breaker:\n")
	cfg.WriteString("    max_failures: 5\n")
	cfg.WriteString("    timeout: \"30s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString("  driver: \"sqlite\"\n")
	fmt.Fprintf(&cfg, "  path: %q\n", a.DBPath)
	cfg.WriteString("\n")

	if a.JWTSecret != "" {
		cfg.WriteString("auth:\n")
		fmt.Fprintf(&cfg, "  jwt_secret: %q\n", a.JWTSecret)
		cfg.WriteString("\n")
	}

	cfg.WriteString("rate_limit:\n")
	cfg.WriteString("  requests_per_min: 600\n")
	cfg.WriteString("  burst: 20\n")
	cfg.WriteString("\n")

	cfg.WriteString("deploy:\n")
	cfg.WriteString("  dedupe_window: \"0s\"\n")
	cfg.WriteString("\n")

	if a.PrometheusURL != "" {
		cfg.WriteString("metrics:\n")
		fmt.Fprintf(&cfg, "  prometheus_url: %q\n", a.PrometheusURL)
		cfg.WriteString("  window: \"15d\"\n")
		cfg.WriteString("\n")
	}

	cfg.WriteString("logging:\n")
	fmt.Fprintf(&cfg, "  level: %q\n", a.LogLevel)
	fmt.Fprintf(&cfg, "  format: %q\n", a.LogFormat)

	return cfg.String()
}

func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func yes(answer string) bool {
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y"
}
