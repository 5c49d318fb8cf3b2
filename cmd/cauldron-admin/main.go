// ABOUTME: Admin CLI for cauldron-gateway: deploy, run, and chat with agents over HTTP
// ABOUTME: Cobra command tree sharing one gateway client built from flags and env

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/cauldron-gateway/internal/client"
)

const banner = `
                 _     _
  ___ __ _ _   _| | __| |_ __ ___  _ __
 / __/ _' | | | | |/ _' | '__/ _ \| '_ \
| (_| (_| | |_| | | (_| | | | (_) | | | |
 \___\__,_|\__,_|_|\__,_|_|  \___/|_| |_|   admin
`

// errFailed marks an operation whose envelope already reported the failure.
var errFailed = errors.New("operation failed")

// app holds the global flags and the client built from them.
type app struct {
	gatewayURL string
	token      string
	userID     string
	userUUID   string
	output     string
	timeout    time.Duration

	// interactive enables spinners and markdown rendering.
	interactive bool
	in          io.Reader

	client *client.Client
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{interactive: !color.NoColor, in: os.Stdin}
	cmd := newRootCommand(a)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			color.Red("Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cauldron-admin",
		Short: "Manage agents behind a cauldron-gateway",
		Long: banner + `
Deploy agents, open sessions, run prompts, and stream chats through a
cauldron-gateway.

Environment:
  CAULDRON_GATEWAY_URL   Gateway base URL (default http://localhost:8000)
  CAULDRON_TOKEN         Bearer token (falls back to ~/.config/cauldron/token)
  CAULDRON_USER          Default --user`,
		Example: `  cauldron-admin deploy --user u1 --agent-id 42 --file agent.yaml
  cauldron-admin session new calc --user u1
  cauldron-admin exec calc --user u1 --session s-1 "what is 111*222?"
  cauldron-admin chat calc --user u1`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.output {
			case "text", "json":
			default:
				return fmt.Errorf("unknown output format: %s", a.output)
			}
			opts := []client.Option{client.WithToken(a.token)}
			if a.timeout > 0 {
				opts = append(opts, client.WithTimeout(a.timeout))
			}
			a.client = client.New(a.gatewayURL, opts...)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.gatewayURL, "gateway", getEnv("CAULDRON_GATEWAY_URL", "http://localhost:8000"), "Gateway base URL, including any API prefix")
	flags.StringVar(&a.token, "token", getToken(), "Bearer token")
	flags.StringVarP(&a.userID, "user", "u", os.Getenv("CAULDRON_USER"), "User id the request acts for")
	flags.StringVar(&a.userUUID, "user-uuid", "", "User UUID recorded in envelopes")
	flags.StringVarP(&a.output, "output", "o", "text", "Output format (text|json)")
	flags.DurationVar(&a.timeout, "timeout", client.DefaultTimeout, "Timeout for non-streaming calls")

	root.AddCommand(
		newDeployCommand(a),
		newStopCommand(a),
		newAgentsCommand(a),
		newExecCommand(a),
		newChatCommand(a),
		newSessionCommand(a),
		newMetricsCommand(a),
		newReadyCommand(a),
	)
	return root
}

// requireUser fails early when no --user was given.
func (a *app) requireUser() error {
	if a.userID == "" {
		return errors.New("--user (or CAULDRON_USER) is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getToken returns the JWT token from CAULDRON_TOKEN env var or ~/.config/cauldron/token file
func getToken() string {
	if token := os.Getenv("CAULDRON_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	data, err := os.ReadFile(filepath.Join(configDir, "cauldron", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
