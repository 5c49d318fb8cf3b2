// ABOUTME: Prompt commands: exec (one-shot execute) and chat (SSE stream or REPL)
// ABOUTME: Chat without a message argument reads prompts line by line from stdin

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/cauldron-gateway/internal/envelope"
	"github.com/2389/cauldron-gateway/internal/orchestrator"
)

func newExecCommand(a *app) *cobra.Command {
	var (
		agentID     string
		sessionID   string
		attachments string
	)

	cmd := &cobra.Command{
		Use:     "exec <agent-name> <prompt...>",
		Short:   "Run one prompt against an agent session",
		Example: `  cauldron-admin exec calc --user u1 --session s-1 "what is 111*222?"`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}

			req := orchestrator.ExecuteRequest{
				AgentRequest: orchestrator.AgentRequest{
					UserID:    a.userID,
					UserUUID:  a.userUUID,
					AgentID:   agentID,
					AgentName: args[0],
				},
				SessionID:  sessionID,
				PromptText: strings.Join(args[1:], " "),
			}
			if attachments != "" {
				if !json.Valid([]byte(attachments)) {
					return fmt.Errorf("--attachments must be valid JSON")
				}
				req.AttachmentMetadata = json.RawMessage(attachments)
			}

			var env *envelope.Envelope
			err := a.withSpinner(cmd.Context(), "Thinking...", func(ctx context.Context) error {
				var err error
				env, err = a.client.Execute(ctx, req)
				return err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.output == "json" || !env.Result.SuccessInd {
				return a.printEnvelope(out, env)
			}
			return a.printAnswer(out, env)
		},
	}

	cmd.Flags().StringVar(&agentID, "agent-id", "", "Agent id")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id")
	cmd.Flags().StringVar(&attachments, "attachments", "", "Attachment metadata as JSON")
	return cmd
}

func newChatCommand(a *app) *cobra.Command {
	var (
		sessionID string
		finalOnly bool
	)

	cmd := &cobra.Command{
		Use:   "chat <agent-name> [message...]",
		Short: "Stream a chat with an agent (REPL if no message)",
		Example: `  cauldron-admin chat calc --user u1 --session s-1 "hello"
  cauldron-admin chat calc --user u1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}

			base := orchestrator.ChatRequest{
				AppName:   args[0],
				UserID:    a.userID,
				SessionID: sessionID,
				Streaming: !finalOnly,
			}
			out := cmd.OutOrStdout()

			if len(args) >= 2 {
				base.Message = strings.Join(args[1:], " ")
				return a.streamChat(cmd.Context(), out, base)
			}
			return a.chatREPL(cmd.Context(), out, base)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id")
	cmd.Flags().BoolVar(&finalOnly, "final", false, "Only print the final answer")
	return cmd
}

// streamChat prints each frame as it arrives.
func (a *app) streamChat(ctx context.Context, w io.Writer, req orchestrator.ChatRequest) error {
	stream, err := a.client.Chat(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Next() {
		fmt.Fprint(w, stream.Text())
	}
	fmt.Fprintln(w)
	return stream.Err()
}

func (a *app) chatREPL(ctx context.Context, w io.Writer, base orchestrator.ChatRequest) error {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	cyan.Fprintf(w, "Chat with %s (Ctrl+D to exit)\n\n", base.AppName)

	scanner := bufio.NewScanner(a.in)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), 1024*1024) // 1MB max input
	for {
		green.Fprint(w, "> ")
		if !scanner.Scan() {
			// EOF (Ctrl+D) or error
			fmt.Fprintln(w)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		req := base
		req.Message = line
		if err := a.streamChat(ctx, w, req); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		fmt.Fprintln(w)
	}
}
