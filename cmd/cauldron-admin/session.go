// ABOUTME: Session commands (new, remove, list) plus metrics and ready
// ABOUTME: Tables are written with tabwriter in the same layout as other admin listings

package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/cauldron-gateway/internal/envelope"
	"github.com/2389/cauldron-gateway/internal/orchestrator"
)

func newSessionCommand(a *app) *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage agent sessions",
	}
	cmd.PersistentFlags().StringVar(&agentID, "agent-id", "", "Agent id")

	agentReq := func(name string) orchestrator.AgentRequest {
		return orchestrator.AgentRequest{
			UserID:    a.userID,
			UserUUID:  a.userUUID,
			AgentID:   agentID,
			AgentName: name,
		}
	}

	newCmd := &cobra.Command{
		Use:     "new <agent-name>",
		Short:   "Open a new session",
		Example: "  cauldron-admin session new calc --user u1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			var env *envelope.Envelope
			err := a.withSpinner(cmd.Context(), "Opening session...", func(ctx context.Context) error {
				var err error
				env, err = a.client.NewSession(ctx, agentReq(args[0]))
				return err
			})
			if err != nil {
				return err
			}
			return a.printEnvelope(cmd.OutOrStdout(), env)
		},
	}

	removeCmd := &cobra.Command{
		Use:     "remove <agent-name> <session-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a session",
		Example: "  cauldron-admin session rm calc s-1 --user u1",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			env, err := a.client.RemoveSession(cmd.Context(), orchestrator.SessionRequest{
				AgentRequest: agentReq(args[0]),
				SessionID:    args[1],
			})
			if err != nil {
				return err
			}
			return a.printEnvelope(cmd.OutOrStdout(), env)
		},
	}

	listCmd := &cobra.Command{
		Use:     "list [agent-name]",
		Aliases: []string{"ls"},
		Short:   "List sessions recorded by the gateway",
		Example: "  cauldron-admin session list --user u1\n  cauldron-admin session list calc --user u1 -o json",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireUser(); err != nil {
				return err
			}
			agentName := ""
			if len(args) == 1 {
				agentName = args[0]
			}

			ids, err := a.client.ListSessions(cmd.Context(), a.userID, agentName)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.output == "json" {
				return printJSON(out, map[string][]string{"session_id": ids})
			}
			if len(ids) == 0 {
				fmt.Fprintln(out, "(no sessions)")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}

	cmd.AddCommand(newCmd, removeCmd, listCmd)
	return cmd
}

func newMetricsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show gateway request counts from Prometheus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := a.client.RequestCounts(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.output == "json" {
				return printJSON(out, counts)
			}

			cyan := color.New(color.FgCyan)
			fmt.Fprintln(out)
			cyan.Fprintln(out, "  Request Counts")
			cyan.Fprintln(out, "  --------------")

			if len(counts) == 0 {
				fmt.Fprintln(out, "  (no requests recorded)")
				fmt.Fprintln(out)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "  HANDLER\tMETHOD\tSTATUS\tCOUNT")
			fmt.Fprintln(w, "  -------\t------\t------\t-----")
			for _, c := range counts {
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", c.Handler, c.Method, c.Status, c.Count)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func newReadyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check that the gateway and its store are ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := a.client.Ready(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
}
