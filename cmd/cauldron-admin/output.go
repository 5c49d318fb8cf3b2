// ABOUTME: Terminal output for cauldron-admin: envelopes, JSON, spinners, and markdown
// ABOUTME: Spinners and glamour rendering only run in interactive terminals

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/2389/cauldron-gateway/internal/envelope"
	"github.com/2389/cauldron-gateway/internal/format"
)

// markdownStyle is the glamour style used for markdown answers.
const markdownStyle = "dracula"

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRawJSON indents raw JSON, printing it unchanged when it does not parse.
func printRawJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// printEnvelope reports a lifecycle outcome and returns errFailed when the
// envelope says the operation failed.
func (a *app) printEnvelope(w io.Writer, env *envelope.Envelope) error {
	if a.output == "json" {
		if err := printJSON(w, env); err != nil {
			return err
		}
		if !env.Result.SuccessInd {
			return errFailed
		}
		return nil
	}

	res := env.Result
	if !res.SuccessInd {
		red := color.New(color.FgRed, color.Bold)
		red.Fprintf(w, "✗ %s %s\n", res.Status, res.Message.Text)
		if res.Reason != nil {
			fmt.Fprintf(w, "  reason:   %s\n", res.Reason.Text)
			fmt.Fprintf(w, "  location: %s\n", res.Reason.Location)
		}
		return errFailed
	}

	color.New(color.FgGreen).Fprintf(w, "✓ %s %s\n", res.Status, res.Message.Text)
	if env.Response.SessionID != "" {
		fmt.Fprintf(w, "  session:  %s\n", env.Response.SessionID)
	}
	if res.SessionInd != nil && !*res.SessionInd {
		color.New(color.FgYellow).Fprintln(w, "  ! no session was opened")
		if res.Reason != nil {
			fmt.Fprintf(w, "  reason:   %s\n", res.Reason.Text)
		}
	}
	return nil
}

// printAnswer writes an execute answer, rendering markdown in a terminal.
func (a *app) printAnswer(w io.Writer, env *envelope.Envelope) error {
	text := env.Response.MessageText
	if a.interactive && env.Response.MessageMIMEType == format.MIMEMarkdown {
		rendered, err := glamour.Render(text, markdownStyle)
		if err == nil {
			_, err = fmt.Fprint(w, rendered)
			return err
		}
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// withSpinner runs fn behind a spinner on stderr when interactive.
func (a *app) withSpinner(ctx context.Context, message string, fn func(context.Context) error) error {
	if !a.interactive {
		return fn(ctx)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	_ = s.Color("cyan", "bold")
	s.Start()
	defer s.Stop()

	return fn(ctx)
}
