// ABOUTME: Execute workflow: one blocking run call translated into an envelope
// ABOUTME: The first event's first text part is the answer

package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/2389/cauldron-gateway/internal/envelope"
	"github.com/2389/cauldron-gateway/internal/format"
	"github.com/2389/cauldron-gateway/internal/sse"
	"github.com/2389/cauldron-gateway/internal/tracer"
)

// Execute sends one prompt to a session and waits for the answer.
func (o *Orchestrator) Execute(ctx context.Context, req ExecuteRequest) envelope.Envelope {
	id := req.Identity()
	ctx, span := tracer.StartSpan(ctx, "orchestrator.execute",
		tracer.StringAttr("user_id", req.UserID),
		tracer.StringAttr("agent_name", id.AgentName),
		tracer.StringAttr("session_id", req.SessionID),
	)

	body := newRunRequest(SessionHandle{AppName: id.AgentName, UserID: req.UserID, SessionID: req.SessionID}, req.PromptText, false)
	if len(req.AttachmentMetadata) > 0 && !bytes.Equal(req.AttachmentMetadata, []byte("null")) {
		body.StateDelta = map[string]any{"attachments": req.AttachmentMetadata}
	}

	runURL := o.urls.run(req.UserID)
	raw, err := o.upstream.Post(ctx, runURL, body)
	if err == nil {
		var answer string
		answer, err = firstText(raw)
		if err == nil {
			tracer.End(span, nil)
			return o.answerEnvelope(id, req.SessionID, answer)
		}
	}

	o.logger.Error("execute failed", "user_id", req.UserID, "agent_name", id.AgentName, "session_id", req.SessionID, "error", err)
	tracer.End(span, err)
	return envelope.Failure(id, "execution failed", err, runURL, envelope.WithSession(req.SessionID))
}

func (o *Orchestrator) answerEnvelope(id envelope.Identity, sessionID, answer string) envelope.Envelope {
	mime := format.DetectMIMEType(answer)
	opts := []envelope.Option{
		envelope.WithSession(sessionID),
		envelope.WithAnswer(answer, mime),
	}
	if o.cfg.RenderMarkdown && mime == format.MIMEMarkdown {
		html, err := format.RenderHTML(answer)
		if err != nil {
			o.logger.Warn("rendering answer failed", "error", err)
		} else {
			opts = append(opts, envelope.WithHTML(html))
		}
	}
	return envelope.Success(id, envelope.StatusExecuted, "execution completed", opts...)
}

// firstText extracts content.parts[0].text from the first runtime event.
// The runtime answers with an array of events; a lone event object is
// accepted too.
func firstText(raw json.RawMessage) (string, error) {
	var events []sse.Payload
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single sse.Payload
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return "", fmt.Errorf("decoding runtime response: %w", err)
		}
		events = []sse.Payload{single}
	} else if err := json.Unmarshal(trimmed, &events); err != nil {
		return "", fmt.Errorf("decoding runtime response: %w", err)
	}

	if len(events) == 0 {
		return "", ErrEmptyAnswer
	}
	first := events[0]
	if first.Content == nil || len(first.Content.Parts) == 0 || first.Content.Parts[0].Text == nil {
		return "", ErrEmptyAnswer
	}
	return *first.Content.Parts[0].Text, nil
}

func sanitize(name string) string {
	return format.SanitizeAgentName(name)
}
