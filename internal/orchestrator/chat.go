// ABOUTME: Streaming chat against a runtime session and the deployed-agent listing
// ABOUTME: Both return raw errors so the HTTP layer can propagate upstream status

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2389/cauldron-gateway/internal/sse"
	"github.com/2389/cauldron-gateway/internal/tracer"
)

// OpenChatStream starts a run_sse call and returns a relay over its events.
// The caller must drive the relay to completion or Close it.
func (o *Orchestrator) OpenChatStream(ctx context.Context, req ChatRequest) (*sse.Relay, error) {
	appName := sanitize(req.AppName)
	ctx, span := tracer.StartSpan(ctx, "orchestrator.chat",
		tracer.StringAttr("user_id", req.UserID),
		tracer.StringAttr("agent_name", appName),
		tracer.BoolAttr("streaming", req.Streaming),
	)

	h := SessionHandle{AppName: appName, UserID: req.UserID, SessionID: req.SessionID}
	body, err := o.upstream.OpenStream(ctx, o.urls.runSSE(req.UserID), newRunRequest(h, req.Message, req.Streaming))
	if err != nil {
		o.logger.Error("opening chat stream failed", "user_id", req.UserID, "agent_name", appName, "error", err)
		tracer.End(span, err)
		return nil, fmt.Errorf("open chat stream: %w", err)
	}

	tracer.End(span, nil)
	o.logger.Debug("chat stream opened", "user_id", req.UserID, "agent_name", appName, "session_id", req.SessionID)
	return sse.Open(ctx, body), nil
}

// ListAgents returns the deployment service's listing for a user unchanged.
func (o *Orchestrator) ListAgents(ctx context.Context, userID string) (json.RawMessage, error) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.list_agents", tracer.StringAttr("user_id", userID))
	raw, err := o.upstream.Get(ctx, o.urls.userAgents(userID))
	tracer.End(span, err)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return raw, nil
}
