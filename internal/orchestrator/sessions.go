// ABOUTME: Session create/remove workflows against the runtime plus the local session listing
// ABOUTME: Created and removed sessions are mirrored into the session store

package orchestrator

import (
	"context"
	"errors"

	"github.com/2389/cauldron-gateway/internal/envelope"
	"github.com/2389/cauldron-gateway/internal/store"
	"github.com/2389/cauldron-gateway/internal/tracer"
)

// NewSession opens a new runtime session for a deployed agent.
func (o *Orchestrator) NewSession(ctx context.Context, req AgentRequest) envelope.Envelope {
	id := req.Identity()
	ctx, span := tracer.StartSpan(ctx, "orchestrator.session_new",
		tracer.StringAttr("user_id", req.UserID),
		tracer.StringAttr("agent_name", id.AgentName),
	)

	sessionID, sessionsURL, err := o.createSession(ctx, req.UserID, id.AgentName, req.AgentID)
	if err != nil {
		o.logger.Error("session creation failed", "user_id", req.UserID, "agent_name", id.AgentName, "error", err)
		tracer.End(span, err)
		return envelope.Failure(id, "session creation failed", err, sessionsURL)
	}

	tracer.End(span, nil)
	o.logger.Info("session created", "user_id", req.UserID, "agent_name", id.AgentName, "session_id", sessionID)
	return envelope.Success(id, envelope.StatusCreated, "session created", envelope.WithSession(sessionID))
}

// RemoveSession deletes a runtime session.
func (o *Orchestrator) RemoveSession(ctx context.Context, req SessionRequest) envelope.Envelope {
	id := req.Identity()
	ctx, span := tracer.StartSpan(ctx, "orchestrator.session_remove",
		tracer.StringAttr("user_id", req.UserID),
		tracer.StringAttr("agent_name", id.AgentName),
		tracer.StringAttr("session_id", req.SessionID),
	)

	sessionURL := o.urls.session(req.UserID, id.AgentName, req.SessionID)
	if _, err := o.upstream.Delete(ctx, sessionURL); err != nil {
		o.logger.Error("session removal failed", "user_id", req.UserID, "session_id", req.SessionID, "error", err)
		tracer.End(span, err)
		return envelope.Failure(id, "session removal failed", err, sessionURL, envelope.WithSession(req.SessionID))
	}
	tracer.End(span, nil)

	if o.sessions != nil {
		err := o.sessions.DeleteSession(ctx, req.UserID, id.AgentName, req.SessionID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			o.logger.Warn("forgetting session failed", "session_id", req.SessionID, "error", err)
		}
	}

	return envelope.Success(id, envelope.StatusDeleted, "session removed", envelope.WithSession(req.SessionID))
}

// ListSessions returns the locally recorded session ids for a user's agent,
// oldest first.
func (o *Orchestrator) ListSessions(ctx context.Context, userID, agentName string) ([]string, error) {
	if o.sessions == nil {
		return []string{}, nil
	}
	sessions, err := o.sessions.ListSessions(ctx, userID, sanitize(agentName))
	if err != nil {
		return nil, err
	}
	ids := store.SessionIDs(sessions)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
