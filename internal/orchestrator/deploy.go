// ABOUTME: Deploy workflow: deploy, overwrite once on conflict, then open a first session
// ABOUTME: Also the single-call stop workflow

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389/cauldron-gateway/internal/envelope"
	"github.com/2389/cauldron-gateway/internal/store"
	"github.com/2389/cauldron-gateway/internal/tracer"
	"github.com/2389/cauldron-gateway/internal/upstream"
)

// deployOutcome is the result of one deploy attempt.
type deployOutcome int

const (
	outcomeDeployed deployOutcome = iota
	outcomeConflict
	outcomeFailed
)

func (o deployOutcome) String() string {
	switch o {
	case outcomeDeployed:
		return "deployed"
	case outcomeConflict:
		return "conflict"
	default:
		return "failed"
	}
}

func classifyDeploy(err error) deployOutcome {
	switch {
	case err == nil:
		return outcomeDeployed
	case upstream.IsConflict(err):
		return outcomeConflict
	default:
		return outcomeFailed
	}
}

// Deploy deploys an agent. A 409 from the deployment service triggers
// exactly one overwrite; any failure of the overwrite (including another
// 409) is terminal. After a successful deploy a first session is created;
// its failure is reported through session_ind without failing the deploy.
func (o *Orchestrator) Deploy(ctx context.Context, req DeployRequest) envelope.Envelope {
	req.AgentConfig.ApplyDefaults()
	id := req.Identity()

	ctx, span := tracer.StartSpan(ctx, "orchestrator.deploy",
		tracer.StringAttr("user_id", req.UserID),
		tracer.StringAttr("agent_name", id.AgentName),
	)

	key := req.UserID + "/" + id.AgentName
	if !o.deploying.Acquire(key) {
		o.logger.Warn("deploy rejected, already in progress", "user_id", req.UserID, "agent_name", id.AgentName)
		tracer.End(span, ErrDeployInFlight)
		return envelope.Failure(id, "agent deploy failed", ErrDeployInFlight, "")
	}
	defer o.deploying.Release(key)

	o.logger.Info("deploying agent",
		"user_id", req.UserID,
		"agent_name", id.AgentName,
		"model", req.AgentConfig.Model,
		"overwrite", req.Overwrite,
		"credentials", req.Credentials,
	)

	text := "agent deployed"
	body := newDeploymentRequest(req)
	deployURL := o.urls.deployAgent()
	_, err := o.upstream.Post(ctx, deployURL, body)
	outcome := classifyDeploy(err)

	if outcome == outcomeConflict {
		o.logger.Info("agent exists, overwriting", "user_id", req.UserID, "agent_name", id.AgentName)
		deployURL = o.urls.overwriteAgent()
		_, err = o.upstream.Post(ctx, deployURL, body)
		if err != nil {
			// A second conflict is not retried.
			outcome = outcomeFailed
			err = fmt.Errorf("overwrite: %w", err)
		} else {
			outcome = outcomeDeployed
			text = "agent redeployed"
		}
	}

	span.SetAttributes(tracer.StringAttr("deploy.outcome", outcome.String()))

	if outcome == outcomeFailed {
		o.logger.Error("deploy failed", "user_id", req.UserID, "agent_name", id.AgentName, "error", err)
		tracer.End(span, err)
		return envelope.Failure(id, "agent deploy failed", err, deployURL)
	}

	sessionID, sessionURL, serr := o.createSession(ctx, req.UserID, id.AgentName, req.AgentID)
	if serr != nil {
		o.logger.Warn("agent deployed but session creation failed", "user_id", req.UserID, "agent_name", id.AgentName, "error", serr)
	}
	tracer.End(span, nil)

	return envelope.Success(id, envelope.StatusDeployed, text,
		envelope.WithSession(sessionID),
		envelope.WithSessionOutcome(serr, sessionURL),
	)
}

// Stop removes a deployed agent.
func (o *Orchestrator) Stop(ctx context.Context, req AgentRequest) envelope.Envelope {
	id := req.Identity()
	ctx, span := tracer.StartSpan(ctx, "orchestrator.stop",
		tracer.StringAttr("user_id", req.UserID),
		tracer.StringAttr("agent_name", id.AgentName),
	)

	stopURL := o.urls.deployed(req.UserID, id.AgentName)
	if _, err := o.upstream.Delete(ctx, stopURL); err != nil {
		o.logger.Error("stop failed", "user_id", req.UserID, "agent_name", id.AgentName, "error", err)
		tracer.End(span, err)
		return envelope.Failure(id, "agent stop failed", err, stopURL)
	}

	tracer.End(span, nil)
	o.logger.Info("agent stopped", "user_id", req.UserID, "agent_name", id.AgentName)
	return envelope.Success(id, envelope.StatusStopped, "agent stopped")
}

// createSession opens a runtime session and records it locally. It returns
// the new id and the URL that was called.
func (o *Orchestrator) createSession(ctx context.Context, userID, agentName, agentID string) (string, string, error) {
	sessionsURL := o.urls.sessions(userID, agentName)
	raw, err := o.upstream.Post(ctx, sessionsURL, createSessionRequest{AppName: agentName, UserID: userID})
	if err != nil {
		return "", sessionsURL, fmt.Errorf("create session: %w", err)
	}

	var created createSessionResponse
	if err := json.Unmarshal(raw, &created); err != nil || created.ID == "" {
		return "", sessionsURL, fmt.Errorf("create session: response has no id")
	}

	o.record(ctx, &store.Session{
		UserID:    userID,
		AgentName: agentName,
		SessionID: created.ID,
		AgentID:   agentID,
		CreatedAt: time.Now(),
	})
	return created.ID, sessionsURL, nil
}

// record saves a session locally. The runtime is authoritative, so a store
// failure is logged and otherwise ignored.
func (o *Orchestrator) record(ctx context.Context, s *store.Session) {
	if o.sessions == nil {
		return
	}
	if err := o.sessions.SaveSession(ctx, s); err != nil {
		o.logger.Warn("recording session failed", "user_id", s.UserID, "agent_name", s.AgentName, "session_id", s.SessionID, "error", err)
	}
}
