// ABOUTME: HTTP API handlers for agent lifecycle, execute, sessions, chat streaming, and metrics
// ABOUTME: Lifecycle endpoints always answer 200 with an envelope; listings propagate upstream status

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2389/cauldron-gateway/internal/auth"
	"github.com/2389/cauldron-gateway/internal/envelope"
	"github.com/2389/cauldron-gateway/internal/orchestrator"
	"github.com/2389/cauldron-gateway/internal/sse"
	"github.com/2389/cauldron-gateway/internal/upstream"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidJSON    = errors.New("invalid JSON body")
	errMissingUserID  = errors.New("user_id is required")
	errMissingMessage = errors.New("message is required")
)

// SessionListResponse is the JSON response for GET /session/list.
type SessionListResponse struct {
	SessionID []string `json:"session_id"`
}

// StatusResponse is the JSON response for GET /.
type StatusResponse struct {
	Message string `json:"message"`
}

func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Message: "OK"})
}

func (g *Gateway) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.DeployRequest
	if !g.decodeOwned(w, r, &req, func() string { return req.UserID }) {
		return
	}
	g.writeEnvelope(w, g.orch.Deploy(r.Context(), req))
}

func (g *Gateway) handleStop(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.AgentRequest
	if !g.decodeOwned(w, r, &req, func() string { return req.UserID }) {
		return
	}
	g.writeEnvelope(w, g.orch.Stop(r.Context(), req))
}

func (g *Gateway) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.ExecuteRequest
	if !g.decodeOwned(w, r, &req, func() string { return req.UserID }) {
		return
	}
	g.writeEnvelope(w, g.orch.Execute(r.Context(), req))
}

func (g *Gateway) handleSessionNew(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.AgentRequest
	if !g.decodeOwned(w, r, &req, func() string { return req.UserID }) {
		return
	}
	g.writeEnvelope(w, g.orch.NewSession(r.Context(), req))
}

func (g *Gateway) handleSessionRemove(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.SessionRequest
	if !g.decodeOwned(w, r, &req, func() string { return req.UserID }) {
		return
	}
	g.writeEnvelope(w, g.orch.RemoveSession(r.Context(), req))
}

func (g *Gateway) handleSessionList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	agentName := r.URL.Query().Get("agent_name")
	if userID == "" {
		g.sendJSONError(w, http.StatusBadRequest, errMissingUserID.Error())
		return
	}
	if !g.authorize(w, r, userID) {
		return
	}

	ids, err := g.orch.ListSessions(r.Context(), userID, agentName)
	if err != nil {
		g.logger.Error("failed to list sessions", "user_id", userID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, SessionListResponse{SessionID: ids})
}

func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if !g.authorize(w, r, userID) {
		return
	}

	raw, err := g.orch.ListAgents(r.Context(), userID)
	if err != nil {
		g.sendUpstreamError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (g *Gateway) handleRequestCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := g.orch.RequestCounts(r.Context())
	if errors.Is(err, orchestrator.ErrMetricsDisabled) {
		g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		g.sendUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// handleChat relays a runtime run_sse stream. The path form fills app_name
// and user_id when the body leaves them empty.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		req.UserID = r.PathValue("user_id")
	}
	if req.AppName == "" {
		req.AppName = r.PathValue("app_name")
	}
	if req.UserID == "" {
		g.sendJSONError(w, http.StatusBadRequest, errMissingUserID.Error())
		return
	}
	if req.Message == "" {
		g.sendJSONError(w, http.StatusBadRequest, errMissingMessage.Error())
		return
	}
	if !g.authorize(w, r, req.UserID) {
		return
	}

	// Fail fast before opening the upstream stream.
	if _, ok := w.(http.Flusher); !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	relay, err := g.orch.OpenChatStream(r.Context(), req)
	if err != nil {
		g.sendUpstreamError(w, err)
		return
	}
	defer relay.Close()

	sw, err := sse.NewWriter(w)
	if err != nil {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if req.Streaming {
		err = sse.Pipe(r.Context(), relay, sw)
	} else {
		err = g.writeFinalOnly(r.Context(), relay, sw)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		g.logger.Warn("chat stream ended with error", "user_id", req.UserID, "app_name", req.AppName, "error", err)
	}
}

// writeFinalOnly drains a relay and writes the final answer as one frame.
func (g *Gateway) writeFinalOnly(ctx context.Context, relay *sse.Relay, sw *sse.Writer) error {
	final, err := relay.Drain(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		_ = sw.WriteError(err)
		return err
	}
	if final != nil {
		text := final.Text()
		if !final.HasParts() {
			text = string(final.Raw)
		}
		if text != "" {
			if err := sw.WriteData(text); err != nil {
				return err
			}
		}
	}
	return sw.WriteDone()
}

// decodeOwned decodes a lifecycle request body and checks that the caller
// may act for the user it names. It writes the error response itself.
func (g *Gateway) decodeOwned(w http.ResponseWriter, r *http.Request, dst any, userID func() string) bool {
	if err := decodeBody(w, r, dst); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if userID() == "" {
		g.sendJSONError(w, http.StatusBadRequest, errMissingUserID.Error())
		return false
	}
	return g.authorize(w, r, userID())
}

func (g *Gateway) authorize(w http.ResponseWriter, r *http.Request, userID string) bool {
	if auth.Allowed(r.Context(), userID) {
		return true
	}
	g.logger.Warn("caller may not act for user", "user_id", userID, "path", r.URL.Path)
	g.sendJSONError(w, http.StatusForbidden, "forbidden")
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errInvalidJSON
	}
	return nil
}

func (g *Gateway) writeEnvelope(w http.ResponseWriter, env envelope.Envelope) {
	g.logger.Debug("envelope", "result", env.String())
	writeJSON(w, http.StatusOK, env)
}

// sendUpstreamError maps an upstream failure to an HTTP status: the
// upstream's own status when it answered, otherwise a gateway error.
func (g *Gateway) sendUpstreamError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if code := upstream.StatusCode(err); code != 0 {
		status = code
	} else if te, ok := upstream.AsTransportError(err); ok && te.Kind == upstream.KindTimeout {
		status = http.StatusGatewayTimeout
	} else if errors.Is(err, upstream.ErrCircuitOpen) {
		status = http.StatusServiceUnavailable
	}
	g.logger.Warn("upstream call failed", "status", status, "error", err)
	g.sendJSONError(w, status, err.Error())
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
