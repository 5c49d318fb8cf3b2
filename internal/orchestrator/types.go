// ABOUTME: Request types accepted by the orchestrator and the runtime wire payloads it sends
// ABOUTME: Credentials redact themselves when logged

package orchestrator

import (
	"encoding/json"
	"log/slog"

	"github.com/2389/cauldron-gateway/internal/envelope"
	"github.com/2389/cauldron-gateway/internal/format"
)

// Agent configuration defaults applied when a deploy leaves them unset.
const (
	DefaultModel       = "gemini-2.0-flash"
	DefaultTemplate    = "assistant_agent"
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.7
)

// AgentConfig describes the agent to deploy.
type AgentConfig struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Instruction string   `json:"instruction"`
	Model       string   `json:"model"`
	Template    string   `json:"template"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature,omitempty"`
	Tools       []string `json:"tools,omitempty"`
}

// ApplyDefaults fills unset fields and sanitizes the name.
func (c *AgentConfig) ApplyDefaults() {
	c.Name = format.SanitizeAgentName(c.Name)
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Template == "" {
		c.Template = DefaultTemplate
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == nil {
		t := DefaultTemperature
		c.Temperature = &t
	}
}

// Credentials are API keys handed to the deployed agent. They are sent to
// the deployment service but never logged.
type Credentials struct {
	OpenAIAPIKey  string `json:"openai_api_key,omitempty"`
	GoogleAPIKey  string `json:"google_api_key,omitempty"`
	WeatherAPIKey string `json:"weather_api_key,omitempty"`
}

// LogValue reports which keys are present without their values.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("openai_api_key", c.OpenAIAPIKey != ""),
		slog.Bool("google_api_key", c.GoogleAPIKey != ""),
		slog.Bool("weather_api_key", c.WeatherAPIKey != ""),
	)
}

// String keeps credentials out of %v formatting.
func (c Credentials) String() string {
	return "[REDACTED]"
}

// DeployRequest asks for an agent to be deployed for a user.
type DeployRequest struct {
	UserID      string      `json:"user_id"`
	UserUUID    string      `json:"user_uuid"`
	AgentID     string      `json:"agent_id"`
	AgentConfig AgentConfig `json:"agent_config"`
	Credentials Credentials `json:"credentials"`
	Overwrite   bool        `json:"overwrite"`
}

// Identity returns the envelope identity for the request.
func (r *DeployRequest) Identity() envelope.Identity {
	return envelope.Identity{
		UserID:    r.UserID,
		UserUUID:  r.UserUUID,
		AgentID:   r.AgentID,
		AgentName: format.SanitizeAgentName(r.AgentConfig.Name),
	}
}

// AgentRequest names a deployed agent. It is the body of stop and session
// creation calls.
type AgentRequest struct {
	UserID    string `json:"user_id"`
	UserUUID  string `json:"user_uuid"`
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
}

// Identity returns the envelope identity for the request.
func (r *AgentRequest) Identity() envelope.Identity {
	return envelope.Identity{
		UserID:    r.UserID,
		UserUUID:  r.UserUUID,
		AgentID:   r.AgentID,
		AgentName: format.SanitizeAgentName(r.AgentName),
	}
}

// SessionRequest names one session of a deployed agent.
type SessionRequest struct {
	AgentRequest
	SessionID string `json:"session_id"`
}

// ExecuteRequest runs one prompt against a session and waits for the answer.
type ExecuteRequest struct {
	AgentRequest
	SessionID          string          `json:"session_id"`
	PromptText         string          `json:"prompt_text"`
	AttachmentMetadata json.RawMessage `json:"attachment_metadata,omitempty"`
}

// SessionHandle identifies a runtime session.
type SessionHandle struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// ChatRequest opens a streaming chat on a session.
type ChatRequest struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Streaming bool   `json:"streaming"`
}

// runRequest is the runtime's /run and /run_sse body.
type runRequest struct {
	AppName    string         `json:"appName"`
	UserID     string         `json:"userId"`
	SessionID  string         `json:"sessionId"`
	NewMessage runMessage     `json:"newMessage"`
	Streaming  bool           `json:"streaming"`
	StateDelta map[string]any `json:"stateDelta,omitempty"`
}

type runMessage struct {
	Parts []runPart `json:"parts"`
	Role  string    `json:"role"`
}

type runPart struct {
	Text string `json:"text"`
}

func newRunRequest(h SessionHandle, text string, streaming bool) runRequest {
	return runRequest{
		AppName:    h.AppName,
		UserID:     h.UserID,
		SessionID:  h.SessionID,
		NewMessage: runMessage{Parts: []runPart{{Text: text}}, Role: "user"},
		Streaming:  streaming,
	}
}

// deploymentRequest is the deployment service's deploy and overwrite body.
type deploymentRequest struct {
	UserID      string      `json:"user_id"`
	AgentConfig AgentConfig `json:"agent_config"`
	Credentials Credentials `json:"credentials"`
	Overwrite   bool        `json:"overwrite"`
}

func newDeploymentRequest(r DeployRequest) deploymentRequest {
	return deploymentRequest{
		UserID:      r.UserID,
		AgentConfig: r.AgentConfig,
		Credentials: r.Credentials,
		Overwrite:   r.Overwrite,
	}
}

// createSessionRequest is the runtime's session creation body.
type createSessionRequest struct {
	AppName string `json:"app_name"`
	UserID  string `json:"user_id"`
}

// createSessionResponse is the part of the runtime's session we read.
type createSessionResponse struct {
	ID string `json:"id"`
}

// RequestCount is one row of the gateway request-count listing.
type RequestCount struct {
	Handler string `json:"handler"`
	Method  string `json:"method"`
	Status  string `json:"status"`
	Count   string `json:"count"`
}
