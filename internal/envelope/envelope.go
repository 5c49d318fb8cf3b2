// ABOUTME: Response envelope returned by every orchestration and execute endpoint
// ABOUTME: Pure builders that map an identity and an outcome to the wire shape

package envelope

import (
	"errors"
	"fmt"

	"github.com/2389/cauldron-gateway/internal/upstream"
)

// Status is the closed set of result codes.
type Status string

const (
	StatusCreated  Status = "01"
	StatusDeployed Status = "02"
	StatusDeleted  Status = "03"
	StatusExecuted Status = "04"
	StatusStopped  Status = "08"
	StatusFailed   Status = "99"
)

// Valid reports whether s is one of the known codes.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusDeployed, StatusDeleted, StatusExecuted, StatusStopped, StatusFailed:
		return true
	}
	return false
}

// Identity names the caller and agent an envelope is about.
type Identity struct {
	UserID    string `json:"user_id"`
	UserUUID  string `json:"user_uuid"`
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
}

// Response carries the identity plus whatever the operation produced.
type Response struct {
	Identity
	SessionID       string `json:"session_id,omitempty"`
	MessageText     string `json:"message_text,omitempty"`
	MessageMIMEType string `json:"message_mime_type,omitempty"`
	MessageHTML     string `json:"message_html,omitempty"`
}

// Message is the human-readable result line.
type Message struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

// Reason records why an operation (or one of its steps) failed.
type Reason struct {
	Text     string `json:"text"`
	Location string `json:"location"`
}

// Result is the outcome block of an envelope.
type Result struct {
	SuccessInd bool    `json:"success_ind"`
	Status     Status  `json:"status"`
	Message    Message `json:"message"`
	Reason     *Reason `json:"reason,omitempty"`
	SessionInd *bool   `json:"session_ind,omitempty"`
}

// Envelope is the body returned with HTTP 200 for every orchestration call.
type Envelope struct {
	Response Response `json:"response"`
	Result   Result   `json:"result"`
}

// MessageCode returns the result code for an agent, e.g. "AGENT-42".
func MessageCode(agentID string) string {
	return "AGENT-" + agentID
}

// Option adds optional fields to a success envelope.
type Option func(*Envelope)

// WithSession sets the session id.
func WithSession(sessionID string) Option {
	return func(e *Envelope) {
		e.Response.SessionID = sessionID
	}
}

// WithAnswer sets the agent's answer and its MIME type.
func WithAnswer(text, mimeType string) Option {
	return func(e *Envelope) {
		e.Response.MessageText = text
		e.Response.MessageMIMEType = mimeType
	}
}

// WithHTML sets a rendered HTML form of the answer.
func WithHTML(html string) Option {
	return func(e *Envelope) {
		e.Response.MessageHTML = html
	}
}

// WithSessionOutcome records whether the follow-up session step succeeded.
// A failed step also records its reason without failing the envelope.
func WithSessionOutcome(err error, location string) Option {
	return func(e *Envelope) {
		ok := err == nil
		e.Result.SessionInd = &ok
		if err != nil {
			e.Result.Reason = reasonFor(err, location)
		}
	}
}

// Success builds a successful envelope.
func Success(id Identity, status Status, text string, opts ...Option) Envelope {
	env := Envelope{
		Response: Response{Identity: id},
		Result: Result{
			SuccessInd: true,
			Status:     status,
			Message:    Message{Code: MessageCode(id.AgentID), Text: text},
		},
	}
	for _, opt := range opts {
		opt(&env)
	}
	return env
}

// Failure builds a failed envelope with status 99. location is the URL of
// the call that failed; when empty it is taken from a wrapped TransportError.
func Failure(id Identity, text string, err error, location string, opts ...Option) Envelope {
	env := Envelope{
		Response: Response{Identity: id},
		Result: Result{
			SuccessInd: false,
			Status:     StatusFailed,
			Message:    Message{Code: MessageCode(id.AgentID), Text: text},
			Reason:     reasonFor(err, location),
		},
	}
	for _, opt := range opts {
		opt(&env)
	}
	return env
}

func reasonFor(err error, location string) *Reason {
	if err == nil {
		err = errors.New("unknown error")
	}
	if location == "" {
		location = upstream.URLOf(err)
	}
	return &Reason{Text: err.Error(), Location: location}
}

// String renders a one-line summary for logs.
func (e Envelope) String() string {
	return fmt.Sprintf("%s success=%t status=%s", e.Result.Message.Code, e.Result.SuccessInd, e.Result.Status)
}
