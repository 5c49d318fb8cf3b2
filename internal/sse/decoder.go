// ABOUTME: Incremental decoder for the agent runtime's SSE stream
// ABOUTME: Turns "data:" lines into Payload values, skipping lines that are not valid JSON

package sse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	initialLineBuffer = 64 << 10
	maxLineLength     = 4 << 20
)

var dataPrefix = []byte("data:")

// Part is one piece of a runtime message.
type Part struct {
	Text *string `json:"text,omitempty"`
}

// Content is the message body carried by a runtime event.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Payload is one decoded runtime event. Fields are optional: the decoder only
// guarantees that Raw is valid JSON, not that it has any particular shape.
type Payload struct {
	Partial *bool    `json:"partial,omitempty"`
	Content *Content `json:"content,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// IsPartial reports whether the payload is an incremental delta. A missing
// partial field counts as final.
func (p *Payload) IsPartial() bool {
	return p.Partial != nil && *p.Partial
}

// HasParts reports whether the payload carries at least one content part.
func (p *Payload) HasParts() bool {
	return p.Content != nil && len(p.Content.Parts) > 0
}

// Text concatenates the text of every part, skipping parts without text.
func (p *Payload) Text() string {
	if p.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range p.Content.Parts {
		if part.Text != nil {
			sb.WriteString(*part.Text)
		}
	}
	return sb.String()
}

// StreamError is a fatal failure while reading the upstream stream. It is
// distinct from a normal end of stream and from cancellation.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("reading upstream stream: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Event is one element of a decoded stream: either a Payload or, as the last
// element, a fatal error.
type Event struct {
	Payload *Payload
	Err     error
}

// ParsePayload decodes one "data:" value. It returns an error only when data
// is not valid JSON; JSON of any other shape yields a Payload with just Raw set.
func ParsePayload(data []byte) (*Payload, error) {
	if !json.Valid(data) {
		return nil, errors.New("invalid JSON")
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)

	p := &Payload{Raw: raw}
	if err := json.Unmarshal(raw, p); err != nil {
		// Valid JSON that doesn't fit the schema passes through with Raw only.
		p = &Payload{Raw: raw}
	}
	return p, nil
}

// Decode reads SSE lines from body and sends each decoded payload on the
// returned channel, in arrival order. Lines without a data: prefix and data
// that is not valid JSON are skipped. The channel is closed when the stream
// ends, when ctx is cancelled, or after a fatal StreamError has been sent.
// body is always closed, including when ctx is cancelled mid-read.
func Decode(ctx context.Context, body io.ReadCloser) <-chan Event {
	ch := make(chan Event)
	stop := context.AfterFunc(ctx, func() { body.Close() })

	go func() {
		defer close(ch)
		defer body.Close()
		defer stop()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineLength)

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}

			line := bytes.TrimSpace(scanner.Bytes())
			if !bytes.HasPrefix(line, dataPrefix) {
				continue
			}
			data := bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))

			payload, err := ParsePayload(data)
			if err != nil {
				continue
			}

			select {
			case ch <- Event{Payload: payload}:
			case <-ctx.Done():
				return
			}
		}

		err := scanner.Err()
		if err == nil || ctx.Err() != nil {
			return
		}
		select {
		case ch <- Event{Err: &StreamError{Err: err}}:
		case <-ctx.Done():
		}
	}()

	return ch
}
