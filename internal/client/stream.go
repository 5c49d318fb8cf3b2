// ABOUTME: Chat streaming for the gateway client: POST /agent/chat read as SSE
// ABOUTME: Stream yields each data frame until the done event or an error event

package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/2389/cauldron-gateway/internal/orchestrator"
	"github.com/2389/cauldron-gateway/internal/sse"
)

// ErrIncomplete means the connection closed before the done event.
var ErrIncomplete = errors.New("chat stream ended before the done event")

// StreamError is an "error" event sent by the gateway mid-stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "chat stream failed: " + e.Message
}

// Chat opens a chat stream. The caller must Close the returned Stream.
func (c *Client) Chat(ctx context.Context, req orchestrator.ChatRequest) (*Stream, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetBody(req).
		SetDoNotParseResponse(true).
		Post("/agent/chat")
	if err != nil {
		return nil, fmt.Errorf("open chat: %w", err)
	}

	body := resp.RawBody()
	if resp.IsError() {
		defer body.Close()
		raw, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		return nil, apiError(resp.StatusCode(), raw)
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), 1024*1024)
	return &Stream{body: body, scanner: scanner}, nil
}

// Stream reads frames written by the gateway's SSE writer.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	text    string
	err     error
	done    bool
}

// Next advances to the next data frame. It returns false at the done event, on an
// error event, or when the connection ends; check Err afterwards.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	var (
		event string
		data  []string
	)
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case line == "":
			if event == "" && data == nil {
				continue
			}
			return s.dispatch(event, strings.Join(data, "\n"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		}
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		s.err = fmt.Errorf("reading chat stream: %w", err)
	} else {
		s.err = ErrIncomplete
	}
	return false
}

func (s *Stream) dispatch(event, payload string) bool {
	switch event {
	case sse.ErrorEvent:
		var body struct {
			Error string `json:"error"`
		}
		msg := payload
		if err := json.Unmarshal([]byte(payload), &body); err == nil && body.Error != "" {
			msg = body.Error
		}
		s.err = &StreamError{Message: msg}
		s.done = true
		return false
	case sse.DoneEvent:
		s.done = true
		return false
	}
	s.text = payload
	return true
}

// Text is the current frame's data.
func (s *Stream) Text() string {
	return s.text
}

// Err is nil after a clean done event.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the connection.
func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}
