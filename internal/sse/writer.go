// ABOUTME: Outbound SSE writer for relayed agent output
// ABOUTME: Writes data frames, the done event, and error events to an http.ResponseWriter

package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DoneEvent names the event that terminates a successful stream. Clients
	// must stop on the event name; a delta may legitimately carry DoneMarker.
	DoneEvent = "done"
	// DoneMarker is the data sent with DoneEvent.
	DoneMarker = "[DONE]"
	// ErrorEvent names a mid-stream failure event.
	ErrorEvent = "error"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// Writer frames outbound events and flushes after each one.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter sets the SSE headers, sends the 200 status and returns a Writer.
// It fails before writing anything if w does not support flushing.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteData writes one data frame. Multi-line text is split across several
// data: lines so the event boundary stays intact.
func (sw *Writer) WriteData(data string) error {
	if _, err := io.WriteString(sw.w, FormatData(data)); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// WriteDone writes the end-of-stream event.
func (sw *Writer) WriteDone() error {
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", DoneEvent, DoneMarker); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// WriteError writes an error event with a JSON body.
func (sw *Writer) WriteError(cause error) error {
	data, err := json.Marshal(map[string]string{"error": cause.Error()})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", ErrorEvent, data); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// FormatData renders text as an SSE data event.
func FormatData(data string) string {
	if !strings.ContainsAny(data, "\r\n") {
		return "data: " + data + "\n\n"
	}
	var sb strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return sb.String()
}

// Pipe relays every frame to sw and then terminates the stream: a done event on a
// normal end, an error event on a stream failure, nothing on cancellation.
// It returns the relay's error, or the first write error.
func Pipe(ctx context.Context, r *Relay, sw *Writer) error {
	for r.Next(ctx) {
		if err := sw.WriteData(r.Frame().Data); err != nil {
			r.Close()
			return fmt.Errorf("writing frame: %w", err)
		}
	}

	err := r.Err()
	switch {
	case err == nil:
		return sw.WriteDone()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		if werr := sw.WriteError(err); werr != nil {
			return errors.Join(err, werr)
		}
		return err
	}
}
