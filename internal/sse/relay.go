// ABOUTME: Stream relay that turns decoded runtime payloads into outbound text frames
// ABOUTME: Forwards partial deltas in order and captures the final payload without forwarding it

package sse

import (
	"context"
	"io"
)

// Frame is one outbound delta.
type Frame struct {
	Data string
}

// Relay pulls payloads from a decoded stream and yields outbound frames.
// Use it like bufio.Scanner:
//
//	r := sse.NewRelay(sse.Decode(ctx, body))
//	for r.Next(ctx) {
//		send(r.Frame())
//	}
//	if err := r.Err(); err != nil { ... }
//	final := r.Final()
//
// A Relay is not safe for concurrent use.
type Relay struct {
	events <-chan Event
	frame  Frame
	final  *Payload
	err    error
	done   bool
	cancel context.CancelFunc
}

// NewRelay wraps a decoded event stream.
func NewRelay(events <-chan Event) *Relay {
	return &Relay{events: events}
}

// Open decodes body and returns a Relay over it. body is closed as soon as
// the relay stops, whether on the final payload, a failure, or cancellation.
func Open(ctx context.Context, body io.ReadCloser) *Relay {
	ctx, cancel := context.WithCancel(ctx)
	r := NewRelay(Decode(ctx, body))
	r.cancel = cancel
	return r
}

// Next advances to the next outbound frame. It returns false when the final
// payload arrives, the stream ends, ctx is cancelled, or the stream fails.
func (r *Relay) Next(ctx context.Context) bool {
	if r.done {
		return false
	}

	for {
		// A buffered event and a done context can both be ready; cancellation wins.
		if err := ctx.Err(); err != nil {
			r.finish(err)
			return false
		}

		select {
		case <-ctx.Done():
			r.finish(ctx.Err())
			return false

		case ev, ok := <-r.events:
			if !ok {
				// The decoder closes without an error on cancellation too.
				r.finish(ctx.Err())
				return false
			}
			if ev.Err != nil {
				r.finish(ev.Err)
				return false
			}

			p := ev.Payload
			if !p.IsPartial() {
				r.final = p
				r.finish(nil)
				return false
			}

			if !p.HasParts() {
				return r.emit(ctx, string(p.Raw))
			}
			if text := p.Text(); text != "" {
				return r.emit(ctx, text)
			}
		}
	}
}

func (r *Relay) emit(ctx context.Context, data string) bool {
	if err := ctx.Err(); err != nil {
		r.finish(err)
		return false
	}
	r.frame = Frame{Data: data}
	return true
}

// Frame returns the frame produced by the last successful Next.
func (r *Relay) Frame() Frame {
	return r.frame
}

// Final returns the terminal payload, or nil if the stream ended without one.
func (r *Relay) Final() *Payload {
	return r.final
}

// Err returns the error that stopped the relay: a *StreamError, a context
// error on cancellation, or nil on a normal end.
func (r *Relay) Err() error {
	return r.err
}

// Drain discards remaining deltas and returns the final payload.
func (r *Relay) Drain(ctx context.Context) (*Payload, error) {
	for r.Next(ctx) {
	}
	return r.final, r.err
}

// Close stops the relay early and releases the upstream stream.
func (r *Relay) Close() {
	if !r.done {
		r.finish(context.Canceled)
	}
}

func (r *Relay) finish(err error) {
	r.done = true
	r.err = err
	r.frame = Frame{}
	if r.cancel != nil {
		r.cancel()
	}
	// Unblock the decoder goroutine if it is mid-send.
	go func(events <-chan Event) {
		for range events {
		}
	}(r.events)
}
