// Package sse decodes the agent runtime's Server-Sent Events stream and
// relays it to callers.
//
// Decode turns a response body into a channel of Payload values. Relay
// filters those into outbound frames: partial payloads become text deltas in
// arrival order, and the first non-partial payload ends the stream and is
// kept as the final answer. Writer and Pipe put the frames on the wire.
package sse
