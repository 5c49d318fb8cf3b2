// ABOUTME: Package gateway documentation
// ABOUTME: Lists the HTTP surface and its response conventions

// Package gateway is the HTTP front of cauldron-gateway.
//
// Lifecycle endpoints answer 200 with an envelope.Envelope whatever the
// outcome; the envelope's result.status says what happened:
//
//	POST /agent/deploy      02 deployed, 99 failed
//	POST /agent/stop        08 stopped, 99 failed
//	POST /agent/execute     04 executed, 99 failed
//	POST /session/new       01 created, 99 failed
//	POST /session/remove    03 deleted, 99 failed
//
// A malformed body is rejected with 400 before any upstream call, and a
// caller whose token names another user gets 403.
//
// Read-only endpoints propagate the upstream status:
//
//	GET  /agent/user/{user_id}/agents
//	GET  /session/list?user_id=&agent_name=
//	GET  /prometheus/metrics/requests
//
// Chat streams runtime output as SSE:
//
//	POST /agent/user/{user_id}/chat/{app_name}
//	POST /agent/chat
//
// Each delta is a "data:" event, the stream ends with a "done" event, and a
// failure after the stream started is sent as an "error" event. With
// streaming=false only the final answer is sent.
//
// Every route is also served under server.api_prefix. GET /, /health and
// /health/ready never require auth.
package gateway
