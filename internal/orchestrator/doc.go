// ABOUTME: Package orchestrator documentation
// ABOUTME: Describes the deploy, execute, and session workflows

// Package orchestrator drives the agent runtime and deployment service on
// behalf of the gateway's HTTP handlers.
//
// Lifecycle operations (Deploy, Stop, Execute, NewSession, RemoveSession)
// never return errors. Each builds an envelope.Envelope, with status 99 and
// a reason for failures, so handlers can always answer 200.
//
// Deploy is a small state machine:
//
//	deploy -> deployed                 -> create session
//	       -> conflict (409) -> overwrite -> deployed -> create session
//	                                      -> failed (terminal)
//	       -> failed (terminal)
//
// A failed session step leaves the deploy successful with session_ind=false.
//
// Read-only calls (ListAgents, ListSessions, RequestCounts) and
// OpenChatStream return errors so the caller can propagate upstream status.
package orchestrator
