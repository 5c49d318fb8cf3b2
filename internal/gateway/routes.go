// ABOUTME: Route table for the gateway HTTP server
// ABOUTME: Every API route is mounted at the root and again under server.api_prefix

package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/2389/cauldron-gateway/internal/auth"
)

type route struct {
	pattern string
	handler http.HandlerFunc
}

func (g *Gateway) apiRoutes() []route {
	return []route{
		{"POST /agent/deploy", g.handleDeploy},
		{"POST /agent/stop", g.handleStop},
		{"POST /agent/execute", g.handleExecute},
		{"GET /agent/user/{user_id}/agents", g.handleListAgents},
		{"POST /agent/user/{user_id}/chat/{app_name}", g.handleChat},
		{"POST /agent/chat", g.handleChat},
		{"POST /session/new", g.handleSessionNew},
		{"POST /session/remove", g.handleSessionRemove},
		{"GET /session/list", g.handleSessionList},
		{"GET /prometheus/metrics/requests", g.handleRequestCounts},
	}
}

func (g *Gateway) publicRoutes() []route {
	return []route{
		{"GET /{$}", g.handleRoot},
		{"GET /health", g.handleHealth},
		{"GET /health/ready", g.handleReady},
	}
}

// withPrefix inserts prefix between a pattern's method and path.
func withPrefix(pattern, prefix string) string {
	if method, path, ok := strings.Cut(pattern, " "); ok {
		return method + " " + prefix + path
	}
	return prefix + pattern
}

func mount(mux *http.ServeMux, routes []route, prefix string) {
	for _, rt := range routes {
		mux.Handle(rt.pattern, rt.handler)
		if prefix != "" {
			mux.Handle(withPrefix(rt.pattern, prefix), rt.handler)
		}
	}
}

// buildHandler assembles the mux and middleware chain. API routes require a
// bearer token when verifier is non-nil; health and root routes never do.
func (g *Gateway) buildHandler(ctx context.Context, verifier auth.TokenVerifier) http.Handler {
	prefix := g.config.Server.APIPrefix

	api := http.NewServeMux()
	mount(api, g.apiRoutes(), prefix)

	var apiHandler http.Handler = api
	if verifier != nil {
		apiHandler = auth.HTTPAuthMiddleware(verifier, g.logger)(api)
	}

	mux := http.NewServeMux()
	mount(mux, g.publicRoutes(), prefix)
	mux.Handle("/", apiHandler)

	var handler http.Handler = mux
	if g.config.RateLimit.RequestsPerMin > 0 {
		handler = RateLimit(ctx, g.config.RateLimit.RequestsPerMin, g.config.RateLimit.Burst)(handler)
	}
	handler = RequestLogger(g.logger)(handler)
	return RequestID(handler)
}
