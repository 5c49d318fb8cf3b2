// ABOUTME: URL construction for runtime, deployment, and Prometheus endpoints
// ABOUTME: Path segments taken from callers are escaped

package orchestrator

import (
	"net/url"
	"strings"
)

type endpoints struct {
	runtime    string
	deploy     string
	prometheus string
}

func newEndpoints(runtimeBase, deployBase, prometheusURL string) endpoints {
	return endpoints{
		runtime:    strings.TrimRight(runtimeBase, "/"),
		deploy:     strings.TrimRight(deployBase, "/"),
		prometheus: strings.TrimRight(prometheusURL, "/"),
	}
}

func seg(s string) string {
	return url.PathEscape(s)
}

func (e endpoints) run(userID string) string {
	return e.runtime + "/users/" + seg(userID) + "/run"
}

func (e endpoints) runSSE(userID string) string {
	return e.runtime + "/users/" + seg(userID) + "/run_sse"
}

func (e endpoints) sessions(userID, appName string) string {
	return e.runtime + "/users/" + seg(userID) + "/apps/" + seg(appName) + "/users/" + seg(userID) + "/sessions"
}

func (e endpoints) session(userID, appName, sessionID string) string {
	return e.sessions(userID, appName) + "/" + seg(sessionID)
}

func (e endpoints) deployAgent() string {
	return e.deploy + "/api/v1/agents/deploy"
}

func (e endpoints) overwriteAgent() string {
	return e.deploy + "/api/v1/agents/deploy/overwrite"
}

func (e endpoints) deployed(userID, agentName string) string {
	return e.deploy + "/api/v1/agents/deployed/" + seg(userID) + "/" + seg(agentName)
}

func (e endpoints) userAgents(userID string) string {
	return e.deploy + "/api/v1/agents/user/" + seg(userID)
}

func (e endpoints) promQuery(query string) string {
	return e.prometheus + "/api/v1/query?" + url.Values{"query": {query}}.Encode()
}
