// ABOUTME: Workflow tests for the orchestrator against a stub runtime and deployment service
// ABOUTME: Covers the overwrite-once rule, session side effects, execute translation, and redaction

package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/2389/cauldron-gateway/internal/envelope"
	"github.com/2389/cauldron-gateway/internal/format"
	"github.com/2389/cauldron-gateway/internal/store"
	"github.com/2389/cauldron-gateway/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend plays both the runtime and the deployment service. Handlers
// are keyed by "METHOD /path"; unknown routes answer 404.
type stubBackend struct {
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
	bodies   map[string][]byte
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]int),
		bodies:   make(map[string][]byte),
	}
}

func (b *stubBackend) handle(route string, h http.HandlerFunc) {
	b.handlers[route] = h
}

func (b *stubBackend) respond(route string, status int, body string) {
	b.handle(route, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func (b *stubBackend) count(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

func (b *stubBackend) body(route string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[route]
}

func (b *stubBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.EscapedPath()
	data, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.hits[route]++
	b.bodies[route] = data
	h := b.handlers[route]
	b.mu.Unlock()

	if h == nil {
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
		return
	}
	h(w, r)
}

type fixture struct {
	backend *stubBackend
	server  *httptest.Server
	store   *store.MockStore
	orch    *Orchestrator
	logs    *bytes.Buffer
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	backend := newStubBackend()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := Config{RuntimeBase: srv.URL, DeployBase: srv.URL}
	if mutate != nil {
		mutate(&cfg)
	}

	sessions := store.NewMockStore()
	client := upstream.New(upstream.WithTimeout(2*time.Second), upstream.WithLogger(logger))
	orch := New(cfg, client, sessions, logger)
	t.Cleanup(orch.Close)

	return &fixture{backend: backend, server: srv, store: sessions, orch: orch, logs: logs}
}

const (
	routeDeploy    = "POST /api/v1/agents/deploy"
	routeOverwrite = "POST /api/v1/agents/deploy/overwrite"
	routeSessions  = "POST /users/u1/apps/calc/users/u1/sessions"
	routeRun       = "POST /users/u1/run"
)

func deployRequest() DeployRequest {
	return DeployRequest{
		UserID:   "u1",
		UserUUID: "uuid-1",
		AgentID:  "42",
		AgentConfig: AgentConfig{
			Name:        "calc",
			Description: "calculator",
			Instruction: "do math",
		},
		Credentials: Credentials{OpenAIAPIKey: "sk-very-secret", GoogleAPIKey: "g-secret"},
	}
}

func agentRequest() AgentRequest {
	return AgentRequest{UserID: "u1", UserUUID: "uuid-1", AgentID: "42", AgentName: "calc"}
}

func TestDeploy_Success(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeDeploy, http.StatusOK, `{"status":"deployed"}`)
	f.backend.respond(routeSessions, http.StatusOK, `{"id":"sess-1","appName":"calc"}`)

	env := f.orch.Deploy(context.Background(), deployRequest())

	assert.True(t, env.Result.SuccessInd)
	assert.Equal(t, envelope.StatusDeployed, env.Result.Status)
	assert.Equal(t, "AGENT-42", env.Result.Message.Code)
	assert.Equal(t, "sess-1", env.Response.SessionID)
	require.NotNil(t, env.Result.SessionInd)
	assert.True(t, *env.Result.SessionInd)
	assert.Nil(t, env.Result.Reason)

	assert.Equal(t, 1, f.backend.count(routeDeploy))
	assert.Equal(t, 0, f.backend.count(routeOverwrite))

	sessions, err := f.store.ListSessions(context.Background(), "u1", "calc")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1"}, store.SessionIDs(sessions))
}

func TestDeploy_WireBodyCarriesOnlyDeploymentFields(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeDeploy, http.StatusConflict, `{"detail":"exists"}`)
	f.backend.respond(routeOverwrite, http.StatusOK, `{}`)
	f.backend.respond(routeSessions, http.StatusOK, `{"id":"s"}`)

	env := f.orch.Deploy(context.Background(), deployRequest())
	require.True(t, env.Result.SuccessInd)

	for _, route := range []string{routeDeploy, routeOverwrite} {
		var sent map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(f.backend.body(route), &sent), route)
		keys := make([]string, 0, len(sent))
		for k := range sent {
			keys = append(keys, k)
		}
		assert.ElementsMatch(t, []string{"user_id", "agent_config", "credentials", "overwrite"}, keys, route)
		assert.JSONEq(t, `"u1"`, string(sent["user_id"]), route)
	}
}

func TestDeploy_AppliesDefaults(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeDeploy, http.StatusOK, `{}`)
	f.backend.respond(routeSessions, http.StatusOK, `{"id":"s"}`)

	f.orch.Deploy(context.Background(), deployRequest())

	var sent DeployRequest
	require.NoError(t, json.Unmarshal(f.backend.body(routeDeploy), &sent))
	assert.Equal(t, DefaultModel, sent.AgentConfig.Model)
	assert.Equal(t, DefaultTemplate, sent.AgentConfig.Template)
	assert.Equal(t, DefaultMaxTokens, sent.AgentConfig.MaxTokens)
	require.NotNil(t, sent.AgentConfig.Temperature)
	assert.InDelta(t, DefaultTemperature, *sent.AgentConfig.Temperature, 1e-9)
	assert.Equal(t, "sk-very-secret", sent.Credentials.OpenAIAPIKey, "credentials are forwarded to the deployment service")
}

func TestDeploy_ConflictOverwritesOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeDeploy, http.StatusConflict, `{"detail":"exists"}`)
	f.backend.respond(routeOverwrite, http.StatusOK, `{"status":"updated"}`)
	f.backend.respond(routeSessions, http.StatusOK, `{"id":"sess-2"}`)

	env := f.orch.Deploy(context.Background(), deployRequest())

	assert.True(t, env.Result.SuccessInd)
	assert.Equal(t, envelope.StatusDeployed, env.Result.Status)
	assert.Equal(t, "agent redeployed", env.Result.Message.Text)
	assert.Equal(t, "sess-2", env.Response.SessionID)
	assert.Equal(t, 1, f.backend.count(routeDeploy))
	assert.Equal(t, 1, f.backend.count(routeOverwrite))
}

func TestDeploy_SecondConflictIsTerminal(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeDeploy, http.StatusConflict, `{}`)
	f.backend.respond(routeOverwrite, http.StatusConflict, `{"detail":"still exists"}`)

	env := f.orch.Deploy(context.Background(), deployRequest())

	assert.False(t, env.Result.SuccessInd)
	assert.Equal(t, envelope.StatusFailed, env.Result.Status)
	require.NotNil(t, env.Result.Reason)
	assert.Equal(t, f.server.URL+"/api/v1/agents/deploy/overwrite", env.Result.Reason.Location)
	assert.Contains(t, env.Result.Reason.Text, "409")
	assert.Equal(t, 1, f.backend.count(routeOverwrite))
	assert.Equal(t, 0, f.backend.count(routeSessions))
}

func TestDeploy_OtherFailureDoesNotOverwrite(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusInternalServerError} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			f := newFixture(t, nil)
			f.backend.respond(routeDeploy, status, `{"detail":"boom"}`)

			env := f.orch.Deploy(context.Background(), deployRequest())

			assert.False(t, env.Result.SuccessInd)
			assert.Equal(t, envelope.StatusFailed, env.Result.Status)
			require.NotNil(t, env.Result.Reason)
			assert.Equal(t, f.server.URL+"/api/v1/agents/deploy", env.Result.Reason.Location)
			assert.Equal(t, 0, f.backend.count(routeOverwrite))
			assert.Equal(t, 0, f.backend.count(routeSessions))
		})
	}
}

func TestDeploy_SessionFailureKeepsDeploySuccessful(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeDeploy, http.StatusOK, `{}`)
	f.backend.respond(routeSessions, http.StatusBadGateway, `{"detail":"runtime down"}`)

	env := f.orch.Deploy(context.Background(), deployRequest())

	assert.True(t, env.Result.SuccessInd)
	assert.Equal(t, envelope.StatusDeployed, env.Result.Status)
	require.NotNil(t, env.Result.SessionInd)
	assert.False(t, *env.Result.SessionInd)
	require.NotNil(t, env.Result.Reason)
	assert.Equal(t, f.server.URL+"/users/u1/apps/calc/users/u1/sessions", env.Result.Reason.Location)
	assert.Empty(t, env.Response.SessionID)
}

func TestDeploy_SessionResponseWithoutID(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeDeploy, http.StatusOK, `{}`)
	f.backend.respond(routeSessions, http.StatusOK, `{"appName":"calc"}`)

	env := f.orch.Deploy(context.Background(), deployRequest())

	assert.True(t, env.Result.SuccessInd)
	require.NotNil(t, env.Result.SessionInd)
	assert.False(t, *env.Result.SessionInd)
}

func TestDeploy_StoreFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SaveErr = fmt.Errorf("disk full")
	f.backend.respond(routeDeploy, http.StatusOK, `{}`)
	f.backend.respond(routeSessions, http.StatusOK, `{"id":"sess-1"}`)

	env := f.orch.Deploy(context.Background(), deployRequest())

	assert.True(t, env.Result.SuccessInd)
	require.NotNil(t, env.Result.SessionInd)
	assert.True(t, *env.Result.SessionInd)
	assert.Contains(t, f.logs.String(), "recording session failed")
}

func TestDeploy_RejectsDuplicateInFlight(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.DedupeWindow = time.Minute })
	require.True(t, f.orch.deploying.Acquire("u1/calc"))

	env := f.orch.Deploy(context.Background(), deployRequest())

	assert.False(t, env.Result.SuccessInd)
	assert.Equal(t, envelope.StatusFailed, env.Result.Status)
	require.NotNil(t, env.Result.Reason)
	assert.Equal(t, ErrDeployInFlight.Error(), env.Result.Reason.Text)
	assert.Empty(t, env.Result.Reason.Location, "no upstream URL was called")
	assert.Equal(t, 0, f.backend.count(routeDeploy))
}

func TestDeploy_SequentialDeploysWithDefaultWindow(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeDeploy, http.StatusOK, `{}`)
	f.backend.respond(routeSessions, http.StatusOK, `{"id":"s"}`)

	first := f.orch.Deploy(context.Background(), deployRequest())
	second := f.orch.Deploy(context.Background(), deployRequest())

	assert.True(t, first.Result.SuccessInd)
	assert.True(t, second.Result.SuccessInd, "second deploy: %+v", second.Result)
	assert.Equal(t, envelope.StatusDeployed, second.Result.Status)
	assert.Equal(t, 2, f.backend.count(routeDeploy))
}

func TestDeploy_ConcurrentSubmitsDeployOnce(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.DedupeWindow = time.Minute })
	release := make(chan struct{})
	f.backend.handle(routeDeploy, func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = io.WriteString(w, `{}`)
	})
	f.backend.respond(routeSessions, http.StatusOK, `{"id":"s"}`)

	first := make(chan envelope.Envelope, 1)
	go func() { first <- f.orch.Deploy(context.Background(), deployRequest()) }()

	require.Eventually(t, func() bool { return f.backend.count(routeDeploy) == 1 }, 2*time.Second, 5*time.Millisecond)
	second := f.orch.Deploy(context.Background(), deployRequest())
	close(release)

	assert.False(t, second.Result.SuccessInd)
	assert.True(t, (<-first).Result.SuccessInd)
	assert.Equal(t, 1, f.backend.count(routeDeploy))
}

func TestDeploy_UnaffectedByFailingRuntime(t *testing.T) {
	runtime := newStubBackend()
	runtime.respond(routeRun, http.StatusInternalServerError, `{"detail":"boom"}`)
	runtimeSrv := httptest.NewServer(runtime)
	defer runtimeSrv.Close()

	deploy := newStubBackend()
	deploy.respond(routeDeploy, http.StatusOK, `{}`)
	deploySrv := httptest.NewServer(deploy)
	defer deploySrv.Close()

	client := upstream.New(
		upstream.WithTimeout(2*time.Second),
		upstream.WithBreaker(upstream.BreakerSettings{MaxFailures: 5, Timeout: time.Minute}),
	)
	orch := New(Config{RuntimeBase: runtimeSrv.URL, DeployBase: deploySrv.URL}, client, store.NewMockStore(), nil)
	defer orch.Close()

	for i := 0; i < 6; i++ {
		env := orch.Execute(context.Background(), executeRequest("hi"))
		require.False(t, env.Result.SuccessInd)
	}
	assert.Equal(t, 5, runtime.count(routeRun), "runtime breaker should be open")

	req := deployRequest()
	req.UserID = "u2"
	env := orch.Deploy(context.Background(), req)

	assert.True(t, env.Result.SuccessInd, "deploy: %+v", env.Result)
	assert.Equal(t, envelope.StatusDeployed, env.Result.Status)
	assert.Equal(t, 1, deploy.count(routeDeploy))
}

func TestDeploy_CredentialsAreNotLogged(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeDeploy, http.StatusOK, `{}`)
	f.backend.respond(routeSessions, http.StatusOK, `{"id":"s"}`)

	f.orch.Deploy(context.Background(), deployRequest())

	logs := f.logs.String()
	assert.NotContains(t, logs, "sk-very-secret")
	assert.NotContains(t, logs, "g-secret")
	assert.Contains(t, logs, `"openai_api_key":true`)
	assert.Contains(t, logs, `"weather_api_key":false`)
}

func TestDeploy_SanitizesAgentName(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeDeploy, http.StatusOK, `{}`)
	f.backend.respond("POST /users/u1/apps/my_agent/users/u1/sessions", http.StatusOK, `{"id":"s"}`)

	req := deployRequest()
	req.AgentConfig.Name = "my agent!"
	env := f.orch.Deploy(context.Background(), req)

	assert.Equal(t, "my_agent", env.Response.AgentName)
	assert.Equal(t, "s", env.Response.SessionID)

	var sent DeployRequest
	require.NoError(t, json.Unmarshal(f.backend.body(routeDeploy), &sent))
	assert.Equal(t, "my_agent", sent.AgentConfig.Name)
}

func TestStop(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond("DELETE /api/v1/agents/deployed/u1/calc", http.StatusOK, `{"status":"deleted"}`)

	env := f.orch.Stop(context.Background(), agentRequest())

	assert.True(t, env.Result.SuccessInd)
	assert.Equal(t, envelope.StatusStopped, env.Result.Status)
	assert.Equal(t, 1, f.backend.count("DELETE /api/v1/agents/deployed/u1/calc"))
}

func TestStop_TransportFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.server.Close()

	env := f.orch.Stop(context.Background(), agentRequest())

	assert.False(t, env.Result.SuccessInd)
	assert.Equal(t, envelope.StatusFailed, env.Result.Status)
	require.NotNil(t, env.Result.Reason)
	assert.NotEmpty(t, env.Result.Reason.Text)
	assert.Equal(t, f.server.URL+"/api/v1/agents/deployed/u1/calc", env.Result.Reason.Location)
}

func runAnswer(text string) string {
	b, _ := json.Marshal([]map[string]any{{
		"content": map[string]any{"parts": []map[string]string{{"text": text}}, "role": "model"},
		"author":  "calc",
	}})
	return string(b)
}

func executeRequest(prompt string) ExecuteRequest {
	return ExecuteRequest{AgentRequest: agentRequest(), SessionID: "sess-1", PromptText: prompt}
}

func TestExecute_PlainAnswer(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeRun, http.StatusOK, runAnswer("24642"))

	env := f.orch.Execute(context.Background(), executeRequest("111*222는?"))

	assert.True(t, env.Result.SuccessInd)
	assert.Equal(t, envelope.StatusExecuted, env.Result.Status)
	assert.Equal(t, "24642", env.Response.MessageText)
	assert.Equal(t, format.MIMEPlain, env.Response.MessageMIMEType)
	assert.Equal(t, "sess-1", env.Response.SessionID)
	assert.Empty(t, env.Response.MessageHTML)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(f.backend.body(routeRun), &sent))
	assert.Equal(t, "calc", sent["appName"])
	assert.Equal(t, "u1", sent["userId"])
	assert.Equal(t, "sess-1", sent["sessionId"])
	assert.Equal(t, false, sent["streaming"])
	assert.NotContains(t, sent, "stateDelta")
	msg := sent["newMessage"].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "111*222는?", msg["parts"].([]any)[0].(map[string]any)["text"])
}

func TestExecute_MarkdownAnswer(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RenderMarkdown = true })
	f.backend.respond(routeRun, http.StatusOK, runAnswer("The answer is **24642**"))

	env := f.orch.Execute(context.Background(), executeRequest("111*222?"))

	assert.Equal(t, format.MIMEMarkdown, env.Response.MessageMIMEType)
	assert.Contains(t, env.Response.MessageHTML, "<strong>24642</strong>")
}

func TestExecute_MarkdownNotRenderedByDefault(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeRun, http.StatusOK, runAnswer("# Title"))

	env := f.orch.Execute(context.Background(), executeRequest("x"))

	assert.Equal(t, format.MIMEMarkdown, env.Response.MessageMIMEType)
	assert.Empty(t, env.Response.MessageHTML)
}

func TestExecute_ForwardsAttachments(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeRun, http.StatusOK, runAnswer("ok"))

	req := executeRequest("summarize")
	req.AttachmentMetadata = json.RawMessage(`[{"name":"a.pdf"}]`)
	f.orch.Execute(context.Background(), req)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(f.backend.body(routeRun), &sent))
	delta, ok := sent["stateDelta"].(map[string]any)
	require.True(t, ok, "stateDelta missing: %s", f.backend.body(routeRun))
	assert.Equal(t, []any{map[string]any{"name": "a.pdf"}}, delta["attachments"])
}

func TestExecute_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty list", http.StatusOK, `[]`},
		{"no parts", http.StatusOK, `[{"content":{"parts":[]}}]`},
		{"no text", http.StatusOK, `[{"content":{"parts":[{"functionCall":{}}]}}]`},
		{"not json events", http.StatusOK, `"hello"`},
		{"upstream error", http.StatusInternalServerError, `{"detail":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.backend.respond(routeRun, tt.status, tt.body)

			env := f.orch.Execute(context.Background(), executeRequest("x"))

			assert.False(t, env.Result.SuccessInd)
			assert.Equal(t, envelope.StatusFailed, env.Result.Status)
			require.NotNil(t, env.Result.Reason)
			assert.Equal(t, f.server.URL+"/users/u1/run", env.Result.Reason.Location)
			assert.Equal(t, "sess-1", env.Response.SessionID)
		})
	}
}

func TestExecute_SingleEventObject(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeRun, http.StatusOK, `{"content":{"parts":[{"text":"hi"}]}}`)

	env := f.orch.Execute(context.Background(), executeRequest("x"))

	assert.True(t, env.Result.SuccessInd)
	assert.Equal(t, "hi", env.Response.MessageText)
}

func TestNewSession(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeSessions, http.StatusOK, `{"id":"sess-9"}`)

	env := f.orch.NewSession(context.Background(), agentRequest())

	assert.True(t, env.Result.SuccessInd)
	assert.Equal(t, envelope.StatusCreated, env.Result.Status)
	assert.Equal(t, "sess-9", env.Response.SessionID)
	assert.Nil(t, env.Result.SessionInd)

	var sent createSessionRequest
	require.NoError(t, json.Unmarshal(f.backend.body(routeSessions), &sent))
	assert.Equal(t, createSessionRequest{AppName: "calc", UserID: "u1"}, sent)

	ids, err := f.orch.ListSessions(context.Background(), "u1", "calc")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-9"}, ids)
}

func TestNewSession_Failure(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond(routeSessions, http.StatusInternalServerError, `{}`)

	env := f.orch.NewSession(context.Background(), agentRequest())

	assert.False(t, env.Result.SuccessInd)
	assert.Equal(t, envelope.StatusFailed, env.Result.Status)
	assert.Equal(t, f.server.URL+"/users/u1/apps/calc/users/u1/sessions", env.Result.Reason.Location)
}

func TestRemoveSession(t *testing.T) {
	f := newFixture(t, nil)
	route := "DELETE /users/u1/apps/calc/users/u1/sessions/sess-1"
	f.backend.respond(route, http.StatusOK, ``)
	require.NoError(t, f.store.SaveSession(context.Background(), &store.Session{UserID: "u1", AgentName: "calc", SessionID: "sess-1"}))

	env := f.orch.RemoveSession(context.Background(), SessionRequest{AgentRequest: agentRequest(), SessionID: "sess-1"})

	assert.True(t, env.Result.SuccessInd)
	assert.Equal(t, envelope.StatusDeleted, env.Result.Status)
	assert.Equal(t, "sess-1", env.Response.SessionID)
	assert.Equal(t, 1, f.backend.count(route))

	ids, err := f.orch.ListSessions(context.Background(), "u1", "calc")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRemoveSession_UnknownLocally(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond("DELETE /users/u1/apps/calc/users/u1/sessions/other", http.StatusOK, `{}`)

	env := f.orch.RemoveSession(context.Background(), SessionRequest{AgentRequest: agentRequest(), SessionID: "other"})

	assert.True(t, env.Result.SuccessInd)
	assert.NotContains(t, f.logs.String(), "forgetting session failed")
}

func TestRemoveSession_Failure(t *testing.T) {
	f := newFixture(t, nil)

	env := f.orch.RemoveSession(context.Background(), SessionRequest{AgentRequest: agentRequest(), SessionID: "missing"})

	assert.False(t, env.Result.SuccessInd)
	assert.Equal(t, envelope.StatusFailed, env.Result.Status)
	assert.Contains(t, env.Result.Reason.Text, "404")
}

func TestListSessions_WithoutStore(t *testing.T) {
	o := New(Config{}, upstream.New(), nil, nil)
	defer o.Close()

	ids, err := o.ListSessions(context.Background(), "u1", "calc")
	require.NoError(t, err)
	assert.Equal(t, []string{}, ids)
}

func TestListAgents(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond("GET /api/v1/agents/user/u1", http.StatusOK, `[{"name":"calc"}]`)

	raw, err := f.orch.ListAgents(context.Background(), "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"calc"}]`, string(raw))
}

func TestListAgents_PropagatesStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.respond("GET /api/v1/agents/user/u1", http.StatusServiceUnavailable, `{}`)

	_, err := f.orch.ListAgents(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, upstream.StatusCode(err))
}

func TestRequestCounts(t *testing.T) {
	var query string
	f := newFixture(t, nil)
	f.backend.handle("GET /api/v1/query", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("query")
		_, _ = io.WriteString(w, `{"status":"success","data":{"resultType":"vector","result":[
			{"metric":{"handler":"/agent/deploy","method":"POST","status":"200"},"value":[1700000000.1,"12"]},
			{"metric":{"handler":"/","method":"GET","status":"200"},"value":[1700000000.1,"3.5"]}
		]}}`)
	})
	f.orch.cfg.PrometheusURL = f.server.URL
	f.orch.cfg.MetricsWindow = "1h"
	f.orch.urls = newEndpoints(f.server.URL, f.server.URL, f.server.URL)

	counts, err := f.orch.RequestCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []RequestCount{
		{Handler: "/agent/deploy", Method: "POST", Status: "200", Count: "12"},
		{Handler: "/", Method: "GET", Status: "200", Count: "3.5"},
	}, counts)
	assert.Equal(t, RequestCountQuery("1h"), query)
}

func TestRequestCounts_Disabled(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.orch.RequestCounts(context.Background())
	assert.ErrorIs(t, err, ErrMetricsDisabled)
}

func TestOpenChatStream(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.handle("POST /users/u1/run_sse", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`data: {"partial":true,"content":{"parts":[{"text":"246"}]}}`,
			`data: {"partial":true,"content":{"parts":[{"text":"42"}]}}`,
			`data: {"content":{"parts":[{"text":"24642"}]}}`,
		}
		for _, l := range lines {
			_, _ = io.WriteString(w, l+"\n\n")
		}
	})

	relay, err := f.orch.OpenChatStream(context.Background(), ChatRequest{
		AppName: "calc", UserID: "u1", SessionID: "sess-1", Message: "111*222는?", Streaming: true,
	})
	require.NoError(t, err)
	defer relay.Close()

	var frames []string
	for relay.Next(context.Background()) {
		frames = append(frames, relay.Frame().Data)
	}
	require.NoError(t, relay.Err())
	assert.Equal(t, []string{"246", "42"}, frames)
	require.NotNil(t, relay.Final())
	assert.Equal(t, "24642", relay.Final().Text())

	var sent map[string]any
	require.NoError(t, json.Unmarshal(f.backend.body("POST /users/u1/run_sse"), &sent))
	assert.Equal(t, true, sent["streaming"])
	assert.Equal(t, "calc", sent["appName"])
}

func TestOpenChatStream_UpstreamError(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orch.OpenChatStream(context.Background(), ChatRequest{AppName: "calc", UserID: "u1", Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, upstream.StatusCode(err))
}

func TestCredentials_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("x", "credentials", Credentials{WeatherAPIKey: "w-key"})

	out := buf.String()
	assert.NotContains(t, out, "w-key")
	assert.Contains(t, out, "credentials.weather_api_key=true")
	assert.Equal(t, "[REDACTED]", fmt.Sprint(Credentials{OpenAIAPIKey: "x"}))
}
