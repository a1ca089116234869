package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgewell/agentrt/internal/authz"
	"github.com/forgewell/agentrt/internal/eventbus"
	"github.com/forgewell/agentrt/internal/llm"
	"github.com/forgewell/agentrt/internal/mcpclient"
	"github.com/forgewell/agentrt/internal/metrics"
	"github.com/forgewell/agentrt/internal/model"
	"github.com/forgewell/agentrt/internal/orchestrator"
	"github.com/forgewell/agentrt/internal/reasoning"
	"github.com/forgewell/agentrt/internal/sessionstore"
	"github.com/forgewell/agentrt/internal/subagents"
	"github.com/forgewell/agentrt/internal/toolcatalog"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeChatter struct {
	content string
}

func (f *fakeChatter) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDescriptor) (*llm.ChatResult, error) {
	return &llm.ChatResult{Content: f.content}, nil
}

type fakeAgent struct{}

func (f *fakeAgent) Run(ctx context.Context, in reasoning.RunInput) (*model.ExecutionTimeline, error) {
	return &model.ExecutionTimeline{SessionID: in.SessionID, FinalResponse: "agent reply"}, nil
}

type fakeLLMHealth struct {
	result llm.HealthResult
}

func (f *fakeLLMHealth) Health(ctx context.Context) llm.HealthResult {
	return f.result
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	planner := &subagents.Planner{LLM: &fakeChatter{content: `{"complexity":"simple","steps":[{"step_no":1,"description":"do it"}]}`}}
	reviewer := &subagents.Reviewer{LLM: &fakeChatter{content: `{"passed":true,"score":9,"feedback":"ok"}`}}
	bus := eventbus.New()

	s := &Server{
		Logger:       slog.Default(),
		Sessions:     sessionstore.New(),
		Catalog:      toolcatalog.New(),
		MCP:          mcpclient.NewManager(filepath.Join(t.TempDir(), "mcp-servers.json"), slog.Default()),
		Metrics:      metrics.New(prometheus.NewRegistry()),
		Tokens:       authz.NewTokenTable(map[string]string{"adm1n": "admin"}),
		Orchestrator: orchestrator.New(planner, &fakeAgent{}, reviewer, bus),
		Bus:          bus,
	}

	srv := httptest.NewServer(s.Mux())
	t.Cleanup(srv.Close)
	return s, srv
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestHandleHealth(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
}

func TestHandleHealthSurfacesLLMHealth(t *testing.T) {
	s, srv := newTestServer(t)
	s.LLM = &fakeLLMHealth{result: llm.HealthResult{Available: true, Models: []string{"llama3.1"}}}

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	llmData, ok := data["llm"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, llmData["available"])
	assert.Equal(t, []any{"llama3.1"}, llmData["models"])
}

func TestHandleListToolsDefaultsToReadonlyRole(t *testing.T) {
	s, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/tools")
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)
	assert.NotNil(t, env.Data)
	assert.Len(t, env.Data, len(s.Catalog.ForRole(model.RoleReadonly, s.ProductionSafeMode)))
}

func TestHandlePermissionsReturnsAllowedTools(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/permissions/admin")
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)

	data := env.Data.(map[string]any)
	assert.Equal(t, "admin", data["role"])
	assert.NotEmpty(t, data["allowed_tools"])
}

func TestSessionCRUDFlow(t *testing.T) {
	_, srv := newTestServer(t)

	createResp, err := http.Post(srv.URL+"/api/sessions", "application/json", bytes.NewBufferString(`{"user_id":"u1"}`))
	require.NoError(t, err)
	env := decodeEnvelope(t, createResp)
	require.True(t, env.Success)
	require.Equal(t, http.StatusCreated, createResp.StatusCode)

	data := env.Data.(map[string]any)
	sessionID := data["session_id"].(string)
	require.NotEmpty(t, sessionID)

	getResp, err := http.Get(srv.URL + "/api/sessions/" + sessionID)
	require.NoError(t, err)
	env = decodeEnvelope(t, getResp)
	assert.True(t, env.Success)

	delReq, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+sessionID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(delReq)
	require.NoError(t, err)
	env = decodeEnvelope(t, delResp)
	assert.True(t, env.Success)

	missingResp, err := http.Get(srv.URL + "/api/sessions/" + sessionID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, missingResp.StatusCode)
}

func TestHandleChatRejectsEmptyMessage(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewBufferString(`{"message":""}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleChatMultiModeRunsOrchestrator(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewBufferString(`{"message":"hello"}`))
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	require.True(t, env.Success)

	data := env.Data.(map[string]any)
	assert.Equal(t, "multi", data["mode"])
	assert.NotNil(t, data["plan"])
	assert.NotNil(t, data["review"])
}

func TestHandleChatSingleModeSkipsPlannerAndReviewer(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewBufferString(`{"message":"hello","mode":"single"}`))
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	require.True(t, env.Success)

	data := env.Data.(map[string]any)
	assert.Equal(t, "single", data["mode"])
	assert.Equal(t, "agent reply", data["response"])
	assert.Nil(t, data["plan"])
}

func TestHandleMetricsGetAndReset(t *testing.T) {
	s, srv := newTestServer(t)
	s.Metrics.RecordToolCall(model.ToolCall{ToolName: "fs_read", Status: model.ToolCallSuccess})

	getResp, err := http.Get(srv.URL + "/api/metrics")
	require.NoError(t, err)
	env := decodeEnvelope(t, getResp)
	require.True(t, env.Success)

	delReq, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/metrics", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(delReq)
	require.NoError(t, err)
	env = decodeEnvelope(t, delResp)
	assert.True(t, env.Success)
}

func TestMCPServerCRUDFlow(t *testing.T) {
	_, srv := newTestServer(t)

	addBody, _ := json.Marshal(model.ExternalServerConfig{
		Name:    "local",
		Command: "does-not-exist-binary",
		Enabled: false,
	})
	addResp, err := http.Post(srv.URL+"/api/mcp/servers", "application/json", bytes.NewReader(addBody))
	require.NoError(t, err)
	env := decodeEnvelope(t, addResp)
	require.True(t, env.Success)
	require.Equal(t, http.StatusCreated, addResp.StatusCode)

	data := env.Data.(map[string]any)
	id := data["id"].(string)
	require.NotEmpty(t, id)

	listResp, err := http.Get(srv.URL + "/api/mcp/servers")
	require.NoError(t, err)
	env = decodeEnvelope(t, listResp)
	assert.True(t, env.Success)

	patchBody := bytes.NewBufferString(`{"description":"updated"}`)
	patchReq, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/mcp/servers/"+id, patchBody)
	require.NoError(t, err)
	patchResp, err := http.DefaultClient.Do(patchReq)
	require.NoError(t, err)
	env = decodeEnvelope(t, patchResp)
	assert.True(t, env.Success)

	delReq, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/mcp/servers/"+id, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(delReq)
	require.NoError(t, err)
	env = decodeEnvelope(t, delResp)
	assert.True(t, env.Success)
}

func TestHandleListMCPToolsEmptyByDefault(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/mcp/tools")
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	assert.True(t, env.Success)
	assert.Empty(t, env.Data)
}
