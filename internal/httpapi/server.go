// Package httpapi is the HTTP/WebSocket edge (C13): a uniform JSON
// envelope over net/http's pattern-based ServeMux, plus a WebSocket
// bridge from the event bus.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgewell/agentrt/internal/authz"
	"github.com/forgewell/agentrt/internal/eventbus"
	"github.com/forgewell/agentrt/internal/llm"
	"github.com/forgewell/agentrt/internal/mcpclient"
	"github.com/forgewell/agentrt/internal/metrics"
	"github.com/forgewell/agentrt/internal/model"
	"github.com/forgewell/agentrt/internal/orchestrator"
	"github.com/forgewell/agentrt/internal/reasoning"
	"github.com/forgewell/agentrt/internal/sessionstore"
	"github.com/forgewell/agentrt/internal/toolcatalog"
)

// envelope is the uniform response shape for every JSON endpoint.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeOK(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, envelope{Success: true, Data: data, Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

func writeErr(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, envelope{Success: false, Error: message, Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// LLMHealthChecker is the subset of llm.Client the health endpoint needs.
type LLMHealthChecker interface {
	Health(ctx context.Context) llm.HealthResult
}

// Server wires the reasoning/orchestration stack to HTTP.
type Server struct {
	Logger             *slog.Logger
	Sessions           *sessionstore.Store
	Catalog            *toolcatalog.Catalog
	MCP                *mcpclient.Manager
	Metrics            *metrics.Store
	Tokens             *authz.TokenTable
	Orchestrator       *orchestrator.Orchestrator
	Bus                *eventbus.Bus
	LLM                LLMHealthChecker
	ProductionSafeMode bool

	httpServer *http.Server
	listener   net.Listener
}

// Mux builds the ServeMux with every route from spec §6's endpoint table.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("GET /api/permissions/{role}", s.handlePermissions)

	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)

	mux.HandleFunc("POST /api/chat", s.handleChat)

	mux.HandleFunc("GET /api/metrics", s.handleGetMetrics)
	mux.HandleFunc("DELETE /api/metrics", s.handleResetMetrics)

	mux.HandleFunc("GET /api/mcp/servers", s.handleListMCPServers)
	mux.HandleFunc("POST /api/mcp/servers", s.handleAddMCPServer)
	mux.HandleFunc("PATCH /api/mcp/servers/{id}", s.handleUpdateMCPServer)
	mux.HandleFunc("DELETE /api/mcp/servers/{id}", s.handleRemoveMCPServer)
	mux.HandleFunc("POST /api/mcp/servers/{id}/reconnect", s.handleReconnectMCPServer)
	mux.HandleFunc("GET /api/mcp/tools", s.handleListMCPTools)

	mux.Handle("/ws", s.newWSHandler())

	return mux
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpServer = server
	s.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("http server error", "error", err)
		}
	}()
	s.Logger.Info("starting http server", "addr", addr)
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Warn("http server shutdown error", "error", err)
	}
}

func (s *Server) roleFromRequest(r *http.Request) model.Role {
	return s.Tokens.Resolve(r.Header.Get("Authorization"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"status": "ok"}
	if s.LLM != nil {
		health := s.LLM.Health(r.Context())
		payload["llm"] = map[string]any{"available": health.Available, "models": health.Models}
	}
	writeOK(w, http.StatusOK, payload)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	role := s.roleFromRequest(r)
	specs := s.Catalog.ForRole(role, s.ProductionSafeMode)
	writeOK(w, http.StatusOK, specs)
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	role := model.ParseRole(r.PathValue("role"))
	specs := s.Catalog.ForRole(role, s.ProductionSafeMode)
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)
	}
	writeOK(w, http.StatusOK, map[string]any{"role": role.String(), "allowed_tools": names})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, s.Sessions.List())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	role := s.roleFromRequest(r)
	session := s.Sessions.Create(body.UserID, role)
	writeOK(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, err := s.Sessions.Get(id)
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	writeOK(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Sessions.Clear(id); err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"deleted": id})
}

type chatRequest struct {
	Message       string   `json:"message"`
	SessionID     string   `json:"session_id,omitempty"`
	UserID        string   `json:"user_id,omitempty"`
	Role          string   `json:"role,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	AllowedTools  []string `json:"allowed_tools,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty"`
}

type chatResponse struct {
	SessionID string                   `json:"session_id"`
	Response  string                   `json:"response"`
	Timeline  model.ExecutionTimeline  `json:"timeline"`
	Plan      *model.Plan              `json:"plan,omitempty"`
	Review    *model.Review            `json:"review,omitempty"`
	Mode      string                   `json:"mode"`
}

// handleChat drives one run per spec §6's /api/chat contract: mode
// "multi" (the default) composes plan -> execute -> review via the
// orchestrator; mode "single" runs the reasoning loop directly with no
// planner/reviewer pass. Per spec §5, concurrent chat calls against the
// same session id are serialized by the session store's per-id lock.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeErr(w, http.StatusBadRequest, "message is required")
		return
	}

	role := s.roleFromRequest(r)
	if req.Role != "" {
		role = model.ParseRole(req.Role)
	}
	session := s.Sessions.GetOrCreate(req.SessionID, req.UserID, role)

	unlock := s.Sessions.Lock(session.SessionID)
	defer unlock()

	runInput := reasoning.RunInput{
		SessionID:     session.SessionID,
		UserPrompt:    req.Message,
		Role:          session.Role,
		AllowedTools:  req.AllowedTools,
		MaxIterations: req.MaxIterations,
	}

	mode := req.Mode
	if mode == "" {
		mode = "multi"
	}

	var timeline model.ExecutionTimeline
	var plan *model.Plan
	var review *model.Review

	if mode == "single" {
		single, err := s.Orchestrator.Agent.Run(r.Context(), runInput)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		timeline = *single
	} else {
		multi, err := s.Orchestrator.Run(r.Context(), runInput)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		timeline = multi.ExecutionTimeline
		plan = multi.Plan
		review = multi.Review
	}

	for _, call := range timeline.ToolCalls {
		s.Metrics.RecordToolCall(call)
	}
	s.Metrics.RecordSession(&timeline)

	writeOK(w, http.StatusOK, chatResponse{
		SessionID: session.SessionID,
		Response:  timeline.FinalResponse,
		Timeline:  timeline,
		Plan:      plan,
		Review:    review,
		Mode:      mode,
	})
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, s.Metrics.Snapshot())
}

func (s *Server) handleResetMetrics(w http.ResponseWriter, r *http.Request) {
	s.Metrics.Reset()
	writeOK(w, http.StatusOK, map[string]any{"reset": true})
}

func (s *Server) handleListMCPServers(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, s.MCP.Status())
}

func (s *Server) handleAddMCPServer(w http.ResponseWriter, r *http.Request) {
	var cfg model.ExternalServerConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.MCP.Add(r.Context(), cfg)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateMCPServer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var partial model.ExternalServerConfig
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := s.MCP.Update(r.Context(), id, partial)
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	writeOK(w, http.StatusOK, updated)
}

func (s *Server) handleRemoveMCPServer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.MCP.Remove(id); err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleReconnectMCPServer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.MCP.Reconnect(r.Context(), id); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"reconnected": id})
}

func (s *Server) handleListMCPTools(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, s.MCP.AllTools())
}
