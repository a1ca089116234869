// Package metrics tracks tool-execution counters and recent-session
// summaries, exposing both a Prometheus collector (for /metrics-style
// scraping) and a plain JSON snapshot (for the HTTP edge's /api/metrics
// endpoint).
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/forgewell/agentrt/internal/model"
)

// maxRecentSessions bounds the in-memory recent-sessions list, per spec
// §4.12's "never grow unbounded" requirement.
const maxRecentSessions = 50

// ToolMetrics is the per-tool aggregate counters from spec §3.
type ToolMetrics struct {
	Count           int64 `json:"count"`
	Successes       int64 `json:"successes"`
	Errors          int64 `json:"errors"`
	TotalDurationMS int64 `json:"total_duration_ms"`
}

// SessionSummary is one entry in the bounded recent-sessions list.
type SessionSummary struct {
	SessionID     string    `json:"session_id"`
	ToolCallCount int       `json:"tool_call_count"`
	FinishedAt    time.Time `json:"finished_at"`
}

// SystemMetrics is the full JSON-serializable snapshot.
type SystemMetrics struct {
	Overall        ToolMetrics            `json:"overall"`
	ByTool         map[string]ToolMetrics `json:"by_tool"`
	RecentSessions []SessionSummary       `json:"recent_sessions"`
}

// Store holds live counters, mirrored into Prometheus collectors for
// scraping and into plain maps for the JSON snapshot endpoint.
type Store struct {
	mu             sync.Mutex
	overall        ToolMetrics
	byTool         map[string]*ToolMetrics
	recentSessions []SessionSummary

	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.CounterVec
}

// New registers the Prometheus collectors and returns an empty Store.
func New(reg prometheus.Registerer) *Store {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Store{
		byTool: make(map[string]*ToolMetrics),
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_tool_calls_total",
				Help: "Total number of tool calls by tool name and outcome",
			},
			[]string{"tool_name", "status"},
		),
		toolDuration: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_tool_call_duration_ms_total",
				Help: "Total tool call duration in milliseconds, by tool name",
			},
			[]string{"tool_name"},
		),
	}
}

// RecordToolCall folds a completed ToolCall into both the Prometheus
// collectors and the plain-map snapshot.
func (s *Store) RecordToolCall(call model.ToolCall) {
	status := "success"
	if call.Status != model.ToolCallSuccess {
		status = "error"
	}
	var durationMS int64
	if call.DurationMS != nil {
		durationMS = *call.DurationMS
	}

	s.toolCalls.WithLabelValues(call.ToolName, status).Inc()
	s.toolDuration.WithLabelValues(call.ToolName).Add(float64(durationMS))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.overall.Count++
	s.overall.TotalDurationMS += durationMS
	tm, ok := s.byTool[call.ToolName]
	if !ok {
		tm = &ToolMetrics{}
		s.byTool[call.ToolName] = tm
	}
	tm.Count++
	tm.TotalDurationMS += durationMS
	if call.Status == model.ToolCallSuccess {
		s.overall.Successes++
		tm.Successes++
	} else {
		s.overall.Errors++
		tm.Errors++
	}
}

// RecordSession appends a finished run to the bounded recent-sessions
// list, evicting the oldest entry once the cap is reached.
func (s *Store) RecordSession(timeline *model.ExecutionTimeline) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recentSessions = append(s.recentSessions, SessionSummary{
		SessionID:     timeline.SessionID,
		ToolCallCount: len(timeline.ToolCalls),
		FinishedAt:    timeline.StartedAt.Add(time.Duration(timeline.TotalDurationMS) * time.Millisecond),
	})
	if len(s.recentSessions) > maxRecentSessions {
		s.recentSessions = s.recentSessions[len(s.recentSessions)-maxRecentSessions:]
	}
}

// Snapshot returns a defensive copy of the full metrics state.
func (s *Store) Snapshot() SystemMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTool := make(map[string]ToolMetrics, len(s.byTool))
	for name, tm := range s.byTool {
		byTool[name] = *tm
	}
	sessions := make([]SessionSummary, len(s.recentSessions))
	copy(sessions, s.recentSessions)

	return SystemMetrics{
		Overall:        s.overall,
		ByTool:         byTool,
		RecentSessions: sessions,
	}
}

// Reset zeroes every counter and clears the recent-sessions list,
// including the underlying Prometheus vectors.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.overall = ToolMetrics{}
	s.byTool = make(map[string]*ToolMetrics)
	s.recentSessions = nil
	s.toolCalls.Reset()
	s.toolDuration.Reset()
}
