// Package model defines the core data types shared across the reasoning
// loop, tool catalog, session store, and HTTP edge.
package model

import (
	"encoding/json"
	"time"
)

// Role is a privilege level, totally ordered by the constants below.
type Role int

const (
	RoleReadonly Role = iota
	RoleDev
	RoleOperator
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleReadonly: "readonly",
	RoleDev:      "dev",
	RoleOperator: "operator",
	RoleAdmin:    "admin",
}

var roleValues = map[string]Role{
	"readonly": RoleReadonly,
	"dev":      RoleDev,
	"operator": RoleOperator,
	"admin":    RoleAdmin,
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRole converts a role name to a Role, defaulting to RoleReadonly for
// anything unrecognized (including the empty string).
func ParseRole(name string) Role {
	if r, ok := roleValues[name]; ok {
		return r
	}
	return RoleReadonly
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// ToolSpec describes one entry in the built-in tool catalog or a federated
// tool discovered from an external server.
type ToolSpec struct {
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	InputSchema        json.RawMessage `json:"input_schema"`
	RequiredRoles      []Role          `json:"required_roles"`
	SafeForProduction  bool            `json:"safe_for_production"`
	Federated          bool            `json:"federated,omitempty"`
	ServerID           string          `json:"server_id,omitempty"`
	FederatedToolName  string          `json:"federated_tool_name,omitempty"`
}

// AllowsRole reports whether the given role may invoke this tool.
func (t ToolSpec) AllowsRole(r Role) bool {
	for _, allowed := range t.RequiredRoles {
		if allowed == r {
			return true
		}
	}
	return false
}

// ToolCallStatus is the lifecycle state of a ToolCall.
type ToolCallStatus string

const (
	ToolCallPending ToolCallStatus = "pending"
	ToolCallRunning ToolCallStatus = "running"
	ToolCallSuccess ToolCallStatus = "success"
	ToolCallError   ToolCallStatus = "error"
	ToolCallSkipped ToolCallStatus = "skipped"
)

// ToolCall records one execution of a tool, from dispatch to completion.
// Mutated only by the executor that created it; once FinishedAt is set it
// must not change.
type ToolCall struct {
	ID         string         `json:"id"`
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args"`
	Status     ToolCallStatus `json:"status"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	DurationMS *int64         `json:"duration_ms,omitempty"`
}

// MessageRole identifies the author of an AgentMessage.
type MessageRole string

const (
	MessageSystem    MessageRole = "system"
	MessageUser      MessageRole = "user"
	MessageAssistant MessageRole = "assistant"
	MessageTool      MessageRole = "tool"
)

// OutboundToolCallRef is the model's request to invoke a tool: the name and
// the arguments it chose, distinct from a ToolCall (which records
// execution).
type OutboundToolCallRef struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// AgentMessage is one turn in a session's message history.
type AgentMessage struct {
	Role      MessageRole            `json:"role"`
	Content   string                 `json:"content"`
	ToolCalls []OutboundToolCallRef  `json:"tool_calls,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ExecutionTimeline is the append-only record of one reasoning-loop run.
type ExecutionTimeline struct {
	SessionID       string     `json:"session_id"`
	UserPrompt      string     `json:"user_prompt"`
	ToolCalls       []ToolCall `json:"tool_calls"`
	FinalResponse   string     `json:"final_response"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	TotalDurationMS int64      `json:"total_duration_ms"`
}

// SessionMemory is the per-session conversation state. Messages is
// strictly append-only; Role is immutable after creation; UpdatedAt is
// monotonically non-decreasing relative to CreatedAt.
type SessionMemory struct {
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	Role      Role           `json:"role"`
	Messages  []AgentMessage `json:"messages"`
	Variables map[string]any `json:"variables"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// HistorySummary is a cheap aggregate view of a session.
type HistorySummary struct {
	MessageCount   int       `json:"message_count"`
	ToolCallCount  int       `json:"tool_call_count"`
	LastActivity   time.Time `json:"last_activity"`
}

// PlanComplexity is the planner's coarse sizing judgment.
type PlanComplexity string

const (
	ComplexitySimple  PlanComplexity = "simple"
	ComplexityMedium  PlanComplexity = "medium"
	ComplexityComplex PlanComplexity = "complex"
)

// PlanStepStatus tracks a single planned step.
type PlanStepStatus string

const (
	StepPending PlanStepStatus = "pending"
	StepRunning PlanStepStatus = "running"
	StepDone    PlanStepStatus = "done"
	StepSkipped PlanStepStatus = "skipped"
)

// PlanStep is one line item in a Plan.
type PlanStep struct {
	StepNo      int            `json:"step_no"`
	Description string         `json:"description"`
	ToolHint    string         `json:"tool_hint,omitempty"`
	Status      PlanStepStatus `json:"status"`
}

// Plan is the planner sub-agent's structured output.
type Plan struct {
	Goal            string         `json:"goal"`
	Complexity      PlanComplexity `json:"complexity"`
	EstimatedTools  []string       `json:"estimated_tools"`
	Steps           []PlanStep     `json:"steps"`
}

// Review is the reviewer sub-agent's structured output.
type Review struct {
	Passed      bool     `json:"passed"`
	Score       int      `json:"score"`
	Feedback    string   `json:"feedback"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// ExternalServerConfig describes one external tool server, persisted as
// part of a JSON array. ID is stable across restarts.
type ExternalServerConfig struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Command     string            `json:"command"`
	Args        []string          `json:"args"`
	Env         map[string]string `json:"env,omitempty"`
	Enabled     bool              `json:"enabled"`
}

// ExternalServerStatus is a config plus its live connection state.
type ExternalServerStatus struct {
	ExternalServerConfig
	Connected bool   `json:"connected"`
	ToolCount int    `json:"tool_count"`
	Error     string `json:"error,omitempty"`
}

// AgentLogEntry records one phase of an orchestrator run, in emission order.
type AgentLogEntry struct {
	Agent     string    `json:"agent"`
	Timestamp time.Time `json:"timestamp"`
	Summary   string    `json:"summary"`
}

// MultiAgentTimeline augments an ExecutionTimeline with the planner and
// reviewer output plus a log of the three phases.
type MultiAgentTimeline struct {
	ExecutionTimeline
	Plan      *Plan           `json:"plan,omitempty"`
	Review    *Review         `json:"review,omitempty"`
	AgentLogs []AgentLogEntry `json:"agent_logs"`
}
