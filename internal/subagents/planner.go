// Package subagents implements the two single-call LLM helpers that
// bracket the reasoning loop: a planner (C9) that sketches steps before
// execution, and a reviewer (C10) that grades the outcome afterward.
package subagents

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/forgewell/agentrt/internal/llm"
	"github.com/forgewell/agentrt/internal/model"
)

const plannerSystemPrompt = `You are a planning assistant. Given a user's request, produce a short
plan of the steps needed to satisfy it.

Respond with ONLY a JSON object of this shape, no prose, no code fence:
{
  "complexity": "simple" | "medium" | "complex",
  "estimated_tools": ["tool_name", ...],
  "steps": [{"step_no": 1, "description": "...", "tool_hint": "..."}]
}`

// Chatter is the subset of llm.Client the planner and reviewer need.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDescriptor) (*llm.ChatResult, error)
}

// Planner produces a Plan for a user prompt via a single dedicated LLM call.
type Planner struct {
	LLM           Chatter
	KnownToolName func(name string) bool
}

type plannerJSON struct {
	Complexity     string `json:"complexity"`
	EstimatedTools []string `json:"estimated_tools"`
	Steps          []struct {
		StepNo      int    `json:"step_no"`
		Description string `json:"description"`
		ToolHint    string `json:"tool_hint"`
	} `json:"steps"`
}

// Plan asks the LLM for a plan, falling back to a deterministic one-step
// plan when the response cannot be parsed, per spec §4.9.
func (p *Planner) Plan(ctx context.Context, userPrompt string) *model.Plan {
	messages := []llm.Message{
		{Role: string(model.MessageSystem), Content: plannerSystemPrompt},
		{Role: string(model.MessageUser), Content: userPrompt},
	}
	result, err := p.LLM.Chat(ctx, messages, nil)
	if err != nil {
		return fallbackPlan(userPrompt)
	}

	var parsed plannerJSON
	if err := json.Unmarshal([]byte(stripCodeFence(result.Content)), &parsed); err != nil {
		return fallbackPlan(userPrompt)
	}

	plan := &model.Plan{
		Goal:       userPrompt,
		Complexity: normalizeComplexity(parsed.Complexity),
	}
	for _, name := range parsed.EstimatedTools {
		if p.KnownToolName == nil || p.KnownToolName(name) {
			plan.EstimatedTools = append(plan.EstimatedTools, name)
		}
	}
	for _, s := range parsed.Steps {
		plan.Steps = append(plan.Steps, model.PlanStep{
			StepNo:      s.StepNo,
			Description: s.Description,
			ToolHint:    s.ToolHint,
			Status:      model.StepPending,
		})
	}
	if len(plan.Steps) == 0 {
		return fallbackPlan(userPrompt)
	}
	return plan
}

func fallbackPlan(userPrompt string) *model.Plan {
	return &model.Plan{
		Goal:       userPrompt,
		Complexity: model.ComplexitySimple,
		Steps: []model.PlanStep{
			{StepNo: 1, Description: userPrompt, Status: model.StepPending},
		},
	}
}

func normalizeComplexity(raw string) model.PlanComplexity {
	switch model.PlanComplexity(strings.ToLower(strings.TrimSpace(raw))) {
	case model.ComplexitySimple:
		return model.ComplexitySimple
	case model.ComplexityMedium:
		return model.ComplexityMedium
	case model.ComplexityComplex:
		return model.ComplexityComplex
	default:
		return model.ComplexitySimple
	}
}

// stripCodeFence removes a leading/trailing ``` or ```json fence, since
// local models frequently wrap JSON in one despite instructions not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
