// Package orchestrator composes the planner, reasoning agent, and reviewer
// sub-agents (C9-C11) into one multi-agent run, publishing phase events to
// the event bus as it goes.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/forgewell/agentrt/internal/eventbus"
	"github.com/forgewell/agentrt/internal/model"
	"github.com/forgewell/agentrt/internal/reasoning"
	"github.com/forgewell/agentrt/internal/subagents"
)

// Agent is the subset of reasoning.Agent the orchestrator needs.
type Agent interface {
	Run(ctx context.Context, in reasoning.RunInput) (*model.ExecutionTimeline, error)
}

// Orchestrator runs plan -> execute -> review for one request.
type Orchestrator struct {
	Planner  *subagents.Planner
	Agent    Agent
	Reviewer *subagents.Reviewer
	Bus      *eventbus.Bus
	now      func() time.Time
}

// New builds an Orchestrator over the given sub-agents.
func New(planner *subagents.Planner, agent Agent, reviewer *subagents.Reviewer, bus *eventbus.Bus) *Orchestrator {
	return &Orchestrator{Planner: planner, Agent: agent, Reviewer: reviewer, Bus: bus, now: time.Now}
}

// Run executes the three phases in order, producing a MultiAgentTimeline
// with exactly three AgentLogEntry records: planner, executor, reviewer.
func (o *Orchestrator) Run(ctx context.Context, in reasoning.RunInput) (*model.MultiAgentTimeline, error) {
	o.Bus.Publish(in.SessionID, eventbus.AgentPlanning, map[string]any{"user_prompt": in.UserPrompt})
	plan := o.Planner.Plan(ctx, in.UserPrompt)
	planLogTime := o.now()
	o.Bus.Publish(in.SessionID, eventbus.AgentPlanReady, plan)

	o.Bus.Publish(in.SessionID, eventbus.AgentExecuting, map[string]any{"session_id": in.SessionID})
	in.QuietLifecycle = true
	timeline, err := o.Agent.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	executorLogTime := o.now()

	o.Bus.Publish(in.SessionID, eventbus.AgentReviewing, map[string]any{"session_id": in.SessionID})
	review := o.Reviewer.Review(ctx, in.UserPrompt, timeline)
	reviewLogTime := o.now()
	o.Bus.Publish(in.SessionID, eventbus.AgentReviewDone, review)
	o.Bus.Publish(in.SessionID, eventbus.AgentDone, map[string]any{"final_response": timeline.FinalResponse})

	result := &model.MultiAgentTimeline{
		ExecutionTimeline: *timeline,
		Plan:              plan,
		Review:            review,
		AgentLogs: []model.AgentLogEntry{
			{Agent: "planner", Timestamp: planLogTime, Summary: planSummary(plan)},
			{Agent: "executor", Timestamp: executorLogTime, Summary: executorSummary(timeline)},
			{Agent: "reviewer", Timestamp: reviewLogTime, Summary: review.Feedback},
		},
	}
	return result, nil
}

func planSummary(plan *model.Plan) string {
	if plan == nil {
		return "no plan produced"
	}
	return fmt.Sprintf("%s plan with %d step(s)", plan.Complexity, len(plan.Steps))
}

func executorSummary(timeline *model.ExecutionTimeline) string {
	return fmt.Sprintf("%d tool call(s) executed", len(timeline.ToolCalls))
}
