// Package reasoning implements the bounded reasoning loop (C8): the
// repeated LLM-call / tool-execution cycle that ends on a tool-less
// assistant turn, a transport/server error, or exhaustion of the
// iteration cap.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/forgewell/agentrt/internal/eventbus"
	"github.com/forgewell/agentrt/internal/llm"
	"github.com/forgewell/agentrt/internal/model"
	"github.com/forgewell/agentrt/internal/toolcatalog"
)

// DefaultMaxIterations is the loop's default hard ceiling, per spec §4.8.
const DefaultMaxIterations = 6

// historyWindow is N from spec §4.8: only the last N messages from the
// session's history are sent to the LLM on each turn.
const historyWindow = 8

// Catalog is the subset of toolcatalog.Catalog the agent needs.
type Catalog interface {
	ForRole(role model.Role, productionSafeMode bool) []model.ToolSpec
}

// FederatedToolSource supplies the model descriptors for federated tools,
// to be unioned with the built-in catalog.
type FederatedToolSource interface {
	ModelDescriptors() []llm.ToolDescriptor
}

// Executor is the subset of toolexec.Executor the agent needs.
type Executor interface {
	ExecuteSequence(ctx context.Context, requests []model.OutboundToolCallRef, role model.Role, onComplete func(model.ToolCall)) []model.ToolCall
}

// Sessions is the subset of sessionstore.Store the agent needs.
type Sessions interface {
	AppendMessage(id string, msg model.AgentMessage) error
	History(id string, limit int) ([]model.AgentMessage, error)
}

// Chatter is the subset of llm.Client the agent needs.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDescriptor) (*llm.ChatResult, error)
}

// Agent drives the bounded LLM/tool loop described in spec §4.8.
type Agent struct {
	LLM                Chatter
	Catalog            Catalog
	Executor           Executor
	Sessions           Sessions
	Bus                *eventbus.Bus
	Federated          FederatedToolSource
	ProductionSafeMode bool
	PromptConfig       SystemPromptConfig
}

// RunInput is one invocation of the loop.
type RunInput struct {
	SessionID     string
	UserPrompt    string
	Role          model.Role
	AllowedTools  []string
	MaxIterations int
	OnToken       func(string)

	// QuietLifecycle suppresses the agent's own agent:start/agent:done
	// events. The orchestrator sets this when it drives the loop as its
	// executing phase, since it owns the run's terminal agent:done event
	// (emitted once, after agent:review_done).
	QuietLifecycle bool
}

func (a *Agent) availableTools(role model.Role, allowed []string) []model.ToolSpec {
	specs := a.Catalog.ForRole(role, a.ProductionSafeMode)
	if len(allowed) == 0 {
		return specs
	}
	allowSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowSet[name] = struct{}{}
	}
	var out []model.ToolSpec
	for _, s := range specs {
		if _, ok := allowSet[s.Name]; ok {
			out = append(out, s)
		}
	}
	return out
}

func toLLMMessage(m model.AgentMessage) llm.Message {
	out := llm.Message{Role: string(m.Role), Content: m.Content}
	for _, tc := range m.ToolCalls {
		argsJSON, _ := json.Marshal(tc.Args)
		out.ToolCalls = append(out.ToolCalls, llm.ToolCallDesc{ID: tc.ID, Name: tc.Name, Args: argsJSON})
	}
	return out
}

// Run executes the bounded loop and returns the resulting timeline. The
// caller is responsible for serializing concurrent Run calls against the
// same session id (see sessionstore.Store.Lock).
func (a *Agent) Run(ctx context.Context, in RunInput) (*model.ExecutionTimeline, error) {
	maxIterations := in.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	timeline := &model.ExecutionTimeline{
		SessionID:  in.SessionID,
		UserPrompt: in.UserPrompt,
		StartedAt:  time.Now(),
	}

	availableSpecs := a.availableTools(in.Role, in.AllowedTools)
	modelTools := toolcatalog.ToModelDescriptors(availableSpecs)
	if a.Federated != nil {
		modelTools = append(modelTools, a.Federated.ModelDescriptors()...)
	}

	systemPrompt := BuildSystemPrompt(a.PromptConfig)

	history, err := a.Sessions.History(in.SessionID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}

	userMessage := model.AgentMessage{Role: model.MessageUser, Content: in.UserPrompt, Timestamp: time.Now()}
	if err := a.Sessions.AppendMessage(in.SessionID, userMessage); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: string(model.MessageSystem), Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, toLLMMessage(m))
	}
	messages = append(messages, toLLMMessage(userMessage))

	if !in.QuietLifecycle {
		a.Bus.Publish(in.SessionID, eventbus.AgentStart, map[string]any{"user_prompt": in.UserPrompt})
	}

	finalResponse := a.loop(ctx, in, messages, modelTools, timeline, maxIterations)

	now := time.Now()
	timeline.FinishedAt = &now
	timeline.TotalDurationMS = now.Sub(timeline.StartedAt).Milliseconds()
	timeline.FinalResponse = finalResponse

	assistantMsg := model.AgentMessage{Role: model.MessageAssistant, Content: finalResponse, Timestamp: now}
	if err := a.Sessions.AppendMessage(in.SessionID, assistantMsg); err != nil {
		return nil, fmt.Errorf("append final assistant message: %w", err)
	}

	if !in.QuietLifecycle {
		a.Bus.Publish(in.SessionID, eventbus.AgentDone, map[string]any{"final_response": finalResponse})
	}
	return timeline, nil
}

func (a *Agent) loop(ctx context.Context, in RunInput, messages []llm.Message, modelTools []llm.ToolDescriptor, timeline *model.ExecutionTimeline, maxIterations int) string {
	for i := 0; i < maxIterations; i++ {
		result, err := a.LLM.Chat(ctx, messages, modelTools)
		if err != nil {
			a.Bus.Publish(in.SessionID, eventbus.AgentError, map[string]any{"error": err.Error()})
			return fmt.Sprintf("AI Error: %s", err.Error())
		}

		if len(result.ToolCalls) == 0 {
			if in.OnToken != nil {
				for _, r := range result.Content {
					in.OnToken(string(r))
				}
			}
			return result.Content
		}

		var refs []model.OutboundToolCallRef
		assistantCalls := make([]model.OutboundToolCallRef, 0, len(result.ToolCalls))
		for _, tc := range result.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal(tc.Args, &args)
			ref := model.OutboundToolCallRef{ID: tc.ID, Name: tc.Name, Args: args}
			refs = append(refs, ref)
			assistantCalls = append(assistantCalls, ref)
		}

		assistantMsg := model.AgentMessage{Role: model.MessageAssistant, Content: result.Content, ToolCalls: assistantCalls, Timestamp: time.Now()}
		_ = a.Sessions.AppendMessage(in.SessionID, assistantMsg)
		messages = append(messages, toLLMMessage(assistantMsg))

		calls := a.Executor.ExecuteSequence(ctx, refs, in.Role, func(call model.ToolCall) {
			a.Bus.Publish(in.SessionID, eventbus.ToolExecuted, call)
		})
		for _, call := range calls {
			timeline.ToolCalls = append(timeline.ToolCalls, call)

			var content string
			if call.Status == model.ToolCallSuccess {
				pretty, err := json.MarshalIndent(call.Result, "", "  ")
				if err != nil {
					content = fmt.Sprintf("%v", call.Result)
				} else {
					content = string(pretty)
				}
			} else {
				content = fmt.Sprintf("ERROR: %s", call.Error)
			}

			toolMsg := model.AgentMessage{Role: model.MessageTool, Content: content, Timestamp: time.Now()}
			_ = a.Sessions.AppendMessage(in.SessionID, toolMsg)
			messages = append(messages, llm.Message{Role: string(model.MessageTool), Content: content, ToolName: call.ToolName})
		}
	}
	return fmt.Sprintf("Completed %d tool operations. Check the execution timeline for details.", len(timeline.ToolCalls))
}
