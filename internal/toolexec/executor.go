// Package toolexec dispatches a single tool call to its backing connector
// or to the federated manager, producing a model.ToolCall record. Per
// spec §9 and §5, tool calls within one assistant turn are executed
// strictly sequentially — this package never parallelizes independent
// calls.
package toolexec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgewell/agentrt/internal/model"
	"github.com/forgewell/agentrt/internal/toolcatalog"
	"github.com/forgewell/agentrt/internal/toolinvoke"
)

// FederatedDispatcher routes a call whose name begins with "mcp__" to the
// external tool-server manager.
type FederatedDispatcher interface {
	Execute(ctx context.Context, fullName string, args map[string]any) (any, error)
}

// Catalog is the subset of toolcatalog.Catalog the executor needs.
type Catalog interface {
	ByName(name string) (model.ToolSpec, bool)
}

// Executor dispatches tool calls, enforcing role gating and recording
// timing for every call regardless of outcome.
type Executor struct {
	catalog   Catalog
	invokers  map[string]toolinvoke.Invoker
	federated FederatedDispatcher
	now       func() time.Time
}

// New builds an Executor over the given catalog and built-in invoker
// table. federated may be nil if no external tool servers are configured.
func New(catalog Catalog, invokers map[string]toolinvoke.Invoker, federated FederatedDispatcher) *Executor {
	return &Executor{
		catalog:   catalog,
		invokers:  invokers,
		federated: federated,
		now:       time.Now,
	}
}

const federatedPrefix = "mcp__"

// Execute implements the five-step algorithm from spec §4.3.
func (e *Executor) Execute(ctx context.Context, toolName string, args map[string]any, callerRole model.Role) model.ToolCall {
	call := model.ToolCall{
		ID:        uuid.NewString(),
		ToolName:  toolName,
		Args:      args,
		Status:    model.ToolCallPending,
		StartedAt: e.now(),
	}

	if strings.HasPrefix(toolName, federatedPrefix) {
		e.executeFederated(ctx, &call)
		return call
	}

	spec, ok := e.catalog.ByName(toolName)
	if !ok {
		e.fail(&call, fmt.Errorf("Unknown tool: %s", toolName))
		return call
	}
	if !spec.AllowsRole(callerRole) {
		e.denyPermission(&call, callerRole, toolName)
		return call
	}
	if err := toolcatalog.ValidateArgs(spec.InputSchema, args); err != nil {
		e.fail(&call, err)
		return call
	}

	invoker, ok := e.invokers[toolName]
	if !ok {
		e.fail(&call, fmt.Errorf("Unknown tool: %s", toolName))
		return call
	}

	call.Status = model.ToolCallRunning
	result, err := invoker.Invoke(ctx, args)
	if err != nil {
		e.fail(&call, err)
		return call
	}
	e.succeed(&call, result)
	return call
}

// ExecuteSequence runs each requested tool call in order, exactly as the
// model emitted them, feeding each completed call to onComplete before
// starting the next.
func (e *Executor) ExecuteSequence(ctx context.Context, requests []model.OutboundToolCallRef, callerRole model.Role, onComplete func(model.ToolCall)) []model.ToolCall {
	calls := make([]model.ToolCall, 0, len(requests))
	for _, req := range requests {
		call := e.Execute(ctx, req.Name, req.Args, callerRole)
		calls = append(calls, call)
		if onComplete != nil {
			onComplete(call)
		}
	}
	return calls
}

func (e *Executor) executeFederated(ctx context.Context, call *model.ToolCall) {
	if e.federated == nil {
		e.fail(call, fmt.Errorf("Unknown tool: %s", call.ToolName))
		return
	}
	call.Status = model.ToolCallRunning
	result, err := e.federated.Execute(ctx, call.ToolName, call.Args)
	if err != nil {
		e.fail(call, err)
		return
	}
	e.succeed(call, result)
}

// denyPermission implements the "duration_ms=0" requirement from spec §4.3
// step 3 and testable property 3: no side effects, instant failure.
func (e *Executor) denyPermission(call *model.ToolCall, role model.Role, toolName string) {
	now := e.now()
	call.Status = model.ToolCallError
	call.Error = fmt.Sprintf("Permission denied: role '%s' cannot use tool '%s'", role, toolName)
	call.FinishedAt = &now
	var zero int64
	call.DurationMS = &zero
}

func (e *Executor) fail(call *model.ToolCall, err error) {
	now := e.now()
	call.Status = model.ToolCallError
	call.Error = err.Error()
	call.FinishedAt = &now
	d := now.Sub(call.StartedAt).Milliseconds()
	call.DurationMS = &d
}

func (e *Executor) succeed(call *model.ToolCall, result any) {
	now := e.now()
	call.Status = model.ToolCallSuccess
	call.Result = result
	call.FinishedAt = &now
	d := now.Sub(call.StartedAt).Milliseconds()
	call.DurationMS = &d
}
