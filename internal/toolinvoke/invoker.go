// Package toolinvoke holds the concrete backing connectors for built-in
// tools: one Invoker per tool, grouped by subdomain (database, REST,
// filesystem, git, key-value/queue, web, system).
package toolinvoke

import "context"

// Invoker is the uniform interface every built-in tool connector
// implements, replacing a dispatch-by-string switch per spec §9.
type Invoker interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// InvokerFunc adapts a plain function to an Invoker.
type InvokerFunc func(ctx context.Context, args map[string]any) (any, error)

func (f InvokerFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intArg(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
