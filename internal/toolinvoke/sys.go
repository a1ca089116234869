package toolinvoke

import (
	"context"
	"time"
)

// NewSysTime builds the sys_time invoker.
func NewSysTime() Invoker {
	return InvokerFunc(func(_ context.Context, _ map[string]any) (any, error) {
		now := time.Now().UTC()
		return map[string]any{"time": now.Format(time.RFC3339)}, nil
	})
}
