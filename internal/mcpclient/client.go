package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Client owns one Transport plus the tools discovered from it at connect
// time.
type Client struct {
	serverID  string
	transport *Transport
	logger    *slog.Logger

	mu    sync.RWMutex
	tools []*MCPTool
}

// NewClient wraps a Transport under a server id, for logging and for the
// federated tool-name prefix.
func NewClient(serverID string, transport *Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		serverID:  serverID,
		transport: transport,
		logger:    logger.With("mcp_server", serverID),
	}
}

// Connect performs the three-step handshake from spec §4.4: initialize,
// notifications/initialized, tools/list.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return err
	}

	initParams := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      ClientInfo{Name: "agentrt", Version: "1.0.0"},
	}
	raw, err := c.transport.Call(ctx, "initialize", initParams)
	if err != nil {
		c.transport.Close()
		return fmt.Errorf("initialize: %w", err)
	}
	var initResult InitializeResult
	if err := json.Unmarshal(raw, &initResult); err != nil {
		c.transport.Close()
		return fmt.Errorf("parse initialize result: %w", err)
	}

	if err := c.transport.Notify("notifications/initialized", struct{}{}); err != nil {
		c.transport.Close()
		return fmt.Errorf("notifications/initialized: %w", err)
	}

	return c.refreshTools(ctx)
}

func (c *Client) refreshTools(ctx context.Context) error {
	raw, err := c.transport.Call(ctx, "tools/list", struct{}{})
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}
	var result ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("parse tools/list result: %w", err)
	}
	c.mu.Lock()
	c.tools = result.Tools
	c.mu.Unlock()
	return nil
}

// Close disconnects the underlying transport.
func (c *Client) Close() error { return c.transport.Close() }

// Connected reports live connection state.
func (c *Client) Connected() bool { return c.transport.Connected() }

// Tools returns the cached tool list from the last tools/list call.
func (c *Client) Tools() []*MCPTool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*MCPTool, len(c.tools))
	copy(out, c.tools)
	return out
}

// CallTool invokes tools/call and flattens the textual content, the way
// spec §4.4 describes: concatenate text items (JSON-serializing non-text
// items) newline-separated.
func (c *Client) CallTool(ctx context.Context, toolName string, args map[string]any) (any, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal tool arguments: %w", err)
	}
	raw, err := c.transport.Call(ctx, "tools/call", CallToolParams{Name: toolName, Arguments: argsJSON})
	if err != nil {
		return nil, err
	}

	var result ToolCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// Not every server returns the canonical content-array shape;
		// fall back to returning the raw result verbatim.
		var generic any
		if jsonErr := json.Unmarshal(raw, &generic); jsonErr == nil {
			return generic, nil
		}
		return string(raw), nil
	}

	if result.IsError {
		return nil, fmt.Errorf("tool error: %s", flattenContent(result.Content))
	}
	return flattenContent(result.Content), nil
}

func flattenContent(items []ToolResultContent) string {
	var parts []string
	for _, item := range items {
		if item.Type == "text" || item.Text != "" {
			parts = append(parts, item.Text)
			continue
		}
		data, err := json.Marshal(item)
		if err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}
