package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/forgewell/agentrt/internal/llm"
	"github.com/forgewell/agentrt/internal/model"
)

// federatedPrefix names every tool the manager exposes to the reasoning
// loop: mcp__<server_id>__<tool_name>.
const federatedPrefix = "mcp__"

// FederatedTool is one tool discovered from a connected server, keeping
// the server id and bare tool name explicit rather than only ever
// reconstructible by parsing FullName — see spec §9's resolution of the
// "server ids may contain __" ambiguity.
type FederatedTool struct {
	ServerID    string          `json:"server_id"`
	ToolName    string          `json:"tool_name"`
	FullName    string          `json:"full_name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Manager owns a set of Clients keyed by server id, persisting their
// configuration to a JSON file and aggregating their discovered tools.
type Manager struct {
	configPath string
	logger     *slog.Logger

	mu      sync.RWMutex
	configs map[string]model.ExternalServerConfig
	clients map[string]*Client
	errs    map[string]string
}

// NewManager builds a Manager persisting to configPath (typically
// "<cwd>/mcp-servers.json").
func NewManager(configPath string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		configPath: configPath,
		logger:     logger,
		configs:    make(map[string]model.ExternalServerConfig),
		clients:    make(map[string]*Client),
		errs:       make(map[string]string),
	}
}

// Load reads the persisted config file. A missing file is equivalent to
// an empty list, per spec §6.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read mcp server config: %w", err)
	}
	var configs []model.ExternalServerConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return fmt.Errorf("parse mcp server config: %w", err)
	}
	m.mu.Lock()
	for _, c := range configs {
		m.configs[c.ID] = c
	}
	m.mu.Unlock()
	return nil
}

// persistLocked writes the full config list atomically (write to a temp file,
// then rename), serialized by the caller already holding m.mu.
func (m *Manager) persistLocked() error {
	list := make([]model.ExternalServerConfig, 0, len(m.configs))
	for _, c := range m.configs {
		list = append(list, c)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mcp server config: %w", err)
	}
	dir := filepath.Dir(m.configPath)
	tmp, err := os.CreateTemp(dir, "mcp-servers-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, m.configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

// ConnectAll starts every enabled config. Per spec §4.5, failures are
// captured per-id and never abort the process.
func (m *Manager) ConnectAll(ctx context.Context) map[string]error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.configs))
	for id, c := range m.configs {
		if c.Enabled {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	var resMu sync.Mutex
	results := make(map[string]error)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := m.Connect(ctx, id)
			resMu.Lock()
			results[id] = err
			resMu.Unlock()
		}(id)
	}
	wg.Wait()
	return results
}

// Connect connects (or reconnects) the client for serverID.
func (m *Manager) Connect(ctx context.Context, serverID string) error {
	m.mu.Lock()
	cfg, ok := m.configs[serverID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown server id: %s", serverID)
	}
	if existing, connected := m.clients[serverID]; connected && existing.Connected() {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	transport := NewTransport(cfg.Command, cfg.Args, cfg.Env, m.logger)
	client := NewClient(serverID, transport, m.logger)
	err := client.Connect(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.errs[serverID] = err.Error()
		return err
	}
	m.clients[serverID] = client
	delete(m.errs, serverID)
	return nil
}

// Disconnect closes and forgets the client for serverID, if any.
func (m *Manager) Disconnect(serverID string) {
	m.mu.Lock()
	client, ok := m.clients[serverID]
	delete(m.clients, serverID)
	m.mu.Unlock()
	if ok {
		client.Close()
	}
}

// Add assigns a uuid, persists, and (if enabled) connects.
func (m *Manager) Add(ctx context.Context, cfg model.ExternalServerConfig) (model.ExternalServerConfig, error) {
	cfg.ID = uuid.NewString()

	m.mu.Lock()
	m.configs[cfg.ID] = cfg
	err := m.persistLocked()
	m.mu.Unlock()
	if err != nil {
		return model.ExternalServerConfig{}, err
	}

	if cfg.Enabled {
		_ = m.Connect(ctx, cfg.ID)
	}
	return cfg, nil
}

// Remove disconnects (if present) then removes and persists.
func (m *Manager) Remove(id string) error {
	m.Disconnect(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, id)
	delete(m.errs, id)
	return m.persistLocked()
}

// Update merges partial fields into the existing config, persists, and
// reconnects or disconnects to match the new Enabled state. Non-empty
// strings and non-nil Args/Env in partial replace the existing values;
// Enabled is always taken from partial, so a partial that leaves it unset
// disables the server.
func (m *Manager) Update(ctx context.Context, id string, partial model.ExternalServerConfig) (model.ExternalServerConfig, error) {
	m.mu.Lock()
	existing, ok := m.configs[id]
	if !ok {
		m.mu.Unlock()
		return model.ExternalServerConfig{}, fmt.Errorf("unknown server id: %s", id)
	}
	merged := mergeConfig(existing, partial)
	m.configs[id] = merged
	err := m.persistLocked()
	m.mu.Unlock()
	if err != nil {
		return model.ExternalServerConfig{}, err
	}

	if merged.Enabled {
		m.Disconnect(id)
		_ = m.Connect(ctx, id)
	} else {
		m.Disconnect(id)
	}
	return merged, nil
}

func mergeConfig(base, partial model.ExternalServerConfig) model.ExternalServerConfig {
	out := base
	if partial.Name != "" {
		out.Name = partial.Name
	}
	if partial.Description != "" {
		out.Description = partial.Description
	}
	if partial.Command != "" {
		out.Command = partial.Command
	}
	if partial.Args != nil {
		out.Args = partial.Args
	}
	if partial.Env != nil {
		out.Env = partial.Env
	}
	out.Enabled = partial.Enabled
	return out
}

// Reconnect forces a disconnect-then-connect of the existing config.
func (m *Manager) Reconnect(ctx context.Context, id string) error {
	m.Disconnect(id)
	return m.Connect(ctx, id)
}

// AllTools returns the union of tools from every connected client.
func (m *Manager) AllTools() []FederatedTool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []FederatedTool
	for id, client := range m.clients {
		for _, t := range client.Tools() {
			out = append(out, FederatedTool{
				ServerID:    id,
				ToolName:    t.Name,
				FullName:    federatedPrefix + id + "__" + t.Name,
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
	}
	return out
}

// ModelDescriptors projects every discovered federated tool into the
// shape the LLM client expects, for union with the built-in catalog.
func (m *Manager) ModelDescriptors() []llm.ToolDescriptor {
	tools := m.AllTools()
	out := make([]llm.ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, llm.ToolDescriptor{
			Name:        t.FullName,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

// ParseFullName splits a federated tool name on the first "__" after the
// mcp__ prefix, as a fallback for names that did not arrive through
// AllTools's explicit (server_id, tool_name) pairs.
func ParseFullName(fullName string) (serverID, toolName string, ok bool) {
	rest, ok := strings.CutPrefix(fullName, federatedPrefix)
	if !ok {
		return "", "", false
	}
	idx := strings.Index(rest, "__")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+2:], true
}

// Execute parses fullName and delegates to the matching connected client.
func (m *Manager) Execute(ctx context.Context, fullName string, args map[string]any) (any, error) {
	serverID, toolName, ok := m.resolveFullName(fullName)
	if !ok {
		return nil, fmt.Errorf("unrecognized federated tool name: %s", fullName)
	}

	m.mu.RLock()
	client, connected := m.clients[serverID]
	m.mu.RUnlock()
	if !connected {
		return nil, fmt.Errorf("federated server %q is not connected", serverID)
	}
	return client.CallTool(ctx, toolName, args)
}

// resolveFullName first checks the live tool table (which stores
// server_id/tool_name explicitly) before falling back to the first-"__"
// parse, so server ids containing "__" are never misparsed once the tool
// has actually been discovered.
func (m *Manager) resolveFullName(fullName string) (serverID, toolName string, ok bool) {
	m.mu.RLock()
	for id, client := range m.clients {
		for _, t := range client.Tools() {
			if federatedPrefix+id+"__"+t.Name == fullName {
				m.mu.RUnlock()
				return id, t.Name, true
			}
		}
	}
	m.mu.RUnlock()
	return ParseFullName(fullName)
}

// Status returns a snapshot of every configured server; never blocks on
// the child process.
func (m *Manager) Status() []model.ExternalServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.ExternalServerStatus, 0, len(m.configs))
	for id, cfg := range m.configs {
		status := model.ExternalServerStatus{ExternalServerConfig: cfg}
		if client, ok := m.clients[id]; ok {
			status.Connected = client.Connected()
			status.ToolCount = len(client.Tools())
		}
		if errMsg, ok := m.errs[id]; ok {
			status.Error = errMsg
		}
		out = append(out, status)
	}
	return out
}

// Shutdown disconnects every connected client, for graceful process exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
