package mcpclient

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgewell/agentrt/internal/model"
)

func TestParseFullNameSplitsOnFirstDoubleUnderscore(t *testing.T) {
	serverID, toolName, ok := ParseFullName("mcp__myserver__do_thing")
	if !ok || serverID != "myserver" || toolName != "do_thing" {
		t.Fatalf("got (%q, %q, %v), want (myserver, do_thing, true)", serverID, toolName, ok)
	}
}

func TestParseFullNameServerIDContainingDoubleUnderscore(t *testing.T) {
	// first "__" after the prefix wins, per spec's resolution of the
	// server-id-containing-"__" ambiguity at the ParseFullName fallback
	// layer (Manager.resolveFullName checks the live table first).
	serverID, toolName, ok := ParseFullName("mcp__my__server__do_thing")
	if !ok || serverID != "my" || toolName != "server__do_thing" {
		t.Fatalf("got (%q, %q, %v)", serverID, toolName, ok)
	}
}

func TestParseFullNameRejectsWrongPrefix(t *testing.T) {
	if _, _, ok := ParseFullName("not_mcp__server__tool"); ok {
		t.Error("expected ok=false for a name without the mcp__ prefix")
	}
}

func TestParseFullNameRejectsMissingSeparator(t *testing.T) {
	if _, _, ok := ParseFullName("mcp__justoneterm"); ok {
		t.Error("expected ok=false when there is no second __ separator")
	}
}

func TestManagerLoadMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "mcp-servers.json"), nil)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() on missing file: %v", err)
	}
	if len(m.Status()) != 0 {
		t.Error("expected empty status for a fresh manager")
	}
}

func TestManagerAddPersistsAndLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "mcp-servers.json")

	m := NewManager(configPath, nil)
	cfg, err := m.Add(context.Background(), model.ExternalServerConfig{
		Name:    "demo",
		Command: "does-not-exist-binary",
		Enabled: false,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if cfg.ID == "" {
		t.Error("expected Add to assign an id")
	}

	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("expected config file to be persisted: %v", err)
	}

	reloaded := NewManager(configPath, nil)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	statuses := reloaded.Status()
	if len(statuses) != 1 || statuses[0].ID != cfg.ID {
		t.Fatalf("expected reloaded manager to see the persisted config, got %+v", statuses)
	}
}

func TestManagerRemoveDeletesConfig(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "mcp-servers.json"), nil)
	cfg, err := m.Add(context.Background(), model.ExternalServerConfig{Name: "demo", Command: "echo"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := m.Remove(cfg.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(m.Status()) != 0 {
		t.Error("expected config to be gone after Remove")
	}
}

func TestManagerConnectUnknownServerErrors(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "mcp-servers.json"), nil)
	if err := m.Connect(context.Background(), "missing"); err == nil {
		t.Error("expected error connecting to an unknown server id")
	}
}

func TestManagerConnectCapturesFailurePerID(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "mcp-servers.json"), nil)
	cfg, err := m.Add(context.Background(), model.ExternalServerConfig{
		Name:    "broken",
		Command: "definitely-not-a-real-binary-xyz",
		Enabled: false,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	err = m.Connect(context.Background(), cfg.ID)
	if err == nil {
		t.Fatal("expected Connect to fail for a nonexistent binary")
	}

	statuses := m.Status()
	if len(statuses) != 1 || statuses[0].Error == "" {
		t.Fatalf("expected the failure to be captured on the status, got %+v", statuses)
	}
	if statuses[0].Connected {
		t.Error("expected Connected=false after a failed connect")
	}
}

func TestManagerExecuteUnrecognizedNameErrors(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "mcp-servers.json"), nil)
	_, err := m.Execute(context.Background(), "mcp__justoneterm", nil)
	if err == nil {
		t.Error("expected error for an unrecognized federated tool name")
	}
}

func TestManagerExecuteNotConnectedErrors(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "mcp-servers.json"), nil)
	_, err := m.Execute(context.Background(), "mcp__someserver__sometool", nil)
	if err == nil {
		t.Error("expected error when the referenced server is not connected")
	}
}

func TestManagerUpdateMergesFields(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "mcp-servers.json"), nil)
	cfg, err := m.Add(context.Background(), model.ExternalServerConfig{
		Name:    "demo",
		Command: "echo",
		Enabled: false,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	updated, err := m.Update(context.Background(), cfg.ID, model.ExternalServerConfig{
		Description: "now with a description",
		Enabled:     false,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "demo" {
		t.Errorf("expected unspecified fields to survive merge, got name %q", updated.Name)
	}
	if updated.Description != "now with a description" {
		t.Errorf("expected Description to be merged in, got %q", updated.Description)
	}
}
