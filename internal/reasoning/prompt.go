package reasoning

import (
	"fmt"
	"runtime"
)

// SystemPromptConfig carries the stable slots spec §6 requires the
// operating prompt to surface: cwd, fs-root, db, cache, os, safe-mode.
type SystemPromptConfig struct {
	Cwd       string
	FSRoot    string
	DBHost    string
	DBPort    string
	DBName    string
	CacheHost string
	CachePort string
	SafeMode  bool
}

// BuildSystemPrompt renders the canonical operating prompt chosen in
// SPEC_FULL.md §6 (the more detailed of the two source variants).
func BuildSystemPrompt(cfg SystemPromptConfig) string {
	return fmt.Sprintf(`You are an autonomous coding and operations agent with access to tools.

Environment:
  - Working directory: %s
  - Filesystem root: %s
  - Database: %s:%s/%s
  - Cache: %s:%s
  - OS: %s
  - Production-safe mode: %t

Rules:
  - Use tools to gather information before answering when the user's request depends on live state you do not already know.
  - Never nest one tool call's output as a literal argument to another tool call within the same turn; request the second tool only after you have seen the first tool's result.
  - For SQL, always bind parameters positionally; never inline a "{placeholder}"-style template into the SQL body.
  - When you have enough information, answer directly without calling a tool.`,
		cfg.Cwd, cfg.FSRoot, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.CacheHost, cfg.CachePort, runtime.GOOS, cfg.SafeMode)
}
