// Package toolcatalog holds the static registry of built-in ToolSpecs and
// the projection into model-facing tool descriptors.
package toolcatalog

import (
	"encoding/json"
	"regexp"

	"github.com/forgewell/agentrt/internal/llm"
	"github.com/forgewell/agentrt/internal/model"
)

var nameRE = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Catalog is a read-only-after-init registry of built-in tool specs.
type Catalog struct {
	ordered []model.ToolSpec
	byName  map[string]model.ToolSpec
}

// New builds the catalog from the built-in spec list, panicking on a
// malformed spec (a programmer error, not a runtime condition).
func New() *Catalog {
	specs := builtinSpecs()
	c := &Catalog{byName: make(map[string]model.ToolSpec, len(specs))}
	for _, s := range specs {
		if !nameRE.MatchString(s.Name) {
			panic("toolcatalog: invalid tool name " + s.Name)
		}
		if _, dup := c.byName[s.Name]; dup {
			panic("toolcatalog: duplicate tool name " + s.Name)
		}
		c.byName[s.Name] = s
		c.ordered = append(c.ordered, s)
	}
	return c
}

// All returns every built-in tool spec, in registration order.
func (c *Catalog) All() []model.ToolSpec {
	out := make([]model.ToolSpec, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// ByName looks up a built-in tool spec.
func (c *Catalog) ByName(name string) (model.ToolSpec, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// ForRole filters the catalog by role and, when productionSafeMode is on,
// by SafeForProduction.
func (c *Catalog) ForRole(role model.Role, productionSafeMode bool) []model.ToolSpec {
	var out []model.ToolSpec
	for _, s := range c.ordered {
		if !s.AllowsRole(role) {
			continue
		}
		if productionSafeMode && !s.SafeForProduction {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ToModelDescriptors projects ToolSpecs into the shape the LLM client
// expects.
func ToModelDescriptors(specs []model.ToolSpec) []llm.ToolDescriptor {
	out := make([]llm.ToolDescriptor, 0, len(specs))
	for _, s := range specs {
		out = append(out, llm.ToolDescriptor{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: s.InputSchema,
		})
	}
	return out
}

func schema(props map[string]any, required []string) json.RawMessage {
	obj := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		obj["required"] = required
	}
	data, err := json.Marshal(obj)
	if err != nil {
		panic(err)
	}
	return data
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func arrOfAny(description string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{}, "description": description}
}

var (
	roleAll           = []model.Role{model.RoleReadonly, model.RoleDev, model.RoleOperator, model.RoleAdmin}
	roleDevUp         = []model.Role{model.RoleDev, model.RoleOperator, model.RoleAdmin}
	roleOperatorUp    = []model.Role{model.RoleOperator, model.RoleAdmin}
	roleAdminOnly     = []model.Role{model.RoleAdmin}
)

// builtinSpecs is the ≈20-tool catalog spanning database, REST,
// filesystem, git, key-value/queue, and web subdomains named in spec §6.
func builtinSpecs() []model.ToolSpec {
	return []model.ToolSpec{
		{
			Name:              "db_query",
			Description:       "Run a parameterized SQL query and return rows.",
			InputSchema:       schema(map[string]any{"sql": str("SQL statement with ? placeholders"), "params": arrOfAny("bind parameters, in order")}, []string{"sql"}),
			RequiredRoles:     roleDevUp,
			SafeForProduction: true,
		},
		{
			Name:              "db_migrate",
			Description:       "Apply a schema migration statement.",
			InputSchema:       schema(map[string]any{"sql": str("DDL statement")}, []string{"sql"}),
			RequiredRoles:     roleAdminOnly,
			SafeForProduction: false,
		},
		{
			Name:              "db_schema",
			Description:       "Describe the schema of a table.",
			InputSchema:       schema(map[string]any{"table": str("table name")}, []string{"table"}),
			RequiredRoles:     roleDevUp,
			SafeForProduction: true,
		},
		{
			Name:              "http_request",
			Description:       "Issue an HTTP request to an arbitrary REST endpoint.",
			InputSchema:       schema(map[string]any{"method": str("HTTP method"), "url": str("absolute URL"), "headers": map[string]any{"type": "object"}, "body": str("request body")}, []string{"method", "url"}),
			RequiredRoles:     roleDevUp,
			SafeForProduction: true,
		},
		{
			Name:              "fs_read",
			Description:       "Read a file under the configured filesystem root.",
			InputSchema:       schema(map[string]any{"path": str("path relative to the filesystem root")}, []string{"path"}),
			RequiredRoles:     roleAll,
			SafeForProduction: true,
		},
		{
			Name:              "fs_write",
			Description:       "Write a file under the configured filesystem root.",
			InputSchema:       schema(map[string]any{"path": str("path relative to the filesystem root"), "content": str("file content")}, []string{"path", "content"}),
			RequiredRoles:     roleOperatorUp,
			SafeForProduction: false,
		},
		{
			Name:              "fs_list",
			Description:       "List directory entries under the filesystem root.",
			InputSchema:       schema(map[string]any{"path": str("directory path, relative to the filesystem root")}, nil),
			RequiredRoles:     roleAll,
			SafeForProduction: true,
		},
		{
			Name:              "fs_search",
			Description:       "Search for a substring across files under the filesystem root.",
			InputSchema:       schema(map[string]any{"query": str("text to search for"), "path": str("subdirectory to search, optional")}, []string{"query"}),
			RequiredRoles:     roleDevUp,
			SafeForProduction: true,
		},
		{
			Name:              "git_status",
			Description:       "Show working-tree status for a repository.",
			InputSchema:       schema(map[string]any{"repo_path": str("repository path, falls back to cwd")}, nil),
			RequiredRoles:     roleDevUp,
			SafeForProduction: true,
		},
		{
			Name:              "git_log",
			Description:       "Show recent commit history for a repository.",
			InputSchema:       schema(map[string]any{"repo_path": str("repository path, falls back to cwd"), "limit": map[string]any{"type": "integer"}}, nil),
			RequiredRoles:     roleDevUp,
			SafeForProduction: true,
		},
		{
			Name:              "git_diff",
			Description:       "Show the working-tree diff for a repository.",
			InputSchema:       schema(map[string]any{"repo_path": str("repository path, falls back to cwd")}, nil),
			RequiredRoles:     roleDevUp,
			SafeForProduction: true,
		},
		{
			Name:              "git_show",
			Description:       "Show a single commit's patch.",
			InputSchema:       schema(map[string]any{"repo_path": str("repository path, falls back to cwd"), "commit": str("commit-ish")}, []string{"commit"}),
			RequiredRoles:     roleDevUp,
			SafeForProduction: true,
		},
		{
			Name:              "kv_get",
			Description:       "Read a value from the key-value store.",
			InputSchema:       schema(map[string]any{"key": str("key")}, []string{"key"}),
			RequiredRoles:     roleAll,
			SafeForProduction: true,
		},
		{
			Name:              "kv_set",
			Description:       "Write a value to the key-value store.",
			InputSchema:       schema(map[string]any{"key": str("key"), "value": str("value")}, []string{"key", "value"}),
			RequiredRoles:     roleDevUp,
			SafeForProduction: true,
		},
		{
			Name:              "kv_delete",
			Description:       "Delete a key from the key-value store.",
			InputSchema:       schema(map[string]any{"key": str("key")}, []string{"key"}),
			RequiredRoles:     roleOperatorUp,
			SafeForProduction: false,
		},
		{
			Name:              "queue_push",
			Description:       "Push a value onto a named queue.",
			InputSchema:       schema(map[string]any{"queue": str("queue name"), "value": str("value")}, []string{"queue", "value"}),
			RequiredRoles:     roleDevUp,
			SafeForProduction: true,
		},
		{
			Name:              "queue_pop",
			Description:       "Pop the next value off a named queue.",
			InputSchema:       schema(map[string]any{"queue": str("queue name")}, []string{"queue"}),
			RequiredRoles:     roleDevUp,
			SafeForProduction: true,
		},
		{
			Name:              "queue_peek",
			Description:       "Peek at a named queue without removing anything.",
			InputSchema:       schema(map[string]any{"queue": str("queue name")}, []string{"queue"}),
			RequiredRoles:     roleAll,
			SafeForProduction: true,
		},
		{
			Name:              "web_fetch_json",
			Description:       "Fetch a URL and parse the response as JSON.",
			InputSchema:       schema(map[string]any{"url": str("absolute URL")}, []string{"url"}),
			RequiredRoles:     roleAll,
			SafeForProduction: true,
		},
		{
			Name:              "web_search",
			Description:       "Search the web and return a short list of results.",
			InputSchema:       schema(map[string]any{"query": str("search query")}, []string{"query"}),
			RequiredRoles:     roleAll,
			SafeForProduction: true,
		},
		{
			Name:              "sys_time",
			Description:       "Return the current server time.",
			InputSchema:       schema(map[string]any{}, nil),
			RequiredRoles:     roleAll,
			SafeForProduction: true,
		},
	}
}
