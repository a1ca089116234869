// Package authz maps a bearer token to a Role via a static table, per
// spec §4.2: no token, or a token absent from the table, resolves to the
// least-privileged role rather than an error.
package authz

import (
	"strings"

	"github.com/forgewell/agentrt/internal/model"
)

// TokenTable maps a bearer token to the role it authenticates as.
type TokenTable struct {
	tokens map[string]model.Role
}

// NewTokenTable builds a table from token->role-name pairs. An entry whose
// role name isn't a known role maps to RoleReadonly (see model.ParseRole).
func NewTokenTable(raw map[string]string) *TokenTable {
	t := &TokenTable{tokens: make(map[string]model.Role, len(raw))}
	for token, roleName := range raw {
		t.tokens[token] = model.ParseRole(roleName)
	}
	return t
}

// Resolve returns the Role for an Authorization header value (with or
// without a "Bearer " prefix). An empty or unrecognized token resolves to
// RoleReadonly.
func (t *TokenTable) Resolve(authHeader string) model.Role {
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return model.RoleReadonly
	}
	if role, ok := t.tokens[token]; ok {
		return role
	}
	return model.RoleReadonly
}
