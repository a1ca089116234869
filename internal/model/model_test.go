package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleOrdering(t *testing.T) {
	assert.Less(t, int(RoleReadonly), int(RoleDev))
	assert.Less(t, int(RoleDev), int(RoleOperator))
	assert.Less(t, int(RoleOperator), int(RoleAdmin))
}

func TestParseRoleUnknownDefaultsToReadonly(t *testing.T) {
	assert.Equal(t, RoleReadonly, ParseRole(""))
	assert.Equal(t, RoleReadonly, ParseRole("superuser"))
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
}

func TestRoleMarshalRoundTrip(t *testing.T) {
	for _, r := range []Role{RoleReadonly, RoleDev, RoleOperator, RoleAdmin} {
		data, err := json.Marshal(r)
		require.NoError(t, err)

		var got Role
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, r, got)
	}
}

func TestToolSpecAllowsRole(t *testing.T) {
	spec := ToolSpec{RequiredRoles: []Role{RoleOperator, RoleAdmin}}
	assert.False(t, spec.AllowsRole(RoleReadonly))
	assert.False(t, spec.AllowsRole(RoleDev))
	assert.True(t, spec.AllowsRole(RoleOperator))
	assert.True(t, spec.AllowsRole(RoleAdmin))
}
