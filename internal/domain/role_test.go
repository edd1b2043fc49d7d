package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, role := range Roles() {
		parsed, err := ParseRole(string(role))
		require.NoError(t, err)
		assert.Equal(t, role, parsed)
	}

	_, err := ParseRole("owner")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestRole_IsStaff(t *testing.T) {
	assert.True(t, RoleSuperAdmin.IsStaff())
	assert.True(t, RoleAdminStaff.IsStaff())
	assert.False(t, RoleUMKMOwner.IsStaff())
	assert.False(t, Role("").IsStaff())
}

func TestUser_Active(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.Active())
	assert.True(t, (&User{Status: UserStatusActive}).Active())
	assert.True(t, (&User{}).Active())
	assert.False(t, (&User{Status: UserStatusSuspended}).Active())
}
