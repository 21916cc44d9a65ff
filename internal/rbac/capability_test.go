package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approved(role Role, dept string) *Subject {
	return &Subject{ID: "7", Role: role, Department: dept, IsApproved: true}
}

func TestUnknownPermissionDeniesEveryRole(t *testing.T) {
	for _, role := range Roles() {
		caps := Derive(approved(role, "it"), nil)
		assert.False(t, caps.HasPermission("tickets.teleport"), role.String())
		assert.False(t, caps.HasPermission(""), role.String())
	}
}

func TestNilSubjectDeniesEverything(t *testing.T) {
	caps := Derive(nil, nil)

	assert.False(t, caps.Authenticated())
	assert.False(t, caps.HasPermission(PermRequestsView))
	assert.False(t, caps.HasAnyPermission(PermRequestsView))
	assert.False(t, caps.HasRoleOrHigher("user"))
	assert.False(t, caps.CanViewScope(ScopeOwn))
	assert.False(t, caps.CanEditScope(ScopeOwn))
	assert.False(t, caps.CanAccessDepartment("it"))
	assert.Empty(t, caps.Permissions())
}

func TestApprovalGatingDominates(t *testing.T) {
	for _, role := range []Role{RoleUser, RoleTechnician, RoleManager, RoleStaff} {
		caps := Derive(&Subject{ID: "1", Role: role, Department: "it"}, nil)
		for _, key := range DefaultCatalog().Keys() {
			assert.False(t, caps.HasPermission(key), "%s %s", role, key)
		}
		for _, scope := range []Scope{ScopeAll, ScopeDepartment, ScopeOwn} {
			assert.False(t, caps.CanViewScope(scope), "%s view %s", role, scope)
			assert.False(t, caps.CanEditScope(scope), "%s edit %s", role, scope)
		}
		assert.False(t, caps.CanAccessDepartment("it"))
	}
}

func TestUnapprovedUserCannotCreateRequest(t *testing.T) {
	caps := Derive(&Subject{ID: "3", Role: RoleUser, IsApproved: false}, nil)

	require.Contains(t, DefaultCatalog().Roles(PermRequestsCreate), RoleUser)
	assert.False(t, caps.HasPermission(PermRequestsCreate))
}

func TestAdminBypassesApproval(t *testing.T) {
	caps := Derive(&Subject{ID: "1", Role: RoleAdmin}, nil)

	assert.True(t, caps.HasPermission(PermSettingsManage))
	assert.True(t, caps.CanEditScope(ScopeAll))
	assert.True(t, caps.CanAccessDepartment("finance"))
}

func TestPermissionCombinators(t *testing.T) {
	caps := Derive(approved(RoleTechnician, "it"), nil)

	assert.True(t, caps.HasAnyPermission("nope", PermTasksView))
	assert.False(t, caps.HasAnyPermission())
	assert.True(t, caps.HasAllPermissions())
	assert.True(t, caps.HasAllPermissions(PermTasksView, PermTasksEdit))
	assert.False(t, caps.HasAllPermissions(PermTasksView, PermTasksAssign))
}

func TestPermissionKeysAreCaseInsensitive(t *testing.T) {
	caps := Derive(approved(RoleManager, "ops"), nil)
	assert.True(t, caps.HasPermission("  Tasks.Assign "))
}

func TestHierarchyMonotonic(t *testing.T) {
	roles := Roles()
	for i, held := range roles {
		caps := Derive(approved(held, "it"), nil)
		for j, asked := range roles {
			assert.Equal(t, j <= i, caps.HasRoleOrHigher(string(asked)), "%s >= %s", held, asked)
		}
	}
}

func TestHasRoleOrHigherUnknownRole(t *testing.T) {
	caps := Derive(approved(RoleAdmin, "it"), nil)
	assert.False(t, caps.HasRoleOrHigher("overlord"))

	unknown := Derive(&Subject{ID: "2", Role: ParseRole("ghost"), IsApproved: true}, nil)
	assert.False(t, unknown.HasRoleOrHigher("user"))
	assert.False(t, unknown.HasPermission(PermRequestsView))
}

func TestLegacyRoleAliases(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("system_admin"))
	assert.Equal(t, RoleManager, ParseRole("IT_Manager"))
	assert.Equal(t, RoleTechnician, ParseRole("senior_technician"))
	assert.Equal(t, RoleStaff, ParseRole("staff"))
	assert.Equal(t, RoleUnknown, ParseRole("root"))

	caps := Derive(approved(RoleManager, "ops"), nil)
	assert.True(t, caps.HasRole("it_manager"))
	assert.True(t, caps.HasAnyRole("system_admin", "it_manager"))
	assert.True(t, caps.HasRoleOrHigher("senior_technician"))
}

func TestScopeTables(t *testing.T) {
	cases := []struct {
		role       Role
		view, edit []Scope
	}{
		{RoleUser, []Scope{ScopeOwn}, []Scope{ScopeOwn}},
		{RoleTechnician, []Scope{ScopeDepartment, ScopeOwn}, []Scope{ScopeOwn}},
		{RoleManager, []Scope{ScopeDepartment, ScopeOwn}, []Scope{ScopeDepartment, ScopeOwn}},
		{RoleStaff, []Scope{ScopeAll, ScopeDepartment, ScopeOwn}, []Scope{ScopeDepartment, ScopeOwn}},
		{RoleAdmin, []Scope{ScopeAll, ScopeDepartment, ScopeOwn}, []Scope{ScopeAll, ScopeDepartment, ScopeOwn}},
	}
	all := []Scope{ScopeAll, ScopeDepartment, ScopeOwn}
	for _, tc := range cases {
		caps := Derive(approved(tc.role, "ops"), nil)
		for _, s := range all {
			assert.Equal(t, contains(tc.view, s), caps.CanViewScope(s), "%s view %s", tc.role, s)
			assert.Equal(t, contains(tc.edit, s), caps.CanEditScope(s), "%s edit %s", tc.role, s)
			if caps.CanEditScope(s) {
				assert.True(t, caps.CanViewScope(s))
			}
		}
	}
	assert.Equal(t, ScopeDepartment, Derive(approved(RoleTechnician, "it"), nil).ViewScope())
	assert.Equal(t, ScopeOwn, Derive(approved(RoleUser, "it"), nil).ViewScope())
}

func TestCanAccessDepartment(t *testing.T) {
	tech := Derive(approved(RoleTechnician, "it"), nil)
	assert.True(t, tech.CanAccessDepartment("IT"))

	fieldTech := Derive(approved(RoleTechnician, "Facilities"), nil)
	assert.True(t, fieldTech.CanAccessDepartment("facilities"))
	assert.True(t, fieldTech.CanAccessDepartment("It"))
	assert.False(t, fieldTech.CanAccessDepartment("finance"))

	manager := Derive(approved(RoleManager, "Facilities"), nil)
	assert.True(t, manager.CanAccessDepartment("FACILITIES"))
	assert.False(t, manager.CanAccessDepartment("it"))
	assert.False(t, manager.CanAccessDepartment(""))

	staff := Derive(approved(RoleStaff, ""), nil)
	assert.True(t, staff.CanAccessDepartment("anything"))
}

func TestDeriveIsDeterministic(t *testing.T) {
	subject := approved(RoleManager, "ops")
	a, b := Derive(subject, nil), Derive(subject, nil)
	for _, key := range DefaultCatalog().Keys() {
		assert.Equal(t, a.HasPermission(key), b.HasPermission(key))
	}
	assert.Equal(t, a.Permissions(), b.Permissions())
}

func contains(scopes []Scope, s Scope) bool {
	for _, v := range scopes {
		if v == s {
			return true
		}
	}
	return false
}
