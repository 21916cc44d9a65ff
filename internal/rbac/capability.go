package rbac

import (
	"strings"

	"golang.org/x/text/cases"
)

// Scope is the breadth of data a role may view or edit.
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeDepartment Scope = "department"
	ScopeOwn        Scope = "own"
)

// ParseScope resolves a scope name; ok is false for unknown names.
func ParseScope(name string) (Scope, bool) {
	s := Scope(strings.ToLower(strings.TrimSpace(name)))
	switch s {
	case ScopeAll, ScopeDepartment, ScopeOwn:
		return s, true
	}
	return "", false
}

// Subject is the slice of a user record that authorization depends on.
type Subject struct {
	ID         string
	Role       Role
	Department string
	IsApproved bool
}

// Capability answers permission, scope and role questions for one subject.
// It is a value: derive a new one whenever the subject changes.
type Capability struct {
	catalog    *Catalog
	present    bool
	active     bool
	role       Role
	userID     string
	department string
}

// Derive builds the capability for subject. A nil subject denies everything.
func Derive(subject *Subject, catalog *Catalog) Capability {
	if subject == nil {
		return Capability{}
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	role := subject.Role
	return Capability{
		catalog:    catalog,
		present:    true,
		active:     role.Valid() && (subject.IsApproved || role == RoleAdmin),
		role:       role,
		userID:     subject.ID,
		department: strings.TrimSpace(subject.Department),
	}
}

// Authenticated reports whether a subject is present.
func (c Capability) Authenticated() bool { return c.present }

// Active reports whether the subject passes approval gating.
func (c Capability) Active() bool { return c.active }

// Role returns the subject role, RoleUnknown when absent.
func (c Capability) Role() Role { return c.role }

// UserID returns the subject identifier.
func (c Capability) UserID() string { return c.userID }

// Department returns the subject department.
func (c Capability) Department() string { return c.department }

// HasPermission reports whether the subject may use key.
func (c Capability) HasPermission(key string) bool {
	return c.active && c.catalog.Allowed(key, c.role)
}

// HasAnyPermission is true when at least one key is granted. An empty list
// is false.
func (c Capability) HasAnyPermission(keys ...string) bool {
	for _, key := range keys {
		if c.HasPermission(key) {
			return true
		}
	}
	return false
}

// HasAllPermissions is true when every key is granted. An empty list is
// true.
func (c Capability) HasAllPermissions(keys ...string) bool {
	for _, key := range keys {
		if !c.HasPermission(key) {
			return false
		}
	}
	return true
}

// HasRoleOrHigher compares hierarchy levels. Unknown role names resolve to
// level 0 and never match.
func (c Capability) HasRoleOrHigher(role string) bool {
	return c.present && c.role.AtLeast(ParseRole(role))
}

// HasRole reports an exact role match, accepting legacy aliases.
func (c Capability) HasRole(role string) bool {
	r := ParseRole(role)
	return c.present && r.Valid() && c.role == r
}

// HasAnyRole reports whether the subject role is in roles.
func (c Capability) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if c.HasRole(r) {
			return true
		}
	}
	return false
}

// CanViewScope reports whether the subject may view data at scope.
func (c Capability) CanViewScope(scope Scope) bool {
	return c.active && viewScopes[scope].has(c.role)
}

// CanEditScope reports whether the subject may edit data at scope.
func (c Capability) CanEditScope(scope Scope) bool {
	return c.active && editScopes[scope].has(c.role)
}

// ViewScope returns the broadest scope the subject may view, or "" when
// none applies.
func (c Capability) ViewScope() Scope {
	for _, s := range []Scope{ScopeAll, ScopeDepartment, ScopeOwn} {
		if c.CanViewScope(s) {
			return s
		}
	}
	return ""
}

// CanAccessDepartment checks access to records owned by target. Staff and
// admins always pass; technicians pass for their own department and the
// global one; everyone else needs a case-insensitive match.
func (c Capability) CanAccessDepartment(target string) bool {
	if !c.active {
		return false
	}
	if c.role.AtLeast(RoleStaff) {
		return true
	}
	target = fold(target)
	if target == "" {
		return false
	}
	if c.role == RoleTechnician && target == GlobalDepartment {
		return true
	}
	return target == fold(c.department)
}

// Permissions lists the keys granted to the subject, sorted.
func (c Capability) Permissions() []string {
	if !c.active {
		return nil
	}
	return c.catalog.PermissionsFor(c.role)
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
