// Package guard decides whether a view may render for the current session.
package guard

import (
	"strings"

	"github.com/odyssey-erp/odyssey-desk/internal/rbac"
)

// Kind selects how a Requirement is checked.
type Kind int

const (
	KindNone Kind = iota
	KindRole
	KindMinRole
	KindPermission
	KindAnyRole
	KindAnyPermission
	KindAllPermissions
)

// Requirement is what a view declares it needs.
type Requirement struct {
	Kind   Kind
	Values []string
}

// None admits any authenticated user.
func None() Requirement { return Requirement{} }

// Role requires an exact role match.
func Role(role string) Requirement {
	return Requirement{Kind: KindRole, Values: []string{role}}
}

// MinRole requires the role or any role above it.
func MinRole(role string) Requirement {
	return Requirement{Kind: KindMinRole, Values: []string{role}}
}

// Permission requires a single permission key.
func Permission(key string) Requirement {
	return Requirement{Kind: KindPermission, Values: []string{key}}
}

// AnyRole requires the role to be one of roles.
func AnyRole(roles ...string) Requirement {
	return Requirement{Kind: KindAnyRole, Values: roles}
}

// RequireAnyPermission requires at least one of keys.
func RequireAnyPermission(keys ...string) Requirement {
	return Requirement{Kind: KindAnyPermission, Values: rbac.NormalizePermissions(keys)}
}

// RequireAllPermissions requires every one of keys.
func RequireAllPermissions(keys ...string) Requirement {
	return Requirement{Kind: KindAllPermissions, Values: rbac.NormalizePermissions(keys)}
}

func (r Requirement) String() string {
	name := [...]string{"none", "role", "min_role", "permission", "any_role", "any_permission", "all_permissions"}
	if r.Kind < 0 || int(r.Kind) >= len(name) {
		return "invalid"
	}
	if len(r.Values) == 0 {
		return name[r.Kind]
	}
	return name[r.Kind] + "(" + strings.Join(r.Values, ",") + ")"
}

// Outcome is the guard decision.
type Outcome int

const (
	Loading Outcome = iota
	RedirectLogin
	RedirectUnauthorized
	Render
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	case Render:
		return "render"
	default:
		return "invalid"
	}
}

// Status is the session state a guard reads.
type Status interface {
	Bootstrapping() bool
	Capability() rbac.Capability
}

// Evaluate checks loading, then authentication, then the requirement.
func Evaluate(status Status, req Requirement) Outcome {
	if status.Bootstrapping() {
		return Loading
	}
	caps := status.Capability()
	if !caps.Authenticated() {
		return RedirectLogin
	}
	if !Allowed(caps, req) {
		return RedirectUnauthorized
	}
	return Render
}

// Allowed reports whether caps satisfies req.
func Allowed(caps rbac.Capability, req Requirement) bool {
	if !caps.Authenticated() {
		return false
	}
	switch req.Kind {
	case KindNone:
		return true
	case KindRole:
		return len(req.Values) == 1 && caps.HasRole(req.Values[0])
	case KindMinRole:
		return len(req.Values) == 1 && caps.HasRoleOrHigher(req.Values[0])
	case KindPermission:
		return len(req.Values) == 1 && caps.HasPermission(req.Values[0])
	case KindAnyRole:
		return caps.HasAnyRole(req.Values...)
	case KindAnyPermission:
		return caps.HasAnyPermission(req.Values...)
	case KindAllPermissions:
		return caps.HasAllPermissions(req.Values...)
	default:
		return false
	}
}

// PermissionGate reports whether any of keys is granted; for conditional
// fragments of an already rendered view.
func PermissionGate(caps rbac.Capability, keys ...string) bool {
	return caps.HasAnyPermission(keys...)
}

// RoleGate reports whether the role is one of roles.
func RoleGate(caps rbac.Capability, roles ...string) bool {
	return caps.HasAnyRole(roles...)
}
