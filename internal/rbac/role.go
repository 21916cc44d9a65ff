package rbac

import "strings"

// Role is one of the canonical desk roles.
type Role string

// Canonical roles, lowest to highest.
const (
	RoleUnknown    Role = ""
	RoleUser       Role = "user"
	RoleTechnician Role = "technician"
	RoleManager    Role = "manager"
	RoleStaff      Role = "staff"
	RoleAdmin      Role = "admin"
)

var roleLevels = map[Role]int{
	RoleUser:       1,
	RoleTechnician: 2,
	RoleManager:    3,
	RoleStaff:      4,
	RoleAdmin:      5,
}

// legacyRoles maps the older route vocabulary onto the canonical roles.
var legacyRoles = map[string]Role{
	"system_admin":      RoleAdmin,
	"it_manager":        RoleManager,
	"senior_technician": RoleTechnician,
}

// Roles lists every canonical role in hierarchy order.
func Roles() []Role {
	return []Role{RoleUser, RoleTechnician, RoleManager, RoleStaff, RoleAdmin}
}

// ParseRole resolves a role name, accepting legacy aliases. Unrecognized
// names resolve to RoleUnknown.
func ParseRole(name string) Role {
	name = strings.ToLower(strings.TrimSpace(name))
	if r := Role(name); roleLevels[r] > 0 {
		return r
	}
	if r, ok := legacyRoles[name]; ok {
		return r
	}
	return RoleUnknown
}

// Level returns the hierarchy level; 0 for unknown roles.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether r is a canonical role.
func (r Role) Valid() bool {
	return r.Level() > 0
}

// AtLeast reports whether r sits at or above other in the hierarchy.
// Unknown roles never satisfy the comparison.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && other.Valid() && r.Level() >= other.Level()
}

func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// roleSet is a bitmask indexed by hierarchy level.
type roleSet uint8

func setOf(roles ...Role) roleSet {
	var s roleSet
	for _, r := range roles {
		if lvl := r.Level(); lvl > 0 {
			s |= 1 << lvl
		}
	}
	return s
}

func atLeast(min Role) roleSet {
	var s roleSet
	for _, r := range Roles() {
		if r.AtLeast(min) {
			s |= 1 << r.Level()
		}
	}
	return s
}

func (s roleSet) has(r Role) bool {
	lvl := r.Level()
	return lvl > 0 && s&(1<<lvl) != 0
}
