package rbac

// Request permissions.
const (
	PermRequestsView    = "requests.view"
	PermRequestsCreate  = "requests.create"
	PermRequestsEdit    = "requests.edit"
	PermRequestsAssign  = "requests.assign"
	PermRequestsApprove = "requests.approve"
	PermRequestsDelete  = "requests.delete"
)

// Task permissions.
const (
	PermTasksView   = "tasks.view"
	PermTasksCreate = "tasks.create"
	PermTasksEdit   = "tasks.edit"
	PermTasksAssign = "tasks.assign"
	PermTasksDelete = "tasks.delete"
)

// Equipment permissions.
const (
	PermEquipmentView   = "equipment.view"
	PermEquipmentCreate = "equipment.create"
	PermEquipmentEdit   = "equipment.edit"
	PermEquipmentDelete = "equipment.delete"
)

// Platform permissions.
const (
	PermReportsView       = "reports.view"
	PermReportsExport     = "reports.export"
	PermUsersView         = "users.view"
	PermUsersEdit         = "users.edit"
	PermUsersApprove      = "users.approve"
	PermSettingsManage    = "settings.manage"
	PermNotificationsView = "notifications.view"
	PermDashboardView     = "dashboard.view"
)

// GlobalDepartment is the department technicians may always access.
const GlobalDepartment = "it"

func defaultRules() map[string]roleSet {
	everyone := atLeast(RoleUser)
	return map[string]roleSet{
		PermRequestsView:    everyone,
		PermRequestsCreate:  everyone,
		PermRequestsEdit:    atLeast(RoleTechnician),
		PermRequestsAssign:  atLeast(RoleManager),
		PermRequestsApprove: atLeast(RoleManager),
		PermRequestsDelete:  atLeast(RoleStaff),

		PermTasksView:   atLeast(RoleTechnician),
		PermTasksCreate: atLeast(RoleManager),
		PermTasksEdit:   atLeast(RoleTechnician),
		PermTasksAssign: atLeast(RoleManager),
		PermTasksDelete: atLeast(RoleStaff),

		PermEquipmentView:   atLeast(RoleTechnician),
		PermEquipmentCreate: atLeast(RoleStaff),
		PermEquipmentEdit:   atLeast(RoleStaff),
		PermEquipmentDelete: setOf(RoleAdmin),

		PermReportsView:       atLeast(RoleManager),
		PermReportsExport:     atLeast(RoleManager),
		PermUsersView:         atLeast(RoleStaff),
		PermUsersEdit:         setOf(RoleAdmin),
		PermUsersApprove:      setOf(RoleAdmin),
		PermSettingsManage:    setOf(RoleAdmin),
		PermNotificationsView: everyone,
		PermDashboardView:     everyone,
	}
}

// Scope tables. View is at least as permissive as edit at each scope.
var (
	viewScopes = map[Scope]roleSet{
		ScopeAll:        setOf(RoleStaff, RoleAdmin),
		ScopeDepartment: setOf(RoleTechnician, RoleManager, RoleStaff, RoleAdmin),
		ScopeOwn:        atLeast(RoleUser),
	}
	editScopes = map[Scope]roleSet{
		ScopeAll:        setOf(RoleAdmin),
		ScopeDepartment: setOf(RoleManager, RoleStaff, RoleAdmin),
		ScopeOwn:        atLeast(RoleUser),
	}
)
