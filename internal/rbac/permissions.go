package rbac

// ClaimTypePermissions is the claim type carrying permission grants.
const ClaimTypePermissions = "permissions"

// Permission names checked against role claims.
const (
	PermViewAuthEvents = "Audit.ViewAuthEvents"
	PermRoleChanges    = "Audit.RoleChanges"
)

// Seeded role names.
const (
	RoleBasicUser       = "BasicUser"
	RoleAuthObserver    = "AuthObserver"
	RoleSecurityAuditor = "SecurityAuditor"
)

// Well-known security event types. EventType is free-form; these are the
// ones this service writes itself.
const (
	EventLoginSuccess = "LoginSuccess"
	EventLogout       = "Logout"
	EventRoleAssigned = "RoleAssigned"
)
