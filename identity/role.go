package identity

import "strings"

// Role is the closed set of roles the API recognises.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleManager  Role = "Manager"
	RoleEmployee Role = "Employee"
	RoleCustomer Role = "Customer"
	// RoleUnknown marks a role claim that matched nothing. It is denied everywhere.
	RoleUnknown Role = "Unknown"
)

func (r Role) String() string {
	return string(r)
}

// IsStaff reports whether r is one of the staff roles.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleEmployee
}

// NormalizeRole maps a raw role claim onto Role, ignoring case and
// surrounding whitespace. Staff accounts created without a role are
// admins, so an empty claim maps to RoleAdmin.
func NormalizeRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return RoleAdmin
	case "admin":
		return RoleAdmin
	case "manager":
		return RoleManager
	case "employee":
		return RoleEmployee
	case "customer":
		return RoleCustomer
	default:
		return RoleUnknown
	}
}
