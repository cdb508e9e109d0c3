package shared

// Role is a user's authority rank within one company. Ordering is meaningful:
// a higher role satisfies any requirement expressed as a lower one.
type Role int

const (
	RoleViewer Role = iota
	RoleAccountant
	RoleApprover
	RoleManager
	RoleAdmin
	RoleSuperAdmin
)

var roleNames = map[Role]string{
	RoleViewer:     "VIEWER",
	RoleAccountant: "ACCOUNTANT",
	RoleApprover:   "APPROVER",
	RoleManager:    "MANAGER",
	RoleAdmin:      "ADMIN",
	RoleSuperAdmin: "SUPER_ADMIN",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseRole maps a stored role name back to its rank. Unknown names resolve to
// RoleViewer so a corrupt row never grants authority.
func ParseRole(name string) Role {
	for role, n := range roleNames {
		if n == name {
			return role
		}
	}
	return RoleViewer
}

// AtLeast reports whether the role meets or exceeds the required rank.
func (r Role) AtLeast(required Role) bool {
	return r >= required
}
