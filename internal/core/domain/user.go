package domain

// Known role identifiers as issued by the upstream API.
const (
	RoleAdmin      = "admin"
	RoleManagement = "management"
	RoleExecutive  = "executive"
	RoleTechnician = "technician"
	RoleOperator   = "operator"
)

// PublicRoleName is what the UI shows when no role is attached.
const PublicRoleName = "Public User"

// Role is the RBAC role attached to a user, received from the upstream API as
// an immutable snapshot. Permissions hold every string the server sent,
// including ones this gateway does not recognise; unknown entries never match
// a known permission check but are preserved for display and forwarding.
type Role struct {
	Role                    string       `json:"role"`
	RoleName                string       `json:"role_name"`
	Permissions             []Permission `json:"permissions"`
	CanViewCosts            bool         `json:"can_view_costs"`
	CanViewExternalContacts bool         `json:"can_view_external_contacts"`
}

// HasPermission reports exact membership of p in the role's permission set.
func (r *Role) HasPermission(p Permission) bool {
	if r == nil {
		return false
	}
	for _, have := range r.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// User is the identity payload fetched from the upstream API. It is owned by
// the session store and replaced wholesale on every successful fetch or
// login; it is never mutated in place.
type User struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
	Role        *Role  `json:"role,omitempty"`
}

// RoleID returns the role identifier, or "" when the user carries no role.
func (u *User) RoleID() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return u.Role.Role
}
