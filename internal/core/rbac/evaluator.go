// Package rbac holds the pure authorization logic of the gateway: permission
// queries over a session snapshot, the conditional-rendering gate, and the
// route guard decision. Nothing here performs I/O.
package rbac

import "github.com/maintlog/logbook-gateway/internal/core/domain"

// Evaluator answers permission and role queries for one session snapshot.
// It is a value type: take a fresh one from the current snapshot per
// request, never cache it across state changes.
type Evaluator struct {
	state domain.SessionState
}

// NewEvaluator wraps a session snapshot.
func NewEvaluator(state domain.SessionState) Evaluator {
	return Evaluator{state: state}
}

// User returns the snapshot's user, possibly nil.
func (e Evaluator) User() *domain.User { return e.state.User }

// IsAuthenticated reports whether the snapshot holds a confirmed identity.
func (e Evaluator) IsAuthenticated() bool { return e.state.IsAuthenticated }

// IsPublic reports whether the session has no user.
func (e Evaluator) IsPublic() bool { return e.state.IsPublic() }

func (e Evaluator) role() *domain.Role {
	if e.state.User == nil {
		return nil
	}
	return e.state.User.Role
}

// HasPermission reports membership of p in the current role's permission
// set. A missing user or role yields false: authenticated-but-roleless users
// hold no implicit permissions.
func (e Evaluator) HasPermission(p domain.Permission) bool {
	return e.role().HasPermission(p)
}

// HasAnyPermission reports whether at least one of perms is held. An empty
// list is false: a gate configured with no permissions must not become a
// full-access gate by accident.
func (e Evaluator) HasAnyPermission(perms []domain.Permission) bool {
	r := e.role()
	if r == nil {
		return false
	}
	for _, p := range perms {
		if r.HasPermission(p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every element of perms is held. An empty
// list is vacuously true. The asymmetry with HasAnyPermission is deliberate
// and relied upon by existing gate configurations.
func (e Evaluator) HasAllPermissions(perms []domain.Permission) bool {
	r := e.role()
	if r == nil {
		return false
	}
	for _, p := range perms {
		if !r.HasPermission(p) {
			return false
		}
	}
	return true
}

// --- Role identity ---

func (e Evaluator) hasRole(id string) bool {
	r := e.role()
	return r != nil && r.Role == id
}

func (e Evaluator) IsAdmin() bool      { return e.hasRole(domain.RoleAdmin) }
func (e Evaluator) IsManagement() bool { return e.hasRole(domain.RoleManagement) }
func (e Evaluator) IsExecutive() bool  { return e.hasRole(domain.RoleExecutive) }
func (e Evaluator) IsTechnician() bool { return e.hasRole(domain.RoleTechnician) }
func (e Evaluator) IsOperator() bool   { return e.hasRole(domain.RoleOperator) }

// CurrentRole returns the role identifier, "" when public or roleless.
func (e Evaluator) CurrentRole() string {
	if r := e.role(); r != nil {
		return r.Role
	}
	return ""
}

// CurrentRoleName returns the display name, falling back to the public
// label.
func (e Evaluator) CurrentRoleName() string {
	if r := e.role(); r != nil && r.RoleName != "" {
		return r.RoleName
	}
	return domain.PublicRoleName
}

// AllPermissions returns the raw permission set, nil when roleless.
func (e Evaluator) AllPermissions() []domain.Permission {
	if r := e.role(); r != nil {
		return r.Permissions
	}
	return nil
}

// --- Product policy helpers ---

func (e Evaluator) CanViewDashboard() bool   { return e.HasPermission(domain.PermViewDashboard) }
func (e Evaluator) CanCRUDIssues() bool      { return e.HasPermission(domain.PermCRUDIssues) }
func (e Evaluator) CanCRUDRemedies() bool    { return e.HasPermission(domain.PermCRUDRemedies) }
func (e Evaluator) CanMarkResolved() bool    { return e.HasPermission(domain.PermMarkResolved) }
func (e Evaluator) CanConfigureLimits() bool { return e.HasPermission(domain.PermConfigureLimits) }
func (e Evaluator) CanManageUsers() bool     { return e.HasPermission(domain.PermManageUsers) }
func (e Evaluator) CanViewCosts() bool       { return e.HasPermission(domain.PermViewCosts) }
func (e Evaluator) CanGenerateReports() bool { return e.HasPermission(domain.PermGenerateReports) }

func (e Evaluator) CanViewExternalContacts() bool {
	return e.HasPermission(domain.PermViewExternalContacts)
}

// CanAccessSettings grants the settings area to anyone who can configure
// limits or manage users.
func (e Evaluator) CanAccessSettings() bool {
	return e.HasAnyPermission([]domain.Permission{domain.PermConfigureLimits, domain.PermManageUsers})
}

// CanModifyIssues requires both the CRUD permission and authentication.
func (e Evaluator) CanModifyIssues() bool {
	return e.CanCRUDIssues() && e.IsAuthenticated()
}

func (e Evaluator) CanModifyRemedies() bool {
	return e.CanCRUDRemedies() && e.IsAuthenticated()
}

// CanCreateIssues implements the anonymous-reporting carve-out: public users
// may always report an issue, authenticated users need the CRUD permission.
func (e Evaluator) CanCreateIssues() bool {
	return e.IsPublic() || (e.IsAuthenticated() && e.CanCRUDIssues())
}

// CanCreateRemedies mirrors CanCreateIssues for remedies.
func (e Evaluator) CanCreateRemedies() bool {
	return e.IsPublic() || (e.IsAuthenticated() && e.CanCRUDRemedies())
}

// CanViewIssues: the issue list is publicly readable.
func (e Evaluator) CanViewIssues() bool { return true }

// CanViewRemedies: remedies are publicly readable, with server-side
// filtering for public callers.
func (e Evaluator) CanViewRemedies() bool { return true }

// ShouldShowCosts combines the permission with the role convenience flag.
func (e Evaluator) ShouldShowCosts() bool {
	r := e.role()
	return e.IsAuthenticated() && (e.CanViewCosts() || (r != nil && r.CanViewCosts))
}

func (e Evaluator) ShouldShowExternalContacts() bool {
	r := e.role()
	return e.IsAuthenticated() && (e.CanViewExternalContacts() || (r != nil && r.CanViewExternalContacts))
}

// Policy is the full set of UI-policy answers for one snapshot, served to
// the frontend so it can render conditionally without re-deriving RBAC.
type Policy struct {
	CanViewDashboard           bool   `json:"can_view_dashboard"`
	CanCRUDIssues              bool   `json:"can_crud_issues"`
	CanCRUDRemedies            bool   `json:"can_crud_remedies"`
	CanMarkResolved            bool   `json:"can_mark_resolved"`
	CanConfigureLimits         bool   `json:"can_configure_limits"`
	CanManageUsers             bool   `json:"can_manage_users"`
	CanGenerateReports         bool   `json:"can_generate_reports"`
	CanAccessSettings          bool   `json:"can_access_settings"`
	CanModifyIssues            bool   `json:"can_modify_issues"`
	CanModifyRemedies          bool   `json:"can_modify_remedies"`
	CanCreateIssues            bool   `json:"can_create_issues"`
	CanCreateRemedies          bool   `json:"can_create_remedies"`
	CanViewIssues              bool   `json:"can_view_issues"`
	CanViewRemedies            bool   `json:"can_view_remedies"`
	CanViewCosts               bool   `json:"can_view_costs"`
	CanViewExternalContacts    bool   `json:"can_view_external_contacts"`
	ShouldShowCosts            bool   `json:"should_show_costs"`
	ShouldShowExternalContacts bool   `json:"should_show_external_contacts"`
	Role                       string `json:"role"`
	RoleName                   string `json:"role_name"`
}

// CurrentPolicy evaluates every policy helper at once.
func (e Evaluator) CurrentPolicy() Policy {
	return Policy{
		CanViewDashboard:           e.CanViewDashboard(),
		CanCRUDIssues:              e.CanCRUDIssues(),
		CanCRUDRemedies:            e.CanCRUDRemedies(),
		CanMarkResolved:            e.CanMarkResolved(),
		CanConfigureLimits:         e.CanConfigureLimits(),
		CanManageUsers:             e.CanManageUsers(),
		CanGenerateReports:         e.CanGenerateReports(),
		CanAccessSettings:          e.CanAccessSettings(),
		CanModifyIssues:            e.CanModifyIssues(),
		CanModifyRemedies:          e.CanModifyRemedies(),
		CanCreateIssues:            e.CanCreateIssues(),
		CanCreateRemedies:          e.CanCreateRemedies(),
		CanViewIssues:              e.CanViewIssues(),
		CanViewRemedies:            e.CanViewRemedies(),
		CanViewCosts:               e.CanViewCosts(),
		CanViewExternalContacts:    e.CanViewExternalContacts(),
		ShouldShowCosts:            e.ShouldShowCosts(),
		ShouldShowExternalContacts: e.ShouldShowExternalContacts(),
		Role:                       e.CurrentRole(),
		RoleName:                   e.CurrentRoleName(),
	}
}
