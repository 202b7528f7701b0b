package domain

// Permission is a capability identifier checked by exact membership in a
// role's permission set. The known set below is closed; the upstream API may
// still send strings outside it, which are carried opaquely (see Role).
type Permission string

const (
	PermViewDashboard        Permission = "view_dashboard"
	PermCRUDIssues           Permission = "crud_issues"
	PermCRUDRemedies         Permission = "crud_remedies"
	PermMarkResolved         Permission = "mark_resolved"
	PermConfigureLimits      Permission = "configure_limits"
	PermManageUsers          Permission = "manage_users"
	PermViewCosts            Permission = "view_costs"
	PermViewExternalContacts Permission = "view_external_contacts"
	PermGenerateReports      Permission = "generate_reports"
)

var knownPermissions = map[Permission]struct{}{
	PermViewDashboard:        {},
	PermCRUDIssues:           {},
	PermCRUDRemedies:         {},
	PermMarkResolved:         {},
	PermConfigureLimits:      {},
	PermManageUsers:          {},
	PermViewCosts:            {},
	PermViewExternalContacts: {},
	PermGenerateReports:      {},
}

// Known reports whether p is part of the closed permission enumeration.
func (p Permission) Known() bool {
	_, ok := knownPermissions[p]
	return ok
}

// ParsePermissions converts raw permission strings from the upstream API.
// Unknown strings are kept as-is and returned separately so the decode
// boundary can log them; they still participate in exact-match checks and
// therefore never satisfy a known-permission query.
func ParsePermissions(raw []string) (perms []Permission, unknown []string) {
	perms = make([]Permission, 0, len(raw))
	for _, s := range raw {
		p := Permission(s)
		perms = append(perms, p)
		if !p.Known() {
			unknown = append(unknown, s)
		}
	}
	return perms, unknown
}
