package rbac

import "github.com/maintlog/logbook-gateway/internal/core/domain"

// Gate describes one conditional-access rule: a single permission, a
// permission list with an all/any mode, or bare auth/public flags.
type Gate struct {
	Permission  domain.Permission   `json:"permission,omitempty"`
	Permissions []domain.Permission `json:"permissions,omitempty"`
	// RequireAll switches the list check from any-of to all-of.
	RequireAll bool `json:"require_all,omitempty"`
	// RequireAuth demands an authenticated session even without permissions.
	RequireAuth bool `json:"require_auth,omitempty"`
	// AllowPublic short-circuits everything for unauthenticated visitors.
	AllowPublic bool `json:"allow_public,omitempty"`
}

// Allows evaluates the gate against a session. The rule order is load-bearing
// and must not be rearranged: AllowPublic wins before RequireAuth is even
// consulted, so a gate can both demand auth for logged-in users and still
// admit anonymous visitors.
func (g Gate) Allows(e Evaluator) bool {
	// 1. Public visitors explicitly admitted.
	if g.AllowPublic && e.IsPublic() {
		return true
	}

	// 2. Authentication demanded and absent.
	if g.RequireAuth && !e.IsAuthenticated() {
		return false
	}

	// 3. No permissions configured: the auth requirement already passed.
	if g.Permission == "" && len(g.Permissions) == 0 {
		return true
	}

	// 4/5. Permission-based access implies authentication.
	if !e.IsAuthenticated() {
		return false
	}
	if g.Permission != "" {
		return e.HasPermission(g.Permission)
	}
	if g.RequireAll {
		return e.HasAllPermissions(g.Permissions)
	}
	return e.HasAnyPermission(g.Permissions)
}
