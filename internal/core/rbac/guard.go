package rbac

import (
	"strings"

	"github.com/maintlog/logbook-gateway/internal/core/domain"
)

// GuardOutcome is the route guard's decision for one navigation attempt.
type GuardOutcome int

const (
	// GuardGrant lets the navigation proceed.
	GuardGrant GuardOutcome = iota
	// GuardPending means the session is still loading; render a
	// placeholder, never redirect or deny on an undetermined session.
	GuardPending
	// GuardRedirect sends the unauthenticated caller to the login page,
	// preserving the original target for the post-login bounce-back.
	GuardRedirect
	// GuardDeny renders the access-denied view for an authenticated caller
	// lacking permission.
	GuardDeny
)

// IsRemedyEditPath reports whether path is a remedy-edit navigation, the one
// route that is always granted regardless of guard configuration. Kept as a
// named special case; do not generalize it into the gate rules.
func IsRemedyEditPath(path string) bool {
	return strings.Contains(path, "/remedies/") && strings.Contains(path, "/edit")
}

// Guard applies Gate semantics at navigation level.
type Guard struct {
	Gate
}

// Decide evaluates one navigation attempt. Ordering: the loading check comes
// first so no decision is made on an undetermined session, then the
// remedy-edit carve-out (granted for authenticated and anonymous callers
// alike), then the gate rules with redirect/deny in place of hiding.
func (g Guard) Decide(state domain.SessionState, path string) GuardOutcome {
	if state.Loading {
		return GuardPending
	}
	if IsRemedyEditPath(path) {
		return GuardGrant
	}

	e := NewEvaluator(state)

	if g.AllowPublic && e.IsPublic() {
		return GuardGrant
	}
	if g.RequireAuth && !e.IsAuthenticated() {
		return GuardRedirect
	}
	if g.Permission == "" && len(g.Permissions) == 0 {
		return GuardGrant
	}
	// Permission-based routes implicitly require authentication.
	if !e.IsAuthenticated() {
		return GuardRedirect
	}

	granted := false
	if g.Permission != "" {
		granted = e.HasPermission(g.Permission)
	} else if g.RequireAll {
		granted = e.HasAllPermissions(g.Permissions)
	} else {
		granted = e.HasAnyPermission(g.Permissions)
	}
	if !granted {
		return GuardDeny
	}
	return GuardGrant
}
