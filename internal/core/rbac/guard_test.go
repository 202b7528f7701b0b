package rbac

import (
	"testing"

	"github.com/maintlog/logbook-gateway/internal/core/domain"
)

func TestGuard_LoadingAlwaysPending(t *testing.T) {
	g := Guard{Gate{Permission: domain.PermManageUsers}}
	state := publicState()
	state.Loading = true
	state.Phase = domain.PhaseUnknown

	if got := g.Decide(state, "/admin"); got != GuardPending {
		t.Fatalf("undetermined session must be pending, got %v", got)
	}
}

func TestGuard_RemedyEditPathBypassesEverything(t *testing.T) {
	g := Guard{Gate{RequireAuth: true, Permission: domain.PermManageUsers}}
	path := "/issues/123/remedies/456/edit"

	if got := g.Decide(technicianState(), path); got != GuardGrant {
		t.Fatalf("authenticated remedy edit must be granted, got %v", got)
	}
	if got := g.Decide(publicState(), path); got != GuardGrant {
		t.Fatalf("anonymous remedy edit must be granted, got %v", got)
	}
}

func TestGuard_RemedyEditPathStillWaitsForLoading(t *testing.T) {
	g := Guard{Gate{}}
	state := domain.SessionState{Loading: true, Phase: domain.PhaseUnknown}

	if got := g.Decide(state, "/issues/1/remedies/2/edit"); got != GuardPending {
		t.Fatalf("loading check precedes the remedy-edit carve-out, got %v", got)
	}
}

func TestIsRemedyEditPath(t *testing.T) {
	cases := map[string]bool{
		"/issues/123/remedies/456/edit": true,
		"/remedies/9/edit":              true,
		"/issues/123/remedies/456":      false,
		"/issues/123/edit":              false,
		"/remedies/":                    false,
	}
	for path, want := range cases {
		if got := IsRemedyEditPath(path); got != want {
			t.Fatalf("IsRemedyEditPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestGuard_UnauthenticatedRedirects(t *testing.T) {
	g := Guard{Gate{RequireAuth: true}}
	if got := g.Decide(publicState(), "/dashboard"); got != GuardRedirect {
		t.Fatalf("anonymous caller must be redirected, got %v", got)
	}
}

func TestGuard_PermissionRouteRedirectsAnonymous(t *testing.T) {
	// No explicit require_auth: the permission itself implies it.
	g := Guard{Gate{Permission: domain.PermViewDashboard}}
	if got := g.Decide(publicState(), "/dashboard"); got != GuardRedirect {
		t.Fatalf("anonymous caller on a permission route redirects, got %v", got)
	}
}

func TestGuard_AuthenticatedWithoutPermissionDenied(t *testing.T) {
	g := Guard{Gate{Permission: domain.PermManageUsers}}
	if got := g.Decide(technicianState(), "/users"); got != GuardDeny {
		t.Fatalf("authenticated caller lacking permission is denied, not redirected, got %v", got)
	}
}

func TestGuard_GrantPaths(t *testing.T) {
	tech := technicianState()

	if got := (Guard{Gate{}}).Decide(tech, "/issues"); got != GuardGrant {
		t.Fatalf("unconfigured guard grants, got %v", got)
	}
	if got := (Guard{Gate{Permission: domain.PermCRUDIssues}}).Decide(tech, "/issues/new"); got != GuardGrant {
		t.Fatalf("held permission grants, got %v", got)
	}
	if got := (Guard{Gate{AllowPublic: true, RequireAuth: true}}).Decide(publicState(), "/issues"); got != GuardGrant {
		t.Fatalf("allow_public admits anonymous visitors, got %v", got)
	}
}

func TestGuard_ListModes(t *testing.T) {
	tech := technicianState()
	perms := []domain.Permission{domain.PermConfigureLimits, domain.PermCRUDIssues}

	if got := (Guard{Gate{Permissions: perms}}).Decide(tech, "/settings"); got != GuardGrant {
		t.Fatalf("any-of with one held permission grants, got %v", got)
	}
	if got := (Guard{Gate{Permissions: perms, RequireAll: true}}).Decide(tech, "/settings"); got != GuardDeny {
		t.Fatalf("all-of with a missing permission denies, got %v", got)
	}
}
