package domain

import "errors"

// SessionPhase represents the lifecycle state of a browser session's
// authentication status.
type SessionPhase string

const (
	// PhaseUnknown means no auth-determining operation has settled yet.
	PhaseUnknown SessionPhase = "unknown"
	// PhaseAuthenticated means the upstream API confirmed an identity.
	PhaseAuthenticated SessionPhase = "authenticated"
	// PhaseAnonymous means the session is confirmed public.
	PhaseAnonymous SessionPhase = "anonymous"
)

// validPhaseTransitions defines the allowed state machine transitions.
// There is no terminal phase; the machine lives as long as the session.
var validPhaseTransitions = map[SessionPhase][]SessionPhase{
	PhaseUnknown:       {PhaseAuthenticated, PhaseAnonymous},
	PhaseAuthenticated: {PhaseAuthenticated, PhaseAnonymous},
	PhaseAnonymous:     {PhaseAuthenticated, PhaseAnonymous},
}

// CanTransitionTo reports whether moving from the current phase to next is a
// valid lifecycle transition.
func (p SessionPhase) CanTransitionTo(next SessionPhase) bool {
	for _, allowed := range validPhaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SessionState is a point-in-time snapshot of a browser session. Invariant:
// IsAuthenticated is true iff User is non-nil and was set by a successful
// authentication path; Loading is true only while an auth-determining
// operation (initial check, login, logout) is in flight.
type SessionState struct {
	User            *User        `json:"user"`
	Loading         bool         `json:"loading"`
	IsAuthenticated bool         `json:"is_authenticated"`
	Phase           SessionPhase `json:"phase"`
}

// IsPublic reports whether the session has no user attached.
func (s SessionState) IsPublic() bool {
	return s.User == nil
}

var (
	// ErrLoginInFlight rejects a Login that overlaps an unfinished one.
	ErrLoginInFlight = errors.New("login already in flight")
	// ErrStoreClosed is returned by operations on a closed session store.
	ErrStoreClosed = errors.New("session store closed")
	// ErrSessionNotFound means the gateway cookie references no live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrForbidden marks an authenticated request lacking permission.
	ErrForbidden = errors.New("access forbidden")
	// ErrTooManyAttempts is returned when the login rate limit is exceeded.
	ErrTooManyAttempts = errors.New("too many login attempts")
)

// UpstreamError is a non-2xx response from the upstream API. StatusCode
// lets the session store distinguish an authoritative 401/403 from a
// transient server failure; Payload is the decoded error body, if any.
type UpstreamError struct {
	StatusCode int
	Payload    map[string]any
}

func (e *UpstreamError) Error() string {
	if msg, ok := e.Payload["error"].(string); ok && msg != "" {
		return msg
	}
	if msg, ok := e.Payload["detail"].(string); ok && msg != "" {
		return msg
	}
	return "upstream error"
}

// AuthFailure reports whether the response is an authoritative
// authentication failure rather than a transient error.
func (e *UpstreamError) AuthFailure() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// LoginError carries the upstream login rejection so callers can surface the
// server's own error payload. The session is forced anonymous before this is
// returned.
type LoginError struct {
	StatusCode int
	Payload    map[string]any
}

func (e *LoginError) Error() string {
	if msg, ok := e.Payload["error"].(string); ok && msg != "" {
		return "login rejected: " + msg
	}
	return "login rejected by upstream"
}
