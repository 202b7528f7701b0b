package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/maintlog/logbook-gateway/internal/core/domain"
	"github.com/maintlog/logbook-gateway/internal/core/ports"
)

const defaultLoginPath = "/login"

// SessionStore implements ports.SessionStore: the per-browser-session source
// of truth for who the current user is. It is the single writer of its
// state; every committed state is pushed to subscribers synchronously before
// the mutating operation returns, so a caller observing a Login return can
// rely on the new state being visible everywhere.
type SessionStore struct {
	client    ports.SessionClient
	audit     ports.AuditSink
	log       zerolog.Logger
	sessionID string
	loginPath string

	mu            sync.Mutex
	state         domain.SessionState
	closed        bool
	loginInFlight bool
	subs          map[int]func(domain.SessionState)
	nextSub       int
}

// NewSessionStore builds a store in the Unknown phase (loading=true). audit
// may be nil when no trail is configured; loginPath falls back to "/login".
func NewSessionStore(client ports.SessionClient, audit ports.AuditSink, log zerolog.Logger, sessionID, loginPath string) *SessionStore {
	if loginPath == "" {
		loginPath = defaultLoginPath
	}
	return &SessionStore{
		client:    client,
		audit:     audit,
		log:       log.With().Str("session_id", sessionID).Logger(),
		sessionID: sessionID,
		loginPath: loginPath,
		state: domain.SessionState{
			Loading: true,
			Phase:   domain.PhaseUnknown,
		},
		subs: make(map[int]func(domain.SessionState)),
	}
}

// Initialize settles the session for the first time. Landing on the login
// route skips the status check entirely: the page exists to establish a new
// session, so checking the old one is redundant.
func (s *SessionStore) Initialize(ctx context.Context, currentPath string) {
	if currentPath == s.loginPath {
		s.commit(func(st *domain.SessionState) {
			st.Loading = false
			s.setPhase(st, domain.PhaseAnonymous)
		})
		return
	}
	s.CheckStatus(ctx)
}

// CheckStatus reconciles local state with the upstream identity endpoint.
// Only a 401 or 403 evicts the user; a transient failure must not tear down
// a session that may still be valid. The loading flag always clears.
func (s *SessionStore) CheckStatus(ctx context.Context) *domain.User {
	user, err := s.client.CurrentUser(ctx)
	if err == nil {
		s.commit(func(st *domain.SessionState) {
			st.User = user
			st.IsAuthenticated = true
			st.Loading = false
			s.setPhase(st, domain.PhaseAuthenticated)
		})
		return user
	}

	var ue *domain.UpstreamError
	if errors.As(err, &ue) && ue.AuthFailure() {
		s.evict("status check returned " + ue.Error())
		return nil
	}

	s.log.Warn().Err(err).Msg("status check failed transiently, keeping session state")
	s.record(domain.AuditTransientError, err.Error())
	s.commit(func(st *domain.SessionState) {
		st.Loading = false
	})
	return nil
}

// Login authenticates against the upstream. The returned user has already
// been committed and announced to every subscriber, which replaces the old
// settle-before-navigate delay. Overlapping calls are rejected rather than
// interleaved.
func (s *SessionStore) Login(ctx context.Context, username, password string) (*domain.User, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.ErrStoreClosed
	}
	if s.loginInFlight {
		s.mu.Unlock()
		return nil, domain.ErrLoginInFlight
	}
	s.loginInFlight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loginInFlight = false
		s.mu.Unlock()
	}()

	s.commit(func(st *domain.SessionState) {
		st.Loading = true
	})

	user, err := s.client.Login(ctx, username, password)
	if err != nil {
		s.commit(func(st *domain.SessionState) {
			st.User = nil
			st.IsAuthenticated = false
			st.Loading = false
			s.setPhase(st, domain.PhaseAnonymous)
		})
		s.recordFor(username, domain.AuditLoginRejected, err.Error())

		var ue *domain.UpstreamError
		if errors.As(err, &ue) {
			return nil, &domain.LoginError{StatusCode: ue.StatusCode, Payload: ue.Payload}
		}
		return nil, err
	}

	s.commit(func(st *domain.SessionState) {
		st.User = user
		st.IsAuthenticated = true
		st.Loading = false
		s.setPhase(st, domain.PhaseAuthenticated)
	})
	s.recordFor(user.Username, domain.AuditLoginOK, "")
	return user, nil
}

// Logout clears the session. The local clear is authoritative: even if the
// upstream call fails the user-visible contract is "no longer logged in
// here", so the error is logged and swallowed.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStoreClosed
	}
	s.mu.Unlock()

	s.commit(func(st *domain.SessionState) {
		st.Loading = true
	})

	username := ""
	if u := s.Snapshot().User; u != nil {
		username = u.Username
	}

	if err := s.client.Logout(ctx); err != nil {
		s.log.Warn().Err(err).Msg("upstream logout failed, clearing local session anyway")
	}

	s.commit(func(st *domain.SessionState) {
		st.User = nil
		st.IsAuthenticated = false
		st.Loading = false
		s.setPhase(st, domain.PhaseAnonymous)
	})
	s.recordFor(username, domain.AuditLogout, "")
	return nil
}

// RefreshUser revalidates opportunistically without disturbing loading
// indicators. Only a 401 evicts; a 403 or transient failure keeps state.
func (s *SessionStore) RefreshUser(ctx context.Context) {
	user, err := s.client.CurrentUser(ctx)
	if err == nil {
		s.commit(func(st *domain.SessionState) {
			st.User = user
			st.IsAuthenticated = true
			s.setPhase(st, domain.PhaseAuthenticated)
		})
		return
	}

	var ue *domain.UpstreamError
	if errors.As(err, &ue) && ue.StatusCode == 401 {
		s.evictQuiet("refresh returned 401")
		return
	}
	s.log.Warn().Err(err).Msg("user refresh failed transiently, keeping session state")
	s.record(domain.AuditTransientError, err.Error())
}

// Snapshot returns a copy of the current state.
func (s *SessionStore) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for synchronous notification on every commit.
func (s *SessionStore) Subscribe(fn func(domain.SessionState)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Close drops the store. Completions of operations still in flight are
// discarded by commit instead of written to a dead session.
func (s *SessionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = make(map[int]func(domain.SessionState))
}

// commit applies mutate under the lock and then notifies subscribers with
// the committed copy. A closed store swallows the write.
func (s *SessionStore) commit(mutate func(*domain.SessionState)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	mutate(&s.state)
	committed := s.state
	subs := make([]func(domain.SessionState), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(committed)
	}
}

// setPhase transitions the lifecycle phase, logging any violation of the
// session state machine. Must be called from inside a commit mutator.
func (s *SessionStore) setPhase(st *domain.SessionState, next domain.SessionPhase) {
	if !st.Phase.CanTransitionTo(next) && st.Phase != next {
		s.log.Error().
			Str("from", string(st.Phase)).
			Str("to", string(next)).
			Msg("invalid session phase transition")
	}
	st.Phase = next
}

// evict clears the user after an authoritative auth failure, also clearing
// the loading flag (status-check path).
func (s *SessionStore) evict(detail string) {
	s.evictWith(detail, true)
}

// evictQuiet clears the user without touching loading (refresh path).
func (s *SessionStore) evictQuiet(detail string) {
	s.evictWith(detail, false)
}

func (s *SessionStore) evictWith(detail string, clearLoading bool) {
	hadUser := ""
	if u := s.Snapshot().User; u != nil {
		hadUser = u.Username
	}
	s.commit(func(st *domain.SessionState) {
		st.User = nil
		st.IsAuthenticated = false
		if clearLoading {
			st.Loading = false
		}
		s.setPhase(st, domain.PhaseAnonymous)
	})
	if hadUser != "" {
		s.recordFor(hadUser, domain.AuditSessionEvicted, detail)
	}
}

func (s *SessionStore) record(kind domain.AuditKind, detail string) {
	username := ""
	if u := s.Snapshot().User; u != nil {
		username = u.Username
	}
	s.recordFor(username, kind, detail)
}

func (s *SessionStore) recordFor(username string, kind domain.AuditKind, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Enqueue(domain.AuditEvent{
		SessionID: s.sessionID,
		Username:  username,
		Kind:      kind,
		Detail:    detail,
		At:        time.Now().UTC(),
	})
}
