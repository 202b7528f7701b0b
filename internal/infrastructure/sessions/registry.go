// Package sessions keeps one live session store per browser, keyed by the
// gateway's own session ID. The registry is the composition point between
// the signed gateway cookie and the per-session auth state.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/maintlog/logbook-gateway/internal/core/domain"
	"github.com/maintlog/logbook-gateway/internal/core/ports"
	"github.com/maintlog/logbook-gateway/internal/upstream"
)

const (
	defaultTTL           = 12 * time.Hour
	defaultSweepInterval = 5 * time.Minute
)

// Factory builds the store and upstream client for a new browser session.
type Factory func(sessionID string) (ports.SessionStore, *upstream.Client, error)

// Entry is one live browser session.
type Entry struct {
	ID       string
	Store    ports.SessionStore
	Client   *upstream.Client
	lastSeen time.Time
}

// Registry owns every live browser session. Idle sessions are swept after
// the TTL and their stores closed, so late completions of in-flight auth
// calls are dropped instead of written.
type Registry struct {
	factory Factory
	ttl     time.Duration
	log     zerolog.Logger
	// onCount, when set, receives the live session count after every
	// change. The composition root points it at the sessions gauge.
	onCount func(n int)

	mu      sync.Mutex
	entries map[string]*Entry
}

// NewRegistry builds a registry. ttl <= 0 falls back to 12h.
func NewRegistry(factory Factory, ttl time.Duration, log zerolog.Logger, onCount func(int)) *Registry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Registry{
		factory: factory,
		ttl:     ttl,
		log:     log,
		onCount: onCount,
		entries: make(map[string]*Entry),
	}
}

// Create allocates a new browser session with a fresh store and cookie jar.
func (r *Registry) Create() (*Entry, error) {
	id := uuid.NewString()
	store, client, err := r.factory(id)
	if err != nil {
		return nil, err
	}
	entry := &Entry{ID: id, Store: store, Client: client, lastSeen: time.Now()}

	r.mu.Lock()
	r.entries[id] = entry
	n := len(r.entries)
	r.mu.Unlock()

	r.countChanged(n)
	return entry, nil
}

// Get returns the live session for id, refreshing its idle timer.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	entry.lastSeen = time.Now()
	return entry, nil
}

// Drop removes and closes a session (logout path).
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	n := len(r.entries)
	r.mu.Unlock()

	if ok {
		entry.Store.Close()
		r.countChanged(n)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Start launches the idle sweeper. It stops when ctx is cancelled.
func (r *Registry) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(defaultSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Entry
	for id, entry := range r.entries {
		if entry.lastSeen.Before(cutoff) {
			expired = append(expired, entry)
			delete(r.entries, id)
		}
	}
	n := len(r.entries)
	r.mu.Unlock()

	for _, entry := range expired {
		entry.Store.Close()
		r.log.Debug().Str("session_id", entry.ID).Msg("idle session swept")
	}
	if len(expired) > 0 {
		r.countChanged(n)
	}
}

func (r *Registry) countChanged(n int) {
	if r.onCount != nil {
		r.onCount(n)
	}
}
