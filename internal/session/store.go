// AngelaMos | 2026
// store.go

package session

import (
	"context"
	"sync"

	"github.com/carterperez-dev/clinic-session/internal/claims"
	"github.com/carterperez-dev/clinic-session/internal/tenant"
	"github.com/carterperez-dev/clinic-session/internal/user"
)

type Phase string

const (
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseRestoring       Phase = "restoring"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseLoggingOut      Phase = "logging_out"
)

// State is an immutable copy of the session. Generation changes on every
// identity transition (login, logout, restore, resync) and never on
// profile edits.
type State struct {
	Token       string
	User        *user.User
	Tenant      *tenant.Tenant
	Permissions claims.Matrix
	Loading     bool
	Generation  uint64
}

func (s State) IsAuthenticated() bool {
	return s.User != nil
}

func (s State) clone() State {
	c := s
	c.User = s.User.Clone()
	c.Tenant = s.Tenant.Clone()
	c.Permissions = s.Permissions.Clone()
	return c
}

// Store owns the in-memory session. Each generation gets its own scope
// context, cancelled as soon as the generation is replaced; background
// work bound to a scope must not outlive it.
type Store struct {
	mu     sync.RWMutex
	state  State
	phase  Phase
	scope  context.Context
	cancel context.CancelFunc
	closed bool
}

func NewStore() *Store {
	scope, cancel := context.WithCancel(context.Background())
	return &Store{
		state: State{
			Permissions: claims.Matrix{},
			Loading:     true,
		},
		phase:  PhaseUnauthenticated,
		scope:  scope,
		cancel: cancel,
	}
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Generation
}

func (s *Store) Scope() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}

// begin starts a new generation from a zero state prepared by fn.
func (s *Store) begin(phase Phase, fn func(*State)) (uint64, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()

	next := State{Permissions: claims.Matrix{}}
	fn(&next)
	if next.Permissions == nil {
		next.Permissions = claims.Matrix{}
	}
	next.Generation = s.state.Generation + 1

	s.state = next
	s.phase = phase
	if s.closed {
		s.scope, s.cancel = canceledScope()
	} else {
		s.scope, s.cancel = context.WithCancel(context.Background())
	}

	return s.state.Generation, s.scope
}

// update applies fn only while gen is still current.
func (s *Store) update(gen uint64, fn func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Generation != gen {
		return false
	}

	fn(&s.state)
	s.state.Generation = gen
	return true
}

func (s *Store) setPhase(gen uint64, phase Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Generation != gen {
		return false
	}
	s.phase = phase
	return true
}

func (s *Store) finishLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
}

// Close cancels the current scope; later generations start cancelled.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancel()
}

func canceledScope() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx, cancel
}
