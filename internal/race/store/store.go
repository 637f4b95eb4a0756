// Package store holds resident race sessions and serializes mutation.
//
// The store is the single source of truth while the process is alive. All
// mutation flows through CompareAndApply, which holds a per-session lock for
// the whole read-modify-write so two concurrent events on one session can
// never act on the same stale observation. Sessions are independent: no lock
// spans two sessions.
package store

import (
	"errors"
	"sync"

	"github.com/rohith-arumugam/truck-racing/internal/race/domain"
)

// ErrNotFound indicates the session is not resident in memory.
var ErrNotFound = errors.New("session is not resident")

type entry struct {
	mu      sync.Mutex
	session *domain.Session
}

// Store maps session ids to resident session state.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New returns an empty store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Get returns a deep copy of the session, or ErrNotFound. Copies keep
// callers from mutating shared state outside CompareAndApply.
func (s *Store) Get(id string) (*domain.Session, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// Put installs or replaces a session.
func (s *Store) Put(session *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[session.ID]; ok {
		e.mu.Lock()
		e.session = session
		e.mu.Unlock()
		return
	}
	s.entries[session.ID] = &entry{session: session}
}

// PutIfAbsent installs the session unless one is already resident and
// returns a copy of the resident session. Cold loads use this so a racing
// load cannot clobber newer in-memory state.
func (s *Store) PutIfAbsent(session *domain.Session) *domain.Session {
	s.mu.Lock()
	e, ok := s.entries[session.ID]
	if !ok {
		e = &entry{session: session}
		s.entries[session.ID] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone()
}

// CompareAndApply runs fn against the live session under its lock. fn sees
// current state and mutates it in place; an error from fn leaves the store
// unchanged only insofar as fn itself avoided partial mutation. Deliveries
// routed inside fn are atomic with respect to the session state fn observed.
func (s *Store) CompareAndApply(id string, fn func(*domain.Session) error) error {
	e, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}
