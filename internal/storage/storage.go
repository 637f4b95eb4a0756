// Package storage defines the persistence mirror boundary for race sessions.
//
// The mirror is write-behind and best effort: the in-memory session store
// stays authoritative while the process runs, and a failed mirror write never
// rolls back in-memory state. The mirror is consulted only on cold lookup,
// when a session is not resident in memory.
package storage

import (
	"context"
	"errors"

	"github.com/rohith-arumugam/truck-racing/internal/race/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// SessionMirror persists session snapshots for recovery after restart.
type SessionMirror interface {
	Save(ctx context.Context, session *domain.Session) error
	Load(ctx context.Context, id string) (*domain.Session, error)
}
