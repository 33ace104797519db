package contract

import (
	"context"
	"errors"
)

var (
	ErrUnknownSession  = errors.New("unknown or expired session")
	ErrSessionConflict = errors.New("session is already being resumed")
)

// SessionStore keeps serialized workflow snapshots between a pause and its resume.
type SessionStore interface {
	// Save stores the snapshot under sessionId and (re)starts its TTL.
	Save(ctx context.Context, sessionId string, snapshot []byte) error
	// Acquire takes the exclusive lock on the session without blocking and
	// returns the snapshot. The caller must invoke release when done.
	// Returns ErrUnknownSession or ErrSessionConflict.
	Acquire(ctx context.Context, sessionId string) (snapshot []byte, release func(), err error)
	Delete(ctx context.Context, sessionId string) error
}
