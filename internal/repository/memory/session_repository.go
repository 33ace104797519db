package memory

import (
	"context"
	"sync"
	"time"

	"iso-risk-agent-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps paused workflow snapshots in process memory.
// Locks live in a second cache so a crashed resume frees itself after lockTTL.
type SessionRepository struct {
	snapshots *cache.Cache
	locks     *cache.Cache
}

var _ contract.SessionStore = (*SessionRepository)(nil)

func NewSessionRepository(ttl, lockTTL time.Duration) *SessionRepository {
	return &SessionRepository{
		snapshots: cache.New(ttl, 10*time.Minute),
		locks:     cache.New(lockTTL, time.Minute),
	}
}

func (r *SessionRepository) Save(_ context.Context, sessionId string, snapshot []byte) error {
	r.snapshots.Set(sessionId, clone(snapshot), cache.DefaultExpiration)
	return nil
}

func (r *SessionRepository) Acquire(_ context.Context, sessionId string) ([]byte, func(), error) {
	if _, found := r.snapshots.Get(sessionId); !found {
		return nil, nil, contract.ErrUnknownSession
	}

	// Add fails when the key is present, which makes it the lock primitive.
	if err := r.locks.Add(sessionId, struct{}{}, cache.DefaultExpiration); err != nil {
		return nil, nil, contract.ErrSessionConflict
	}
	release := sync.OnceFunc(func() { r.locks.Delete(sessionId) })

	// The previous holder may have completed and deleted it meanwhile.
	x, found := r.snapshots.Get(sessionId)
	if !found {
		release()
		return nil, nil, contract.ErrUnknownSession
	}

	return clone(x.([]byte)), release, nil
}

func (r *SessionRepository) Delete(_ context.Context, sessionId string) error {
	r.snapshots.Delete(sessionId)
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
