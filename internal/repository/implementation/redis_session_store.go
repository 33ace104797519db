package implementation

import (
	"context"
	"errors"
	"sync"
	"time"

	"iso-risk-agent-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "agent:session:"

// releaseLock deletes the lock only if this holder still owns it.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisSessionStore shares paused sessions between API replicas.
type RedisSessionStore struct {
	rdb     redis.UniversalClient
	ttl     time.Duration
	lockTTL time.Duration
}

func NewRedisSessionStore(rdb redis.UniversalClient, ttl, lockTTL time.Duration) contract.SessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl, lockTTL: lockTTL}
}

func (s *RedisSessionStore) Save(ctx context.Context, sessionId string, snapshot []byte) error {
	return s.rdb.Set(ctx, sessionKeyPrefix+sessionId, snapshot, s.ttl).Err()
}

func (s *RedisSessionStore) Acquire(ctx context.Context, sessionId string) ([]byte, func(), error) {
	key := sessionKeyPrefix + sessionId
	lockKey := key + ":lock"

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return nil, nil, err
	}
	if n == 0 {
		return nil, nil, contract.ErrUnknownSession
	}

	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, lockKey, token, s.lockTTL).Result()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, contract.ErrSessionConflict
	}
	release := sync.OnceFunc(func() {
		// Detached so a cancelled request still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseLock.Run(releaseCtx, s.rdb, []string{lockKey}, token).Err()
	})

	snapshot, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		release()
		return nil, nil, contract.ErrUnknownSession
	}
	if err != nil {
		release()
		return nil, nil, err
	}
	return snapshot, release, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionId string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+sessionId).Err()
}
