package implementation

import (
	"context"
	"testing"
	"time"

	"iso-risk-agent-be/internal/repository/contract"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*miniredis.Miniredis, contract.SessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisSessionStore(rdb, 30*time.Minute, time.Minute)
}

func TestRedisSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	_, store := newTestRedisStore(t)

	_, _, err := store.Acquire(ctx, "nope")
	assert.ErrorIs(t, err, contract.ErrUnknownSession)

	require.NoError(t, store.Save(ctx, "s1", []byte(`{"session_id":"s1"}`)))

	snap, release, err := store.Acquire(ctx, "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":"s1"}`, string(snap))

	_, _, err = store.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, contract.ErrSessionConflict)

	release()
	_, release2, err := store.Acquire(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "s1"))
	release2()

	_, _, err = store.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, contract.ErrUnknownSession)
}

func TestRedisSessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedisStore(t)

	require.NoError(t, store.Save(ctx, "s1", []byte("{}")))
	mr.FastForward(31 * time.Minute)

	_, _, err := store.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, contract.ErrUnknownSession)
}

func TestRedisSessionStoreStaleLockExpires(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedisStore(t)
	require.NoError(t, store.Save(ctx, "s1", []byte("{}")))

	_, _, err := store.Acquire(ctx, "s1") // holder never releases
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, release, err := store.Acquire(ctx, "s1")
	require.NoError(t, err)
	release()
}
