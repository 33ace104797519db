package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"iso-risk-agent-be/internal/repository/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Minute, time.Minute)

	require.NoError(t, repo.Save(ctx, "s1", []byte(`{"a":1}`)))

	snap, release, err := repo.Acquire(ctx, "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(snap))

	// Snapshot is a copy.
	snap[0] = 'x'
	release()
	again, release2, err := repo.Acquire(ctx, "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(again))
	release2()
}

func TestSessionRepositoryUnknownAndExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(20*time.Millisecond, time.Minute)

	_, _, err := repo.Acquire(ctx, "missing")
	assert.ErrorIs(t, err, contract.ErrUnknownSession)

	require.NoError(t, repo.Save(ctx, "s1", []byte("{}")))
	time.Sleep(40 * time.Millisecond)
	_, _, err = repo.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, contract.ErrUnknownSession)
}

func TestSessionRepositorySingleOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Minute, time.Minute)
	require.NoError(t, repo.Save(ctx, "s1", []byte("{}")))

	var (
		wg        sync.WaitGroup
		owners    atomic.Int32
		conflicts atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := repo.Acquire(ctx, "s1")
			if err == nil {
				owners.Add(1)
				return
			}
			if assert.ErrorIs(t, err, contract.ErrSessionConflict) {
				conflicts.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), owners.Load())
	assert.Equal(t, int32(7), conflicts.Load())
}

func TestSessionRepositoryReleaseAfterDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(time.Minute, time.Minute)
	require.NoError(t, repo.Save(ctx, "s1", []byte("{}")))

	_, release, err := repo.Acquire(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "s1"))
	release()
	release()

	_, _, err = repo.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, contract.ErrUnknownSession)
}
