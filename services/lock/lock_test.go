package locksvc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoraid/memoraid/core/dispatch"
)

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "send_scheduler.lock")
	first := NewFileLock(path, 100*time.Millisecond)
	second := NewFileLock(path, 100*time.Millisecond)
	ctx := context.Background()

	release, err := first.Acquire(ctx)
	require.NoError(t, err)

	_, err = second.Acquire(ctx)
	assert.ErrorIs(t, err, dispatch.ErrLocked)

	require.NoError(t, release())

	release, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.NoError(t, release())
}

func TestRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	key := "memoraid:test:dispatch"
	first := NewRedisLock(client, key, time.Minute, 100*time.Millisecond)
	second := NewRedisLock(client, key, time.Minute, 100*time.Millisecond)
	ctx := context.Background()

	release, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	_, err = second.Acquire(ctx)
	assert.ErrorIs(t, err, dispatch.ErrLocked)

	require.NoError(t, release())
	assert.False(t, mr.Exists(key))

	release, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.NoError(t, release())
}

func TestRedisLockExpiredHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	key := "memoraid:test:dispatch"
	ctx := context.Background()

	staleRelease, err := NewRedisLock(client, key, time.Minute, 100*time.Millisecond).Acquire(ctx)
	require.NoError(t, err)

	// the ttl frees a crashed holder's lock
	mr.FastForward(time.Minute + time.Second)
	release, err := NewRedisLock(client, key, time.Minute, 100*time.Millisecond).Acquire(ctx)
	require.NoError(t, err)
	owner, err := mr.Get(key)
	require.NoError(t, err)

	// the stale holder must not free the new owner's lock
	require.NoError(t, staleRelease())
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	require.NoError(t, release())
	assert.False(t, mr.Exists(key))
}
