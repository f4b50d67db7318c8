package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	RunID    string `json:"run_id"`
	Progress int    `json:"progress"`
}

func TestMemoryRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "run:1", snapshot{RunID: "1", Progress: 40}, time.Hour))
	var got snapshot
	require.NoError(t, c.Get(ctx, "run:1", &got))
	assert.Equal(t, snapshot{RunID: "1", Progress: 40}, got)

	var id string
	require.NoError(t, c.Set(ctx, "run:latest", "1", 0))
	require.NoError(t, c.Get(ctx, "run:latest", &id))
	assert.Equal(t, "1", id)

	require.NoError(t, c.Delete(ctx, "run:1"))
	assert.ErrorIs(t, c.Get(ctx, "run:1", &got), ErrCacheMiss)
}

func TestMemoryExpiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLockIsOwnerAware(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	ok, _ := c.TryLock(ctx, "lock", "run-a", time.Minute)
	assert.True(t, ok)
	ok, _ = c.TryLock(ctx, "lock", "run-a", time.Minute)
	assert.True(t, ok, "same owner re-enters")
	ok, _ = c.TryLock(ctx, "lock", "run-b", time.Minute)
	assert.False(t, ok)

	require.NoError(t, c.Unlock(ctx, "lock", "run-b"))
	ok, _ = c.TryLock(ctx, "lock", "run-b", time.Minute)
	assert.False(t, ok, "foreign unlock is ignored")

	require.NoError(t, c.Unlock(ctx, "lock", "run-a"))
	ok, _ = c.TryLock(ctx, "lock", "run-b", time.Minute)
	assert.True(t, ok)
}

func TestMemoryEvictsWhenFull(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(2))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "b", 2, time.Hour))
	require.NoError(t, c.Set(ctx, "c", 3, time.Hour))

	ok, _ := c.Exists(ctx, "a")
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, "c")
	assert.True(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "demandcast:run:42", Key("demandcast", "run", "42"))
}
