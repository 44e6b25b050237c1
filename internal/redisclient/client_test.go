package redisclient

import (
	"context"
	"testing"
	"time"

	"ecommerce-etl/internal/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockOwnership(t *testing.T) {
	addr := testhelpers.StartRedis(t)
	c, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "pipeline", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, "pipeline", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	released, err := c.ReleaseLock(ctx, "pipeline", "owner-b")
	require.NoError(t, err)
	assert.False(t, released)

	owner, err := c.LockOwner(ctx, "pipeline")
	require.NoError(t, err)
	assert.Equal(t, "owner-a", owner)

	refreshed, err := c.RefreshLock(ctx, "pipeline", "owner-a", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, refreshed)

	released, err = c.ReleaseLock(ctx, "pipeline", "owner-a")
	require.NoError(t, err)
	assert.True(t, released)

	owner, err = c.LockOwner(ctx, "pipeline")
	require.NoError(t, err)
	assert.Empty(t, owner)
}

func TestLockExpires(t *testing.T) {
	addr := testhelpers.StartRedis(t)
	c, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	ok, err := c.AcquireLock(ctx, "short", "owner-a", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		ok, err := c.AcquireLock(ctx, "short", "owner-b", time.Minute)
		return err == nil && ok
	}, 3*time.Second, 50*time.Millisecond)
}
