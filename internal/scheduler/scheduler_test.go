package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLockClient struct {
	holder string
}

func (f *fakeLockClient) AcquireLock(_ context.Context, _, owner string, _ time.Duration) (bool, error) {
	if f.holder != "" {
		return false, nil
	}
	f.holder = owner
	return true, nil
}

func (f *fakeLockClient) ReleaseLock(_ context.Context, _, owner string) (bool, error) {
	if f.holder != owner {
		return false, nil
	}
	f.holder = ""
	return true, nil
}

func TestNextRun(t *testing.T) {
	at := 2 * time.Hour
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before today's slot", time.Date(2024, 5, 1, 1, 30, 0, 0, time.UTC), time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)},
		{"exactly at slot", time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC), time.Date(2024, 5, 2, 2, 0, 0, 0, time.UTC)},
		{"after slot", time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC), time.Date(2024, 5, 2, 2, 0, 0, 0, time.UTC)},
		{"month end", time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextRun(tc.now, at))
		})
	}
}

func TestFileLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pipeline.lock")
	first := NewFileLock(path)
	second := NewFileLock(path)
	ctx := context.Background()

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx))
	assert.NoFileExists(t, path)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release(ctx))
	require.NoError(t, second.Release(ctx))
}

func TestRedisLockReleasesOnlyItsOwnHold(t *testing.T) {
	client := &fakeLockClient{}
	a := NewRedisLock(client, "pipeline", time.Hour)
	b := NewRedisLock(client, "pipeline", time.Hour)
	ctx := context.Background()
	assert.NotEqual(t, a.Owner(), b.Owner())

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, b.Release(ctx))
	assert.Equal(t, a.Owner(), client.holder)
	assert.NoError(t, a.Release(ctx))
	assert.Empty(t, client.holder)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.lock")
	holder := NewFileLock(path)
	_, err := holder.Acquire(context.Background())
	require.NoError(t, err)

	var ran bool
	s := New(2*time.Hour, NewFileLock(path), func(ctx context.Context) error {
		ran = true
		return nil
	}, zap.NewNop())

	err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.False(t, ran)
	assert.FileExists(t, path)
}

func TestRunOnceReleasesLockAfterFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.lock")
	s := New(2*time.Hour, NewFileLock(path), func(ctx context.Context) error {
		assert.FileExists(t, path)
		return assert.AnError
	}, zap.NewNop())

	assert.ErrorIs(t, s.RunOnce(context.Background()), assert.AnError)
	assert.NoFileExists(t, path)
}

func TestStartRunsEachCycleUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var waits []time.Duration
	runs := 0

	s := New(2*time.Hour, NewFileLock(filepath.Join(t.TempDir(), "pipeline.lock")), func(ctx context.Context) error {
		runs++
		return nil
	}, zap.NewNop())
	s.now = func() time.Time { return clock }
	s.sleep = func(ctx context.Context, d time.Duration) error {
		if len(waits) == 2 {
			cancel()
			return ctx.Err()
		}
		waits = append(waits, d)
		clock = clock.Add(d)
		return nil
	}

	err := s.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, runs)
	assert.Equal(t, []time.Duration{14 * time.Hour, 24 * time.Hour}, waits)
}
