package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrLockHeld is returned when another run owns the run lock
var ErrLockHeld = errors.New("pipeline run lock is held")

// Lock guards a run against overlapping runs
type Lock interface {
	// Acquire reports false, without error, when another holder owns the lock
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// FileLock is held while its file exists. Creation uses O_EXCL, so only one
// process can create it.
type FileLock struct {
	path string
}

// NewFileLock creates a lock backed by path
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

func (l *FileLock) Acquire(_ context.Context) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "pid=%d acquired=%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	return true, err
}

func (l *FileLock) Release(_ context.Context) error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// LockClient is the subset of the Redis client the lock needs
type LockClient interface {
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) (bool, error)
}

// RedisLock is a TTL-bounded lock owned by a random token, so a run can only
// release the lock it acquired
type RedisLock struct {
	client LockClient
	name   string
	owner  string
	ttl    time.Duration
}

// NewRedisLock creates a distributed lock named name
func NewRedisLock(client LockClient, name string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, name: name, owner: uuid.NewString(), ttl: ttl}
}

// Owner returns this lock's token
func (l *RedisLock) Owner() string {
	return l.owner
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	return l.client.AcquireLock(ctx, l.name, l.owner, l.ttl)
}

func (l *RedisLock) Release(ctx context.Context) error {
	released, err := l.client.ReleaseLock(ctx, l.name, l.owner)
	if err != nil {
		return err
	}
	if !released {
		return fmt.Errorf("lock %s expired or taken over before release", l.name)
	}
	return nil
}
