package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/refresh_lock.lua
var refreshLockScript string

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	refreshScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		refreshScript: redis.NewScript(refreshLockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func lockKey(name string) string {
	return fmt.Sprintf("lock:%s", name)
}

// AcquireLock sets the lock to owner unless someone already holds it
func (c *Client) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, lockKey(name), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// ReleaseLock deletes the lock if owner still holds it; released is false otherwise
func (c *Client) ReleaseLock(ctx context.Context, name, owner string) (bool, error) {
	n, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey(name)}, owner).Int64()
	if err != nil {
		return false, fmt.Errorf("release lock script failed: %w", err)
	}
	return n == 1, nil
}

// RefreshLock extends the lock TTL if owner still holds it
func (c *Client) RefreshLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	n, err := c.refreshScript.Run(ctx, c.rdb, []string{lockKey(name)}, owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("refresh lock script failed: %w", err)
	}
	return n == 1, nil
}

// LockOwner returns the current holder of the lock, or "" when it is free
func (c *Client) LockOwner(ctx context.Context, name string) (string, error) {
	owner, err := c.rdb.Get(ctx, lockKey(name)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return owner, err
}
