// Package lock implements a simple Redis distributed lock: SET NX PX plus
// Lua safe release/refresh. Used to keep only one instance running the
// scheduled payout batch at a time.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps a redis client with a key prefix for lock keys
type Client struct {
	rdb    *redis.Client
	prefix string
}

// New creates a lock client. Keys are namespaced under prefix.
func New(rdb *redis.Client, prefix string) *Client {
	return &Client{
		rdb:    rdb,
		prefix: strings.TrimSpace(prefix),
	}
}

// Key returns the namespaced redis key for a lock name
func (c *Client) Key(name string) string {
	name = strings.TrimSpace(name)
	if c == nil {
		return name
	}
	p := c.prefix
	if p == "" {
		p = "payouts:lock:"
	}
	return p + name
}

// Token generates a random holder token so only the acquiring instance can
// release or refresh its own lock
func Token() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// Acquire takes the lock if it is free. Returns false if another holder owns it.
func (c *Client) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, errors.New("redis lock not initialized")
	}
	key = strings.TrimSpace(key)
	token = strings.TrimSpace(token)
	if key == "" || token == "" {
		return false, errors.New("lock key/token empty")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return c.rdb.SetNX(ctx, key, token, ttl).Result()
}

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
  return 0
end
`)

// Refresh extends the TTL if this token still holds the lock
func (c *Client) Refresh(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, errors.New("redis lock not initialized")
	}
	key = strings.TrimSpace(key)
	token = strings.TrimSpace(token)
	if key == "" || token == "" {
		return false, errors.New("lock key/token empty")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	n, err := refreshScript.Run(ctx, c.rdb, []string{key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	// PEXPIRE returns 1 if the timeout was set, 0 otherwise
	return n == 1, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// Release deletes the lock if this token still holds it
func (c *Client) Release(ctx context.Context, key, token string) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, errors.New("redis lock not initialized")
	}
	key = strings.TrimSpace(key)
	token = strings.TrimSpace(token)
	if key == "" || token == "" {
		return false, errors.New("lock key/token empty")
	}
	n, err := releaseScript.Run(ctx, c.rdb, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
