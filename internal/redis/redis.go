// Package redis stores run summaries and the run lock in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Jayphen/habisnooze/internal/types"
)

const (
	// LastRunKey holds the most recent run summary.
	LastRunKey = "habisnooze:run:last"
	// RunHistoryKey is a capped list of recent run summaries, newest first.
	RunHistoryKey = "habisnooze:run:history"
	// RunLockKey guards against overlapping runs across replicas.
	RunLockKey = "habisnooze:run:lock"

	// SummaryTTL is how long run summaries are kept.
	SummaryTTL = 7 * 24 * time.Hour
	// MaxRunHistory caps the run history list.
	MaxRunHistory = 50
)

// releaseLock deletes the lock only when it is still held by the caller.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client wraps a Redis client with habisnooze-specific operations.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to the Redis server at url.
func NewClient(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewFromRedis wraps an existing go-redis client.
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetRunSummary stores s as the last run and prepends it to the history.
func (c *Client) SetRunSummary(ctx context.Context, s *types.RunSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, LastRunKey, data, SummaryTTL)
	pipe.LPush(ctx, RunHistoryKey, data)
	pipe.LTrim(ctx, RunHistoryKey, 0, MaxRunHistory-1)
	pipe.Expire(ctx, RunHistoryKey, SummaryTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// GetRunSummary returns the last run, or nil when none is stored.
func (c *Client) GetRunSummary(ctx context.Context) (*types.RunSummary, error) {
	data, err := c.rdb.Get(ctx, LastRunKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s types.RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode run summary: %w", err)
	}
	return &s, nil
}

// GetRunHistory returns up to limit recent runs, newest first. Entries that
// fail to decode are skipped.
func (c *Client) GetRunHistory(ctx context.Context, limit int) ([]types.RunSummary, error) {
	if limit <= 0 || limit > MaxRunHistory {
		limit = MaxRunHistory
	}

	values, err := c.rdb.LRange(ctx, RunHistoryKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	runs := make([]types.RunSummary, 0, len(values))
	for _, val := range values {
		var s types.RunSummary
		if err := json.Unmarshal([]byte(val), &s); err != nil {
			continue
		}
		runs = append(runs, s)
	}
	return runs, nil
}

// AcquireRunLock takes the run lock for owner. It reports false when
// another owner holds it. The lock expires after ttl.
func (c *Client) AcquireRunLock(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, RunLockKey, owner, ttl).Result()
}

// ReleaseRunLock drops the run lock if owner still holds it.
func (c *Client) ReleaseRunLock(ctx context.Context, owner string) error {
	return releaseLock.Run(ctx, c.rdb, []string{RunLockKey}, owner).Err()
}

// RunLockOwner returns the current lock holder, or "" when unlocked.
func (c *Client) RunLockOwner(ctx context.Context) (string, error) {
	owner, err := c.rdb.Get(ctx, RunLockKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return owner, err
}

// IsAvailable checks if Redis is reachable at url.
func IsAvailable(url string) bool {
	client, err := NewClient(url)
	if err != nil {
		return false
	}
	defer client.Close()
	return true
}
