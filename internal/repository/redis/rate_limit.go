package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linzell/authcore/internal/core/port"
)

// RateLimitStore persists sliding-window attempt counters in Redis sorted
// sets, one set per endpoint-scoped identifier.
type RateLimitStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRateLimitStore constructs a store. ttl bounds how long an idle counter
// key survives; it should exceed the widest window in use.
func NewRateLimitStore(client *redis.Client, prefix string, ttl time.Duration) *RateLimitStore {
	return &RateLimitStore{client: client, prefix: prefix, ttl: ttl}
}

// RecordAttempt stores the attempt timestamp and refreshes the key TTL.
func (r *RateLimitStore) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := r.key(identifier)
	member := redis.Z{Score: float64(at.UnixNano()), Member: at.UnixNano()}

	if err := r.client.ZAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}

	if r.ttl > 0 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			return fmt.Errorf("redis expire: %w", err)
		}
	}

	return nil
}

// CountAttempts returns how many attempts fall inside the window ending at
// the reference time.
func (r *RateLimitStore) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	count, err := r.client.ZCount(ctx, r.key(identifier),
		scoreOf(reference.Add(-window)), scoreOf(reference)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount: %w", err)
	}

	return int(count), nil
}

// TrimWindow drops attempts that fell out of the window.
func (r *RateLimitStore) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	threshold := scoreOf(reference.Add(-window))
	if err := r.client.ZRemRangeByScore(ctx, r.key(identifier), "-inf", threshold).Err(); err != nil {
		return fmt.Errorf("redis zremrangebyscore: %w", err)
	}

	return nil
}

// OldestAttempt returns the earliest attempt remaining inside the window.
func (r *RateLimitStore) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}

	values, err := r.client.ZRangeByScore(ctx, r.key(identifier), &redis.ZRangeBy{
		Min:   scoreOf(reference.Add(-window)),
		Max:   scoreOf(reference),
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis zrangebyscore: %w", err)
	}
	if len(values) == 0 {
		return time.Time{}, false, nil
	}

	ts, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse timestamp: %w", err)
	}

	return time.Unix(0, ts), true, nil
}

func (r *RateLimitStore) key(identifier string) string {
	if r.prefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.prefix, identifier)
}

func scoreOf(t time.Time) string {
	return fmt.Sprintf("%f", float64(t.UnixNano()))
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
