package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker implements Locker with SET NX EX, giving dedup that holds
// across operator restarts and multiple pipeline processes.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker connects to addr and verifies the connection.
func NewRedisLocker(ctx context.Context, addr string) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisLocker{client: client, prefix: "tradegate:dedup:"}, nil
}

// TryAcquire sets the key only if absent. Redis errors propagate so the
// gateway can fail closed rather than risk a duplicate order.
func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx %s: %w", key, err)
	}
	return ok, nil
}

// Close releases the client.
func (l *RedisLocker) Close() error { return l.client.Close() }
