package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisClient wraps the ephemeral key-value store used for sessions and as
// the backing list for the job queue, with tracing on each operation.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient initializes a new Redis client
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// IsAlive reports whether the Redis connection is healthy.
func (rc *RedisClient) IsAlive(ctx context.Context) bool {
	return rc.client.Ping(ctx).Err() == nil
}

// Set stores a key with a TTL; a zero TTL means no expiry.
func (rc *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "redis.set",
		trace.WithAttributes(
			attribute.String("key", key),
			attribute.Int64("ttl_seconds", int64(ttl.Seconds())),
		),
	)
	defer span.End()

	if err := rc.client.Set(ctx, key, value, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Get retrieves a key's value. A missing or expired key returns ("", false)
// and no error.
func (rc *RedisClient) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "redis.get",
		trace.WithAttributes(
			attribute.String("key", key),
		),
	)
	defer span.End()

	value, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		span.SetAttributes(attribute.Bool("found", false))
		return "", false, nil
	} else if err != nil {
		span.RecordError(err)
		return "", false, fmt.Errorf("failed to get key: %w", err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return value, true, nil
}

// Del removes a key. Deleting a missing key is not an error.
func (rc *RedisClient) Del(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "redis.del",
		trace.WithAttributes(
			attribute.String("key", key),
		),
	)
	defer span.End()

	if err := rc.client.Del(ctx, key).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// LPush appends a value to the head of a list. Used by the job queue
// producer side.
func (rc *RedisClient) LPush(ctx context.Context, key string, value []byte) error {
	ctx, span := tracer.Start(ctx, "redis.lpush",
		trace.WithAttributes(
			attribute.String("key", key),
			attribute.Int("size_bytes", len(value)),
		),
	)
	defer span.End()

	if err := rc.client.LPush(ctx, key, value).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to push to list: %w", err)
	}
	return nil
}

// BRPop blocks until a value is available at the tail of the list or the
// timeout elapses; a timeout returns (nil, false) and no error.
func (rc *RedisClient) BRPop(ctx context.Context, key string, timeout time.Duration) ([]byte, bool, error) {
	res, err := rc.client.BRPop(ctx, timeout, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to pop from list: %w", err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, false, fmt.Errorf("unexpected BRPOP reply length %d", len(res))
	}
	return []byte(res[1]), true, nil
}
