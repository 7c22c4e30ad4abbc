package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"archdiagram/pkg"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// HistoryKey is the redis list holding serialized records, newest first
const HistoryKey = "diagram:history"

// RedisHistoryStore keeps generation history in a capped redis list
type RedisHistoryStore struct {
	client   *redis.Client
	capacity int
	ttl      time.Duration
}

// NewRedisHistoryStore connects to redisURL and verifies the connection
func NewRedisHistoryStore(ctx context.Context, redisURL string, capacity int, ttl time.Duration) (*RedisHistoryStore, error) {
	if redisURL == "" {
		return nil, errors.New("redis url is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if capacity <= 0 {
		capacity = 100
	}
	return &RedisHistoryStore{client: client, capacity: capacity, ttl: ttl}, nil
}

// Save pushes rec onto the list, trims it to capacity and refreshes its TTL
func (r *RedisHistoryStore) Save(ctx context.Context, rec pkg.GenerationRecord) error {
	data, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, HistoryKey, data)
		pipe.LTrim(ctx, HistoryKey, 0, int64(r.capacity-1))
		if r.ttl > 0 {
			pipe.Expire(ctx, HistoryKey, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save history record: %w", err)
	}
	return nil
}

func (r *RedisHistoryStore) Recent(ctx context.Context, limit int) ([]pkg.GenerationRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	items, err := r.client.LRange(ctx, HistoryKey, 0, int64(limit-1)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []pkg.GenerationRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	out := make([]pkg.GenerationRecord, 0, len(items))
	for _, item := range items {
		var rec pkg.GenerationRecord
		if err := sonic.UnmarshalString(item, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// HealthCheck pings redis
func (r *RedisHistoryStore) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisHistoryStore) Close() error {
	return r.client.Close()
}
