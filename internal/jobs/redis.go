package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "catalog:jobs:"

// RedisStore keeps job statuses in Redis so they survive process restarts.
// Each status is one JSON value replaced atomically by SET; the TTL bounds
// memory growth for finished jobs.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed job store. A zero ttl keeps entries
// forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Set(ctx context.Context, jobID string, status Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal job status: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+jobID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store job status: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (Status, bool, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+jobID).Result()
	if err == redis.Nil {
		return Status{}, false, nil
	}
	if err != nil {
		return Status{}, false, fmt.Errorf("failed to read job status: %w", err)
	}
	var status Status
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return Status{}, false, fmt.Errorf("failed to unmarshal job status: %w", err)
	}
	return status, true, nil
}
