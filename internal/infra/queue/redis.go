package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
)

// RedisFlushQueue implements the flush-job queue over a Redis list.
type RedisFlushQueue struct {
	client *redis.Client
	key    string
}

// NewRedisFlushQueue creates the queue at the given key.
func NewRedisFlushQueue(client *redis.Client, key string) *RedisFlushQueue {
	return &RedisFlushQueue{client: client, key: key}
}

// Enqueue publishes a job.
func (q *RedisFlushQueue) Enqueue(ctx context.Context, job domain.FlushJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop blocks until a job is available.
func (q *RedisFlushQueue) Pop(ctx context.Context) (domain.FlushJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.FlushJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.FlushJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.FlushJob{}, err
		}
		if len(res) != 2 {
			return domain.FlushJob{}, errors.New("redis queue: unexpected response")
		}
		var job domain.FlushJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.FlushJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}
