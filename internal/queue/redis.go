package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"trainer/internal/apperrors"
)

const defaultPopTimeout = 5 * time.Second

// RedisQueue is a Redis list used as a FIFO job queue: LPUSH to enqueue,
// BRPOP to consume. It shares a Redis deployment with the run state store
// but owns a single key, not the run key schema.
type RedisQueue struct {
	client     *redis.Client
	key        string
	popTimeout time.Duration
}

// NewRedisQueue connects to the Redis at rawURL and queues on key.
func NewRedisQueue(rawURL, key string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, apperrors.Validation("redis_url", err.Error())
	}
	return &RedisQueue{
		client:     redis.NewClient(opts),
		key:        key,
		popTimeout: defaultPopTimeout,
	}, nil
}

// Enqueue validates and pushes the job as a JSON blob.
func (q *RedisQueue) Enqueue(ctx context.Context, job *TrainJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return apperrors.Internal("queue.marshal", err)
	}
	if err := q.client.LPush(ctx, q.key, body).Err(); err != nil {
		return apperrors.Internal("queue.lpush", err)
	}
	return nil
}

// Dequeue blocks up to the pop timeout for the next job.
func (q *RedisQueue) Dequeue(ctx context.Context) (*TrainJob, error) {
	vals, err := q.client.BRPop(ctx, q.popTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("queue.brpop", err)
	}
	// BRPOP returns [key, value].
	var job TrainJob
	if err := json.Unmarshal([]byte(vals[1]), &job); err != nil {
		return nil, apperrors.Internal("queue.unmarshal", err)
	}
	return &job, nil
}

// Close releases the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

var _ Queue = (*RedisQueue)(nil)
