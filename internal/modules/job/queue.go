// README: Redis job queue and per-job worker leases.
package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tripgen/internal/types"
)

const (
	queueKey       = "aijobs:queue"
	leaseKeyPrefix = "aijobs:lease:"

	// A lease outlives the longest provider timeout so a live worker is never
	// preempted mid-call.
	leaseTTL = 5 * time.Minute
)

type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, requestID types.ID) error {
	if err := q.client.LPush(ctx, queueKey, string(requestID)).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job id. ok is false on an empty
// queue or a cancelled context.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (types.ID, bool, error) {
	vals, err := q.client.BRPop(ctx, timeout, queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("dequeue job: %w", err)
	}
	if len(vals) != 2 {
		return "", false, nil
	}
	return types.ID(vals[1]), true, nil
}

// AcquireLease claims exclusive processing rights for one job. SET NX makes
// the claim atomic across workers; the TTL releases leases of crashed workers.
func (q *RedisQueue) AcquireLease(ctx context.Context, requestID types.ID) (bool, error) {
	ok, err := q.client.SetNX(ctx, leaseKeyPrefix+string(requestID), "1", leaseTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return ok, nil
}

func (q *RedisQueue) ReleaseLease(ctx context.Context, requestID types.ID) error {
	if err := q.client.Del(ctx, leaseKeyPrefix+string(requestID)).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
