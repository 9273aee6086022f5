package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	deadLetterKey    = "queue:dead"
	promoteBatchSize = 100
	popTimeout       = time.Second
)

// RedisBroker stores tasks in Redis: a sorted set per queue for delayed
// tasks scored by run-at, and a list per queue for ready tasks. Workers
// promote due tasks before each blocking pop, so a single process can
// run the whole queue without a separate scheduler.
type RedisBroker struct {
	rdb *redis.Client
}

// NewRedisBroker wraps an initialized Redis client.
func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

// ConnectRedis opens and pings a Redis connection from a URL.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

func readyKey(queueName string) string   { return "queue:" + queueName + ":ready" }
func delayedKey(queueName string) string { return "queue:" + queueName + ":delayed" }

// Enqueue pushes the task to the ready list, or to the delayed set when
// RunAt lies in the future.
func (b *RedisBroker) Enqueue(ctx context.Context, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", t.ID, err)
	}

	if t.RunAt.After(time.Now()) {
		err = b.rdb.ZAdd(ctx, delayedKey(t.Queue), redis.Z{
			Score:  float64(t.RunAt.UnixMilli()),
			Member: data,
		}).Err()
	} else {
		err = b.rdb.LPush(ctx, readyKey(t.Queue), data).Err()
	}
	if err != nil {
		return fmt.Errorf("enqueue task %s on %s: %w", t.Type, t.Queue, err)
	}
	return nil
}

// Dequeue promotes due delayed tasks, then blocks on the ready lists.
func (b *RedisBroker) Dequeue(ctx context.Context, queues []string) (*Task, error) {
	readyKeys := make([]string, len(queues))
	for i, q := range queues {
		readyKeys[i] = readyKey(q)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, q := range queues {
			if err := b.promote(ctx, q); err != nil {
				return nil, err
			}
		}

		res, err := b.rdb.BRPop(ctx, popTimeout, readyKeys...).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("brpop: %w", err)
		}

		var t Task
		if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
			return nil, fmt.Errorf("decode task from %s: %w", res[0], err)
		}
		return &t, nil
	}
}

// promote moves due members of a queue's delayed set onto its ready list.
func (b *RedisBroker) promote(ctx context.Context, queueName string) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	members, err := b.rdb.ZRangeByScore(ctx, delayedKey(queueName), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: promoteBatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("promote %s: %w", queueName, err)
	}

	for _, member := range members {
		removed, err := b.rdb.ZRem(ctx, delayedKey(queueName), member).Result()
		if err != nil {
			return fmt.Errorf("promote %s: %w", queueName, err)
		}
		// Another worker may promote the same member concurrently; only
		// the one that removed it pushes it to ready.
		if removed == 0 {
			continue
		}
		if err := b.rdb.LPush(ctx, readyKey(queueName), member).Err(); err != nil {
			return fmt.Errorf("promote %s: %w", queueName, err)
		}
	}
	return nil
}

// Bury pushes the task to the dead-letter list.
func (b *RedisBroker) Bury(ctx context.Context, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal dead task %s: %w", t.ID, err)
	}
	if err := b.rdb.LPush(ctx, deadLetterKey, data).Err(); err != nil {
		return fmt.Errorf("bury task %s: %w", t.ID, err)
	}
	return nil
}
