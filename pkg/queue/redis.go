package queue

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps messages in Redis lists and delayed retries in a
// sorted set scored by due time.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Push(ctx context.Context, list string, data []byte) error {
	return b.client.LPush(ctx, list, data).Err()
}

func (b *RedisBackend) Pop(ctx context.Context, list string, wait time.Duration) ([]byte, error) {
	result, err := b.client.BRPop(ctx, wait, list).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoMessage
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, ErrNoMessage
	}
	return []byte(result[1]), nil
}

func (b *RedisBackend) Schedule(ctx context.Context, set string, data []byte, at time.Time) error {
	return b.client.ZAdd(ctx, set, redis.Z{Score: float64(at.Unix()), Member: data}).Err()
}

// PromoteDue moves every retry due at now back onto list. Only the caller
// whose ZREM removes a member pushes it, so replicas never duplicate a retry.
func (b *RedisBackend) PromoteDue(ctx context.Context, set, list string, now time.Time) (int, error) {
	due, err := b.client.ZRangeByScore(ctx, set, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, member := range due {
		removed, err := b.client.ZRem(ctx, set, member).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := b.client.LPush(ctx, list, member).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
