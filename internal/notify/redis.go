package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OpenRedis parses url and verifies the server answers.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 20
	opt.MinIdleConns = 2
	opt.DialTimeout = 5 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisQueue keeps messages in a redis list so they survive restarts and can
// be drained by workers in other processes. Producers LPUSH, workers BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string

	// PushTimeout bounds a single enqueue.
	PushTimeout time.Duration
	// PollTimeout is how long Next blocks in BRPOP before checking ctx again.
	PollTimeout time.Duration
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key, PushTimeout: 2 * time.Second, PollTimeout: 5 * time.Second}
}

func (q *RedisQueue) Dispatch(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, q.PushTimeout)
	defer cancel()
	return q.client.LPush(ctx, q.key, payload).Err()
}

func (q *RedisQueue) Next(ctx context.Context) (Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}
		res, err := q.client.BRPop(ctx, q.PollTimeout, q.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return Message{}, err
		}
		// res is [key, value]
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return Message{}, &PoisonError{Raw: res[1], Err: err}
		}
		return msg, nil
	}
}

// Len reports the number of queued messages.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// PoisonError marks a queue entry that could not be decoded; the worker
// drops it and moves on.
type PoisonError struct {
	Raw string
	Err error
}

func (e *PoisonError) Error() string { return "undecodable queue entry: " + e.Err.Error() }

func (e *PoisonError) Unwrap() error { return e.Err }
