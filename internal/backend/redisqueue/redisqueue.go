// Package redisqueue implements backend.Queue over a single Redis list,
// using BLMOVE to hand messages from a pending list to a processing list
// so a crash between dequeue and ack does not silently drop work.
package redisqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is a Redis-list-backed backend.Queue.
type Queue struct {
	client       *redis.Client
	listKey      string
	processing   string
	blockTimeout time.Duration
}

// Config controls how Queue is constructed.
type Config struct {
	Addr         string
	Password     string
	DB           int
	ListKey      string
	BlockTimeout time.Duration
}

// New dials Redis and returns a Queue backed by cfg.ListKey.
func New(cfg Config) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisqueue: connect: %w", err)
	}

	listKey := cfg.ListKey
	if listKey == "" {
		listKey = "huework:queue"
	}
	blockTimeout := cfg.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = time.Second
	}

	return &Queue{
		client:       client,
		listKey:      listKey,
		processing:   listKey + ":processing",
		blockTimeout: blockTimeout,
	}, nil
}

// NewWithClient wraps an already-constructed *redis.Client, used by tests
// running against miniredis.
func NewWithClient(client *redis.Client, listKey string) *Queue {
	if listKey == "" {
		listKey = "huework:queue"
	}
	return &Queue{
		client:       client,
		listKey:      listKey,
		processing:   listKey + ":processing",
		blockTimeout: time.Second,
	}
}

func (q *Queue) Write(ctx context.Context, message []byte) error {
	return q.client.LPush(ctx, q.listKey, message).Err()
}

// Read moves one message from the pending list to the processing list and
// returns it. It blocks for up to blockTimeout and returns (nil, nil) on
// timeout, satisfying backend.Queue's non-blocking-on-empty contract at
// the receiver's loop granularity.
func (q *Queue) Read(ctx context.Context) ([]byte, error) {
	result, err := q.client.BLMove(ctx, q.listKey, q.processing, "RIGHT", "LEFT", q.blockTimeout).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisqueue: read: %w", err)
	}
	return []byte(result), nil
}

func (q *Queue) Size(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.listKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redisqueue: size: %w", err)
	}
	return int(n), nil
}

// Ack removes message from the processing list once its handler has
// returned, whether it succeeded or its failure was durably recorded.
func (q *Queue) Ack(ctx context.Context, message []byte) error {
	return q.client.LRem(ctx, q.processing, 1, message).Err()
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Client() *redis.Client {
	return q.client
}
