// Package backend defines the narrow transport interfaces the core
// depends on. Concrete implementations live in the memorybackend,
// redisqueue and rediskv subpackages; the core never imports those
// directly.
package backend

import "context"

// Queue is a FIFO message transport. Read returns (nil, nil) when the
// queue is currently empty; it must not block indefinitely.
type Queue interface {
	Write(ctx context.Context, message []byte) error
	Read(ctx context.Context) ([]byte, error)
	Size(ctx context.Context) (int, error)
}

// Acker is implemented by a Queue that moves a read message onto a
// processing side-channel rather than deleting it outright (redisqueue's
// BLMOVE pattern), so a crash mid-handling does not silently drop work.
// Ack releases the message once its handling is durably recorded.
type Acker interface {
	Ack(ctx context.Context, message []byte) error
}

// ResultStore holds terminal task outcomes, keyed by task ID. Put is
// last-write-wins.
type ResultStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

// TaskStore holds the persisted schedule and any other durable,
// small, infrequently-written records the core needs across restarts.
type TaskStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}
