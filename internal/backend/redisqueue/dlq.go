package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nrutten/huework/internal/task"
)

const (
	dlqStreamName = "huework:dlq"
	dlqSetName    = "huework:dlq:set"
)

// DLQ records invocations whose retries were exhausted, so an operator
// can inspect and optionally retry them. It is not part of the core's
// retry contract; internal/retry writes here only as a side channel when
// a Redis-backed TaskStore is configured.
type DLQ struct {
	client *redis.Client
}

func NewDLQ(client *redis.Client) *DLQ {
	return &DLQ{client: client}
}

// Entry is one dead-lettered invocation.
type Entry struct {
	Invocation *task.Invocation `json:"invocation"`
	Reason     string           `json:"reason"`
	AddedAt    time.Time        `json:"added_at"`
	MessageID  string           `json:"message_id"`
}

// Add records inv in the DLQ with reason (typically the final handler
// error's message).
func (d *DLQ) Add(ctx context.Context, inv *task.Invocation, reason string) error {
	entry := Entry{Invocation: inv, Reason: reason, AddedAt: time.Now().UTC()}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("dlq: marshal entry: %w", err)
	}

	_, err = d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: dlqStreamName,
		Values: map[string]interface{}{
			"task_id": inv.TaskID,
			"data":    string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("dlq: add to stream: %w", err)
	}

	return d.client.SAdd(ctx, dlqSetName, inv.TaskID).Err()
}

// List returns up to count entries (0 means unbounded).
func (d *DLQ) List(ctx context.Context, count int64) ([]Entry, error) {
	messages, err := d.client.XRange(ctx, dlqStreamName, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("dlq: list: %w", err)
	}

	entries := make([]Entry, 0, len(messages))
	for i, msg := range messages {
		if count > 0 && int64(i) >= count {
			break
		}
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		entry.MessageID = msg.ID
		entries = append(entries, entry)
	}
	return entries, nil
}

// Remove deletes one entry from the DLQ.
func (d *DLQ) Remove(ctx context.Context, taskID, messageID string) error {
	if messageID != "" {
		if err := d.client.XDel(ctx, dlqStreamName, messageID).Err(); err != nil {
			return fmt.Errorf("dlq: remove from stream: %w", err)
		}
	}
	return d.client.SRem(ctx, dlqSetName, taskID).Err()
}

// Retry re-enqueues the invocation identified by taskID onto q, with a
// fresh set of retries, then removes it from the DLQ.
func (d *DLQ) Retry(ctx context.Context, q *Queue, taskID string, retries int) error {
	entries, err := d.List(ctx, 0)
	if err != nil {
		return err
	}

	var target *Entry
	for i := range entries {
		if entries[i].Invocation.TaskID == taskID {
			target = &entries[i]
			break
		}
	}
	if target == nil {
		return task.ErrUnknownTask
	}

	target.Invocation.RetriesRemaining = retries
	target.Invocation.ExecuteTime = nil

	data, err := target.Invocation.ToJSON()
	if err != nil {
		return fmt.Errorf("dlq: marshal invocation: %w", err)
	}
	if err := q.Write(ctx, data); err != nil {
		return fmt.Errorf("dlq: re-enqueue: %w", err)
	}

	return d.Remove(ctx, taskID, target.MessageID)
}

// RetryAll retries every entry currently in the DLQ, skipping any that
// fail, and returns the count that were successfully re-enqueued.
func (d *DLQ) RetryAll(ctx context.Context, q *Queue, retries int) (int, error) {
	entries, err := d.List(ctx, 0)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if err := d.Retry(ctx, q, entry.Invocation.TaskID, retries); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

func (d *DLQ) Size(ctx context.Context) (int64, error) {
	return d.client.SCard(ctx, dlqSetName).Result()
}

func (d *DLQ) Contains(ctx context.Context, taskID string) (bool, error) {
	return d.client.SIsMember(ctx, dlqSetName, taskID).Result()
}

func (d *DLQ) Clear(ctx context.Context) error {
	if err := d.client.Del(ctx, dlqStreamName).Err(); err != nil {
		return fmt.Errorf("dlq: clear stream: %w", err)
	}
	return d.client.Del(ctx, dlqSetName).Err()
}
