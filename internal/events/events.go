// Package events defines the system events the admin surface streams to
// connected clients, adapted from the teacher's internal/events package
// and narrowed to this domain's lifecycle (no per-worker identity, since
// the worker pool here is an anonymous semaphore rather than named
// processes).
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type identifies an event's category.
type Type string

const (
	EventInvocationEnqueued Type = "invocation.enqueued"
	EventInvocationStarted  Type = "invocation.started"
	EventInvocationSucceeded Type = "invocation.succeeded"
	EventInvocationFailed   Type = "invocation.failed"
	EventInvocationRetrying Type = "invocation.retrying"
	EventSchedulePromoted   Type = "schedule.promoted"
	EventDeadLettered       Type = "dlq.added"
	EventQueueDepth         Type = "queue.depth"
)

// Event is a single occurrence broadcast to admin subscribers.
type Event struct {
	Type      Type                   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// New builds an Event stamped with the given type and data.
func New(t Type, data map[string]interface{}) *Event {
	return &Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Publisher is implemented by whatever transport backs cross-process event
// delivery. RedisPublisher is the implementation in this package; it lets
// multiple admin server instances share one consumer's event stream when
// the backend is Redis. With the in-memory backend no Publisher is wired
// and no events are published.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Subscribe(ctx context.Context, eventTypes ...Type) (<-chan *Event, error)
	Close() error
}

// InvocationData builds the Data payload for invocation lifecycle events.
func InvocationData(taskID, handlerName string, extra map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{
		"task_id": taskID,
		"handler": handlerName,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}
