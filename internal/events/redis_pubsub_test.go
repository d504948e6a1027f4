package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisPublisher(t *testing.T) {
	publisher := NewRedisPublisher(nil)

	assert.NotNil(t, publisher)
	assert.Nil(t, publisher.client)
	assert.NotNil(t, publisher.subscribers)
	assert.Len(t, publisher.subscribers, 0)
}

func TestRedisPublisher_channelName(t *testing.T) {
	publisher := NewRedisPublisher(nil)

	tests := []struct {
		eventType Type
		expected  string
	}{
		{EventInvocationEnqueued, "huework:events:invocation.enqueued"},
		{EventInvocationStarted, "huework:events:invocation.started"},
		{EventInvocationSucceeded, "huework:events:invocation.succeeded"},
		{EventInvocationFailed, "huework:events:invocation.failed"},
		{EventInvocationRetrying, "huework:events:invocation.retrying"},
		{EventSchedulePromoted, "huework:events:schedule.promoted"},
		{EventDeadLettered, "huework:events:dlq.added"},
		{EventQueueDepth, "huework:events:queue.depth"},
	}

	for _, tc := range tests {
		t.Run(string(tc.eventType), func(t *testing.T) {
			channel := publisher.channelName(tc.eventType)
			assert.Equal(t, tc.expected, channel)
		})
	}
}

func TestRedisPublisher_Close_EmptySubscribers(t *testing.T) {
	publisher := NewRedisPublisher(nil)

	err := publisher.Close()
	assert.NoError(t, err)
	assert.Len(t, publisher.subscribers, 0)
}

func TestChannelPrefix(t *testing.T) {
	assert.Equal(t, "huework:events:", channelPrefix)
}

func newTestPublisher(t *testing.T) (*RedisPublisher, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisPublisher(client), mr
}

func TestRedisPublisher_PublishSubscribe(t *testing.T) {
	publisher, _ := newTestPublisher(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventCh, err := publisher.Subscribe(ctx, EventInvocationSucceeded)
	require.NoError(t, err)

	sent := New(EventInvocationSucceeded, InvocationData("t1", "echo", nil))
	require.NoError(t, publisher.Publish(context.Background(), sent))

	select {
	case received := <-eventCh:
		assert.Equal(t, sent.Type, received.Type)
		assert.Equal(t, sent.Data["task_id"], received.Data["task_id"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRedisPublisher_SubscribeAll(t *testing.T) {
	publisher, _ := newTestPublisher(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventCh, err := publisher.SubscribeAll(ctx)
	require.NoError(t, err)

	sent := New(EventDeadLettered, InvocationData("t2", "fail", nil))
	require.NoError(t, publisher.Publish(context.Background(), sent))

	select {
	case received := <-eventCh:
		assert.Equal(t, sent.Type, received.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRedisPublisher_Subscribe_StopsOnContextCancel(t *testing.T) {
	publisher, _ := newTestPublisher(t)

	ctx, cancel := context.WithCancel(context.Background())
	eventCh, err := publisher.Subscribe(ctx, EventQueueDepth)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-eventCh:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel did not close after context cancellation")
	}
}
