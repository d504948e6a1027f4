package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/nrutten/huework/internal/obslog"
)

const channelPrefix = "huework:events:"

// RedisPublisher implements Publisher over Redis Pub/Sub, letting
// multiple admin server instances share one consumer's event stream.
type RedisPublisher struct {
	client      *redis.Client
	subscribers map[string]*redis.PubSub
	mu          sync.RWMutex
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		client:      client,
		subscribers: make(map[string]*redis.PubSub),
	}
}

func (r *RedisPublisher) Publish(ctx context.Context, event *Event) error {
	channel := r.channelName(event.Type)
	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("events: serialize: %w", err)
	}

	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("events: publish: %w", err)
	}

	obslog.Debug().Str("event_type", string(event.Type)).Str("channel", channel).Msg("event published")
	return nil
}

func (r *RedisPublisher) Subscribe(ctx context.Context, eventTypes ...Type) (<-chan *Event, error) {
	channels := make([]string, len(eventTypes))
	for i, et := range eventTypes {
		channels[i] = r.channelName(et)
	}

	pubsub := r.client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("events: subscribe: %w", err)
	}

	eventCh := make(chan *Event, 100)
	go r.pump(ctx, pubsub, eventCh)
	return eventCh, nil
}

// SubscribeAll subscribes to every event type published under channelPrefix.
func (r *RedisPublisher) SubscribeAll(ctx context.Context) (<-chan *Event, error) {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("events: subscribe all: %w", err)
	}

	eventCh := make(chan *Event, 100)
	go r.pump(ctx, pubsub, eventCh)
	return eventCh, nil
}

func (r *RedisPublisher) pump(ctx context.Context, pubsub *redis.PubSub, eventCh chan *Event) {
	defer close(eventCh)
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			pubsub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			event, err := FromJSON([]byte(msg.Payload))
			if err != nil {
				obslog.Error().Err(err).Msg("failed to parse event")
				continue
			}

			select {
			case eventCh <- event:
			default:
				obslog.Warn().Str("event_type", string(event.Type)).Msg("event channel full, dropping event")
			}
		}
	}
}

func (r *RedisPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pubsub := range r.subscribers {
		pubsub.Close()
	}
	r.subscribers = make(map[string]*redis.PubSub)
	return nil
}

func (r *RedisPublisher) channelName(t Type) string {
	return channelPrefix + string(t)
}
