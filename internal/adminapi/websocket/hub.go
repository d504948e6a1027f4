// Package websocket broadcasts consumer lifecycle events to connected
// admin clients, adapted from the teacher's internal/api/websocket.
package websocket

import (
	"context"
	"sync"

	"github.com/nrutten/huework/internal/events"
	"github.com/nrutten/huework/internal/metrics"
	"github.com/nrutten/huework/internal/obslog"
)

// Hub fans out events from a Publisher's subscription to every connected
// Client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *events.Event
	register   chan *Client
	unregister chan *Client
	publisher  events.Publisher
	mu         sync.RWMutex
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewHub(publisher events.Publisher) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *events.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publisher:  publisher,
		stopCh:     make(chan struct{}),
	}
}

// Run subscribes to every event type and begins fanning broadcasts out to
// clients until ctx is cancelled or Stop is called.
func (h *Hub) Run(ctx context.Context) {
	eventCh, err := h.publisher.Subscribe(ctx,
		events.EventInvocationEnqueued, events.EventInvocationStarted,
		events.EventInvocationSucceeded, events.EventInvocationFailed,
		events.EventInvocationRetrying, events.EventSchedulePromoted,
		events.EventDeadLettered, events.EventQueueDepth,
	)
	if err != nil {
		obslog.Error().Err(err).Msg("failed to subscribe to events")
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			case event, ok := <-eventCh:
				if !ok {
					return
				}
				h.broadcast <- event
			}
		}
	}()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				h.closeAllClients()
				return
			case <-h.stopCh:
				h.closeAllClients()
				return
			case client := <-h.register:
				h.mu.Lock()
				h.clients[client] = true
				h.mu.Unlock()
				metrics.SetWebSocketConnections(float64(h.ClientCount()))

			case client := <-h.unregister:
				h.mu.Lock()
				if _, ok := h.clients[client]; ok {
					delete(h.clients, client)
					close(client.send)
				}
				h.mu.Unlock()
				metrics.SetWebSocketConnections(float64(h.ClientCount()))

			case event := <-h.broadcast:
				h.broadcastEvent(event)
			}
		}
	}()

	obslog.Info().Msg("admin websocket hub started")
}

func (h *Hub) Stop() {
	close(h.stopCh)
	h.wg.Wait()
	obslog.Info().Msg("admin websocket hub stopped")
}

func (h *Hub) Register(client *Client)   { h.register <- client }
func (h *Hub) Unregister(client *Client) { h.unregister <- client }

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastEvent(event *events.Event) {
	data, err := event.ToJSON()
	if err != nil {
		obslog.Error().Err(err).Msg("failed to serialize event for broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.IsSubscribed(event.Type) {
			continue
		}

		select {
		case client.send <- data:
		default:
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
