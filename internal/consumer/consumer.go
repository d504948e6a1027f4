// Package consumer owns the full lifecycle of a running consumer:
// loading the persisted schedule, starting the receiver and scheduler
// tick, and shutting both down cleanly while saving the schedule back
// out. Grounded on the teacher's worker.Pool.Start/Stop and
// cmd/worker/main.go signal handling, and on huey's
// Consumer.start_message_receiver/start_worker_pool/shutdown.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nrutten/huework/internal/backend"
	"github.com/nrutten/huework/internal/config"
	"github.com/nrutten/huework/internal/events"
	"github.com/nrutten/huework/internal/invoker"
	"github.com/nrutten/huework/internal/receiver"
	"github.com/nrutten/huework/internal/registry"
	"github.com/nrutten/huework/internal/retry"
	"github.com/nrutten/huework/internal/schedule"
	"github.com/nrutten/huework/internal/schedulertick"
	"github.com/nrutten/huework/internal/task"
	"github.com/nrutten/huework/internal/workerpool"
)

const scheduleKey = "schedule"

// State is the orchestrator's lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Consumer wires together the Invoker, Schedule, worker pool, receiver
// and scheduler tick, and manages their combined startup and shutdown.
type Consumer struct {
	Invoker  *invoker.Invoker
	Registry *registry.Registry
	Schedule *schedule.Schedule
	Pool     *workerpool.Pool
	Retry    *retry.Policy
	Receiver *receiver.Receiver
	Tick     *schedulertick.Tick
	Log      zerolog.Logger

	shutdownTimeout time.Duration

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// New assembles a Consumer from its backends and configuration. dlq is
// the optional dead-letter sink wired to the Redis backend's
// redisqueue.DLQ; pass nil for the in-memory backend, which has none.
// publisher is the optional event stream sink for the admin surface's
// websocket hub; pass nil to run without event publication.
func New(q backend.Queue, results backend.ResultStore, tasks backend.TaskStore, reg *registry.Registry, cfg *config.Config, log zerolog.Logger, dlq retry.DeadLetterSink, publisher events.Publisher) *Consumer {
	inv := invoker.New(q, results, tasks, nil)
	sched := schedule.New()
	pool := workerpool.New(cfg.Worker.Threads)
	policy := retry.New(inv, sched, log, nil)
	policy.DeadLetter = dlq
	policy.Publisher = publisher

	recv := &receiver.Receiver{
		Invoker:  inv,
		Registry: reg,
		Pool:     pool,
		Schedule: sched,
		Retry:    policy,
		Backoff: receiver.BackoffConfig{
			InitialDelay:  cfg.Backoff.InitialDelay,
			BackoffFactor: cfg.Backoff.Factor,
			MaxDelay:      cfg.Backoff.MaxDelay,
		},
		Log:       log,
		Publisher: publisher,
	}

	tick := schedulertick.New(inv, sched, reg, cfg.Worker.Periodic, log, nil)
	tick.Publisher = publisher

	return &Consumer{
		Invoker:         inv,
		Registry:        reg,
		Schedule:        sched,
		Pool:            pool,
		Retry:           policy,
		Receiver:        recv,
		Tick:            tick,
		Log:             log,
		shutdownTimeout: cfg.Worker.ShutdownTimeout,
		state:           StateStopped,
	}
}

// Start loads any persisted schedule and begins the receiver and
// scheduler-tick loops.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return fmt.Errorf("consumer: cannot start from state %s", c.state)
	}
	c.state = StateStarting
	c.mu.Unlock()

	if err := c.loadSchedule(ctx); err != nil {
		c.Log.Warn().Err(err).Msg("failed to load persisted schedule")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.state = StateRunning
	c.mu.Unlock()

	go func() {
		defer close(done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Receiver.Run(runCtx)
		}()
		go func() {
			defer wg.Done()
			c.Tick.Run(runCtx)
		}()
		wg.Wait()
	}()

	c.Log.Info().Int("threads", c.Pool.Capacity()).Msg("consumer started")
	return nil
}

// Shutdown stops accepting new work, waits up to the configured shutdown
// timeout for in-flight work to drain, and persists the schedule.
func (c *Consumer) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()

	timeout := c.shutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-done:
	case <-time.After(timeout):
		c.Log.Warn().Msg("shutdown timed out waiting for in-flight work")
	}

	if err := c.saveSchedule(ctx); err != nil {
		c.Log.Error().Err(err).Msg("failed to save schedule during shutdown")
	}

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()

	c.Log.Info().Msg("consumer stopped")
	return nil
}

func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Consumer) saveSchedule(ctx context.Context) error {
	entries := c.Schedule.Snapshot()
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("consumer: marshal schedule: %w", err)
	}
	return c.Invoker.TaskStore.Put(ctx, scheduleKey, data)
}

func (c *Consumer) loadSchedule(ctx context.Context) error {
	data, ok, err := c.Invoker.TaskStore.Get(ctx, scheduleKey)
	if err != nil {
		return fmt.Errorf("consumer: load schedule: %w", err)
	}
	if !ok {
		return nil
	}

	var entries []*task.Invocation
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("consumer: decode schedule: %w", err)
	}
	c.Schedule.Restore(entries)
	return nil
}
