// Package receiver implements the consumer's single dequeue loop: pull
// one invocation at a time, route it to the schedule if its execute time
// is in the future, otherwise hand it to the worker pool under a
// backpressure-respecting semaphore slot. Idle polling backs off
// adaptively so an empty queue does not spin the loop.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nrutten/huework/internal/events"
	"github.com/nrutten/huework/internal/invoker"
	"github.com/nrutten/huework/internal/registry"
	"github.com/nrutten/huework/internal/retry"
	"github.com/nrutten/huework/internal/schedule"
	"github.com/nrutten/huework/internal/task"
	"github.com/nrutten/huework/internal/workerpool"
)

// BackoffConfig controls the adaptive idle delay between empty dequeues.
type BackoffConfig struct {
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

func (c BackoffConfig) normalized() BackoffConfig {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = 1.5
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 2 * time.Second
	}
	return c
}

// Receiver is the single consumer-side dequeue loop.
type Receiver struct {
	Invoker  *invoker.Invoker
	Registry *registry.Registry
	Pool     *workerpool.Pool
	Schedule *schedule.Schedule
	Retry     *retry.Policy
	Backoff   BackoffConfig
	Log       zerolog.Logger
	Publisher events.Publisher
}

// Run blocks, dequeuing and dispatching invocations, until ctx is
// cancelled. It waits for in-flight worker goroutines it spawned before
// returning.
func (r *Receiver) Run(ctx context.Context) {
	backoff := r.Backoff.normalized()
	delay := backoff.InitialDelay

	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !r.Pool.Acquire(ctx, true, 0) {
			return
		}

		inv, ack, err := r.Invoker.Dequeue(ctx)
		if err != nil {
			if ack != nil {
				_ = ack(ctx)
			}
			r.Log.Error().Err(err).Msg("dequeue failed")
			r.Pool.Release()
			if errors.Is(err, task.ErrInvalidInvocationData) {
				continue
			}
			if !sleepOrDone(ctx, delay) {
				return
			}
			delay = nextDelay(delay, backoff)
			continue
		}

		if inv == nil {
			r.Pool.Release()
			if !sleepOrDone(ctx, delay) {
				return
			}
			delay = nextDelay(delay, backoff)
			continue
		}

		delay = backoff.InitialDelay

		now := time.Now()
		if !inv.Due(now) {
			r.Schedule.Add(inv)
			_ = ack(ctx)
			r.Pool.Release()
			continue
		}

		inFlight.Add(1)
		go func(i *task.Invocation, ack invoker.Ack) {
			defer inFlight.Done()
			defer r.Pool.Release()
			r.execute(ctx, i)
			_ = ack(ctx)
		}(inv, ack)
	}
}

func (r *Receiver) execute(ctx context.Context, inv *task.Invocation) {
	rec, err := r.Registry.Resolve(inv.HandlerName)
	if err != nil {
		r.Log.Error().Str("task_id", inv.TaskID).Str("handler", inv.HandlerName).Msg("unknown task")
		return
	}

	r.publish(ctx, events.EventInvocationStarted, inv, nil)

	start := time.Now()
	result, runErr := runHandler(ctx, rec.Handler, inv)
	duration := time.Since(start)

	if runErr != nil {
		if err := r.Retry.HandleFailure(ctx, inv, runErr, duration); err != nil {
			r.Log.Error().Err(err).Str("task_id", inv.TaskID).Msg("failed to process retry")
		}
		return
	}

	if err := r.Retry.HandleSuccess(ctx, inv, result, duration); err != nil {
		r.Log.Error().Err(err).Str("task_id", inv.TaskID).Msg("failed to record success")
	}
}

func (r *Receiver) publish(ctx context.Context, t events.Type, inv *task.Invocation, extra map[string]interface{}) {
	if r.Publisher == nil {
		return
	}
	_ = r.Publisher.Publish(ctx, events.New(t, events.InvocationData(inv.TaskID, inv.HandlerName, extra)))
}

func runHandler(ctx context.Context, h func(context.Context, []byte, []byte) ([]byte, error), inv *task.Invocation) (result []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicToErr(p)
		}
	}()
	return h(ctx, inv.Args, inv.Kwargs)
}

func panicToErr(p interface{}) error {
	if err, ok := p.(error); ok {
		return fmt.Errorf("panic in handler: %w", err)
	}
	return fmt.Errorf("panic in handler: %v", p)
}

func nextDelay(current time.Duration, cfg BackoffConfig) time.Duration {
	next := time.Duration(float64(current) * cfg.BackoffFactor)
	if next > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return next
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
