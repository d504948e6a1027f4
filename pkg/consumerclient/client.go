// Package consumerclient is the producer-facing SDK for submitting work to
// a consumer: enqueue immediately, schedule for later, register periodic
// handlers, and poll for results. It talks directly to the Invoker rather
// than an HTTP API, matching huey's in-process producer model.
package consumerclient

import (
	"context"
	"errors"
	"time"

	"github.com/nrutten/huework/internal/invoker"
	"github.com/nrutten/huework/internal/registry"
	"github.com/nrutten/huework/internal/task"
)

// ErrTimeout is returned by ResultHandle.Get when a blocking wait exceeds
// its timeout without the result appearing.
var ErrTimeout = errors.New("consumerclient: timed out waiting for result")

// Client submits invocations to a consumer's Invoker and registers handlers
// against its Registry.
type Client struct {
	Invoker  *invoker.Invoker
	Registry *registry.Registry
}

// New builds a Client over the given Invoker and Registry.
func New(inv *invoker.Invoker, reg *registry.Registry) *Client {
	return &Client{Invoker: inv, Registry: reg}
}

// Enqueue submits handlerName for immediate execution and returns a handle
// for retrieving its result.
func (c *Client) Enqueue(ctx context.Context, handlerName string, args, kwargs []byte) (*ResultHandle, error) {
	rec, err := c.Registry.Resolve(handlerName)
	if err != nil {
		return nil, err
	}

	inv := task.New(handlerName, args, kwargs, rec.DefaultRetries, rec.DefaultRetryDelay)
	if err := c.Invoker.Enqueue(ctx, inv); err != nil {
		return nil, err
	}
	return &ResultHandle{invoker: c.Invoker, taskID: inv.TaskID}, nil
}

// ScheduleAt submits handlerName to run at eta, optionally converting eta
// from local wall-clock fields to UTC first.
func (c *Client) ScheduleAt(ctx context.Context, handlerName string, args, kwargs []byte, eta time.Time, convertUTC bool) (*ResultHandle, error) {
	rec, err := c.Registry.Resolve(handlerName)
	if err != nil {
		return nil, err
	}

	inv, err := c.Invoker.Schedule(ctx, handlerName, args, kwargs, eta, convertUTC, rec.DefaultRetries, rec.DefaultRetryDelay)
	if err != nil {
		return nil, err
	}
	return &ResultHandle{invoker: c.Invoker, taskID: inv.TaskID}, nil
}

// RegisterPeriodic registers h to run on the cron schedule described by
// spec (a standard five-field cron expression).
func (c *Client) RegisterPeriodic(name, spec string, h registry.Handler) {
	c.Registry.RegisterPeriodic(name, spec, h)
}

// ResultHandle refers to a single invocation's eventual outcome.
type ResultHandle struct {
	invoker *invoker.Invoker
	taskID  string
}

// TaskID returns the handle's underlying task ID.
func (h *ResultHandle) TaskID() string {
	return h.taskID
}

const (
	getInitialDelay = 10 * time.Millisecond
	getBackoff      = 1.15
	getMaxDelay     = time.Second
)

// Get retrieves the invocation's outcome. Non-blocking returns immediately
// with whatever is currently available. Blocking polls with exponentially
// increasing waits, capped at getMaxDelay, until the outcome appears or
// timeout elapses. A persisted error outcome surfaces as a non-nil error.
func (h *ResultHandle) Get(ctx context.Context, blocking bool, timeout time.Duration) ([]byte, error) {
	if !blocking {
		return h.poll(ctx)
	}

	deadline := time.Now().Add(timeout)
	delay := getInitialDelay

	for {
		value, outcome, err := h.pollOnce(ctx)
		if err != nil {
			return nil, err
		}
		if outcome {
			return value, nil
		}

		if timeout > 0 && time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}

		delay = time.Duration(float64(delay) * getBackoff)
		if delay > getMaxDelay {
			delay = getMaxDelay
		}
	}
}

func (h *ResultHandle) poll(ctx context.Context) ([]byte, error) {
	value, _, err := h.pollOnce(ctx)
	return value, err
}

func (h *ResultHandle) pollOnce(ctx context.Context) (value []byte, found bool, err error) {
	outcome, ok, err := h.invoker.ReadResult(ctx, h.taskID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if outcome.IsError() {
		return nil, true, errors.New(outcome.Error)
	}
	return outcome.Value, true, nil
}
