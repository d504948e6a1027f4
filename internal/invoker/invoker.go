// Package invoker bridges producers and the consumer core to the
// pluggable backends: encoding invocations onto the Queue, decoding them
// back off, and reading/writing results. It is the Go analogue of huey's
// Invoker class.
package invoker

import (
	"context"
	"fmt"
	"time"

	"github.com/nrutten/huework/internal/backend"
	"github.com/nrutten/huework/internal/clock"
	"github.com/nrutten/huework/internal/task"
)

const resultKeyPrefix = "result:"

// Invoker is the sole writer/reader of the Queue and ResultStore on
// behalf of the core.
type Invoker struct {
	Queue       backend.Queue
	ResultStore backend.ResultStore
	TaskStore   backend.TaskStore
	Clock       clock.Clock
}

// New builds an Invoker over the given backends. clk may be nil, in
// which case clock.Real is used.
func New(q backend.Queue, results backend.ResultStore, tasks backend.TaskStore, clk clock.Clock) *Invoker {
	if clk == nil {
		clk = clock.Real
	}
	return &Invoker{Queue: q, ResultStore: results, TaskStore: tasks, Clock: clk}
}

// Enqueue writes inv onto the Queue.
func (inv *Invoker) Enqueue(ctx context.Context, i *task.Invocation) error {
	data, err := i.ToJSON()
	if err != nil {
		return fmt.Errorf("invoker: encode invocation: %w", err)
	}
	if err := inv.Queue.Write(ctx, data); err != nil {
		return fmt.Errorf("invoker: enqueue: %w", err)
	}
	return nil
}

// Ack releases a dequeued message on a Queue that tracks in-flight
// messages on a processing side-channel. It is a no-op for a Queue that
// does not implement backend.Acker.
type Ack func(ctx context.Context) error

var noopAck Ack = func(ctx context.Context) error { return nil }

// Dequeue reads and decodes the next invocation. It returns (nil, nil, nil)
// when the queue is empty. A message that fails to decode is dropped and
// reported as task.ErrInvalidInvocationData. The returned Ack must be
// called once the invocation's handling is durably recorded (success,
// terminal failure, or rescheduling), whether or not it succeeded.
func (inv *Invoker) Dequeue(ctx context.Context) (*task.Invocation, Ack, error) {
	data, err := inv.Queue.Read(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("invoker: dequeue: %w", err)
	}
	if data == nil {
		return nil, nil, nil
	}

	ack := noopAck
	if acker, ok := inv.Queue.(backend.Acker); ok {
		ack = func(ctx context.Context) error {
			return acker.Ack(ctx, data)
		}
	}

	decoded, err := task.FromJSON(data)
	if err != nil {
		return nil, ack, task.ErrInvalidInvocationData
	}
	return decoded, ack, nil
}

// WriteResult persists outcome under taskID.
func (inv *Invoker) WriteResult(ctx context.Context, taskID string, outcome *task.Outcome) error {
	data, err := outcome.ToJSON()
	if err != nil {
		return fmt.Errorf("invoker: encode outcome: %w", err)
	}
	return inv.ResultStore.Put(ctx, resultKeyPrefix+taskID, data)
}

// ReadResult returns the outcome for taskID, if one has been written yet.
func (inv *Invoker) ReadResult(ctx context.Context, taskID string) (*task.Outcome, bool, error) {
	data, ok, err := inv.ResultStore.Get(ctx, resultKeyPrefix+taskID)
	if err != nil || !ok {
		return nil, ok, err
	}
	outcome, err := task.OutcomeFromJSON(data)
	if err != nil {
		return nil, false, fmt.Errorf("invoker: decode outcome: %w", err)
	}
	return outcome, true, nil
}

// Schedule builds an invocation with ExecuteTime stamped from eta,
// converting it from local wall-clock to UTC first when convertUTC is
// true (matching huey's schedule(convert_utc=True) default), then writes
// it to the Queue so the receiver can route it into the Schedule.
func (inv *Invoker) Schedule(ctx context.Context, handlerName string, args, kwargs []byte, eta time.Time, convertUTC bool, retries int, retryDelay time.Duration) (*task.Invocation, error) {
	execTime := eta
	if convertUTC {
		execTime = localToUTC(eta)
	}

	i := task.New(handlerName, args, kwargs, retries, retryDelay)
	i.ExecuteTime = &execTime

	if err := inv.Enqueue(ctx, i); err != nil {
		return nil, err
	}
	return i, nil
}

// localToUTC reinterprets t's wall-clock fields as local time, then
// converts to UTC, mirroring huey.utils.local_to_utc.
func localToUTC(t time.Time) time.Time {
	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
	return local.UTC()
}
