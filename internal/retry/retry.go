// Package retry implements the consumer's failure policy: on a handler
// error, either re-enqueue the invocation immediately or place it in the
// schedule for a delayed retry, preserving its task_id across every
// attempt. Log line wording matches huey's consumer exactly, since the
// spec's testable properties assert on it.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nrutten/huework/internal/clock"
	"github.com/nrutten/huework/internal/events"
	"github.com/nrutten/huework/internal/invoker"
	"github.com/nrutten/huework/internal/metrics"
	"github.com/nrutten/huework/internal/schedule"
	"github.com/nrutten/huework/internal/task"
)

// DeadLetterSink is the optional terminal-failure side channel, wired to
// a redisqueue.DLQ when the backend supports one. It is nil in the
// default in-memory configuration.
type DeadLetterSink interface {
	Add(ctx context.Context, inv *task.Invocation, reason string) error
}

// Policy applies the retry contract to a failed or succeeded invocation.
type Policy struct {
	Invoker    *invoker.Invoker
	Schedule   *schedule.Schedule
	Clock      clock.Clock
	Log        zerolog.Logger
	DeadLetter DeadLetterSink
	Publisher  events.Publisher
}

// New builds a Policy. clk may be nil to use clock.Real.
func New(inv *invoker.Invoker, sched *schedule.Schedule, log zerolog.Logger, clk clock.Clock) *Policy {
	if clk == nil {
		clk = clock.Real
	}
	return &Policy{Invoker: inv, Schedule: sched, Clock: clk, Log: log}
}

// HandleFailure processes a handler error for inv: logs the unhandled
// exception, then either re-enqueues, schedules a delayed retry, or
// writes a terminal error outcome (and dead-letters it, if configured).
// duration is the handler's execution time, recorded for metrics.
func (p *Policy) HandleFailure(ctx context.Context, inv *task.Invocation, cause error, duration time.Duration) error {
	p.Log.Error().Err(cause).Msg("unhandled exception in worker thread")

	if inv.RetriesRemaining <= 0 {
		metrics.RecordCompletion(inv.HandlerName, "failed", duration.Seconds())
		p.publish(ctx, events.EventInvocationFailed, inv, map[string]interface{}{"error": cause.Error()})

		if p.DeadLetter != nil {
			_ = p.DeadLetter.Add(ctx, inv, cause.Error())
			metrics.RecordDLQAdded()
			p.publish(ctx, events.EventDeadLettered, inv, map[string]interface{}{"reason": cause.Error()})
		}
		return p.Invoker.WriteResult(ctx, inv.TaskID, task.Failure(cause))
	}

	inv.RetriesRemaining--
	metrics.RecordRetry(inv.HandlerName)
	p.Log.Error().Msgf("re-enqueueing task %s, %d tries left", inv.TaskID, inv.RetriesRemaining)
	p.publish(ctx, events.EventInvocationRetrying, inv, map[string]interface{}{"retries_remaining": inv.RetriesRemaining})

	if inv.RetryDelay <= 0 {
		metrics.RecordEnqueue(inv.HandlerName)
		return p.Invoker.Enqueue(ctx, inv)
	}

	execTime := p.Clock.Now().Add(inv.RetryDelay)
	inv.ExecuteTime = &execTime
	p.Schedule.Add(inv)
	return nil
}

// HandleSuccess writes the success outcome and enqueues any follow-up
// invocation chained via OnComplete. duration is the handler's execution
// time, recorded for metrics.
func (p *Policy) HandleSuccess(ctx context.Context, inv *task.Invocation, result []byte, duration time.Duration) error {
	if err := p.Invoker.WriteResult(ctx, inv.TaskID, task.Success(result)); err != nil {
		return fmt.Errorf("retry: write success outcome: %w", err)
	}
	metrics.RecordCompletion(inv.HandlerName, "success", duration.Seconds())
	p.publish(ctx, events.EventInvocationSucceeded, inv, nil)

	if inv.OnComplete != nil {
		metrics.RecordEnqueue(inv.OnComplete.HandlerName)
		return p.Invoker.Enqueue(ctx, inv.OnComplete)
	}
	return nil
}

func (p *Policy) publish(ctx context.Context, t events.Type, inv *task.Invocation, extra map[string]interface{}) {
	if p.Publisher == nil {
		return
	}
	_ = p.Publisher.Publish(ctx, events.New(t, events.InvocationData(inv.TaskID, inv.HandlerName, extra)))
}
