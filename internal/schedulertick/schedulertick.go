// Package schedulertick runs the periodic promotion of due invocations
// from the schedule back onto the queue, and the once-per-minute scan
// for periodic task handlers. Grounded on the teacher's
// internal/queue/scheduler.go ticker loop, simplified since Schedule is
// in-process here rather than a Redis-backed structure shared across
// scheduler instances.
package schedulertick

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nrutten/huework/internal/clock"
	"github.com/nrutten/huework/internal/events"
	"github.com/nrutten/huework/internal/invoker"
	"github.com/nrutten/huework/internal/metrics"
	"github.com/nrutten/huework/internal/periodic"
	"github.com/nrutten/huework/internal/registry"
	"github.com/nrutten/huework/internal/schedule"
)

const tickInterval = time.Second

// Tick periodically promotes due invocations and, where enabled, scans
// for periodic tasks that are due.
type Tick struct {
	Invoker         *invoker.Invoker
	Schedule        *schedule.Schedule
	Registry        *registry.Registry
	Clock           clock.Clock
	Log             zerolog.Logger
	PeriodicEnabled bool
	Publisher       events.Publisher

	lastPeriodicMinute time.Time
}

func New(inv *invoker.Invoker, sched *schedule.Schedule, reg *registry.Registry, periodicEnabled bool, log zerolog.Logger, clk clock.Clock) *Tick {
	if clk == nil {
		clk = clock.Real
	}
	return &Tick{Invoker: inv, Schedule: sched, Registry: reg, Clock: clk, Log: log, PeriodicEnabled: periodicEnabled}
}

// Run blocks, ticking every second, until ctx is cancelled.
func (t *Tick) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.process(ctx)
		}
	}
}

func (t *Tick) process(ctx context.Context) {
	now := t.Clock.Now()

	due := t.Schedule.Due(now)
	for _, inv := range due {
		if err := t.Invoker.Enqueue(ctx, inv); err != nil {
			t.Log.Error().Err(err).Str("task_id", inv.TaskID).Msg("failed to promote scheduled task")
			t.Schedule.Add(inv)
			continue
		}
		metrics.RecordPromotion()
		if t.Publisher != nil {
			_ = t.Publisher.Publish(ctx, events.New(events.EventSchedulePromoted, events.InvocationData(inv.TaskID, inv.HandlerName, nil)))
		}
	}

	metrics.SetScheduleDepth(float64(t.Schedule.Len()))

	if !t.PeriodicEnabled {
		return
	}

	minute := now.Truncate(time.Minute)
	if minute.Equal(t.lastPeriodicMinute) {
		return
	}
	t.lastPeriodicMinute = minute

	dueHandlers := periodic.Due(t.Registry, now)
	if err := periodic.Enqueue(ctx, t.Invoker, dueHandlers); err != nil {
		t.Log.Error().Err(err).Msg("failed to enqueue periodic tasks")
	}
}
