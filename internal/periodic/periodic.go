// Package periodic matches registered periodic handlers against the
// current minute using standard cron expressions, grounded on
// g-cesar-DistributedQ's use of robfig/cron for its StartCronScheduler.
package periodic

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nrutten/huework/internal/invoker"
	"github.com/nrutten/huework/internal/registry"
	"github.com/nrutten/huework/internal/task"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Due returns every registered periodic handler whose cron expression
// matches the minute boundary immediately preceding now.
func Due(reg *registry.Registry, now time.Time) []*registry.Record {
	var matched []*registry.Record
	truncated := now.Truncate(time.Minute)
	prev := truncated.Add(-time.Minute)

	for _, rec := range reg.Periodic() {
		schedule, err := parser.Parse(rec.Periodic.CronExpr)
		if err != nil {
			continue
		}
		if !schedule.Next(prev).After(truncated) {
			matched = append(matched, rec)
		}
	}
	return matched
}

// Enqueue submits one invocation per due periodic handler.
func Enqueue(ctx context.Context, inv *invoker.Invoker, due []*registry.Record) error {
	for _, rec := range due {
		i := task.New(rec.Name, nil, nil, rec.DefaultRetries, rec.DefaultRetryDelay)
		if err := inv.Enqueue(ctx, i); err != nil {
			return err
		}
	}
	return nil
}
