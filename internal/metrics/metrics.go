// Package metrics exposes prometheus counters and gauges for the
// consumer core and its admin surface, grounded on the teacher's
// internal/metrics/metrics.go promauto pattern, narrowed to this
// domain's own concerns.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huework_tasks_enqueued_total",
			Help: "Total number of invocations enqueued",
		},
		[]string{"handler"},
	)

	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huework_tasks_completed_total",
			Help: "Total number of invocations completed",
		},
		[]string{"handler", "status"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "huework_task_duration_seconds",
			Help:    "Handler execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"handler"},
	)

	TaskRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huework_task_retries_total",
			Help: "Total number of invocation retries",
		},
		[]string{"handler"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "huework_queue_depth",
			Help: "Current number of invocations in the queue",
		},
	)

	ScheduleDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "huework_schedule_depth",
			Help: "Current number of invocations pending in the schedule",
		},
	)

	WorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "huework_workers_busy",
			Help: "Current number of worker pool slots in use",
		},
	)

	SchedulerPromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huework_scheduler_promotions_total",
			Help: "Total number of invocations promoted from the schedule to the queue",
		},
	)

	DLQSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "huework_dlq_size",
			Help: "Current number of invocations in the dead letter queue",
		},
	)

	DLQAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huework_dlq_added_total",
			Help: "Total number of invocations added to the dead letter queue",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "huework_http_request_duration_seconds",
			Help:    "Admin HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "huework_websocket_connections",
			Help: "Current number of admin WebSocket connections",
		},
	)
)

func RecordEnqueue(handler string) {
	TasksEnqueued.WithLabelValues(handler).Inc()
}

func RecordCompletion(handler, status string, durationSeconds float64) {
	TasksCompleted.WithLabelValues(handler, status).Inc()
	TaskDuration.WithLabelValues(handler).Observe(durationSeconds)
}

func RecordRetry(handler string) {
	TaskRetries.WithLabelValues(handler).Inc()
}

func SetQueueDepth(depth float64) {
	QueueDepth.Set(depth)
}

func SetScheduleDepth(depth float64) {
	ScheduleDepth.Set(depth)
}

func SetWorkersBusy(count float64) {
	WorkersBusy.Set(count)
}

func RecordPromotion() {
	SchedulerPromotions.Inc()
}

func SetDLQSize(size float64) {
	DLQSize.Set(size)
}

func RecordDLQAdded() {
	DLQAdded.Inc()
}

func RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
}

func SetWebSocketConnections(count float64) {
	WebSocketConnections.Set(count)
}
