package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/nrutten/huework/internal/backend"
	"github.com/nrutten/huework/internal/backend/redisqueue"
	"github.com/nrutten/huework/internal/consumer"
	"github.com/nrutten/huework/internal/metrics"
	"github.com/nrutten/huework/internal/obslog"
	"github.com/nrutten/huework/internal/schedule"
	"github.com/nrutten/huework/internal/task"
	"github.com/nrutten/huework/internal/workerpool"
)

// scheduleEntryView annotates a scheduled invocation with its task.State
// for display, since Invocation itself carries no state field.
type scheduleEntryView struct {
	*task.Invocation
	State string `json:"state"`
}

func newScheduleEntryView(inv *task.Invocation) scheduleEntryView {
	return scheduleEntryView{Invocation: inv, State: task.StateScheduled.String()}
}

// dlqEntryView annotates a dead-letter entry with task.StateDeadLetter.
type dlqEntryView struct {
	redisqueue.Entry
	State string `json:"state"`
}

// adminHandler serves the operator-facing endpoints: health, schedule
// inspection, dead-letter management and worker pool status. Grounded on
// the teacher's internal/api/handlers/admin.go, narrowed to this design's
// single anonymous worker pool (no per-worker identity) and single queue
// (no per-priority streams).
type adminHandler struct {
	queue    backend.Queue
	schedule *schedule.Schedule
	pool     *workerpool.Pool
	dlq      *redisqueue.DLQ
	consumer *consumer.Consumer
}

func newAdminHandler(q backend.Queue, sched *schedule.Schedule, pool *workerpool.Pool, dlq *redisqueue.DLQ, c *consumer.Consumer) *adminHandler {
	return &adminHandler{queue: q, schedule: sched, pool: pool, dlq: dlq, consumer: c}
}

// HealthCheck handles GET /admin/health.
func (h *adminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queue.Size(r.Context())
	if err != nil {
		h.respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"consumer_state": h.consumer.State().String(),
		"queue_depth":    depth,
	})
}

// GetQueue handles GET /admin/queue.
func (h *adminHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queue.Size(r.Context())
	if err != nil {
		obslog.Error().Err(err).Msg("failed to get queue depth")
		h.respondError(w, http.StatusInternalServerError, "failed to get queue depth")
		return
	}

	metrics.SetQueueDepth(float64(depth))
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"depth": depth})
}

// GetSchedule handles GET /admin/schedule.
func (h *adminHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	raw := h.schedule.Snapshot()
	entries := make([]scheduleEntryView, 0, len(raw))
	for _, inv := range raw {
		entries = append(entries, newScheduleEntryView(inv))
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// GetWorkers handles GET /admin/workers.
func (h *adminHandler) GetWorkers(w http.ResponseWriter, r *http.Request) {
	busy := h.pool.Capacity() - h.pool.Available()
	metrics.SetWorkersBusy(float64(busy))

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"capacity":  h.pool.Capacity(),
		"busy":      busy,
		"available": h.pool.Available(),
	})
}

// ListDLQ handles GET /admin/dlq.
func (h *adminHandler) ListDLQ(w http.ResponseWriter, r *http.Request) {
	if h.dlq == nil {
		h.respondJSON(w, http.StatusOK, map[string]interface{}{"entries": []interface{}{}, "size": 0})
		return
	}

	raw, err := h.dlq.List(r.Context(), 100)
	if err != nil {
		obslog.Error().Err(err).Msg("failed to list dlq")
		h.respondError(w, http.StatusInternalServerError, "failed to list dlq")
		return
	}

	entries := make([]dlqEntryView, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, dlqEntryView{Entry: e, State: task.StateDeadLetter.String()})
	}

	size, _ := h.dlq.Size(r.Context())
	metrics.SetDLQSize(float64(size))
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"size":    size,
	})
}

// retryDLQRequest is the body of POST /admin/dlq/retry.
type retryDLQRequest struct {
	TaskID   string `json:"task_id,omitempty"`
	RetryAll bool   `json:"retry_all,omitempty"`
	Retries  int    `json:"retries,omitempty"`
}

// RetryDLQ handles POST /admin/dlq/retry.
func (h *adminHandler) RetryDLQ(w http.ResponseWriter, r *http.Request) {
	if h.dlq == nil {
		h.respondError(w, http.StatusConflict, "dead letter queue not available on this backend")
		return
	}

	var req retryDLQRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Retries <= 0 {
		req.Retries = 1
	}

	rq, ok := h.queue.(*redisqueue.Queue)
	if !ok {
		h.respondError(w, http.StatusConflict, "dead letter queue not available on this backend")
		return
	}

	if req.RetryAll {
		count, err := h.dlq.RetryAll(r.Context(), rq, req.Retries)
		if err != nil {
			obslog.Error().Err(err).Msg("failed to retry all dlq entries")
			h.respondError(w, http.StatusInternalServerError, "failed to retry dlq entries")
			return
		}
		h.respondJSON(w, http.StatusOK, map[string]interface{}{
			"message":       "tasks re-queued",
			"retried_count": count,
		})
		return
	}

	if req.TaskID == "" {
		h.respondError(w, http.StatusBadRequest, "task_id or retry_all is required")
		return
	}

	if err := h.dlq.Retry(r.Context(), rq, req.TaskID, req.Retries); err != nil {
		obslog.Error().Err(err).Str("task_id", req.TaskID).Msg("failed to retry dlq entry")
		h.respondError(w, http.StatusInternalServerError, "failed to retry task")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "task re-queued",
		"task_id": req.TaskID,
	})
}

// ClearDLQ handles DELETE /admin/dlq.
func (h *adminHandler) ClearDLQ(w http.ResponseWriter, r *http.Request) {
	if h.dlq == nil {
		h.respondError(w, http.StatusConflict, "dead letter queue not available on this backend")
		return
	}

	if err := h.dlq.Clear(r.Context()); err != nil {
		obslog.Error().Err(err).Msg("failed to clear dlq")
		h.respondError(w, http.StatusInternalServerError, "failed to clear dlq")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"message": "dlq cleared"})
}

func (h *adminHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		obslog.Error().Err(err).Msg("failed to encode json response")
	}
}

func (h *adminHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}
