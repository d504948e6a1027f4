package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	assert.NotNil(t, TasksEnqueued)
	assert.NotNil(t, TasksCompleted)
	assert.NotNil(t, TaskDuration)
	assert.NotNil(t, TaskRetries)

	assert.NotNil(t, QueueDepth)
	assert.NotNil(t, ScheduleDepth)
	assert.NotNil(t, WorkersBusy)
	assert.NotNil(t, SchedulerPromotions)

	assert.NotNil(t, DLQSize)
	assert.NotNil(t, DLQAdded)

	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, WebSocketConnections)
}

func TestRecordEnqueue(t *testing.T) {
	TasksEnqueued.Reset()
	RecordEnqueue("echo")
	RecordEnqueue("echo")
	RecordEnqueue("compute")
}

func TestRecordCompletion(t *testing.T) {
	TasksCompleted.Reset()
	TaskDuration.Reset()
	RecordCompletion("echo", "success", 0.5)
	RecordCompletion("echo", "failed", 0.1)
}

func TestRecordRetry(t *testing.T) {
	TaskRetries.Reset()
	RecordRetry("echo")
	RecordRetry("echo")
}

func TestSetQueueDepth_SetScheduleDepth(t *testing.T) {
	SetQueueDepth(100)
	SetScheduleDepth(5)
}

func TestSetWorkersBusy(t *testing.T) {
	SetWorkersBusy(3)
	SetWorkersBusy(0)
}

func TestRecordPromotion(t *testing.T) {
	RecordPromotion()
	RecordPromotion()
}

func TestSetDLQSize_RecordDLQAdded(t *testing.T) {
	SetDLQSize(2)
	RecordDLQAdded()
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestDuration.Reset()
	RecordHTTPRequest("GET", "/admin/schedule", "200", 0.01)
}

func TestSetWebSocketConnections(t *testing.T) {
	SetWebSocketConnections(0)
	SetWebSocketConnections(4)
}
