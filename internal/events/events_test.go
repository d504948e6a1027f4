package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	data := InvocationData("t1", "echo", nil)
	event := New(EventInvocationEnqueued, data)

	assert.Equal(t, EventInvocationEnqueued, event.Type)
	assert.Equal(t, data, event.Data)
	assert.WithinDuration(t, time.Now(), event.Timestamp, time.Second)
}

func TestEvent_ToJSON(t *testing.T) {
	event := &Event{
		Type:      EventInvocationSucceeded,
		Timestamp: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Data:      map[string]interface{}{"task_id": "t1"},
	}

	data, err := event.ToJSON()
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "invocation.succeeded", parsed["type"])
	assert.NotEmpty(t, parsed["timestamp"])
}

func TestFromJSON(t *testing.T) {
	raw := `{"type":"invocation.failed","timestamp":"2024-01-15T10:30:00Z","data":{"task_id":"t2","error":"boom"}}`

	event, err := FromJSON([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, EventInvocationFailed, event.Type)
	assert.Equal(t, "t2", event.Data["task_id"])
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestEvent_RoundTrip(t *testing.T) {
	original := New(EventDeadLettered, InvocationData("t3", "fail", map[string]interface{}{"reason": "timeout"}))

	data, err := original.ToJSON()
	require.NoError(t, err)

	restored, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, original.Type, restored.Type)
	assert.Equal(t, original.Data["task_id"], restored.Data["task_id"])
	assert.Equal(t, original.Data["reason"], restored.Data["reason"])
}

func TestInvocationData_NoExtra(t *testing.T) {
	data := InvocationData("t4", "compute", nil)
	assert.Equal(t, "t4", data["task_id"])
	assert.Equal(t, "compute", data["handler"])
	assert.Len(t, data, 2)
}
