package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	inv := New("echo", []byte(`["hi"]`), []byte(`{}`), 3, 0)

	assert.NotEmpty(t, inv.TaskID)
	assert.Equal(t, "echo", inv.HandlerName)
	assert.Equal(t, 3, inv.RetriesRemaining)
	assert.Nil(t, inv.ExecuteTime)
}

func TestInvocation_Due(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	noETA := New("echo", nil, nil, 0, 0)
	assert.True(t, noETA.Due(now))

	past := New("echo", nil, nil, 0, 0)
	pastTime := now.Add(-time.Minute)
	past.ExecuteTime = &pastTime
	assert.True(t, past.Due(now))

	future := New("echo", nil, nil, 0, 0)
	futureTime := now.Add(time.Minute)
	future.ExecuteTime = &futureTime
	assert.False(t, future.Due(now))
}

func TestInvocation_ToJSON_FromJSON(t *testing.T) {
	inv := New("compute", []byte(`[1,2]`), nil, 2, 5*time.Second)

	data, err := inv.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, inv.TaskID, decoded.TaskID)
	assert.Equal(t, inv.HandlerName, decoded.HandlerName)
	assert.Equal(t, inv.RetriesRemaining, decoded.RetriesRemaining)
	assert.Equal(t, inv.RetryDelay, decoded.RetryDelay)
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestOutcome_Success_Failure(t *testing.T) {
	ok := Success([]byte(`"done"`))
	assert.False(t, ok.IsError())

	failed := Failure(assert.AnError)
	assert.True(t, failed.IsError())
	assert.Equal(t, assert.AnError.Error(), failed.Error)
}

func TestOutcome_ToJSON_OutcomeFromJSON(t *testing.T) {
	o := Success([]byte(`42`))
	data, err := o.ToJSON()
	require.NoError(t, err)

	decoded, err := OutcomeFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, o.Value, decoded.Value)
	assert.False(t, decoded.IsError())
}
