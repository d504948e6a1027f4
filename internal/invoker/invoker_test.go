package invoker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrutten/huework/internal/backend/memorybackend"
	"github.com/nrutten/huework/internal/task"
)

func newTestInvoker() *Invoker {
	q := memorybackend.NewQueue()
	results := memorybackend.NewStore()
	tasks := memorybackend.NewStore()
	return New(q, results, tasks, nil)
}

func TestInvoker_EnqueueDequeue_RoundTrip(t *testing.T) {
	ctx := context.Background()
	inv := newTestInvoker()

	i := task.New("echo", []byte(`["hi"]`), nil, 0, 0)
	require.NoError(t, inv.Enqueue(ctx, i))

	decoded, ack, err := inv.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, i.TaskID, decoded.TaskID)
	assert.NoError(t, ack(ctx))
}

func TestInvoker_Dequeue_AckIsNoopWithoutAcker(t *testing.T) {
	ctx := context.Background()
	inv := newTestInvoker()

	i := task.New("echo", nil, nil, 0, 0)
	require.NoError(t, inv.Enqueue(ctx, i))

	_, ack, err := inv.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, ack)
	assert.NoError(t, ack(ctx))
}

func TestInvoker_Dequeue_Empty(t *testing.T) {
	ctx := context.Background()
	inv := newTestInvoker()

	decoded, ack, err := inv.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, decoded)
	assert.Nil(t, ack)
}

func TestInvoker_WriteReadResult(t *testing.T) {
	ctx := context.Background()
	inv := newTestInvoker()

	_, ok, err := inv.ReadResult(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, inv.WriteResult(ctx, "t1", task.Success([]byte(`"v"`))))
	outcome, ok, err := inv.ReadResult(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, outcome.IsError())
}

func TestInvoker_Schedule_NoConversion(t *testing.T) {
	ctx := context.Background()
	inv := newTestInvoker()

	eta := time.Date(2037, 1, 1, 0, 0, 0, 0, time.UTC)
	scheduled, err := inv.Schedule(ctx, "modify_state", nil, nil, eta, false, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, scheduled.ExecuteTime)
	assert.True(t, scheduled.ExecuteTime.Equal(eta))
}

func TestInvoker_Schedule_ConvertsLocalToUTC(t *testing.T) {
	ctx := context.Background()
	inv := newTestInvoker()

	eta := time.Date(2037, 1, 1, 0, 0, 0, 0, time.UTC)
	scheduled, err := inv.Schedule(ctx, "modify_state", nil, nil, eta, true, 0, 0)
	require.NoError(t, err)
	assert.True(t, scheduled.ExecuteTime.Equal(localToUTC(eta)))
}
