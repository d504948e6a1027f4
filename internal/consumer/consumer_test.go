package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrutten/huework/internal/backend/memorybackend"
	"github.com/nrutten/huework/internal/config"
	"github.com/nrutten/huework/internal/registry"
	"github.com/nrutten/huework/internal/task"
)

func testConfig() *config.Config {
	return &config.Config{
		Worker: config.WorkerConfig{
			Threads:         2,
			Periodic:        false,
			ShutdownTimeout: time.Second,
			ConvertUTC:      true,
		},
		Backoff: config.BackoffConfig{
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     20 * time.Millisecond,
			Factor:       1.5,
		},
	}
}

func TestConsumer_StartExecutesTaskAndShutdownSaves(t *testing.T) {
	reg := registry.New()

	done := make(chan struct{})
	reg.Register("echo", func(ctx context.Context, args, kwargs []byte) ([]byte, error) {
		close(done)
		return args, nil
	}, 0, 0)

	q := memorybackend.NewQueue()
	results := memorybackend.NewStore()
	tasks := memorybackend.NewStore()

	c := New(q, results, tasks, reg, testConfig(), zerolog.Nop(), nil, nil)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.Equal(t, StateRunning, c.State())

	inv := task.New("echo", []byte("hello"), nil, 0, 0)
	require.NoError(t, c.Invoker.Enqueue(ctx, inv))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not run in time")
	}

	require.NoError(t, c.Shutdown(ctx))
	assert.Equal(t, StateStopped, c.State())
}

func TestConsumer_ShutdownPersistsSchedule(t *testing.T) {
	reg := registry.New()
	q := memorybackend.NewQueue()
	results := memorybackend.NewStore()
	tasks := memorybackend.NewStore()

	c := New(q, results, tasks, reg, testConfig(), zerolog.Nop(), nil, nil)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	future := time.Now().Add(time.Hour)
	inv := task.New("echo", nil, nil, 0, 0)
	inv.ExecuteTime = &future
	c.Schedule.Add(inv)

	require.NoError(t, c.Shutdown(ctx))

	data, ok, err := tasks.Get(ctx, scheduleKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(data), inv.TaskID)
}

func TestConsumer_StartLoadsPersistedSchedule(t *testing.T) {
	reg := registry.New()
	q := memorybackend.NewQueue()
	results := memorybackend.NewStore()
	tasks := memorybackend.NewStore()

	future := time.Now().Add(time.Hour)
	inv := task.New("echo", nil, nil, 0, 0)
	inv.ExecuteTime = &future

	c1 := New(q, results, tasks, reg, testConfig(), zerolog.Nop(), nil, nil)
	ctx := context.Background()
	require.NoError(t, c1.Start(ctx))
	c1.Schedule.Add(inv)
	require.NoError(t, c1.Shutdown(ctx))

	c2 := New(q, results, tasks, reg, testConfig(), zerolog.Nop(), nil, nil)
	require.NoError(t, c2.Start(ctx))
	assert.True(t, c2.Schedule.Contains(inv.TaskID))
	require.NoError(t, c2.Shutdown(ctx))
}

func TestConsumer_CannotStartTwice(t *testing.T) {
	reg := registry.New()
	q := memorybackend.NewQueue()
	results := memorybackend.NewStore()
	tasks := memorybackend.NewStore()

	c := New(q, results, tasks, reg, testConfig(), zerolog.Nop(), nil, nil)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Shutdown(ctx)

	err := c.Start(ctx)
	assert.Error(t, err)
}
