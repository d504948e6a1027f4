package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrutten/huework/internal/backend/memorybackend"
	"github.com/nrutten/huework/internal/backend/redisqueue"
	"github.com/nrutten/huework/internal/config"
	"github.com/nrutten/huework/internal/consumer"
	"github.com/nrutten/huework/internal/registry"
	"github.com/nrutten/huework/internal/task"
)

func testConfig() *config.Config {
	return &config.Config{
		Worker: config.WorkerConfig{
			Threads:         2,
			Periodic:        false,
			ShutdownTimeout: time.Second,
		},
		Backoff: config.BackoffConfig{
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     20 * time.Millisecond,
			Factor:       1.5,
		},
		Metrics: config.MetricsConfig{Enabled: false},
		Auth:    config.AuthConfig{Enabled: false},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := registry.New()
	q := memorybackend.NewQueue()
	results := memorybackend.NewStore()
	tasks := memorybackend.NewStore()

	c := consumer.New(q, results, tasks, reg, testConfig(), zerolog.Nop(), nil, nil)
	require.NoError(t, c.Start(context.Background()))

	return NewServer(testConfig(), q, nil, c, nil)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestGetSchedule(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/schedule", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetWorkers(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/workers", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["capacity"])
}

func TestListDLQ_NoDLQConfigured(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/dlq", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["size"])
}

func TestAdmin_AuthRequired(t *testing.T) {
	reg := registry.New()
	q := memorybackend.NewQueue()
	results := memorybackend.NewStore()
	tasks := memorybackend.NewStore()
	c := consumer.New(q, results, tasks, reg, testConfig(), zerolog.Nop(), nil, nil)

	cfg := testConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{"secret-key"}
	s := NewServer(cfg, q, nil, c, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	req.Header.Set("X-API-Key", "secret-key")
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDLQLifecycle_WithRedisBackend(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := redisqueue.NewWithClient(client, "test:admin")
	dlq := redisqueue.NewDLQ(client)

	results := memorybackend.NewStore()
	tasks := memorybackend.NewStore()
	reg := registry.New()
	c := consumer.New(q, results, tasks, reg, testConfig(), zerolog.Nop(), dlq, nil)

	s := NewServer(testConfig(), q, dlq, c, nil)

	inv := task.New("fail", nil, nil, 0, 0)
	require.NoError(t, dlq.Add(context.Background(), inv, "boom"))

	req := httptest.NewRequest(http.MethodGet, "/admin/dlq", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["size"])

	req = httptest.NewRequest(http.MethodDelete, "/admin/dlq", nil)
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	size, err := dlq.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}
