// Package adminapi is the operator-facing HTTP surface alongside the
// consumer core: health, schedule inspection, dead-letter management,
// worker pool status, and a websocket stream of lifecycle events.
// Grounded on the teacher's internal/api package (routes.go,
// handlers/admin.go, websocket/*), narrowed to this design's single
// queue and anonymous worker pool.
package adminapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nrutten/huework/internal/adminapi/middleware"
	"github.com/nrutten/huework/internal/adminapi/websocket"
	"github.com/nrutten/huework/internal/backend"
	"github.com/nrutten/huework/internal/backend/redisqueue"
	"github.com/nrutten/huework/internal/config"
	"github.com/nrutten/huework/internal/consumer"
	"github.com/nrutten/huework/internal/events"
	"github.com/nrutten/huework/internal/metrics"
)

// Server is the admin HTTP surface's router and its collaborators.
type Server struct {
	router    *chi.Mux
	config    *config.Config
	handler   *adminHandler
	wsHub     *websocket.Hub
	wsHandler *websocket.Handler
	publisher events.Publisher
}

// NewServer builds the admin router for one running Consumer. publisher
// may be nil, in which case no websocket hub is created and the /ws
// endpoint is not registered.
func NewServer(cfg *config.Config, q backend.Queue, dlq *redisqueue.DLQ, c *consumer.Consumer, publisher events.Publisher) *Server {
	var wsHub *websocket.Hub
	var wsHandler *websocket.Handler
	if publisher != nil {
		wsHub = websocket.NewHub(publisher)
		wsHandler = websocket.NewHandler(wsHub)
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		handler:   newAdminHandler(q, c.Schedule, c.Pool, dlq, c),
		wsHub:     wsHub,
		wsHandler: wsHandler,
		publisher: publisher,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Heartbeat("/health"))
	s.router.Use(recordRequestMetrics)
}

// recordRequestMetrics times every request and records it under
// metrics.HTTPRequestDuration, labeled by route pattern once chi has
// matched one.
func recordRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(ww.Status()), time.Since(start).Seconds())
	})
}

func (s *Server) setupRoutes() {
	authCfg := &middleware.AuthConfig{
		Enabled:   s.config.Auth.Enabled,
		JWTSecret: s.config.Auth.JWTSecret,
		APIKeys:   apiKeySet(s.config.Auth.APIKeys),
	}

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(chimiddleware.AllowContentType("application/json"))
		r.Use(middleware.Auth(authCfg))

		r.Get("/health", s.handler.HealthCheck)
		r.Get("/queue", s.handler.GetQueue)
		r.Get("/schedule", s.handler.GetSchedule)
		r.Get("/workers", s.handler.GetWorkers)

		r.Get("/dlq", s.handler.ListDLQ)
		r.Post("/dlq/retry", s.handler.RetryDLQ)
		r.Delete("/dlq", s.handler.ClearDLQ)
	})

	if s.wsHandler != nil {
		s.router.Get("/ws", s.wsHandler.ServeWS)
	}

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.Handler())
	}
}

// Start begins the websocket hub's broadcast loop, if one is configured.
func (s *Server) Start(ctx context.Context) {
	if s.wsHub != nil {
		go s.wsHub.Run(ctx)
	}
}

// Stop stops the websocket hub, if one is configured.
func (s *Server) Stop() {
	if s.wsHub != nil {
		s.wsHub.Stop()
	}
}

func (s *Server) Router() *chi.Mux { return s.router }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func apiKeySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
