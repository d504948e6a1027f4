package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nrutten/huework/internal/adminapi"
	"github.com/nrutten/huework/internal/backend"
	"github.com/nrutten/huework/internal/backend/memorybackend"
	"github.com/nrutten/huework/internal/backend/rediskv"
	"github.com/nrutten/huework/internal/backend/redisqueue"
	"github.com/nrutten/huework/internal/config"
	"github.com/nrutten/huework/internal/consumer"
	"github.com/nrutten/huework/internal/events"
	"github.com/nrutten/huework/internal/obslog"
	"github.com/nrutten/huework/internal/registry"
)

// cmd/adminserver runs the operator-facing HTTP surface alongside a
// consumer instance of its own, which it never starts: the admin process
// observes and mutates the same Redis-backed queue and dead-letter queue a
// cmd/consumer process is draining. The schedule and worker pool it
// reports are those of its own unstarted Consumer, since both live in
// process memory and are not shared over Redis.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := obslog.Init(cfg.LogLevel, os.Getenv("ENV") != "production", cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := obslog.Get()
	log.Info().Msg("starting admin server")

	queue, results, tasks, closeFn, err := buildBackends(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build backends")
	}
	defer closeFn()

	var dlq *redisqueue.DLQ
	var publisher events.Publisher
	if rq, ok := queue.(*redisqueue.Queue); ok {
		dlq = redisqueue.NewDLQ(rq.Client())
		redisPublisher := events.NewRedisPublisher(rq.Client())
		defer func() {
			if err := redisPublisher.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close event publisher")
			}
		}()
		publisher = redisPublisher
	}

	c := consumer.New(queue, results, tasks, registry.Default, cfg, *log, dlq, publisher)
	server := adminapi.NewServer(cfg, queue, dlq, c, publisher)

	httpServer := &http.Server{
		Addr:         cfg.Admin.Addr,
		Handler:      server,
		ReadTimeout:  cfg.Admin.ReadTimeout,
		WriteTimeout: cfg.Admin.WriteTimeout,
		IdleTimeout:  cfg.Admin.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.Start(ctx)

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("admin http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("admin http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down admin server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	server.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin http server shutdown error")
	}

	log.Info().Msg("admin server stopped")
}

type closer func()

func buildBackends(cfg *config.Config) (backend.Queue, backend.ResultStore, backend.TaskStore, closer, error) {
	switch cfg.Backend.Kind {
	case "redis":
		queue, err := redisqueue.New(redisqueue.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			ListKey:      cfg.Redis.ListKey,
			BlockTimeout: cfg.Redis.BlockTimeout,
		})
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("adminserver: build redis queue: %w", err)
		}

		store, err := rediskv.New(rediskv.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.ResultTTL,
		})
		if err != nil {
			queue.Close()
			return nil, nil, nil, nil, fmt.Errorf("adminserver: build redis store: %w", err)
		}

		return queue, store, store, func() {
			queue.Close()
			store.Close()
		}, nil

	default:
		return memorybackend.NewQueue(), memorybackend.NewStore(), memorybackend.NewStore(), func() {}, nil
	}
}
