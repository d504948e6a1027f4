package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nrutten/huework/internal/backend"
	"github.com/nrutten/huework/internal/backend/memorybackend"
	"github.com/nrutten/huework/internal/backend/rediskv"
	"github.com/nrutten/huework/internal/backend/redisqueue"
	"github.com/nrutten/huework/internal/config"
	"github.com/nrutten/huework/internal/consumer"
	"github.com/nrutten/huework/internal/events"
	"github.com/nrutten/huework/internal/obslog"
	"github.com/nrutten/huework/internal/registry"
	"github.com/nrutten/huework/internal/retry"
)

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
	log.Info().Str("backend", cfg.Backend.Kind).Msg("starting consumer")

	registerExampleHandlers(registry.Default)

	queue, results, tasks, closeFn, err := buildBackends(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build backends")
	}
	defer closeFn()

	var dlq retry.DeadLetterSink
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

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down consumer")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()

	if err := c.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("consumer shutdown error")
	}

	log.Info().Msg("consumer stopped")
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
			return nil, nil, nil, nil, fmt.Errorf("consumer: build redis queue: %w", err)
		}

		store, err := rediskv.New(rediskv.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.ResultTTL,
		})
		if err != nil {
			queue.Close()
			return nil, nil, nil, nil, fmt.Errorf("consumer: build redis store: %w", err)
		}

		return queue, store, store, func() {
			queue.Close()
			store.Close()
		}, nil

	default:
		return memorybackend.NewQueue(), memorybackend.NewStore(), memorybackend.NewStore(), func() {}, nil
	}
}

// registerExampleHandlers mirrors the teacher's example handler set, kept
// for demonstration purposes.
func registerExampleHandlers(reg *registry.Registry) {
	reg.Register("echo", echoHandler, 0, 0)
	reg.Register("sleep", sleepHandler, 0, 0)
	reg.Register("compute", computeHandler, 0, 0)
	reg.Register("fail", failHandler, 2, time.Second)
}

func echoHandler(ctx context.Context, args, kwargs []byte) ([]byte, error) {
	obslog.Info().Bytes("args", args).Msg("echo handler processing task")
	return args, nil
}

func sleepHandler(ctx context.Context, args, kwargs []byte) ([]byte, error) {
	duration := time.Second
	if len(args) > 0 {
		if ms, err := parseMillis(args); err == nil {
			duration = time.Duration(ms) * time.Millisecond
		}
	}

	obslog.Info().Dur("duration", duration).Msg("sleep handler processing task")

	select {
	case <-time.After(duration):
		return []byte(fmt.Sprintf(`{"slept_for":"%s"}`, duration)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func computeHandler(ctx context.Context, args, kwargs []byte) ([]byte, error) {
	iterations := 1000000
	if n, err := parseMillis(args); err == nil && n > 0 {
		iterations = int(n)
	}

	sum := 0
	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			sum += i
		}
	}

	return []byte(fmt.Sprintf(`{"result":%d}`, sum)), nil
}

func failHandler(ctx context.Context, args, kwargs []byte) ([]byte, error) {
	return nil, fmt.Errorf("intentional failure for testing")
}

func parseMillis(args []byte) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(string(args), "%d", &n)
	return n, err
}
