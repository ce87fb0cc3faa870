// Command dispatchd runs the webhook dispatch engine as a standalone service:
// an in-memory store, a pluggable event bus, and the admin HTTP API mounted
// under a configurable path prefix.
//
// Persistent store backends (Postgres, SQLite, MongoDB, Redis) take a Grove
// database or KV handle and are wired by embedding applications through
// dispatch.WithStore.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/coreledger/dispatch"
	"github.com/coreledger/dispatch/api"
	"github.com/coreledger/dispatch/bus"
	"github.com/coreledger/dispatch/bus/redisbus"
	"github.com/coreledger/dispatch/signature"
	"github.com/coreledger/dispatch/store/memory"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus, err := newBus(ctx, cfg.Bus)
	if err != nil {
		return err
	}

	manager, err := dispatch.New(managerOptions(cfg, eventBus, logger)...)
	if err != nil {
		return fmt.Errorf("creating dispatch manager: %w", err)
	}

	if err := manager.Store().Migrate(ctx); err != nil {
		return fmt.Errorf("migrating store: %w", err)
	}
	if cfg.RegisterBuiltin {
		if err := manager.RegisterBuiltinEventTypes(ctx); err != nil {
			return fmt.Errorf("registering builtin event types: %w", err)
		}
	}

	manager.Start(ctx)

	prefix := strings.TrimSuffix(cfg.PathPrefix, "/")
	mux := http.NewServeMux()
	mux.Handle(prefix+"/", http.StripPrefix(prefix, api.NewHandler(manager, logger)))

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errShutdown := make(chan error, 1)
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		errShutdown <- srv.Shutdown(shutdownCtx)
		manager.Stop(shutdownCtx)
	}()

	logger.Info("dispatchd listening", "addr", cfg.ListenAddr, "prefix", prefix, "bus", cfg.Bus.Backend)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	if err := <-errShutdown; err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	logger.Info("dispatchd stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func newBus(ctx context.Context, cfg BusConfig) (bus.Bus, error) {
	switch cfg.Backend {
	case "", "memory":
		// dispatch.New defaults to the in-process bus.
		return nil, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}

		var opts []redisbus.Option
		if cfg.RedisStream != "" {
			opts = append(opts, redisbus.WithStream(cfg.RedisStream))
		}
		return redisbus.New(ctx, client, opts...)
	default:
		return nil, fmt.Errorf("unknown bus backend %q", cfg.Backend)
	}
}

func managerOptions(cfg *Config, eventBus bus.Bus, logger *slog.Logger) []dispatch.Option {
	opts := []dispatch.Option{
		dispatch.WithStore(memory.New()),
		dispatch.WithLogger(logger),
	}

	if eventBus != nil {
		opts = append(opts, dispatch.WithBus(eventBus))
	}
	if cfg.Concurrency > 0 {
		opts = append(opts, dispatch.WithConcurrency(cfg.Concurrency))
	}
	if cfg.PollInterval > 0 {
		opts = append(opts, dispatch.WithPollInterval(cfg.PollInterval))
	}
	if cfg.RetryBatchSize > 0 {
		opts = append(opts, dispatch.WithRetryBatchSize(cfg.RetryBatchSize))
	}
	if cfg.SignatureAlgorithm != "" {
		opts = append(opts, dispatch.WithSignatureAlgorithm(signature.Algorithm(cfg.SignatureAlgorithm)))
	}
	if cfg.ShutdownTimeout > 0 {
		opts = append(opts, dispatch.WithShutdownTimeout(cfg.ShutdownTimeout))
	}
	if cfg.CacheTTL > 0 {
		opts = append(opts, dispatch.WithCacheTTL(cfg.CacheTTL))
	}

	return opts
}
