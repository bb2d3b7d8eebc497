package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hongminglow/loan-be/internal/config"
	"github.com/hongminglow/loan-be/internal/events"
	"github.com/hongminglow/loan-be/internal/logger"
	"github.com/hongminglow/loan-be/internal/ratelimit"
	"github.com/hongminglow/loan-be/internal/server"
	"github.com/hongminglow/loan-be/internal/storage/backend"
	"github.com/hongminglow/loan-be/internal/uploads"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)
	if envErr != nil {
		log.Info("no .env file found; relying on existing environment")
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()
	store, err := backend.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	avatars, err := uploads.NewStore(cfg.UploadDir, cfg.AvatarMaxBytes)
	if err != nil {
		return err
	}

	publisher := newPublisher(cfg, log)
	defer publisher.Close()

	limiter := newLimiter(cfg, log)
	defer limiter.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := server.New(cfg, server.Deps{
		Store:     store,
		Publisher: publisher,
		Limiter:   limiter,
		Avatars:   avatars,
		Logger:    log,
		Registry:  registry,
	})
	if err := srv.EnsureAdmin(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("loan backend listening", slog.String("addr", cfg.HTTPAddress()))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case sig := <-sigCh:
		log.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Warn("graceful shutdown error", slog.Any("error", err))
	}
	return nil
}

// newPublisher falls back to dropping events when the broker is not configured
// or unreachable; the workflow never depends on delivery.
func newPublisher(cfg config.Config, log *slog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.Nop{}
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.Warn("event publishing disabled", slog.Any("error", err))
		return events.Nop{}
	}
	log.Info("publishing loan events", slog.String("exchange", cfg.AMQPExchange))
	return pub
}

func newLimiter(cfg config.Config, log *slog.Logger) ratelimit.Limiter {
	if cfg.RateLimitRedisAddr != "" {
		rl, err := ratelimit.NewRedis(cfg.RateLimitRedisAddr, cfg.RateLimitRedisPassword, cfg.RateLimitRedisDB, cfg.AuthRateLimitPerMinute, log)
		if err == nil {
			return rl
		}
		log.Warn("redis rate limiter unavailable; using in-memory limiter", slog.Any("error", err))
	}
	return ratelimit.NewMemory(cfg.AuthRateLimitPerMinute)
}
