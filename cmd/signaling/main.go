package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mossy-p/signaling-relay/config"
	"github.com/mossy-p/signaling-relay/internal/handlers"
	"github.com/mossy-p/signaling-relay/internal/logging"
	"github.com/mossy-p/signaling-relay/internal/redis"
	"github.com/mossy-p/signaling-relay/internal/relay"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("signaling server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []relay.Option{relay.WithQueueSize(cfg.CommandQueueSize)}

	// Connect to Redis when the presence mirror is enabled
	if cfg.Redis.Addr != "" {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		logger.Info("Redis connection established", zap.String("addr", cfg.Redis.Addr))

		presence := redis.NewPresence(client, cfg.PresenceTTL, logger)
		opts = append(opts, relay.WithObserver(presence.Observe))
	}

	registry := relay.NewRegistry(ctx, logger, opts...)

	if cfg.Environment == config.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(registry, handlers.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Signaling: handlers.SignalingOptions{
			OutboxSize:     cfg.OutboxSize,
			MaxMessageSize: cfg.MaxMessageSize,
			PingPeriod:     cfg.PingPeriod,
		},
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Sessions end when the process context is cancelled.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting WebRTC signaling server",
			zap.String("addr", cfg.Addr),
			zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
