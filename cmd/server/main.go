package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"reviewstats.app/listener/common/logger"
	"reviewstats.app/listener/common/otel"
	"reviewstats.app/listener/core/config"
	"reviewstats.app/listener/internal/http/middleware"
	httprouter "reviewstats.app/listener/internal/http/router"
	"reviewstats.app/listener/internal/queue"
)

func main() {
	os.Exit(run())
}

func run() int {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		return 1
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// slog is not configured yet
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		return 1
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "reviewstats webhook server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)

	redisOpts, err := redis.ParseURL(cfg.Stream.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		return 1
	}

	redisClient := redis.NewClient(redisOpts)
	eventProducer := queue.NewRedisProducer(redisClient, cfg.Stream.RedisStream, slog.Default())
	defer eventProducer.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		return 1
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Stream.RedisStream)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, eventProducer)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
		slog.InfoContext(ctx, "shutting down...")
	case err := <-serverErr:
		slog.ErrorContext(ctx, "http server error", "error", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
	return exitCode
}

func setupRouter(cfg config.Config, producer queue.Producer) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, producer, httprouter.RouterConfig{
		TraceHeaderName: cfg.Stream.TraceHeaderName,
		WebhookSecret:   cfg.Webhook.Secret,
		TokenHeaderName: cfg.Webhook.TokenHeader,
		Registry:        prometheus.NewRegistry(),
	})

	return router
}

const banner = `
 ____            _                 ____  _        _
|  _ \ _____   _(_) _____      __ / ___|| |_ __ _| |_ ___
| |_) / _ \ \ / / |/ _ \ \ /\ / / \___ \| __/ _' | __/ __|
|  _ <  __/\ V /| |  __/\ V  V /   ___) | || (_| | |_\__ \
|_| \_\___| \_/ |_|\___| \_/\_/   |____/ \__\__,_|\__|___/  webhooks
`
