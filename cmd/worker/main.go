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

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"reviewstats.app/listener/common/id"
	"reviewstats.app/listener/common/logger"
	"reviewstats.app/listener/common/otel"
	"reviewstats.app/listener/core/config"
	"reviewstats.app/listener/core/db"
	"reviewstats.app/listener/internal/enricher"
	"reviewstats.app/listener/internal/gerrit"
	"reviewstats.app/listener/internal/issueref"
	"reviewstats.app/listener/internal/queue"
	"reviewstats.app/listener/internal/sink"
	"reviewstats.app/listener/internal/store"
	"reviewstats.app/listener/internal/tracker"
	"reviewstats.app/listener/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	fmt.Printf("%s\n", banner)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		return 1
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		return 1
	}
	defer shutdownTelemetry(telemetry)

	logger.Setup(cfg)

	slog.InfoContext(ctx, "reviewstats worker starting",
		"env", cfg.Env,
		"stream", cfg.Stream.RedisStream,
		"consumer_group", cfg.Stream.RedisGroup,
		"consumer_name", cfg.Stream.RedisConsumer,
		"tracker", cfg.Tracker.Provider)

	ids, err := id.NewGenerator(cfg.NodeID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		return 1
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		return 1
	}
	defer database.Close()

	if err := database.WithTx(ctx, func(tx pgx.Tx) error {
		return store.Migrate(ctx, tx)
	}); err != nil {
		slog.ErrorContext(ctx, "failed to migrate analytics store", "error", err)
		return 1
	}
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Stream.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		return 1
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		return 1
	}

	consumer, err := queue.NewRedisConsumer(ctx, redisClient, queue.ConsumerConfig{
		Stream:   cfg.Stream.RedisStream,
		Group:    cfg.Stream.RedisGroup,
		Consumer: cfg.Stream.RedisConsumer,
		Block:    5 * time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		return 1
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Stream.RedisStream)

	ticketTracker, err := newTracker(cfg.Tracker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create ticket tracker", "error", err)
		return 1
	}

	review := gerrit.NewClient(gerrit.ExecCommandRunner{}, gerrit.Config{
		Host:    cfg.Gerrit.Host,
		Port:    cfg.Gerrit.Port,
		User:    cfg.Gerrit.User,
		KeyFile: cfg.Gerrit.KeyFile,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	w := worker.New(
		consumer,
		enricher.New(review, issueref.NewResolver(ticketTracker)),
		sink.New(store.NewAnalyticsStore(database.Pool()), sink.Config{NewID: ids.Next}),
		worker.NewMetrics(registry),
		worker.Config{},
	)

	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.InfoContext(ctx, "worker initialized and running", "metrics_addr", cfg.MetricsAddr)

	err = w.Run(ctx)
	switch {
	case errors.Is(err, worker.ErrTerminated):
		slog.ErrorContext(ctx, "event stream reported an error, exiting", "events_seen", w.Seq())
		return 2
	case errors.Is(err, context.Canceled):
		slog.InfoContext(ctx, "worker shutdown complete", "events_seen", w.Seq())
		return 0
	default:
		slog.ErrorContext(ctx, "worker stopped unexpectedly", "error", err)
		return 1
	}
}

func newTracker(cfg config.TrackerConfig) (tracker.Tracker, error) {
	switch cfg.Provider {
	case config.TrackerGitLab:
		return tracker.NewGitLabTracker(tracker.GitLabConfig{
			URL:      cfg.GitLab.URL,
			Token:    cfg.GitLab.Token,
			Projects: cfg.GitLab.Projects,
		})
	default:
		return tracker.NewJiraTracker(tracker.JiraConfig{
			URL:      cfg.Jira.URL,
			Username: cfg.Jira.Username,
			Password: cfg.Jira.Password,
		})
	}
}

func shutdownTelemetry(t *otel.Telemetry) {
	if t == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "otel shutdown error", "error", err)
	}
}

const banner = `
 ____            _                 ____  _        _
|  _ \ _____   _(_) _____      __ / ___|| |_ __ _| |_ ___
| |_) / _ \ \ / / |/ _ \ \ /\ / / \___ \| __/ _' | __/ __|
|  _ <  __/\ V /| |  __/\ V  V /   ___) | || (_| | |_\__ \
|_| \_\___| \_/ |_|\___| \_/\_/   |____/ \__\__,_|\__|___/  worker
`
