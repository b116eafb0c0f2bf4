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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"lifecalendar.app/api/common/crypto"
	"lifecalendar.app/api/common/id"
	"lifecalendar.app/api/common/logger"
	"lifecalendar.app/api/common/otel"
	"lifecalendar.app/api/core/config"
	"lifecalendar.app/api/core/db"
	"lifecalendar.app/api/internal/queue"
	"lifecalendar.app/api/internal/service"
	"lifecalendar.app/api/internal/store"
	"lifecalendar.app/api/internal/withings"
	"lifecalendar.app/api/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)
	logger.Setup(cfg)

	slog.InfoContext(ctx, "lifecalendar worker starting",
		"env", cfg.Env,
		"interval", cfg.Refresher.Interval,
		"window", cfg.Refresher.Window,
		"cache_days", cfg.Refresher.CacheDays,
		"backfill_stream", cfg.Backfill.Stream)

	// Use a different node ID than the server
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	cipher, err := crypto.NewCipher(cfg.Crypto.EncryptionKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize cipher", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected")

	stores := store.NewStores(database.Querier(), cipher, redisClient, store.Config{
		DayTTL:   cfg.Cache.DayTTL,
		StateTTL: cfg.Cache.StateTTL,
	})

	withingsClient := withings.New(withings.Config{
		BaseURL:   cfg.Withings.APIBaseURL,
		UserAgent: cfg.Withings.UserAgent,
		Timeout:   cfg.Withings.HTTPTimeout,
	})

	services := service.NewServices(stores, withingsClient, service.OAuthConfig{
		AuthorizeURL:  cfg.Withings.AuthorizeURL,
		DefaultScopes: cfg.Withings.DefaultScopes,
		RefreshSkew:   cfg.Withings.RefreshSkew,
	}, service.BackfillConfig{})

	refresher := worker.NewRefresher(
		services.WithingsTokens(),
		services.OAuth(),
		services.Day(),
		worker.RefresherConfig{
			Interval:  cfg.Refresher.Interval,
			Window:    cfg.Refresher.Window,
			CacheDays: cfg.Refresher.CacheDays,
		},
	)

	consumer, err := queue.NewRedisConsumer(ctx, redisClient, queue.ConsumerConfig{
		Stream:    cfg.Backfill.Stream,
		Group:     cfg.Backfill.Group,
		Consumer:  cfg.Backfill.Consumer,
		DLQStream: cfg.Backfill.DLQStream,
		BatchSize: cfg.Backfill.BatchSize,
		Block:     cfg.Backfill.Block,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create backfill consumer", "error", err)
		os.Exit(1)
	}

	backfill := worker.NewBackfillWorker(consumer, services.Day(), worker.BackfillConfig{
		MaxAttempts: cfg.Backfill.MaxAttempts,
	})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Backfill.Stream,
		Group:     cfg.Backfill.Group,
		Consumer:  cfg.Backfill.Consumer,
		MinIdle:   cfg.Backfill.ReclaimMinIdle,
		Interval:  cfg.Backfill.ReclaimInterval,
		BatchSize: cfg.Backfill.BatchSize,
	}, consumer, backfill.HandleMessage)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.InfoContext(ctx, "metrics server starting", "port", cfg.Port)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "metrics server error", "error", err)
		}
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	go refresher.Run(runCtx)
	go reclaimer.Run(runCtx)
	go func() {
		if err := backfill.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "backfill worker exited", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down workers...")

	// Stream consumers first, then the refresher.
	reclaimer.Stop()
	backfill.Stop()
	refresher.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "metrics server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
 _     _  __       ____      _                          __               _
| |   (_)/ _| ___ / ___|__ _| |   _ __ ___ / _|_ __ ___  ___| |__   ___ _ __
| |   | | |_ / _ \ |   / _' | |  | '__/ _ \ |_| '__/ _ \/ __| '_ \ / _ \ '__|
| |___| |  _|  __/ |__| (_| | |  | | |  __/  _| | |  __/\__ \ | | |  __/ |
|_____|_|_|  \___|\____\__,_|_|  |_|  \___|_| |_|  \___||___/_| |_|\___|_|
`
