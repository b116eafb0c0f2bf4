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
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"lifecalendar.app/api/common/crypto"
	"lifecalendar.app/api/common/id"
	"lifecalendar.app/api/common/logger"
	"lifecalendar.app/api/common/otel"
	"lifecalendar.app/api/core/config"
	"lifecalendar.app/api/core/db"
	"lifecalendar.app/api/internal/http/middleware"
	httprouter "lifecalendar.app/api/internal/http/router"
	"lifecalendar.app/api/internal/queue"
	"lifecalendar.app/api/internal/service"
	"lifecalendar.app/api/internal/store"
	"lifecalendar.app/api/internal/withings"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider when enabled)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// slog is not set up yet when OTel fails
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "lifecalendar api starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	cipher, err := crypto.NewCipher(cfg.Crypto.EncryptionKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize cipher", "error", err)
		os.Exit(1)
	}
	if !cfg.Crypto.Enabled() {
		slog.WarnContext(ctx, "ENCRYPTION_KEY not set, secrets are stored in plain text")
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

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
	}, service.BackfillConfig{
		Producer: queue.NewRedisProducer(redisClient, cfg.Backfill.Stream, slog.Default()),
		Days:     cfg.Backfill.Days,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Day requests fan out to Withings and may take up to the client timeout.
		WriteTimeout: cfg.Withings.HTTPTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

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
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → RequestID tags logs → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		AdminAPIKey: cfg.AdminAPIKey,
	})

	return router
}

const banner = `
 _     _  __       ____      _                _
| |   (_)/ _| ___ / ___|__ _| | ___ _ __   __| | __ _ _ __
| |   | | |_ / _ \ |   / _' | |/ _ \ '_ \ / _' |/ _' | '__|
| |___| |  _|  __/ |__| (_| | |  __/ | | | (_| | (_| | |
|_____|_|_|  \___|\____\__,_|_|\___|_| |_|\__,_|\__,_|_|
`
