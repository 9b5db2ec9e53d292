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

	"github.com/gin-gonic/gin"

	"studenttracker/internal/auth"
	"studenttracker/internal/config"
	"studenttracker/internal/handler"
	"studenttracker/internal/httpmiddleware"
	"studenttracker/internal/metrics"
	"studenttracker/internal/store"
)

func main() {
	cfg := config.MustLoad()
	setupLogger(cfg)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		slog.Error("http server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func setupLogger(cfg config.App) {
	var h slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	if cfg.Production() {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(h))
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()
	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		slog.Info("schema migrated", slog.String("driver", cfg.DBDriver))
	}

	deps := handler.Deps{
		DB: db,
		Issuer: auth.Issuer{
			Name:       cfg.JWTIssuer,
			Key:        []byte(cfg.JWTSigningKey),
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		},
		Metrics:     metrics.New(),
		Location:    cfg.Location(),
		CORSOrigins: cfg.CORSOrigins,
		StaticDir:   cfg.StaticDir,
	}

	// Without Redis, revocation is disabled and limits are per process.
	rdb, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		if !rdb.Healthy(ctx) {
			slog.Warn("redis not reachable at startup", slog.String("addr", cfg.RedisAddr))
		}
		deps.Redis = rdb
		deps.Denylist = auth.NewRedisDenylist(rdb.Client)
		if cfg.RateLimitPerMin > 0 {
			deps.Limiter = httpmiddleware.NewRedisWindow(rdb.Client, cfg.RateLimitPerMin)
		}
	} else if cfg.RateLimitPerMin > 0 {
		deps.Limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.String("addr", srv.Addr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	slog.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server forced shutdown", slog.String("error", err.Error()))
	}
	slog.Info("server exited")
	return nil
}
