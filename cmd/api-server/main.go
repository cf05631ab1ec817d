package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carelink/clinic-scheduling/internal/api"
	"github.com/carelink/clinic-scheduling/internal/config"
	"github.com/carelink/clinic-scheduling/internal/db"
	"github.com/carelink/clinic-scheduling/internal/notification"
	redisclient "github.com/carelink/clinic-scheduling/internal/redis"
	"github.com/carelink/clinic-scheduling/internal/schedule"
	"github.com/carelink/clinic-scheduling/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.Env).Named("api-server")
	log.Info("starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", "error", err)
		}
	}()
	log.Info("connected to Redis")

	feed := notification.NewChangeFeed(rdb, log.Named("changefeed"))
	notifier := notification.NewPgDispatcher(pgPool, feed)
	repo := schedule.NewPgRepository(pgPool)
	locker := redisclient.NewRedisScheduleLocker(rdb, cfg.LockTTL)
	svc := schedule.NewService(repo, locker, notifier, feed, cfg.WorkingHours(), log.Named("schedule"))

	router := api.NewRouter(api.RouterConfig{
		Service:   svc,
		PgPool:    pgPool,
		Redis:     rdb,
		JWTSecret: cfg.JWTSecret,
		Env:       cfg.Env,
		Version:   version,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	log.Info("api-server stopped")
}
