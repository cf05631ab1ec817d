package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carelink/clinic-scheduling/internal/config"
	"github.com/carelink/clinic-scheduling/internal/db"
	"github.com/carelink/clinic-scheduling/internal/notification"
	redisclient "github.com/carelink/clinic-scheduling/internal/redis"
	"github.com/carelink/clinic-scheduling/internal/schedule"
	"github.com/carelink/clinic-scheduling/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.Env).Named("reminder-worker")
	log.Info("starting up", "env", cfg.Env, "interval", cfg.WorkerInterval.String())

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

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

// runOnce reminds patients with appointments tomorrow.
func runOnce(ctx context.Context, svc *schedule.Service, log *logging.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	tomorrow := time.Now().AddDate(0, 0, 1)
	day := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, time.UTC)

	start := time.Now()
	if err := svc.RemindUpcoming(runCtx, day); err != nil {
		log.Error("reminder run error", "error", err)
		return
	}
	log.Info("reminder run complete", "duration", time.Since(start).String())
}
