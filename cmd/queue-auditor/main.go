package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-queue/internal/config"
	"github.com/clinicdesk/appointment-queue/internal/db"
	"github.com/clinicdesk/appointment-queue/internal/logging"
	"github.com/clinicdesk/appointment-queue/internal/notify"
	"github.com/clinicdesk/appointment-queue/internal/queue"
	redisclient "github.com/clinicdesk/appointment-queue/internal/redis"
)

// The auditor periodically re-runs the renumbering pass for every
// doctor with a pending queue. A completion that failed partway
// through leaves a gap in the turn sequence; the next audit closes it.
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.New(cfg.Env)
	if err != nil {
		os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("queue-auditor starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.AuditInterval))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, db.PoolSettings{
		DSN:      cfg.PostgresDSN,
		MaxConns: int32(cfg.PgMaxConns),
		MinConns: int32(cfg.PgMinConns),
	})
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: cfg.RedisPoolSize,
		Timeout:  cfg.RedisTimeout,
	})
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	locker := redisclient.NewRedisQueueLocker(rdb, cfg.LockTTL)
	notifier := notify.NewRedisNotifier(rdb)
	svc := queue.NewService(queue.NewPgRepository(pgPool), locker, notifier, log)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.AuditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping queue auditor")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *queue.Service, log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.RepairQueues(runCtx); err != nil {
		log.Warn("audit run error", zap.Error(err))
		return
	}
	log.Info("audit run complete", zap.Duration("took", time.Since(start)))
}
