package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-queue/internal/api"
	"github.com/clinicdesk/appointment-queue/internal/config"
	"github.com/clinicdesk/appointment-queue/internal/db"
	"github.com/clinicdesk/appointment-queue/internal/logging"
	"github.com/clinicdesk/appointment-queue/internal/notify"
	"github.com/clinicdesk/appointment-queue/internal/queue"
	redisclient "github.com/clinicdesk/appointment-queue/internal/redis"
	"github.com/clinicdesk/appointment-queue/internal/user"
)

const version = "0.3.0"

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

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
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

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		log.Fatal("migration error", zap.Error(err))
	}
	log.Info("migrations applied")

	// Connect Redis
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

	queueSvc := queue.NewService(queue.NewPgRepository(pgPool), locker, notifier, log)
	userSvc := user.NewService(user.NewPgRepository(pgPool), cfg)

	router := api.NewRouter(api.RouterConfig{
		Queue:          queueSvc,
		Users:          userSvc,
		PgPool:         pgPool,
		Redis:          rdb,
		Log:            log,
		JWTSecret:      cfg.JWTSecret,
		Env:            cfg.Env,
		Version:        version,
		AuthRatePerSec: cfg.AuthRatePerSec,
		AuthRateBurst:  cfg.AuthRateBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatal("http server error", zap.Error(err))
	case <-rootCtx.Done():
	}

	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
}
