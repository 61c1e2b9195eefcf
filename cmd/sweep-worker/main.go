package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/monkelabs/monke-backend/internal/activity"
	deal "github.com/monkelabs/monke-backend/internal/deals"
	group "github.com/monkelabs/monke-backend/internal/groups"
	"github.com/monkelabs/monke-backend/internal/notifications"
	"github.com/monkelabs/monke-backend/internal/sweep"
	"github.com/monkelabs/monke-backend/pkg/config"
	"github.com/monkelabs/monke-backend/pkg/db"
	"github.com/monkelabs/monke-backend/pkg/logger"
	"github.com/monkelabs/monke-backend/pkg/metrics"
	"github.com/monkelabs/monke-backend/pkg/migrate"
	"github.com/monkelabs/monke-backend/pkg/outbox"
	"github.com/monkelabs/monke-backend/pkg/redis"
)

const lockKeyFormat = "monke:sweep-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweep-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sweep-worker"

	logg = logger.New(logger.Options{
		ServiceName: "sweep-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()

	notificationService, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	activityService, err := activity.NewService(activity.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create activity service", err)
		os.Exit(1)
	}

	groupRepo := group.NewRepository(gormDB)
	groupService, err := group.NewService(group.ServiceParams{
		TxRunner:    dbClient,
		Groups:      groupRepo,
		Members:     group.NewMemberRepository(gormDB),
		Settlements: group.NewSettlementRepository(gormDB),
		Redemptions: group.NewRedemptionRepository(gormDB),
		Deals:       deal.NewRepository(gormDB),
		Outbox:      outbox.NewService(outbox.NewRepository(gormDB), logg),
		Notifier:    notificationService,
		Activity:    activityService,
		Config:      cfg.GroupDeals,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create group service", err)
		os.Exit(1)
	}

	expiryJob, err := sweep.NewExpiryJob(sweep.ExpiryJobParams{
		Logger:    logg,
		Groups:    groupRepo,
		Expirer:   groupService,
		Locker:    groupService,
		BatchSize: cfg.Sweep.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry job", err)
		os.Exit(1)
	}

	lock, err := sweep.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Sweep.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}

	service, err := sweep.NewService(sweep.ServiceParams{
		Logger:   logg,
		Registry: sweep.NewRegistry(expiryJob),
		Lock:     lock,
		Metrics:  metrics.NewSweepJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Sweep.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting sweep worker")

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.App.Port, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics endpoint stopped", err)
		}
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweep worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweep worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
