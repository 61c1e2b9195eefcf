package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/monkelabs/monke-backend/api/routes"
	"github.com/monkelabs/monke-backend/internal/activity"
	deal "github.com/monkelabs/monke-backend/internal/deals"
	group "github.com/monkelabs/monke-backend/internal/groups"
	"github.com/monkelabs/monke-backend/internal/notifications"
	"github.com/monkelabs/monke-backend/pkg/config"
	"github.com/monkelabs/monke-backend/pkg/db"
	"github.com/monkelabs/monke-backend/pkg/logger"
	"github.com/monkelabs/monke-backend/pkg/metrics"
	"github.com/monkelabs/monke-backend/pkg/migrate"
	"github.com/monkelabs/monke-backend/pkg/outbox"
	"github.com/monkelabs/monke-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	dealService, err := deal.NewService(
		deal.NewRepository(gormDB),
		deal.NewMerchantRepository(gormDB),
		cfg.GroupDeals.MinParticipantsDefault,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create deal service", err)
		os.Exit(1)
	}

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

	groupService, err := group.NewService(group.ServiceParams{
		TxRunner:    dbClient,
		Groups:      group.NewRepository(gormDB),
		Members:     group.NewMemberRepository(gormDB),
		Settlements: group.NewSettlementRepository(gormDB),
		Redemptions: group.NewRedemptionRepository(gormDB),
		Deals:       deal.NewRepository(gormDB),
		Outbox:      outbox.NewService(outbox.NewRepository(gormDB), logg),
		Notifier:    notificationService,
		Activity:    activityService,
		Config:      cfg.GroupDeals,
		LockMetrics: metrics.NewLockMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create group service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			dealService,
			groupService,
			activityService,
			notificationService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
