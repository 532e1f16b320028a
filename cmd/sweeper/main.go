// Command sweeper runs one auto-completion sweep and prints the summary as JSON.
// It is meant for cron or CI schedulers that cannot call the HTTP trigger.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/internal/repository"
	"github.com/noah-isme/pawclass-api/internal/service"
	"github.com/noah-isme/pawclass-api/pkg/cache"
	"github.com/noah-isme/pawclass-api/pkg/clock"
	"github.com/noah-isme/pawclass-api/pkg/config"
	"github.com/noah-isme/pawclass-api/pkg/database"
	"github.com/noah-isme/pawclass-api/pkg/jobs"
	"github.com/noah-isme/pawclass-api/pkg/logger"
	"github.com/noah-isme/pawclass-api/pkg/observability"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred flushes complete before exit.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	flush, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Sentry.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Error("failed to connect postgres", zap.Error(err))
		return 1
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, using process-local lock", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	studio := clock.NewStudio(clock.System{}, cfg.Studio.UTCOffsetHours)
	bookings := repository.NewBookingRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Cache.ScheduleTTL, logr, cfg.Cache.Enabled && redisClient != nil)

	// No queue workers in a one-shot process: reconciliation records are written inline.
	reconciler := service.NewReconciliationService(repository.NewReconciliationRepository(db), metrics, jobs.QueueConfig{}, nil, logr)

	sweeper := service.NewSweeperService(bookings, enrollments, repository.NewLockRepository(redisClient), reconciler, studio, metrics, cacheSvc, logr, service.SweeperConfig{
		BatchSize:         cfg.Sweeper.BatchSize,
		Timeout:           cfg.Sweeper.Timeout,
		LockTTL:           cfg.Sweeper.LockTTL,
		ExpireEnrollments: cfg.Sweeper.ExpireEnrollments,
	})

	summary, err := sweeper.Run(context.Background())
	if err != nil {
		logr.Error("sweep failed", zap.Error(err))
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logr.Error("encode summary", zap.Error(err))
		return 1
	}
	return exitCode(summary)
}

func exitCode(summary *models.SweepSummary) int {
	if summary.Failed > 0 {
		return 2
	}
	return 0
}
