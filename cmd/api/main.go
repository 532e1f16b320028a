package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/pawclass-api/internal/handler"
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

// @title PawClass API
// @version 1.0.0
// @description Booking, enrollment and session management for a dog-training studio.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
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
		logr.Sugar().Warnw("sentry disabled", "error", err)
	}
	defer flush()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := buildApp(cfg, logr, db, redisClient)
	app.reconciliations.Start(context.Background())
	defer app.reconciliations.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type application struct {
	metrics         *service.MetricsService
	auth            *service.AuthService
	audits          *repository.AuditRepository
	reconciliations *service.ReconciliationService

	bookings        *handler.BookingHandler
	enrollments     *handler.EnrollmentHandler
	classes         *handler.ClassHandler
	templates       *handler.TicketTemplateHandler
	schedules       *handler.ScheduleHandler
	reconciliationH *handler.ReconciliationHandler
	sweeps          *handler.SweepHandler
	ops             *handler.MetricsHandler
}

func buildApp(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) *application {
	validate := validator.New()
	studio := clock.NewStudio(clock.System{}, cfg.Studio.UTCOffsetHours)
	metrics := service.NewMetricsService()

	bookingRepo := repository.NewBookingRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	classRepo := repository.NewClassRepository(db)
	templateRepo := repository.NewTicketTemplateRepository(db)
	reconciliationRepo := repository.NewReconciliationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	lockRepo := repository.NewLockRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ScheduleTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	auditSvc := service.NewAuditService(auditRepo, logr)
	ledgerSvc := service.NewLedgerService(enrollmentRepo, metrics, cfg.Ledger.CASRetries, logr)
	reconciliationSvc := service.NewReconciliationService(reconciliationRepo, metrics, jobs.QueueConfig{
		Workers:    cfg.Reconciliation.Workers,
		MaxRetries: cfg.Reconciliation.MaxRetries,
		RetryDelay: cfg.Reconciliation.RetryDelay,
	}, validate, logr)

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		CronSecret:        cfg.Sweeper.CronSecret,
		CronSecretHash:    cfg.Sweeper.CronSecretHash,
	})
	bookingSvc := service.NewBookingService(bookingRepo, enrollmentRepo, scheduleRepo, ledgerSvc, reconciliationSvc, studio, metrics, cacheSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, classRepo, ledgerSvc, auditSvc, validate, logr)
	classSvc := service.NewClassService(classRepo, cfg.Studio.DefaultCancelHoursBefore, validate, logr)
	templateSvc := service.NewTicketTemplateService(templateRepo, classRepo, enrollmentRepo, studio, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, classRepo, bookingRepo, cacheSvc, auditSvc, studio, validate, logr)
	sweeperSvc := service.NewSweeperService(bookingRepo, enrollmentRepo, lockRepo, reconciliationSvc, studio, metrics, cacheSvc, logr, service.SweeperConfig{
		BatchSize:         cfg.Sweeper.BatchSize,
		Timeout:           cfg.Sweeper.Timeout,
		LockTTL:           cfg.Sweeper.LockTTL,
		ExpireEnrollments: cfg.Sweeper.ExpireEnrollments,
	})

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	return &application{
		metrics:         metrics,
		auth:            authSvc,
		audits:          auditRepo,
		reconciliations: reconciliationSvc,
		bookings:        handler.NewBookingHandler(bookingSvc),
		enrollments:     handler.NewEnrollmentHandler(enrollmentSvc),
		classes:         handler.NewClassHandler(classSvc),
		templates:       handler.NewTicketTemplateHandler(templateSvc),
		schedules:       handler.NewScheduleHandler(scheduleSvc),
		reconciliationH: handler.NewReconciliationHandler(reconciliationSvc),
		sweeps:          handler.NewSweepHandler(sweeperSvc),
		ops:             handler.NewMetricsHandler(metrics, checks),
	}
}
