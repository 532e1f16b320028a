package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/internal/repository"
	"github.com/noah-isme/pawclass-api/pkg/clock"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
	"github.com/noah-isme/pawclass-api/pkg/observability"
)

const (
	sweepLockKey         = "pawclass:lock:booking-sweep"
	reasonQuotaExhausted = "quota already exhausted"
)

type sweepBookingRepository interface {
	ListDueForCompletion(ctx context.Context, today models.Date, nowWall, afterID string, limit int) ([]models.Booking, error)
	CompleteWithUsage(ctx context.Context, bookingID string, at time.Time) (repository.CompletionResult, error)
}

type sweepEnrollmentRepository interface {
	ExpireLapsed(ctx context.Context, today models.Date) (int, error)
}

type distributedLock interface {
	Available() bool
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// SweeperConfig tunes a sweep run.
type SweeperConfig struct {
	BatchSize         int
	Timeout           time.Duration
	LockTTL           time.Duration
	ExpireEnrollments bool
}

// SweeperService completes confirmed bookings whose session has ended and
// deducts one session per booking. Each booking is handled in isolation, so
// one failure never aborts the run. Running it twice is a no-op the second
// time.
type SweeperService struct {
	bookings    sweepBookingRepository
	enrollments sweepEnrollmentRepository
	lock        distributedLock
	reconciler  reconciliationSink
	studio      *clock.Studio
	metrics     *MetricsService
	cache       *CacheService
	logger      *zap.Logger
	cfg         SweeperConfig

	local sync.Mutex
}

// NewSweeperService constructs the sweeper.
func NewSweeperService(
	bookings sweepBookingRepository,
	enrollments sweepEnrollmentRepository,
	lock distributedLock,
	reconciler reconciliationSink,
	studio *clock.Studio,
	metrics *MetricsService,
	cache *CacheService,
	logger *zap.Logger,
	cfg SweeperConfig,
) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if studio == nil {
		studio = clock.NewStudio(clock.System{}, 9)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &SweeperService{
		bookings:    bookings,
		enrollments: enrollments,
		lock:        lock,
		reconciler:  reconciler,
		studio:      studio,
		metrics:     metrics,
		cache:       cache,
		logger:      logger,
		cfg:         cfg,
	}
}

// Run executes one sweep. A concurrent run yields ErrSweepInProgress.
func (s *SweeperService) Run(ctx context.Context) (*models.SweepSummary, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	now := s.studio.Now()
	today := models.NewDate(now)
	nowWall := now.Format("15:04:05")
	summary := &models.SweepSummary{StartedAt: now.UTC(), Results: []models.SweepItem{}}

	s.logger.Info("booking sweep started", zap.String("today", today.String()), zap.String("now", nowWall))

	afterID := ""
	for {
		batch, err := s.bookings.ListDueForCompletion(ctx, today, nowWall, afterID, s.cfg.BatchSize)
		if err != nil {
			s.logger.Error("failed to list due bookings", zap.Error(err))
			observability.CaptureErr(err)
			if summary.Completed+summary.Failed+summary.Skipped == 0 {
				return nil, appErrors.Storage(err, "failed to list bookings due for completion")
			}
			break
		}
		for _, booking := range batch {
			item := s.completeOne(ctx, booking, now)
			summary.Record(item)
			s.metrics.RecordSweepOutcome(item.Outcome)
		}
		if len(batch) < s.cfg.BatchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	if s.cfg.ExpireEnrollments && s.enrollments != nil {
		expired, err := s.enrollments.ExpireLapsed(ctx, today)
		if err != nil {
			s.logger.Warn("failed to expire lapsed enrollments", zap.Error(err))
			observability.CaptureErr(err)
		} else {
			summary.ExpiredEnrollments = expired
		}
	}

	if summary.Completed > 0 {
		s.cache.InvalidateGroup(ctx, CacheGroupSchedules)
	}
	summary.FinishedAt = s.studio.Now().UTC()
	s.metrics.ObserveSweep(summary.FinishedAt.Sub(summary.StartedAt))
	s.logger.Info("booking sweep finished",
		zap.Int("completed", summary.Completed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("expired_enrollments", summary.ExpiredEnrollments),
	)
	return summary, nil
}

func (s *SweeperService) completeOne(ctx context.Context, booking models.Booking, now time.Time) models.SweepItem {
	item := models.SweepItem{BookingID: booking.ID, EnrollmentID: booking.EnrollmentID}

	result, err := s.bookings.CompleteWithUsage(ctx, booking.ID, now.UTC())
	if err != nil {
		item.Outcome = models.SweepOutcomeFailed
		item.Reason = err.Error()
		if errors.Is(err, repository.ErrUsageConflict) {
			s.metrics.RecordCASConflict()
		}
		s.logger.Warn("sweep failed to complete booking",
			zap.String("booking_id", booking.ID),
			zap.String("enrollment_id", booking.EnrollmentID),
			zap.String("reason", err.Error()),
		)
		observability.CaptureWithTags(err, map[string]string{
			"booking_id":    booking.ID,
			"enrollment_id": booking.EnrollmentID,
			"source":        models.ReconciliationSourceSweep,
		})
		return item
	}
	if !result.Completed {
		item.Outcome = models.SweepOutcomeSkipped
		item.Reason = "booking no longer confirmed"
		return item
	}

	item.Outcome = models.SweepOutcomeCompleted
	item.Deducted = result.Deducted
	if !result.Deducted {
		item.Reason = reasonQuotaExhausted
		s.logger.Warn("booking completed without deduction",
			zap.String("booking_id", booking.ID),
			zap.String("enrollment_id", result.EnrollmentID),
			zap.String("reason", reasonQuotaExhausted),
		)
		if s.reconciler != nil {
			rec := models.LedgerReconciliation{
				BookingID:    booking.ID,
				EnrollmentID: result.EnrollmentID,
				Reason:       reasonQuotaExhausted,
				Source:       models.ReconciliationSourceSweep,
			}
			if err := s.reconciler.Enqueue(ctx, rec); err != nil {
				s.logger.Error("failed to record reconciliation", zap.String("booking_id", booking.ID), zap.Error(err))
			}
		}
	}
	return item
}

// acquire takes the cross-process lock when Redis is configured and the
// process-local one otherwise.
func (s *SweeperService) acquire(ctx context.Context) (func(), error) {
	if s.lock != nil && s.lock.Available() {
		token, ok, err := s.lock.Acquire(ctx, sweepLockKey, s.cfg.LockTTL)
		if err == nil {
			if !ok {
				return nil, appErrors.ErrSweepInProgress
			}
			return func() {
				if err := s.lock.Release(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
					s.logger.Warn("failed to release sweep lock", zap.Error(err))
				}
			}, nil
		}
		s.logger.Warn("sweep lock unavailable, using local lock", zap.Error(err))
	}
	if !s.local.TryLock() {
		return nil, appErrors.ErrSweepInProgress
	}
	return s.local.Unlock, nil
}
