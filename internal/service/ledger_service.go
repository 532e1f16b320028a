package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/internal/repository"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
)

type ledgerRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	CompareAndSetUsage(ctx context.Context, id string, prev, next int) error
}

// LedgerService is the only writer of enrollment usage outside the sweeper's
// completion transaction. Every write is a compare-and-set on the value read.
type LedgerService struct {
	repo    ledgerRepository
	metrics *MetricsService
	retries int
	logger  *zap.Logger
}

// NewLedgerService constructs the ledger. retries bounds re-reads after a CAS miss.
func NewLedgerService(repo ledgerRepository, metrics *MetricsService, retries int, logger *zap.Logger) *LedgerService {
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{repo: repo, metrics: metrics, retries: retries, logger: logger}
}

// Consume uses one session. It fails with QUOTA_EXHAUSTED at total_count.
func (s *LedgerService) Consume(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	return s.adjust(ctx, enrollmentID, 1)
}

// Restore returns one session to the enrollment.
func (s *LedgerService) Restore(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	return s.adjust(ctx, enrollmentID, -1)
}

func (s *LedgerService) adjust(ctx context.Context, enrollmentID string, delta int) (*models.Enrollment, error) {
	for attempt := 0; attempt <= s.retries; attempt++ {
		enrollment, err := s.repo.FindByID(ctx, enrollmentID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			}
			return nil, appErrors.Storage(err, "failed to load enrollment")
		}

		next, err := enrollment.NextUsage(delta)
		if err != nil {
			if errors.Is(err, models.ErrUsageExceedsTotal) {
				return nil, appErrors.Wrap(err, appErrors.ErrQuotaExhausted.Code, appErrors.ErrQuotaExhausted.Status, "no remaining sessions on enrollment")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidState.Code, appErrors.ErrInvalidState.Status, "enrollment has no used sessions to restore")
		}

		err = s.repo.CompareAndSetUsage(ctx, enrollmentID, enrollment.UsedCount, next)
		if err == nil {
			enrollment.UsedCount = next
			return enrollment, nil
		}
		if !errors.Is(err, repository.ErrUsageConflict) {
			return nil, appErrors.Storage(err, "failed to update enrollment usage")
		}
		s.metrics.RecordCASConflict()
		s.logger.Debug("enrollment usage cas miss",
			zap.String("enrollment_id", enrollmentID),
			zap.Int("expected_used", enrollment.UsedCount),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, appErrors.Clone(appErrors.ErrStorage, "enrollment usage is changing concurrently, please retry")
}
