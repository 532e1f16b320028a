package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
	"github.com/noah-isme/pawclass-api/pkg/jobs"
	"github.com/noah-isme/pawclass-api/pkg/observability"
)

const reconciliationJobType = "ledger_reconciliation"

type reconciliationRepository interface {
	Create(ctx context.Context, rec *models.LedgerReconciliation) error
	FindByID(ctx context.Context, id string) (*models.LedgerReconciliation, error)
	List(ctx context.Context, filter models.ReconciliationFilter) ([]models.LedgerReconciliation, int, error)
	Resolve(ctx context.Context, id, resolvedBy string, at time.Time) (*models.LedgerReconciliation, error)
}

// ReconciliationService records ledger soft failures through a background
// queue and exposes them to administrators. Only the record write is retried.
type ReconciliationService struct {
	repo      reconciliationRepository
	queue     *jobs.Queue
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReconciliationService wires the persistence queue.
func NewReconciliationService(repo reconciliationRepository, metrics *MetricsService, queueCfg jobs.QueueConfig, validate *validator.Validate, logger *zap.Logger) *ReconciliationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReconciliationService{repo: repo, metrics: metrics, validator: validate, logger: logger, now: time.Now}
	queueCfg.Logger = logger
	queueCfg.OnExhaust = s.onExhaust
	s.queue = jobs.NewQueue("ledger-reconciliation", s.persist, queueCfg)
	return s
}

// Start launches the queue workers.
func (s *ReconciliationService) Start(ctx context.Context) { s.queue.Start(ctx) }

// Stop drains the workers.
func (s *ReconciliationService) Stop() { s.queue.Stop() }

// Enqueue schedules a reconciliation record for persistence. When the queue is
// not running the record is written synchronously.
func (s *ReconciliationService) Enqueue(ctx context.Context, rec models.LedgerReconciliation) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.metrics.RecordReconciliation(rec.Source)

	job := jobs.Job{ID: rec.ID, Type: reconciliationJobType, Payload: rec}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Debug("reconciliation queue unavailable, writing inline", zap.Error(err))
		return s.persist(ctx, job)
	}
	return nil
}

func (s *ReconciliationService) persist(ctx context.Context, job jobs.Job) error {
	rec, ok := job.Payload.(models.LedgerReconciliation)
	if !ok {
		return fmt.Errorf("unexpected reconciliation payload %T", job.Payload)
	}
	if err := s.repo.Create(ctx, &rec); err != nil {
		return err
	}
	s.logger.Info("ledger reconciliation recorded",
		zap.String("reconciliation_id", rec.ID),
		zap.String("booking_id", rec.BookingID),
		zap.String("enrollment_id", rec.EnrollmentID),
		zap.String("source", rec.Source),
	)
	return nil
}

func (s *ReconciliationService) onExhaust(job jobs.Job, err error) {
	tags := map[string]string{"job_id": job.ID}
	if rec, ok := job.Payload.(models.LedgerReconciliation); ok {
		tags["booking_id"] = rec.BookingID
		tags["enrollment_id"] = rec.EnrollmentID
		s.logger.Error("reconciliation record lost",
			zap.String("booking_id", rec.BookingID),
			zap.String("enrollment_id", rec.EnrollmentID),
			zap.String("reason", rec.Reason),
			zap.Error(err),
		)
	}
	observability.CaptureWithTags(err, tags)
}

// List returns reconciliation records.
func (s *ReconciliationService) List(ctx context.Context, q dto.ReconciliationQuery) ([]models.LedgerReconciliation, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, models.ReconciliationFilter{OpenOnly: q.OpenOnly, Page: q.Page, PageSize: q.PageSize})
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list reconciliations")
	}
	return items, models.NewPagination(q.Page, q.PageSize, total), nil
}

// Resolve closes an open record on behalf of actor.
func (s *ReconciliationService) Resolve(ctx context.Context, id string, req dto.ResolveReconciliationRequest, actor *models.JWTClaims) (*models.LedgerReconciliation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolve payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	rec, err := s.repo.Resolve(ctx, id, actor.UserID, s.now().UTC())
	if err == nil {
		s.logger.Info("ledger reconciliation resolved", zap.String("reconciliation_id", id), zap.String("resolved_by", actor.UserID), zap.String("note", req.Note))
		return rec, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Storage(err, "failed to resolve reconciliation")
	}
	if _, findErr := s.repo.FindByID(ctx, id); findErr != nil {
		if findErr == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reconciliation not found")
		}
		return nil, appErrors.Storage(findErr, "failed to load reconciliation")
	}
	return nil, appErrors.Clone(appErrors.ErrInvalidState, "reconciliation already resolved")
}
