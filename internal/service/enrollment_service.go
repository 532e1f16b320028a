package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/internal/repository"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	Delete(ctx context.Context, id string) error
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type usageRestorer interface {
	Restore(ctx context.Context, enrollmentID string) (*models.Enrollment, error)
}

// EnrollmentService manages tickets on behalf of administrators and exposes a
// student's own tickets.
type EnrollmentService struct {
	repo      enrollmentRepository
	classes   classReader
	ledger    usageRestorer
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, classes classReader, ledger usageRestorer, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, classes: classes, ledger: ledger, audit: audit, validator: validate, logger: logger}
}

// Create issues an ad-hoc enrollment.
func (s *EnrollmentService) Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.EnrollmentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if req.ValidFrom.IsZero() || req.ValidUntil.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "valid_from and valid_until are required")
	}
	if req.ValidUntil.Before(req.ValidFrom) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "valid_until must not precede valid_from")
	}
	if err := s.ensureClass(ctx, req.ClassID); err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID:  req.StudentID,
		ClassID:    req.ClassID,
		TotalCount: req.TotalCount,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		Status:     models.EnrollmentStatusActive,
		Price:      req.Price,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Storage(err, "failed to create enrollment")
	}
	s.logger.Info("enrollment created", zap.String("enrollment_id", enrollment.ID), zap.String("student_id", enrollment.StudentID))
	view := models.NewEnrollmentView(*enrollment)
	return &view, nil
}

func (s *EnrollmentService) ensureClass(ctx context.Context, classID string) error {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Storage(err, "failed to load class")
	}
	return nil
}

// Get returns an enrollment with its remaining count. Students may only read
// their own.
func (s *EnrollmentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EnrollmentView, error) {
	enrollment, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != nil && actor.Role == models.RoleStudent && enrollment.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	view := models.NewEnrollmentView(*enrollment)
	return &view, nil
}

// List returns enrollments matching q.
func (s *EnrollmentService) List(ctx context.Context, q dto.EnrollmentQuery) ([]models.EnrollmentView, *models.Pagination, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment filter")
	}
	items, total, err := s.repo.List(ctx, models.EnrollmentFilter{
		StudentID: q.StudentID,
		ClassID:   q.ClassID,
		Status:    models.EnrollmentStatus(q.Status),
		Page:      q.Page,
		PageSize:  q.PageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list enrollments")
	}
	views := make([]models.EnrollmentView, 0, len(items))
	for _, e := range items {
		views = append(views, models.NewEnrollmentView(e))
	}
	return views, models.NewPagination(q.Page, q.PageSize, total), nil
}

// ListMine returns the caller's own enrollments.
func (s *EnrollmentService) ListMine(ctx context.Context, q dto.EnrollmentQuery, actor *models.JWTClaims) ([]models.EnrollmentView, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	q.StudentID = actor.UserID
	return s.List(ctx, q)
}

// UpdateStatus applies a status transition. Transitions outside the policy
// require force, which only SUPERADMIN may use.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req dto.UpdateEnrollmentStatusRequest, actor *models.JWTClaims) (*models.EnrollmentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if req.Force && (actor == nil || actor.Role != models.RoleSuperAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only superadmin may force a status change")
	}
	enrollment, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	from := enrollment.Status
	if from == req.Status {
		view := models.NewEnrollmentView(*enrollment)
		return &view, nil
	}
	if !from.CanTransition(req.Status) && !req.Force {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "status transition not allowed")
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Storage(err, "failed to update enrollment status")
	}
	enrollment.Status = req.Status

	action := models.AuditActionEnrollmentStatus
	if !from.CanTransition(req.Status) {
		action = models.AuditActionEnrollmentForceStatus
	}
	s.audit.Record(ctx, actor, action, "enrollment", id, map[string]interface{}{
		"from":   from,
		"to":     req.Status,
		"forced": req.Force,
		"reason": req.Reason,
	})
	s.logger.Info("enrollment status changed",
		zap.String("enrollment_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(req.Status)),
		zap.Bool("forced", action == models.AuditActionEnrollmentForceStatus),
	)
	view := models.NewEnrollmentView(*enrollment)
	return &view, nil
}

// RestoreSession returns one used session to an enrollment.
func (s *EnrollmentService) RestoreSession(ctx context.Context, id string, actor *models.JWTClaims) (*models.EnrollmentView, error) {
	enrollment, err := s.ledger.Restore(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, models.AuditActionLedgerRestore, "enrollment", id, map[string]interface{}{
		"used_count": enrollment.UsedCount,
	})
	view := models.NewEnrollmentView(*enrollment)
	return &view, nil
}

// Delete removes an enrollment that no booking references.
func (s *EnrollmentService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case err == sql.ErrNoRows:
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case errors.Is(err, repository.ErrReferenced):
			return appErrors.Clone(appErrors.ErrConflict, "enrollment has bookings")
		default:
			return appErrors.Storage(err, "failed to delete enrollment")
		}
	}
	s.audit.Record(ctx, actor, models.AuditActionEnrollmentDelete, "enrollment", id, nil)
	return nil
}

func (s *EnrollmentService) find(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Storage(err, "failed to load enrollment")
	}
	return enrollment, nil
}
