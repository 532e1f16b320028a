package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
}

// ClassService manages training classes and their cancellation policy.
type ClassService struct {
	repo                     classRepository
	defaultCancelHoursBefore int
	validator                *validator.Validate
	logger                   *zap.Logger
}

// NewClassService constructs a class service. Classes created without an
// explicit policy use defaultCancelHoursBefore.
func NewClassService(repo classRepository, defaultCancelHoursBefore int, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultCancelHoursBefore < 0 {
		defaultCancelHoursBefore = 24
	}
	return &ClassService{repo: repo, defaultCancelHoursBefore: defaultCancelHoursBefore, validator: validate, logger: logger}
}

// List returns classes.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list classes")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Storage(err, "failed to load class")
	}
	return class, nil
}

// Create defines a class.
func (s *ClassService) Create(ctx context.Context, req dto.CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if req.Type == models.SessionTypePrivate && req.DefaultMaxStudents != nil && *req.DefaultMaxStudents != 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "private classes seat one student")
	}
	class := &models.Class{
		Name:               req.Name,
		Description:        req.Description,
		Type:               req.Type,
		DefaultMaxStudents: req.DefaultMaxStudents,
		CancelHoursBefore:  s.defaultCancelHoursBefore,
	}
	if req.CancelHoursBefore != nil {
		class.CancelHoursBefore = *req.CancelHoursBefore
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Storage(err, "failed to create class")
	}
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.Int("cancel_hours_before", class.CancelHoursBefore))
	return class, nil
}
