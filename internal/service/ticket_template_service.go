package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/pkg/clock"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
)

type ticketTemplateRepository interface {
	List(ctx context.Context, classID string) ([]models.TicketTemplate, error)
	FindByID(ctx context.Context, id string) (*models.TicketTemplate, error)
	Create(ctx context.Context, tpl *models.TicketTemplate) error
}

type enrollmentCreator interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
}

// TicketTemplateService manages ticket products and issues them to students.
type TicketTemplateService struct {
	repo        ticketTemplateRepository
	classes     classReader
	enrollments enrollmentCreator
	studio      *clock.Studio
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTicketTemplateService constructs a TicketTemplateService.
func NewTicketTemplateService(repo ticketTemplateRepository, classes classReader, enrollments enrollmentCreator, studio *clock.Studio, validate *validator.Validate, logger *zap.Logger) *TicketTemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if studio == nil {
		studio = clock.NewStudio(clock.System{}, 9)
	}
	return &TicketTemplateService{repo: repo, classes: classes, enrollments: enrollments, studio: studio, validator: validate, logger: logger}
}

// List returns templates, optionally for one class.
func (s *TicketTemplateService) List(ctx context.Context, classID string) ([]models.TicketTemplate, error) {
	items, err := s.repo.List(ctx, classID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list ticket templates")
	}
	return items, nil
}

// Create defines a template.
func (s *TicketTemplateService) Create(ctx context.Context, req dto.CreateTicketTemplateRequest) (*models.TicketTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ticket template payload")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Storage(err, "failed to load class")
	}
	tpl := &models.TicketTemplate{
		ClassID:    req.ClassID,
		Name:       req.Name,
		TotalCount: req.TotalCount,
		ValidDays:  req.ValidDays,
		Price:      req.Price,
	}
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, appErrors.Storage(err, "failed to create ticket template")
	}
	return tpl, nil
}

// Issue creates an enrollment from a template. The validity window starts on
// StartDate, or today in studio time when omitted.
func (s *TicketTemplateService) Issue(ctx context.Context, templateID string, req dto.IssueTicketRequest) (*models.EnrollmentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid issue payload")
	}
	tpl, err := s.repo.FindByID(ctx, templateID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ticket template not found")
		}
		return nil, appErrors.Storage(err, "failed to load ticket template")
	}

	start := models.NewDate(s.studio.Now())
	if req.StartDate != nil && !req.StartDate.IsZero() {
		start = *req.StartDate
	}
	from, until := tpl.ValidityFrom(start)
	templateRef := tpl.ID
	enrollment := &models.Enrollment{
		StudentID:  req.StudentID,
		ClassID:    tpl.ClassID,
		TemplateID: &templateRef,
		TotalCount: tpl.TotalCount,
		ValidFrom:  from,
		ValidUntil: until,
		Status:     models.EnrollmentStatusActive,
		Price:      tpl.Price,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Storage(err, "failed to issue ticket")
	}
	s.logger.Info("ticket issued",
		zap.String("template_id", tpl.ID),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
	)
	view := models.NewEnrollmentView(*enrollment)
	return &view, nil
}
