package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/internal/repository"
	"github.com/noah-isme/pawclass-api/pkg/clock"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
	"github.com/noah-isme/pawclass-api/pkg/export"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.ScheduleDetail, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	CancelWithBookings(ctx context.Context, id string, at time.Time) (int, error)
}

type rosterReader interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.Booking, error)
}

type cachedScheduleList struct {
	Items      []models.ScheduleDetail `json:"items"`
	Pagination *models.Pagination      `json:"pagination"`
}

// ScheduleService is the session registry.
type ScheduleService struct {
	repo      scheduleRepository
	classes   classReader
	bookings  rosterReader
	cache     *CacheService
	audit     *AuditService
	studio    *clock.Studio
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs the schedule registry service.
func NewScheduleService(repo scheduleRepository, classes classReader, bookings rosterReader, cache *CacheService, audit *AuditService, studio *clock.Studio, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if studio == nil {
		studio = clock.NewStudio(clock.System{}, 9)
	}
	return &ScheduleService{repo: repo, classes: classes, bookings: bookings, cache: cache, audit: audit, studio: studio, validator: validate, logger: logger}
}

// List returns sessions with their availability. The second return value
// reports whether the page came from cache.
func (s *ScheduleService) List(ctx context.Context, q dto.ScheduleQuery) ([]models.ScheduleDetail, *models.Pagination, bool, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule filter")
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, nil, false, appErrors.Clone(appErrors.ErrValidation, "to must not precede from")
	}

	key := s.cache.Key(CacheGroupSchedules, q.ClassID, dateKey(q.From), dateKey(q.To), q.Status, strconv.Itoa(q.Page), strconv.Itoa(q.PageSize))
	var cached cachedScheduleList
	if s.cache.Get(ctx, key, &cached) {
		return cached.Items, cached.Pagination, true, nil
	}

	items, total, err := s.repo.List(ctx, models.ScheduleFilter{
		ClassID:  q.ClassID,
		From:     q.From,
		To:       q.To,
		Status:   models.ScheduleStatus(q.Status),
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		return nil, nil, false, appErrors.Storage(err, "failed to list schedules")
	}
	for i := range items {
		items[i].FillAvailability()
	}
	pagination := models.NewPagination(q.Page, q.PageSize, total)
	s.cache.Set(ctx, key, cachedScheduleList{Items: items, Pagination: pagination}, 0)
	return items, pagination, false, nil
}

func dateKey(d *models.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// Get returns one session.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Storage(err, "failed to load schedule")
	}
	detail.FillAvailability()
	return detail, nil
}

// Create adds a session. Group sessions need a positive capacity, taken from
// the request or the class default. Private sessions seat one.
func (s *ScheduleService) Create(ctx context.Context, req dto.CreateScheduleRequest) (*models.ScheduleDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if req.Date.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	start, end, err := normaliseSessionTimes(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Storage(err, "failed to load class")
	}

	schedule := &models.Schedule{
		ClassID:   class.ID,
		Date:      req.Date,
		StartTime: start,
		EndTime:   end,
		Type:      req.Type,
		Status:    models.ScheduleStatusScheduled,
	}
	if schedule.Type == "" {
		schedule.Type = class.Type
	}
	switch schedule.Type {
	case models.SessionTypeGroup:
		capacity := req.MaxStudents
		if capacity == nil {
			capacity = class.DefaultMaxStudents
		}
		if capacity == nil || *capacity <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "group sessions require max_students")
		}
		schedule.MaxStudents = capacity
	case models.SessionTypePrivate:
		if req.MaxStudents != nil && *req.MaxStudents != 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "private sessions seat one student")
		}
		schedule.MaxStudents = nil
	}

	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Storage(err, "failed to create schedule")
	}
	s.cache.InvalidateGroup(ctx, CacheGroupSchedules)
	s.logger.Info("schedule created", zap.String("schedule_id", schedule.ID), zap.String("class_id", schedule.ClassID), zap.String("date", schedule.Date.String()))

	detail := &models.ScheduleDetail{Schedule: *schedule, ClassName: class.Name, CancelHoursBefore: class.CancelHoursBefore}
	detail.FillAvailability()
	return detail, nil
}

func normaliseSessionTimes(startRaw, endRaw string) (string, string, error) {
	sh, sm, ss, err := clock.ParseWallTime(startRaw)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start_time")
	}
	eh, em, es, err := clock.ParseWallTime(endRaw)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end_time")
	}
	start := fmt.Sprintf("%02d:%02d:%02d", sh, sm, ss)
	end := fmt.Sprintf("%02d:%02d:%02d", eh, em, es)
	if start >= end {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return start, end, nil
}

// Cancel cancels a session and its confirmed bookings without deducting quota.
func (s *ScheduleService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ScheduleCancelResult, error) {
	n, err := s.repo.CancelWithBookings(ctx, id, s.studio.Now().UTC())
	if err != nil {
		switch {
		case err == sql.ErrNoRows:
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		case errors.Is(err, repository.ErrScheduleNotBookable):
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "schedule is not scheduled")
		default:
			return nil, appErrors.Storage(err, "failed to cancel schedule")
		}
	}
	s.cache.InvalidateGroup(ctx, CacheGroupSchedules)
	s.audit.Record(ctx, actor, models.AuditActionScheduleCancel, "schedule", id, map[string]interface{}{"bookings_cancelled": n})
	s.logger.Info("schedule cancelled", zap.String("schedule_id", id), zap.Int("bookings_cancelled", n))
	return &dto.ScheduleCancelResult{ScheduleID: id, BookingsCancelled: n}, nil
}

// Roster renders the session's bookings in the requested format.
func (s *ScheduleService) Roster(ctx context.Context, id, format string) (*dto.RosterFile, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported roster format")
	}
	renderer, err := export.RendererFor(parsed)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported roster format")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListBySchedule(ctx, id)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load roster")
	}

	data := export.Dataset{
		Title:   fmt.Sprintf("%s %s %s", detail.ClassName, detail.Date.String(), detail.StartTime),
		Headers: []string{"Booking ID", "Student ID", "Enrollment ID", "Status", "Booked At", "Late Cancellation"},
	}
	loc := s.studio.Location()
	for _, b := range bookings {
		data.Rows = append(data.Rows, []string{
			b.ID,
			b.StudentID,
			b.EnrollmentID,
			string(b.Status),
			b.BookedAt.In(loc).Format("2006-01-02 15:04"),
			strconv.FormatBool(b.LateCancellation),
		})
	}
	content, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return &dto.RosterFile{
		Filename:    fmt.Sprintf("roster-%s-%s.%s", detail.Date.String(), id, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}
