package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/internal/repository"
	"github.com/noah-isme/pawclass-api/pkg/clock"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
	"github.com/noah-isme/pawclass-api/pkg/observability"
)

type bookingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error)
	CreateAtomic(ctx context.Context, booking *models.Booking) error
	MarkCancelled(ctx context.Context, id string, at time.Time, late bool) (*models.Booking, error)
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type scheduleReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.ScheduleDetail, error)
}

type usageLedger interface {
	Consume(ctx context.Context, enrollmentID string) (*models.Enrollment, error)
}

type reconciliationSink interface {
	Enqueue(ctx context.Context, rec models.LedgerReconciliation) error
}

// BookingService implements booking creation and cancellation.
type BookingService struct {
	bookings    bookingRepository
	enrollments enrollmentReader
	schedules   scheduleReader
	ledger      usageLedger
	reconciler  reconciliationSink
	studio      *clock.Studio
	metrics     *MetricsService
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewBookingService constructs the booking engine.
func NewBookingService(
	bookings bookingRepository,
	enrollments enrollmentReader,
	schedules scheduleReader,
	ledger usageLedger,
	reconciler reconciliationSink,
	studio *clock.Studio,
	metrics *MetricsService,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if studio == nil {
		studio = clock.NewStudio(clock.System{}, 9)
	}
	return &BookingService{
		bookings:    bookings,
		enrollments: enrollments,
		schedules:   schedules,
		ledger:      ledger,
		reconciler:  reconciler,
		studio:      studio,
		metrics:     metrics,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// Create books a session. Preconditions are checked in a fixed order and the
// first failure is returned. Quota is not deducted at booking time.
func (s *BookingService) Create(ctx context.Context, req dto.CreateBookingRequest, actor *models.JWTClaims) (booking *models.Booking, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = appErrors.FromError(err).Code
		}
		s.metrics.RecordBookingCreated(result)
	}()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	studentID, err := s.resolveStudent(req, actor)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Storage(err, "failed to load enrollment")
	}
	if enrollment.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment not active")
	}
	if enrollment.Remaining() <= 0 {
		return nil, appErrors.ErrQuotaExhausted
	}
	if !enrollment.ValidOn(models.NewDate(s.studio.Now())) {
		return nil, appErrors.ErrOutOfValidity
	}

	schedule, err := s.schedules.FindDetailByID(ctx, req.ScheduleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Storage(err, "failed to load schedule")
	}
	if schedule.Status != models.ScheduleStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "schedule not open for booking")
	}
	if schedule.ClassID != enrollment.ClassID {
		return nil, appErrors.ErrMismatch
	}

	booking = &models.Booking{
		ScheduleID:   schedule.ID,
		StudentID:    studentID,
		EnrollmentID: enrollment.ID,
		BookedAt:     s.studio.Now().UTC(),
	}
	if err := s.bookings.CreateAtomic(ctx, booking); err != nil {
		return nil, mapCreateError(err)
	}

	s.cache.InvalidateGroup(ctx, CacheGroupSchedules)
	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("schedule_id", booking.ScheduleID),
		zap.String("student_id", booking.StudentID),
		zap.String("enrollment_id", booking.EnrollmentID),
	)
	return booking, nil
}

func (s *BookingService) resolveStudent(req dto.CreateBookingRequest, actor *models.JWTClaims) (string, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	switch {
	case actor.Role == models.RoleStudent:
		if req.StudentID != "" && req.StudentID != actor.UserID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "students can only book for themselves")
		}
		return actor.UserID, nil
	case actor.Role.IsStaff():
		if req.StudentID == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "student_id is required when booking on behalf of a student")
		}
		return req.StudentID, nil
	default:
		return "", appErrors.ErrForbidden
	}
}

func mapCreateError(err error) error {
	switch {
	case err == sql.ErrNoRows:
		return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	case errors.Is(err, repository.ErrScheduleNotBookable):
		return appErrors.Clone(appErrors.ErrInvalidState, "schedule not open for booking")
	case errors.Is(err, repository.ErrDuplicateBooking):
		return appErrors.ErrDuplicateBooking
	case errors.Is(err, repository.ErrCapacityExceeded):
		return appErrors.ErrCapacityExceeded
	default:
		return appErrors.Storage(err, "failed to create booking")
	}
}

// Cancel cancels a booking. A cancellation after the class deadline consumes
// one session; if that deduction fails the cancellation still stands and the
// result carries the ledger error.
func (s *BookingService) Cancel(ctx context.Context, bookingID string, actor *models.JWTClaims) (*models.CancelResult, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Storage(err, "failed to load booking")
	}
	if err := authorizeBookingAccess(booking, actor); err != nil {
		return nil, err
	}
	if err := terminalStatusError(booking.Status); err != nil {
		return nil, err
	}

	schedule, err := s.schedules.FindDetailByID(ctx, booking.ScheduleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Storage(err, "failed to load schedule")
	}
	start, err := s.studio.At(schedule.Date.Time, schedule.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid session start time")
	}
	now := s.studio.Now()
	late := IsLateCancellation(now, start, schedule.CancelHoursBefore)

	cancelled, err := s.bookings.MarkCancelled(ctx, booking.ID, now.UTC(), late)
	if err != nil {
		if err != sql.ErrNoRows {
			return nil, appErrors.Storage(err, "failed to cancel booking")
		}
		return nil, s.explainLostCancel(ctx, booking.ID)
	}
	s.cache.InvalidateGroup(ctx, CacheGroupSchedules)

	result := &models.CancelResult{Booking: cancelled, Cancelled: true, LateCancellation: late}
	if late {
		if _, ledgerErr := s.ledger.Consume(ctx, cancelled.EnrollmentID); ledgerErr != nil {
			result.LedgerError = ledgerErr.Error()
			s.recordSoftFailure(ctx, cancelled, ledgerErr)
		} else {
			result.Deducted = true
		}
	}

	s.metrics.RecordCancellation(result.LateCancellation, result.Deducted)
	s.logger.Info("booking cancelled",
		zap.String("booking_id", cancelled.ID),
		zap.Bool("late_cancellation", result.LateCancellation),
		zap.Bool("deducted", result.Deducted),
	)
	return result, nil
}

// IsLateCancellation reports whether now is strictly past the cancellation
// deadline of a session starting at start.
func IsLateCancellation(now, start time.Time, cancelHoursBefore int) bool {
	deadline := start.Add(-time.Duration(cancelHoursBefore) * time.Hour)
	return now.After(deadline)
}

// explainLostCancel re-reads a booking whose conditional update matched nothing
// and reports the state another writer moved it to.
func (s *BookingService) explainLostCancel(ctx context.Context, bookingID string) error {
	current, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return appErrors.Storage(err, "failed to reload booking")
	}
	if err := terminalStatusError(current.Status); err != nil {
		return err
	}
	return appErrors.Clone(appErrors.ErrStorage, "booking changed concurrently, please retry")
}

func (s *BookingService) recordSoftFailure(ctx context.Context, booking *models.Booking, ledgerErr error) {
	s.logger.Warn("late cancellation deduction failed",
		zap.String("booking_id", booking.ID),
		zap.String("enrollment_id", booking.EnrollmentID),
		zap.String("reason", ledgerErr.Error()),
	)
	observability.CaptureWithTags(ledgerErr, map[string]string{
		"booking_id":    booking.ID,
		"enrollment_id": booking.EnrollmentID,
		"source":        models.ReconciliationSourceCancellation,
	})
	if s.reconciler == nil {
		return
	}
	rec := models.LedgerReconciliation{
		BookingID:    booking.ID,
		EnrollmentID: booking.EnrollmentID,
		Reason:       ledgerErr.Error(),
		Source:       models.ReconciliationSourceCancellation,
	}
	if err := s.reconciler.Enqueue(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("failed to record reconciliation", zap.String("booking_id", booking.ID), zap.Error(err))
	}
}

// Get returns one booking. Students may only read their own.
func (s *BookingService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.BookingDetail, error) {
	detail, err := s.bookings.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Storage(err, "failed to load booking")
	}
	if err := authorizeBookingAccess(&detail.Booking, actor); err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns bookings. Students are always scoped to their own.
func (s *BookingService) List(ctx context.Context, q dto.BookingQuery, actor *models.JWTClaims) ([]models.BookingDetail, *models.Pagination, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking filter")
	}
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.BookingFilter{
		StudentID:  q.StudentID,
		ScheduleID: q.ScheduleID,
		Status:     models.BookingStatus(q.Status),
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.UserID
	}
	items, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list bookings")
	}
	return items, models.NewPagination(q.Page, q.PageSize, total), nil
}

func authorizeBookingAccess(booking *models.Booking, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent && booking.StudentID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another student")
	}
	return nil
}

func terminalStatusError(status models.BookingStatus) error {
	switch status {
	case models.BookingStatusCancelled:
		return appErrors.ErrAlreadyCancelled
	case models.BookingStatusCompleted:
		return appErrors.ErrAlreadyCompleted
	}
	return nil
}
