package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pawclass-api/internal/models"
)

const bookingColumns = "id, schedule_id, student_id, enrollment_id, status, booked_at, cancelled_at, completed_at, late_cancellation"

const bookingDetailSelect = `SELECT b.id, b.schedule_id, b.student_id, b.enrollment_id, b.status, b.booked_at, b.cancelled_at, b.completed_at, b.late_cancellation,
s.class_id, c.name AS class_name, s.date, s.start_time, s.end_time
FROM bookings b JOIN schedules s ON s.id = b.schedule_id JOIN classes c ON c.id = s.class_id`

// CompletionResult describes what CompleteWithUsage changed.
type CompletionResult struct {
	Completed    bool
	EnrollmentID string
	Deducted     bool
	UsedCount    int
	TotalCount   int
}

// BookingRepository persists bookings and the transactions that span them.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// FindByID loads a booking.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	if err := r.db.GetContext(ctx, &b, "SELECT "+bookingColumns+" FROM bookings WHERE id = $1", id); err != nil {
		return nil, missing(err)
	}
	return &b, nil
}

// FindDetailByID loads a booking joined with its session.
func (r *BookingRepository) FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error) {
	var d models.BookingDetail
	if err := r.db.GetContext(ctx, &d, bookingDetailSelect+" WHERE b.id = $1", id); err != nil {
		return nil, missing(err)
	}
	return &d, nil
}

// List returns bookings matching the filter, newest session first.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		where += fmt.Sprintf(" AND b.student_id = $%d", len(args))
	}
	if filter.ScheduleID != "" {
		args = append(args, filter.ScheduleID)
		where += fmt.Sprintf(" AND b.schedule_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND b.status = $%d", len(args))
	}

	p := models.NewPagination(filter.Page, filter.PageSize, 0)
	query := fmt.Sprintf("%s%s ORDER BY s.date DESC, s.start_time DESC, b.id LIMIT %d OFFSET %d", bookingDetailSelect, where, p.PageSize, (p.Page-1)*p.PageSize)
	var items []models.BookingDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM bookings b"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return items, total, nil
}

// ListBySchedule returns every booking of a session in booking order.
func (r *BookingRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.Booking, error) {
	var items []models.Booking
	query := "SELECT " + bookingColumns + " FROM bookings WHERE schedule_id = $1 ORDER BY booked_at ASC"
	if err := r.db.SelectContext(ctx, &items, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule bookings: %w", err)
	}
	return items, nil
}

// CreateAtomic inserts a confirmed booking after re-checking the session under a
// row lock. Concurrent requests for the same session serialize on that lock.
func (r *BookingRepository) CreateAtomic(ctx context.Context, booking *models.Booking) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked models.Schedule
	const lockQuery = `SELECT id, type, max_students, status FROM schedules WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &locked, lockQuery, booking.ScheduleID); err != nil {
		if err = missing(err); err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock schedule: %w", err)
	}
	if locked.Status != models.ScheduleStatusScheduled {
		err = ErrScheduleNotBookable
		return err
	}

	var counts struct {
		Own   int `db:"own"`
		Total int `db:"total"`
	}
	const countQuery = `SELECT COUNT(*) FILTER (WHERE student_id = $2) AS own, COUNT(*) AS total FROM bookings WHERE schedule_id = $1 AND status <> 'cancelled'`
	if err = tx.GetContext(ctx, &counts, countQuery, booking.ScheduleID, booking.StudentID); err != nil {
		return fmt.Errorf("count schedule bookings: %w", err)
	}
	if counts.Own > 0 {
		err = ErrDuplicateBooking
		return err
	}
	if counts.Total >= locked.Capacity() {
		err = ErrCapacityExceeded
		return err
	}

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.Status = models.BookingStatusConfirmed
	if booking.BookedAt.IsZero() {
		booking.BookedAt = time.Now().UTC()
	}
	const insertQuery = `INSERT INTO bookings (id, schedule_id, student_id, enrollment_id, status, booked_at, late_cancellation)
VALUES ($1, $2, $3, $4, $5, $6, FALSE)`
	if _, err = tx.ExecContext(ctx, insertQuery, booking.ID, booking.ScheduleID, booking.StudentID, booking.EnrollmentID, booking.Status, booking.BookedAt); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicateBooking
			return err
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

// MarkCancelled moves a confirmed booking to cancelled. It returns
// sql.ErrNoRows when the booking is missing or no longer confirmed.
func (r *BookingRepository) MarkCancelled(ctx context.Context, id string, at time.Time, late bool) (*models.Booking, error) {
	query := `UPDATE bookings SET status = 'cancelled', cancelled_at = $2, late_cancellation = $3
WHERE id = $1 AND status = 'confirmed' RETURNING ` + bookingColumns
	var b models.Booking
	if err := r.db.GetContext(ctx, &b, query, id, at, late); err != nil {
		if err = missing(err); err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	return &b, nil
}

// ListDueForCompletion returns confirmed bookings whose session ended before
// the given studio date and wall time. Results are keyed by id so callers can
// page with afterID.
func (r *BookingRepository) ListDueForCompletion(ctx context.Context, today models.Date, nowWall, afterID string, limit int) ([]models.Booking, error) {
	const query = `SELECT b.id, b.schedule_id, b.student_id, b.enrollment_id, b.status, b.booked_at, b.cancelled_at, b.completed_at, b.late_cancellation
FROM bookings b JOIN schedules s ON s.id = b.schedule_id
WHERE b.status = 'confirmed' AND (s.date < $1 OR (s.date = $1 AND s.end_time < $2))
AND ($3::uuid IS NULL OR b.id > $3::uuid)
ORDER BY b.id LIMIT $4`
	var cursor interface{}
	if afterID != "" {
		cursor = afterID
	}
	var items []models.Booking
	if err := r.db.SelectContext(ctx, &items, query, today, nowWall, cursor, limit); err != nil {
		return nil, fmt.Errorf("list bookings due for completion: %w", err)
	}
	return items, nil
}

// CompleteWithUsage completes a confirmed booking and deducts one session from
// its enrollment in a single transaction. A booking that is no longer confirmed
// yields Completed=false. An enrollment already at its total is left untouched
// and the result reports Deducted=false.
func (r *BookingRepository) CompleteWithUsage(ctx context.Context, bookingID string, at time.Time) (result CompletionResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin completion transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const completeQuery = `UPDATE bookings SET status = 'completed', completed_at = $2 WHERE id = $1 AND status = 'confirmed' RETURNING enrollment_id`
	if err = tx.GetContext(ctx, &result.EnrollmentID, completeQuery, bookingID, at); err != nil {
		if err == sql.ErrNoRows {
			_ = tx.Rollback()
			return result, nil
		}
		return result, fmt.Errorf("complete booking: %w", err)
	}
	result.Completed = true

	var usage struct {
		Used  int `db:"used_count"`
		Total int `db:"total_count"`
	}
	const lockQuery = `SELECT used_count, total_count FROM enrollments WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &usage, lockQuery, result.EnrollmentID); err != nil {
		return CompletionResult{}, fmt.Errorf("lock enrollment: %w", err)
	}
	result.UsedCount, result.TotalCount = usage.Used, usage.Total

	if usage.Used < usage.Total {
		const casQuery = `UPDATE enrollments SET used_count = $3, updated_at = $4 WHERE id = $1 AND used_count = $2`
		res, execErr := tx.ExecContext(ctx, casQuery, result.EnrollmentID, usage.Used, usage.Used+1, at)
		if execErr != nil {
			err = fmt.Errorf("deduct enrollment usage: %w", execErr)
			return CompletionResult{}, err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			err = ErrUsageConflict
			return CompletionResult{}, err
		}
		result.Deducted = true
		result.UsedCount = usage.Used + 1
	}

	if err = tx.Commit(); err != nil {
		return CompletionResult{}, fmt.Errorf("commit completion: %w", err)
	}
	return result, nil
}
