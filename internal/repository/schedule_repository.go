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

const scheduleDetailSelect = `SELECT s.id, s.class_id, s.date, s.start_time, s.end_time, s.type, s.max_students, s.status, s.created_at, s.updated_at,
c.name AS class_name, c.cancel_hours_before,
(SELECT COUNT(*) FROM bookings b WHERE b.schedule_id = s.id AND b.status <> 'cancelled') AS booked_count
FROM schedules s JOIN classes c ON c.id = s.class_id`

// ScheduleRepository provides access to sessions.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs a schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns sessions with their class policy and live booking counts.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		where += fmt.Sprintf(" AND s.class_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where += fmt.Sprintf(" AND s.date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where += fmt.Sprintf(" AND s.date <= $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND s.status = $%d", len(args))
	}

	p := models.NewPagination(filter.Page, filter.PageSize, 0)
	query := fmt.Sprintf("%s%s ORDER BY s.date ASC, s.start_time ASC LIMIT %d OFFSET %d", scheduleDetailSelect, where, p.PageSize, (p.Page-1)*p.PageSize)
	var items []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}
	for i := range items {
		items[i].FillAvailability()
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM schedules s"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}
	return items, total, nil
}

// FindDetailByID returns one session joined with its class cancellation policy.
func (r *ScheduleRepository) FindDetailByID(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	var detail models.ScheduleDetail
	if err := r.db.GetContext(ctx, &detail, scheduleDetailSelect+" WHERE s.id = $1", id); err != nil {
		return nil, missing(err)
	}
	detail.FillAvailability()
	return &detail, nil
}

// Create inserts a session.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Status == "" {
		schedule.Status = models.ScheduleStatusScheduled
	}
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	const query = `INSERT INTO schedules (id, class_id, date, start_time, end_time, type, max_students, status, created_at, updated_at)
VALUES (:id, :class_id, :date, :start_time, :end_time, :type, :max_students, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// CancelWithBookings marks the session cancelled and cancels its confirmed
// bookings in one transaction. No quota is touched. It returns the number of
// bookings cancelled.
func (r *ScheduleRepository) CancelWithBookings(ctx context.Context, id string, at time.Time) (cancelled int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin schedule cancel transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status models.ScheduleStatus
	if err = tx.GetContext(ctx, &status, `SELECT status FROM schedules WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err = missing(err); err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("lock schedule: %w", err)
	}
	if status != models.ScheduleStatusScheduled {
		err = ErrScheduleNotBookable
		return 0, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE schedules SET status = 'cancelled', updated_at = $2 WHERE id = $1`, id, at); err != nil {
		return 0, fmt.Errorf("cancel schedule: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE bookings SET status = 'cancelled', cancelled_at = $2 WHERE schedule_id = $1 AND status = 'confirmed'`, id, at)
	if err != nil {
		return 0, fmt.Errorf("cancel schedule bookings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count cancelled bookings: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit schedule cancel: %w", err)
	}
	return int(n), nil
}
