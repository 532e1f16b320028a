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

const enrollmentColumns = "id, student_id, class_id, template_id, total_count, used_count, valid_from, valid_until, status, price, created_at, updated_at"

// EnrollmentRepository handles persistence of enrollment tickets.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs a new repository instance.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments matching the filter with a total count.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	base := "FROM enrollments WHERE 1=1"
	var args []interface{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		base += fmt.Sprintf(" AND student_id = $%d", len(args))
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		base += fmt.Sprintf(" AND class_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		base += fmt.Sprintf(" AND status = $%d", len(args))
	}

	p := models.NewPagination(filter.Page, filter.PageSize, 0)
	query := fmt.Sprintf("SELECT %s %s ORDER BY valid_until DESC, id LIMIT %d OFFSET %d", enrollmentColumns, base, p.PageSize, (p.Page-1)*p.PageSize)
	var items []models.Enrollment
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return items, total, nil
}

// FindByID loads an enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := r.db.GetContext(ctx, &e, "SELECT "+enrollmentColumns+" FROM enrollments WHERE id = $1", id); err != nil {
		return nil, missing(err)
	}
	return &e, nil
}

// Create inserts an enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = models.EnrollmentStatusActive
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	const query = `INSERT INTO enrollments (id, student_id, class_id, template_id, total_count, used_count, valid_from, valid_until, status, price, created_at, updated_at)
VALUES (:id, :student_id, :class_id, :template_id, :total_count, :used_count, :valid_from, :valid_until, :status, :price, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus sets the enrollment status.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		if err = missing(err); err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("update enrollment status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CompareAndSetUsage writes next only if used_count still equals prev.
// It returns ErrUsageConflict when another writer got there first.
func (r *EnrollmentRepository) CompareAndSetUsage(ctx context.Context, id string, prev, next int) error {
	const query = `UPDATE enrollments SET used_count = $3, updated_at = $4 WHERE id = $1 AND used_count = $2`
	res, err := r.db.ExecContext(ctx, query, id, prev, next, time.Now().UTC())
	if err != nil {
		if isCheckViolation(err) {
			return ErrUsageConflict
		}
		return fmt.Errorf("compare and set enrollment usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("compare and set enrollment usage: %w", err)
	}
	if n == 0 {
		return ErrUsageConflict
	}
	return nil
}

// ExpireLapsed flips active enrollments whose window ended before today.
func (r *EnrollmentRepository) ExpireLapsed(ctx context.Context, today models.Date) (int, error) {
	const query = `UPDATE enrollments SET status = 'expired', updated_at = $2 WHERE status = 'active' AND valid_until < $1`
	res, err := r.db.ExecContext(ctx, query, today, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire lapsed enrollments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire lapsed enrollments: %w", err)
	}
	return int(n), nil
}

// Delete removes an enrollment. Returns ErrReferenced when bookings still point at it.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrReferenced
		}
		if err = missing(err); err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
