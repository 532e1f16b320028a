package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pawclass-api/internal/models"
)

const reconciliationColumns = "id, booking_id, enrollment_id, reason, source, created_at, resolved_at, resolved_by"

// ReconciliationRepository stores ledger soft failures for manual follow-up.
type ReconciliationRepository struct {
	db *sqlx.DB
}

// NewReconciliationRepository constructs the repository.
func NewReconciliationRepository(db *sqlx.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

// Create inserts a reconciliation record.
func (r *ReconciliationRepository) Create(ctx context.Context, rec *models.LedgerReconciliation) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO ledger_reconciliations (id, booking_id, enrollment_id, reason, source, created_at)
VALUES (:id, :booking_id, :enrollment_id, :reason, :source, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("create reconciliation: %w", err)
	}
	return nil
}

// FindByID loads a reconciliation record.
func (r *ReconciliationRepository) FindByID(ctx context.Context, id string) (*models.LedgerReconciliation, error) {
	var rec models.LedgerReconciliation
	if err := r.db.GetContext(ctx, &rec, "SELECT "+reconciliationColumns+" FROM ledger_reconciliations WHERE id = $1", id); err != nil {
		return nil, missing(err)
	}
	return &rec, nil
}

// List returns reconciliation records, oldest first.
func (r *ReconciliationRepository) List(ctx context.Context, filter models.ReconciliationFilter) ([]models.LedgerReconciliation, int, error) {
	where := ""
	if filter.OpenOnly {
		where = " WHERE resolved_at IS NULL"
	}
	p := models.NewPagination(filter.Page, filter.PageSize, 0)
	query := fmt.Sprintf("SELECT %s FROM ledger_reconciliations%s ORDER BY created_at ASC LIMIT %d OFFSET %d", reconciliationColumns, where, p.PageSize, (p.Page-1)*p.PageSize)
	var items []models.LedgerReconciliation
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, 0, fmt.Errorf("list reconciliations: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM ledger_reconciliations"+where); err != nil {
		return nil, 0, fmt.Errorf("count reconciliations: %w", err)
	}
	return items, total, nil
}

// Resolve marks an open record resolved. It returns sql.ErrNoRows when the
// record is missing or already resolved.
func (r *ReconciliationRepository) Resolve(ctx context.Context, id, resolvedBy string, at time.Time) (*models.LedgerReconciliation, error) {
	query := `UPDATE ledger_reconciliations SET resolved_at = $2, resolved_by = $3 WHERE id = $1 AND resolved_at IS NULL RETURNING ` + reconciliationColumns
	var rec models.LedgerReconciliation
	if err := r.db.GetContext(ctx, &rec, query, id, at, resolvedBy); err != nil {
		return nil, missing(err)
	}
	return &rec, nil
}
