package models

import "time"

// Reconciliation sources.
const (
	ReconciliationSourceCancellation = "cancellation"
	ReconciliationSourceSweep        = "sweep"
)

// LedgerReconciliation records a booking whose quota deduction could not be applied.
type LedgerReconciliation struct {
	ID           string     `db:"id" json:"id"`
	BookingID    string     `db:"booking_id" json:"booking_id"`
	EnrollmentID string     `db:"enrollment_id" json:"enrollment_id"`
	Reason       string     `db:"reason" json:"reason"`
	Source       string     `db:"source" json:"source"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy   *string    `db:"resolved_by" json:"resolved_by,omitempty"`
}

// ReconciliationFilter narrows reconciliation listings.
type ReconciliationFilter struct {
	OpenOnly bool
	Page     int
	PageSize int
}
