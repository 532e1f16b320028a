package dto

// ResolveReconciliationRequest closes a reconciliation record.
type ResolveReconciliationRequest struct {
	Note string `json:"note,omitempty" validate:"max=500"`
}

// ReconciliationQuery filters reconciliation listings.
type ReconciliationQuery struct {
	OpenOnly bool
	Page     int
	PageSize int
}
