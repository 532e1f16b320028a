package models

import "time"

// TicketTemplate is a reusable enrollment product (e.g. "10 sessions / 60 days").
type TicketTemplate struct {
	ID         string    `db:"id" json:"id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	Name       string    `db:"name" json:"name"`
	TotalCount int       `db:"total_count" json:"total_count"`
	ValidDays  int       `db:"valid_days" json:"valid_days"`
	Price      *int64    `db:"price" json:"price,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ValidityFrom returns the inclusive validity window for a ticket issued on day.
func (t TicketTemplate) ValidityFrom(day Date) (Date, Date) {
	return day, day.AddDays(t.ValidDays - 1)
}
