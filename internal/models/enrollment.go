package models

import (
	"errors"
	"time"
)

// EnrollmentStatus represents the lifecycle of a ticket.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusExpired   EnrollmentStatus = "expired"
	EnrollmentStatusSuspended EnrollmentStatus = "suspended"
)

// Usage bound violations returned by NextUsage.
var (
	ErrUsageExceedsTotal = errors.New("used count would exceed total count")
	ErrUsageNegative     = errors.New("used count would drop below zero")
)

// Enrollment is a multi-use ticket entitling a student to a number of sessions
// of one class within a validity window.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	ClassID    string           `db:"class_id" json:"class_id"`
	TemplateID *string          `db:"template_id" json:"template_id,omitempty"`
	TotalCount int              `db:"total_count" json:"total_count"`
	UsedCount  int              `db:"used_count" json:"used_count"`
	ValidFrom  Date             `db:"valid_from" json:"valid_from"`
	ValidUntil Date             `db:"valid_until" json:"valid_until"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	Price      *int64           `db:"price" json:"price,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// Remaining returns the sessions left on the ticket.
func (e Enrollment) Remaining() int {
	if r := e.TotalCount - e.UsedCount; r > 0 {
		return r
	}
	return 0
}

// ValidOn reports whether day lies inside [ValidFrom, ValidUntil], inclusive.
func (e Enrollment) ValidOn(day Date) bool {
	return !day.Before(e.ValidFrom) && !day.After(e.ValidUntil)
}

// NextUsage returns the used count after applying delta, rejecting values
// outside [0, TotalCount].
func (e Enrollment) NextUsage(delta int) (int, error) {
	next := e.UsedCount + delta
	if next > e.TotalCount {
		return e.UsedCount, ErrUsageExceedsTotal
	}
	if next < 0 {
		return e.UsedCount, ErrUsageNegative
	}
	return next, nil
}

var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentStatusActive:    {EnrollmentStatusExpired, EnrollmentStatusSuspended},
	EnrollmentStatusSuspended: {EnrollmentStatusActive, EnrollmentStatusExpired},
}

// CanTransition reports whether from -> to is allowed without an override.
// Expired is terminal.
func (s EnrollmentStatus) CanTransition(to EnrollmentStatus) bool {
	for _, allowed := range enrollmentTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusExpired, EnrollmentStatusSuspended:
		return true
	}
	return false
}

// EnrollmentView decorates an enrollment with derived fields for responses.
type EnrollmentView struct {
	Enrollment
	Remaining int `json:"remaining"`
}

// NewEnrollmentView builds the response view.
func NewEnrollmentView(e Enrollment) EnrollmentView {
	return EnrollmentView{Enrollment: e, Remaining: e.Remaining()}
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	ClassID   string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
