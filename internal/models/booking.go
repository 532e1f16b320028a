package models

import "time"

// BookingStatus represents the booking lifecycle. Completed and cancelled are terminal.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is one student's reservation of one session against one enrollment.
type Booking struct {
	ID               string        `db:"id" json:"id"`
	ScheduleID       string        `db:"schedule_id" json:"schedule_id"`
	StudentID        string        `db:"student_id" json:"student_id"`
	EnrollmentID     string        `db:"enrollment_id" json:"enrollment_id"`
	Status           BookingStatus `db:"status" json:"status"`
	BookedAt         time.Time     `db:"booked_at" json:"booked_at"`
	CancelledAt      *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CompletedAt      *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	LateCancellation bool          `db:"late_cancellation" json:"late_cancellation"`
}

// BookingDetail joins a booking with its session for listings.
type BookingDetail struct {
	Booking
	ClassID   string `db:"class_id" json:"class_id"`
	ClassName string `db:"class_name" json:"class_name"`
	Date      Date   `db:"date" json:"date"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	StudentID  string
	ScheduleID string
	Status     BookingStatus
	Page       int
	PageSize   int
}

// CancelResult reports the two phases of a cancellation independently: the
// status change and the optional late-cancellation deduction.
type CancelResult struct {
	Booking          *Booking `json:"booking"`
	Cancelled        bool     `json:"cancelled"`
	LateCancellation bool     `json:"late_cancellation"`
	Deducted         bool     `json:"deducted"`
	LedgerError      string   `json:"ledger_error,omitempty"`
}

// Sweep outcomes per booking.
const (
	SweepOutcomeCompleted = "completed"
	SweepOutcomeSkipped   = "skipped"
	SweepOutcomeFailed    = "failed"
)

// SweepItem records what the sweeper did with one booking.
type SweepItem struct {
	BookingID    string `json:"booking_id"`
	EnrollmentID string `json:"enrollment_id"`
	Outcome      string `json:"outcome"`
	Deducted     bool   `json:"deducted"`
	Reason       string `json:"reason,omitempty"`
}

// SweepSummary is returned by one sweeper run.
type SweepSummary struct {
	Completed          int         `json:"completed"`
	Failed             int         `json:"failed"`
	Skipped            int         `json:"skipped"`
	ExpiredEnrollments int         `json:"expired_enrollments"`
	StartedAt          time.Time   `json:"started_at"`
	FinishedAt         time.Time   `json:"finished_at"`
	Results            []SweepItem `json:"results"`
}

// Record appends item and bumps the matching counter.
func (s *SweepSummary) Record(item SweepItem) {
	switch item.Outcome {
	case SweepOutcomeCompleted:
		s.Completed++
	case SweepOutcomeSkipped:
		s.Skipped++
	case SweepOutcomeFailed:
		s.Failed++
	}
	s.Results = append(s.Results, item)
}
