package dto

import "github.com/noah-isme/pawclass-api/internal/models"

// CreateScheduleRequest creates one session. MaxStudents falls back to the
// class default for group sessions.
type CreateScheduleRequest struct {
	ClassID     string             `json:"class_id" validate:"required"`
	Date        models.Date        `json:"date"`
	StartTime   string             `json:"start_time" validate:"required"`
	EndTime     string             `json:"end_time" validate:"required"`
	Type        models.SessionType `json:"type" validate:"omitempty,oneof=group private"`
	MaxStudents *int               `json:"max_students,omitempty" validate:"omitempty,gt=0"`
}

// ScheduleQuery filters schedule listings.
type ScheduleQuery struct {
	ClassID  string `validate:"omitempty,uuid"`
	From     *models.Date
	To       *models.Date
	Status   string `validate:"omitempty,oneof=scheduled cancelled completed"`
	Page     int
	PageSize int
}

// ScheduleCancelResult reports a session cancellation.
type ScheduleCancelResult struct {
	ScheduleID        string `json:"schedule_id"`
	BookingsCancelled int    `json:"bookings_cancelled"`
}

// RosterFile is a rendered roster ready to download.
type RosterFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
