package dto

// CreateBookingRequest books a session against an enrollment. StudentID is
// honoured only for staff booking on a student's behalf.
type CreateBookingRequest struct {
	ScheduleID   string `json:"schedule_id" validate:"required"`
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	StudentID    string `json:"student_id,omitempty"`
}

// BookingQuery filters booking listings.
type BookingQuery struct {
	StudentID  string
	ScheduleID string `validate:"omitempty,uuid"`
	Status     string `validate:"omitempty,oneof=confirmed completed cancelled"`
	Page       int
	PageSize   int
}
