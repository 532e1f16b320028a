package models

import "time"

// ScheduleStatus represents a session's lifecycle.
type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
	ScheduleStatusCompleted ScheduleStatus = "completed"
)

// Schedule is one concrete session of a class. StartTime and EndTime are
// wall-clock "HH:MM:SS" in the studio timezone.
type Schedule struct {
	ID          string         `db:"id" json:"id"`
	ClassID     string         `db:"class_id" json:"class_id"`
	Date        Date           `db:"date" json:"date"`
	StartTime   string         `db:"start_time" json:"start_time"`
	EndTime     string         `db:"end_time" json:"end_time"`
	Type        SessionType    `db:"type" json:"type"`
	MaxStudents *int           `db:"max_students" json:"max_students,omitempty"`
	Status      ScheduleStatus `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Capacity returns the maximum number of non-cancelled bookings.
func (s Schedule) Capacity() int {
	if s.Type == SessionTypePrivate {
		return 1
	}
	if s.MaxStudents == nil {
		return 0
	}
	return *s.MaxStudents
}

// ScheduleDetail is a schedule joined with its class policy and booking count.
type ScheduleDetail struct {
	Schedule
	ClassName         string `db:"class_name" json:"class_name"`
	CancelHoursBefore int    `db:"cancel_hours_before" json:"cancel_hours_before"`
	BookedCount       int    `db:"booked_count" json:"booked_count"`
	Available         int    `db:"-" json:"available"`
}

// FillAvailability derives Available from capacity and booked count.
func (d *ScheduleDetail) FillAvailability() {
	avail := d.Capacity() - d.BookedCount
	if avail < 0 {
		avail = 0
	}
	d.Available = avail
}

// ScheduleFilter narrows schedule listings.
type ScheduleFilter struct {
	ClassID  string
	From     *Date
	To       *Date
	Status   ScheduleStatus
	Page     int
	PageSize int
}
