package models

import "time"

// SessionType distinguishes group sessions from one-on-one training.
type SessionType string

const (
	SessionTypeGroup   SessionType = "group"
	SessionTypePrivate SessionType = "private"
)

// Class is a training course. It owns the cancellation policy its sessions inherit.
type Class struct {
	ID                 string      `db:"id" json:"id"`
	Name               string      `db:"name" json:"name"`
	Description        *string     `db:"description" json:"description,omitempty"`
	Type               SessionType `db:"type" json:"type"`
	DefaultMaxStudents *int        `db:"default_max_students" json:"default_max_students,omitempty"`
	CancelHoursBefore  int         `db:"cancel_hours_before" json:"cancel_hours_before"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
}

// ClassFilter captures list criteria.
type ClassFilter struct {
	Type     SessionType
	Search   string
	Page     int
	PageSize int
}
