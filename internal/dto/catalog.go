package dto

import "github.com/noah-isme/pawclass-api/internal/models"

// CreateClassRequest defines a class and its cancellation policy.
type CreateClassRequest struct {
	Name               string             `json:"name" validate:"required,max=120"`
	Description        *string            `json:"description,omitempty"`
	Type               models.SessionType `json:"type" validate:"required,oneof=group private"`
	DefaultMaxStudents *int               `json:"default_max_students,omitempty" validate:"omitempty,gt=0"`
	CancelHoursBefore  *int               `json:"cancel_hours_before,omitempty" validate:"omitempty,gte=0,lte=720"`
}

// CreateTicketTemplateRequest defines a reusable ticket product.
type CreateTicketTemplateRequest struct {
	ClassID    string `json:"class_id" validate:"required"`
	Name       string `json:"name" validate:"required,max=120"`
	TotalCount int    `json:"total_count" validate:"required,gt=0"`
	ValidDays  int    `json:"valid_days" validate:"required,gt=0"`
	Price      *int64 `json:"price,omitempty" validate:"omitempty,gte=0"`
}

// IssueTicketRequest issues a template to a student.
type IssueTicketRequest struct {
	StudentID string       `json:"student_id" validate:"required"`
	StartDate *models.Date `json:"start_date,omitempty"`
}
