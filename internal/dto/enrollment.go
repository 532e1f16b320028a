package dto

import "github.com/noah-isme/pawclass-api/internal/models"

// CreateEnrollmentRequest issues an ad-hoc ticket to a student.
type CreateEnrollmentRequest struct {
	StudentID  string      `json:"student_id" validate:"required"`
	ClassID    string      `json:"class_id" validate:"required"`
	TotalCount int         `json:"total_count" validate:"required,gt=0"`
	ValidFrom  models.Date `json:"valid_from"`
	ValidUntil models.Date `json:"valid_until"`
	Price      *int64      `json:"price,omitempty" validate:"omitempty,gte=0"`
}

// UpdateEnrollmentStatusRequest changes an enrollment's status. Force skips
// the transition policy and is reserved for SUPERADMIN.
type UpdateEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=active expired suspended"`
	Force  bool                    `json:"force"`
	Reason string                  `json:"reason,omitempty" validate:"max=500"`
}

// EnrollmentQuery filters enrollment listings.
type EnrollmentQuery struct {
	StudentID string
	ClassID   string `validate:"omitempty,uuid"`
	Status    string `validate:"omitempty,oneof=active expired suspended"`
	Page      int
	PageSize  int
}
