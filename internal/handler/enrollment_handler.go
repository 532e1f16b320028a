package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/pkg/response"
)

type enrollmentService interface {
	Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.EnrollmentView, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EnrollmentView, error)
	List(ctx context.Context, q dto.EnrollmentQuery) ([]models.EnrollmentView, *models.Pagination, error)
	ListMine(ctx context.Context, q dto.EnrollmentQuery, actor *models.JWTClaims) ([]models.EnrollmentView, *models.Pagination, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateEnrollmentStatusRequest, actor *models.JWTClaims) (*models.EnrollmentView, error)
	RestoreSession(ctx context.Context, id string, actor *models.JWTClaims) (*models.EnrollmentView, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// EnrollmentHandler manages tickets.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

func enrollmentQuery(c *gin.Context) dto.EnrollmentQuery {
	page, size := pageParams(c)
	return dto.EnrollmentQuery{
		StudentID: c.Query("student_id"),
		ClassID:   c.Query("class_id"),
		Status:    c.Query("status"),
		Page:      page,
		PageSize:  size,
	}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param student_id query string false "Student filter"
// @Param class_id query string false "Class filter"
// @Param status query string false "active, expired or suspended"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	items, pagination, err := h.service.List(c.Request.Context(), enrollmentQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Mine godoc
// @Summary List my enrollments
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/enrollments [get]
func (h *EnrollmentHandler) Mine(c *gin.Context) {
	items, pagination, err := h.service.ListMine(c.Request.Context(), enrollmentQuery(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get an enrollment with its remaining sessions
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Issue an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req dto.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid enrollment payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateStatus godoc
// @Summary Change enrollment status
// @Description Forward-only unless a SUPERADMIN passes force=true.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.UpdateEnrollmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [patch]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateEnrollmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid status payload"))
		return
	}
	item, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Restore godoc
// @Summary Return one used session to an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/restore [post]
func (h *EnrollmentHandler) Restore(c *gin.Context) {
	item, err := h.service.RestoreSession(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete an enrollment without bookings
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
