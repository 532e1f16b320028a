package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, req dto.CreateBookingRequest, actor *models.JWTClaims) (*models.Booking, error)
	Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.CancelResult, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.BookingDetail, error)
	List(ctx context.Context, q dto.BookingQuery, actor *models.JWTClaims) ([]models.BookingDetail, *models.Pagination, error)
}

// BookingHandler exposes the booking engine.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler builds a new handler.
func NewBookingHandler(service bookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// Create godoc
// @Summary Book a session
// @Description Students book for themselves. Staff must pass student_id.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid booking payload"))
		return
	}
	booking, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Cancel godoc
// @Summary Cancel a booking
// @Description Late cancellations consume one session. A failed deduction is reported in ledger_error while the cancellation stands.
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	result, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// List godoc
// @Summary List bookings
// @Tags Bookings
// @Produce json
// @Param student_id query string false "Student filter (staff only)"
// @Param schedule_id query string false "Schedule filter"
// @Param status query string false "confirmed, completed or cancelled"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	q := dto.BookingQuery{
		StudentID:  c.Query("student_id"),
		ScheduleID: c.Query("schedule_id"),
		Status:     c.Query("status"),
		Page:       page,
		PageSize:   size,
	}
	items, pagination, err := h.service.List(c.Request.Context(), q, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}
