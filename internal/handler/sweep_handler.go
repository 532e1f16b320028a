package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/pkg/response"
)

type sweepRunner interface {
	Run(ctx context.Context) (*models.SweepSummary, error)
}

// SweepHandler triggers the auto-completion sweep.
type SweepHandler struct {
	sweeper sweepRunner
}

// NewSweepHandler constructs the handler.
func NewSweepHandler(sweeper sweepRunner) *SweepHandler {
	return &SweepHandler{sweeper: sweeper}
}

// Run godoc
// @Summary Complete past-due bookings
// @Description Authenticated by X-Cron-Secret or a bearer shared secret. Safe to call repeatedly.
// @Tags Internal
// @Produce json
// @Param X-Cron-Secret header string false "Shared secret"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /internal/sweeps/bookings [post]
func (h *SweepHandler) Run(c *gin.Context) {
	summary, err := h.sweeper.Run(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
