package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/pkg/response"
)

type reconciliationService interface {
	List(ctx context.Context, q dto.ReconciliationQuery) ([]models.LedgerReconciliation, *models.Pagination, error)
	Resolve(ctx context.Context, id string, req dto.ResolveReconciliationRequest, actor *models.JWTClaims) (*models.LedgerReconciliation, error)
}

// ReconciliationHandler exposes ledger soft failures to administrators.
type ReconciliationHandler struct {
	service reconciliationService
}

// NewReconciliationHandler constructs the handler.
func NewReconciliationHandler(service reconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{service: service}
}

// List godoc
// @Summary List ledger reconciliations
// @Tags Reconciliations
// @Produce json
// @Param open query bool false "Only unresolved records (default true)"
// @Success 200 {object} response.Envelope
// @Router /reconciliations [get]
func (h *ReconciliationHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	q := dto.ReconciliationQuery{OpenOnly: c.DefaultQuery("open", "true") != "false", Page: page, PageSize: size}
	items, pagination, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Resolve godoc
// @Summary Resolve a ledger reconciliation
// @Tags Reconciliations
// @Accept json
// @Produce json
// @Param id path string true "Reconciliation ID"
// @Param payload body dto.ResolveReconciliationRequest false "Resolution note"
// @Success 200 {object} response.Envelope
// @Router /reconciliations/{id}/resolve [post]
func (h *ReconciliationHandler) Resolve(c *gin.Context) {
	var req dto.ResolveReconciliationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, invalidPayload(err, "invalid resolve payload"))
			return
		}
	}
	item, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
