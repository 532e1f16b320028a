package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/pkg/response"
)

type ticketTemplateService interface {
	List(ctx context.Context, classID string) ([]models.TicketTemplate, error)
	Create(ctx context.Context, req dto.CreateTicketTemplateRequest) (*models.TicketTemplate, error)
	Issue(ctx context.Context, templateID string, req dto.IssueTicketRequest) (*models.EnrollmentView, error)
}

// TicketTemplateHandler manages ticket products.
type TicketTemplateHandler struct {
	service ticketTemplateService
}

// NewTicketTemplateHandler constructs the handler.
func NewTicketTemplateHandler(service ticketTemplateService) *TicketTemplateHandler {
	return &TicketTemplateHandler{service: service}
}

// List godoc
// @Summary List ticket templates
// @Tags TicketTemplates
// @Produce json
// @Param class_id query string false "Class filter"
// @Success 200 {object} response.Envelope
// @Router /ticket-templates [get]
func (h *TicketTemplateHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), c.Query("class_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Create a ticket template
// @Tags TicketTemplates
// @Accept json
// @Produce json
// @Param payload body dto.CreateTicketTemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Router /ticket-templates [post]
func (h *TicketTemplateHandler) Create(c *gin.Context) {
	var req dto.CreateTicketTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid ticket template payload"))
		return
	}
	tpl, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tpl)
}

// Issue godoc
// @Summary Issue a template to a student
// @Tags TicketTemplates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body dto.IssueTicketRequest true "Issue payload"
// @Success 201 {object} response.Envelope
// @Router /ticket-templates/{id}/issue [post]
func (h *TicketTemplateHandler) Issue(c *gin.Context) {
	var req dto.IssueTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid issue payload"))
		return
	}
	item, err := h.service.Issue(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}
