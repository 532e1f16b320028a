package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/pawclass-api/internal/models"
)

const templateColumns = "id, class_id, name, total_count, valid_days, price, created_at"

// TicketTemplateRepository persists enrollment templates.
type TicketTemplateRepository struct {
	db *sqlx.DB
}

// NewTicketTemplateRepository constructs the repository.
func NewTicketTemplateRepository(db *sqlx.DB) *TicketTemplateRepository {
	return &TicketTemplateRepository{db: db}
}

// List returns templates, optionally restricted to one class.
func (r *TicketTemplateRepository) List(ctx context.Context, classID string) ([]models.TicketTemplate, error) {
	query := "SELECT " + templateColumns + " FROM ticket_templates"
	var args []interface{}
	if classID != "" {
		query += " WHERE class_id = $1"
		args = append(args, classID)
	}
	query += " ORDER BY created_at DESC"

	var templates []models.TicketTemplate
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, fmt.Errorf("list ticket templates: %w", err)
	}
	return templates, nil
}

// FindByID loads one template.
func (r *TicketTemplateRepository) FindByID(ctx context.Context, id string) (*models.TicketTemplate, error) {
	var tpl models.TicketTemplate
	if err := r.db.GetContext(ctx, &tpl, "SELECT "+templateColumns+" FROM ticket_templates WHERE id = $1", id); err != nil {
		return nil, missing(err)
	}
	return &tpl, nil
}

// Create inserts a template.
func (r *TicketTemplateRepository) Create(ctx context.Context, tpl *models.TicketTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	tpl.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO ticket_templates (id, class_id, name, total_count, valid_days, price, created_at)
VALUES (:id, :class_id, :name, :total_count, :valid_days, :price, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tpl); err != nil {
		return fmt.Errorf("create ticket template: %w", err)
	}
	return nil
}
