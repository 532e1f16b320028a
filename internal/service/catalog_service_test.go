package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
)

type stubTemplateRepo struct {
	templates map[string]models.TicketTemplate
}

func (s *stubTemplateRepo) List(ctx context.Context, classID string) ([]models.TicketTemplate, error) {
	var out []models.TicketTemplate
	for _, tpl := range s.templates {
		if classID == "" || tpl.ClassID == classID {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (s *stubTemplateRepo) FindByID(ctx context.Context, id string) (*models.TicketTemplate, error) {
	tpl, ok := s.templates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &tpl, nil
}

func (s *stubTemplateRepo) Create(ctx context.Context, tpl *models.TicketTemplate) error {
	tpl.ID = "tpl-new"
	s.templates[tpl.ID] = *tpl
	return nil
}

func intPtr(v int) *int { return &v }

func TestClassServiceCreateDefaultsPolicy(t *testing.T) {
	repo := newStubClassRepo()
	svc := NewClassService(repo, 24, nil, nil)

	class, err := svc.Create(context.Background(), dto.CreateClassRequest{Name: "Puppy basics", Type: models.SessionTypeGroup, DefaultMaxStudents: intPtr(6)})
	require.NoError(t, err)
	assert.Equal(t, 24, class.CancelHoursBefore)

	class, err = svc.Create(context.Background(), dto.CreateClassRequest{Name: "Recall clinic", Type: models.SessionTypeGroup, CancelHoursBefore: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, class.CancelHoursBefore)
}

func TestClassServiceRejectsPrivateCapacity(t *testing.T) {
	svc := NewClassService(newStubClassRepo(), 24, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateClassRequest{Name: "1:1", Type: models.SessionTypePrivate, DefaultMaxStudents: intPtr(3)})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassServiceGetMissing(t *testing.T) {
	svc := NewClassService(newStubClassRepo(), 24, nil, nil)

	_, err := svc.Get(context.Background(), "cls-x")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTicketTemplateIssueUsesStudioToday(t *testing.T) {
	templates := &stubTemplateRepo{templates: map[string]models.TicketTemplate{
		"tpl-1": {ID: "tpl-1", ClassID: "cls-1", TotalCount: 10, ValidDays: 30},
	}}
	enrollments := newStubEnrollmentRepo()
	svc := NewTicketTemplateService(templates, newStubClassRepo(models.Class{ID: "cls-1"}), enrollments, studioAt("2025-01-31T23:30"), nil, nil)

	view, err := svc.Issue(context.Background(), "tpl-1", dto.IssueTicketRequest{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", view.ValidFrom.String())
	assert.Equal(t, "2025-03-01", view.ValidUntil.String())
	assert.Equal(t, 10, view.Remaining)
	require.NotNil(t, view.TemplateID)
	assert.Equal(t, "tpl-1", *view.TemplateID)
}

func TestTicketTemplateIssueWithStartDate(t *testing.T) {
	templates := &stubTemplateRepo{templates: map[string]models.TicketTemplate{
		"tpl-1": {ID: "tpl-1", ClassID: "cls-1", TotalCount: 4, ValidDays: 1},
	}}
	svc := NewTicketTemplateService(templates, newStubClassRepo(), newStubEnrollmentRepo(), studioAt("2025-01-05T10:00"), nil, nil)
	start := mustDate(t, "2025-02-01")

	view, err := svc.Issue(context.Background(), "tpl-1", dto.IssueTicketRequest{StudentID: "stu-1", StartDate: &start})
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", view.ValidFrom.String())
	assert.Equal(t, "2025-02-01", view.ValidUntil.String())
}

func TestTicketTemplateCreateRequiresClass(t *testing.T) {
	templates := &stubTemplateRepo{templates: map[string]models.TicketTemplate{}}
	svc := NewTicketTemplateService(templates, newStubClassRepo(), newStubEnrollmentRepo(), nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateTicketTemplateRequest{ClassID: "cls-x", Name: "10 pack", TotalCount: 10, ValidDays: 60})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
