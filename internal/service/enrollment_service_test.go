package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/internal/repository"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
)

type stubClassRepo struct {
	classes map[string]models.Class
	created []models.Class
}

func newStubClassRepo(items ...models.Class) *stubClassRepo {
	repo := &stubClassRepo{classes: map[string]models.Class{}}
	for _, c := range items {
		repo.classes[c.ID] = c
	}
	return repo
}

func (s *stubClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	var out []models.Class
	for _, c := range s.classes {
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (s *stubClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	c, ok := s.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (s *stubClassRepo) Create(ctx context.Context, class *models.Class) error {
	class.ID = fmt.Sprintf("cls-new-%d", len(s.created)+1)
	s.classes[class.ID] = *class
	s.created = append(s.created, *class)
	return nil
}

type stubAuditWriter struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (s *stubAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *log)
	return nil
}

func newEnrollmentFixture(t *testing.T, status models.EnrollmentStatus) (*EnrollmentService, *stubEnrollmentRepo, *stubAuditWriter) {
	t.Helper()
	repo := newStubEnrollmentRepo(models.Enrollment{
		ID:         "enr-1",
		StudentID:  "stu-1",
		ClassID:    "cls-1",
		TotalCount: 10,
		UsedCount:  4,
		ValidFrom:  mustDate(t, "2025-01-01"),
		ValidUntil: mustDate(t, "2025-03-31"),
		Status:     status,
	})
	audit := &stubAuditWriter{}
	classes := newStubClassRepo(models.Class{ID: "cls-1", Type: models.SessionTypeGroup})
	ledger := NewLedgerService(repo, nil, 3, zap.NewNop())
	svc := NewEnrollmentService(repo, classes, ledger, NewAuditService(audit, zap.NewNop()), nil, zap.NewNop())
	return svc, repo, audit
}

var (
	adminClaims      = &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}
	superAdminClaims = &models.JWTClaims{UserID: "root", Role: models.RoleSuperAdmin}
)

func TestEnrollmentServiceCreate(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture(t, models.EnrollmentStatusActive)

	view, err := svc.Create(context.Background(), dto.CreateEnrollmentRequest{
		StudentID:  "stu-2",
		ClassID:    "cls-1",
		TotalCount: 8,
		ValidFrom:  mustDate(t, "2025-02-01"),
		ValidUntil: mustDate(t, "2025-02-28"),
	})
	require.NoError(t, err)
	assert.Equal(t, 8, view.Remaining)
	assert.Equal(t, models.EnrollmentStatusActive, view.Status)
	require.Len(t, repo.created, 1)
}

func TestEnrollmentServiceCreateValidation(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t, models.EnrollmentStatusActive)

	_, err := svc.Create(context.Background(), dto.CreateEnrollmentRequest{StudentID: "stu-2", ClassID: "cls-1", TotalCount: 8})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateEnrollmentRequest{
		StudentID: "stu-2", ClassID: "cls-1", TotalCount: 8,
		ValidFrom: mustDate(t, "2025-02-10"), ValidUntil: mustDate(t, "2025-02-01"),
	})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateEnrollmentRequest{
		StudentID: "stu-2", ClassID: "cls-x", TotalCount: 8,
		ValidFrom: mustDate(t, "2025-02-01"), ValidUntil: mustDate(t, "2025-02-01"),
	})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceGetHidesOtherStudents(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t, models.EnrollmentStatusActive)

	view, err := svc.Get(context.Background(), "enr-1", studentClaims)
	require.NoError(t, err)
	assert.Equal(t, 6, view.Remaining)

	_, err = svc.Get(context.Background(), "enr-1", &models.JWTClaims{UserID: "stu-2", Role: models.RoleStudent})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceStatusTransitions(t *testing.T) {
	tests := []struct {
		name   string
		from   models.EnrollmentStatus
		to     models.EnrollmentStatus
		force  bool
		actor  *models.JWTClaims
		code   string
		action string
	}{
		{name: "suspend", from: models.EnrollmentStatusActive, to: models.EnrollmentStatusSuspended, actor: adminClaims, action: models.AuditActionEnrollmentStatus},
		{name: "resume", from: models.EnrollmentStatusSuspended, to: models.EnrollmentStatusActive, actor: adminClaims, action: models.AuditActionEnrollmentStatus},
		{name: "reopen expired", from: models.EnrollmentStatusExpired, to: models.EnrollmentStatusActive, actor: adminClaims, code: appErrors.ErrInvalidState.Code},
		{name: "force by admin", from: models.EnrollmentStatusExpired, to: models.EnrollmentStatusActive, force: true, actor: adminClaims, code: appErrors.ErrForbidden.Code},
		{name: "force by superadmin", from: models.EnrollmentStatusExpired, to: models.EnrollmentStatusActive, force: true, actor: superAdminClaims, action: models.AuditActionEnrollmentForceStatus},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, audit := newEnrollmentFixture(t, tc.from)

			view, err := svc.UpdateStatus(context.Background(), "enr-1", dto.UpdateEnrollmentStatusRequest{Status: tc.to, Force: tc.force}, tc.actor)
			if tc.code != "" {
				require.Error(t, err)
				assert.Equal(t, tc.code, appErrors.FromError(err).Code)
				assert.Empty(t, repo.statuses)
				assert.Empty(t, audit.entries)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, view.Status)
			assert.Equal(t, tc.to, repo.statuses["enr-1"])
			require.Len(t, audit.entries, 1)
			assert.Equal(t, tc.action, audit.entries[0].Action)
			assert.Equal(t, tc.actor.UserID, *audit.entries[0].UserID)
		})
	}
}

func TestEnrollmentServiceDeleteReferenced(t *testing.T) {
	svc, repo, audit := newEnrollmentFixture(t, models.EnrollmentStatusActive)
	repo.deleteErr = fmt.Errorf("delete enrollment: %w", repository.ErrReferenced)

	err := svc.Delete(context.Background(), "enr-1", adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, audit.entries)
}

func TestEnrollmentServiceDelete(t *testing.T) {
	svc, _, audit := newEnrollmentFixture(t, models.EnrollmentStatusActive)

	require.NoError(t, svc.Delete(context.Background(), "enr-1", adminClaims))
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionEnrollmentDelete, audit.entries[0].Action)

	err := svc.Delete(context.Background(), "enr-1", adminClaims)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRestoreSession(t *testing.T) {
	svc, repo, audit := newEnrollmentFixture(t, models.EnrollmentStatusActive)

	view, err := svc.RestoreSession(context.Background(), "enr-1", adminClaims)
	require.NoError(t, err)
	assert.Equal(t, 3, view.UsedCount)
	assert.Equal(t, 3, repo.used("enr-1"))
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionLedgerRestore, audit.entries[0].Action)
}

func TestEnrollmentServiceListMine(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t, models.EnrollmentStatusActive)

	items, _, err := svc.ListMine(context.Background(), dto.EnrollmentQuery{StudentID: "stu-9"}, studentClaims)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "enr-1", items[0].ID)
}
