package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/pawclass-api/internal/dto"
	"github.com/noah-isme/pawclass-api/internal/models"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
	"github.com/noah-isme/pawclass-api/pkg/jobs"
)

type stubReconciliationRepo struct {
	mu        sync.Mutex
	records   map[string]models.LedgerReconciliation
	failTimes int
	written   chan string
}

func newStubReconciliationRepo() *stubReconciliationRepo {
	return &stubReconciliationRepo{records: map[string]models.LedgerReconciliation{}, written: make(chan string, 8)}
}

func (s *stubReconciliationRepo) Create(ctx context.Context, rec *models.LedgerReconciliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTimes > 0 {
		s.failTimes--
		return errors.New("insert failed")
	}
	s.records[rec.ID] = *rec
	s.written <- rec.ID
	return nil
}

func (s *stubReconciliationRepo) FindByID(ctx context.Context, id string) (*models.LedgerReconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &rec, nil
}

func (s *stubReconciliationRepo) List(ctx context.Context, filter models.ReconciliationFilter) ([]models.LedgerReconciliation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LedgerReconciliation
	for _, rec := range s.records {
		if filter.OpenOnly && rec.ResolvedAt != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (s *stubReconciliationRepo) Resolve(ctx context.Context, id, resolvedBy string, at time.Time) (*models.LedgerReconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.ResolvedAt != nil {
		return nil, sql.ErrNoRows
	}
	rec.ResolvedAt = &at
	rec.ResolvedBy = &resolvedBy
	s.records[id] = rec
	return &rec, nil
}

func TestReconciliationServiceEnqueueInlineWhenIdle(t *testing.T) {
	repo := newStubReconciliationRepo()
	svc := NewReconciliationService(repo, nil, jobs.QueueConfig{}, nil, zap.NewNop())

	err := svc.Enqueue(context.Background(), models.LedgerReconciliation{BookingID: "bk-1", EnrollmentID: "enr-1", Source: models.ReconciliationSourceSweep})
	require.NoError(t, err)
	require.Len(t, repo.records, 1)
	for id, rec := range repo.records {
		assert.NotEmpty(t, id)
		assert.False(t, rec.CreatedAt.IsZero())
	}
}

func TestReconciliationServiceQueueRetriesWrite(t *testing.T) {
	repo := newStubReconciliationRepo()
	repo.failTimes = 1
	svc := NewReconciliationService(repo, nil, jobs.QueueConfig{RetryDelay: time.Millisecond, MaxRetries: 3}, nil, zap.NewNop())
	svc.Start(context.Background())
	defer svc.Stop()

	require.NoError(t, svc.Enqueue(context.Background(), models.LedgerReconciliation{ID: "rec-1", BookingID: "bk-1", EnrollmentID: "enr-1", Source: models.ReconciliationSourceCancellation}))

	select {
	case id := <-repo.written:
		assert.Equal(t, "rec-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciliation was not persisted")
	}
}

func TestReconciliationServiceResolve(t *testing.T) {
	repo := newStubReconciliationRepo()
	repo.records["rec-1"] = models.LedgerReconciliation{ID: "rec-1", BookingID: "bk-1"}
	svc := NewReconciliationService(repo, nil, jobs.QueueConfig{}, nil, zap.NewNop())
	admin := &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}

	rec, err := svc.Resolve(context.Background(), "rec-1", dto.ResolveReconciliationRequest{Note: "restored manually"}, admin)
	require.NoError(t, err)
	require.NotNil(t, rec.ResolvedBy)
	assert.Equal(t, "adm-1", *rec.ResolvedBy)

	_, err = svc.Resolve(context.Background(), "rec-1", dto.ResolveReconciliationRequest{}, admin)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	_, err = svc.Resolve(context.Background(), "rec-x", dto.ResolveReconciliationRequest{}, admin)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReconciliationServiceListOpenOnly(t *testing.T) {
	repo := newStubReconciliationRepo()
	resolved := time.Now()
	repo.records["rec-1"] = models.LedgerReconciliation{ID: "rec-1"}
	repo.records["rec-2"] = models.LedgerReconciliation{ID: "rec-2", ResolvedAt: &resolved}
	svc := NewReconciliationService(repo, nil, jobs.QueueConfig{}, nil, zap.NewNop())

	items, page, err := svc.List(context.Background(), dto.ReconciliationQuery{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "rec-1", items[0].ID)
	assert.Equal(t, 1, page.TotalCount)
}
