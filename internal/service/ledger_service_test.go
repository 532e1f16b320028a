package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/internal/repository"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
)

// stubEnrollmentRepo is an in-memory enrollment store shared by service tests.
type stubEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]models.Enrollment
	casMisses   int
	casErr      error
	findErr     error
	deleteErr   error
	statuses    map[string]models.EnrollmentStatus
	created     []models.Enrollment
	expired     int
}

func newStubEnrollmentRepo(items ...models.Enrollment) *stubEnrollmentRepo {
	repo := &stubEnrollmentRepo{enrollments: map[string]models.Enrollment{}, statuses: map[string]models.EnrollmentStatus{}}
	for _, e := range items {
		repo.enrollments[e.ID] = e
	}
	return repo
}

func (s *stubEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	e, ok := s.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s *stubEnrollmentRepo) CompareAndSetUsage(ctx context.Context, id string, prev, next int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.casErr != nil {
		return s.casErr
	}
	if s.casMisses > 0 {
		s.casMisses--
		return repository.ErrUsageConflict
	}
	e := s.enrollments[id]
	if e.UsedCount != prev {
		return repository.ErrUsageConflict
	}
	e.UsedCount = next
	s.enrollments[id] = e
	return nil
}

func (s *stubEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Enrollment
	for _, e := range s.enrollments {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (s *stubEnrollmentRepo) Create(ctx context.Context, e *models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = "enr-new"
	}
	if e.Status == "" {
		e.Status = models.EnrollmentStatusActive
	}
	s.enrollments[e.ID] = *e
	s.created = append(s.created, *e)
	return nil
}

func (s *stubEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	s.enrollments[id] = e
	s.statuses[id] = status
	return nil
}

func (s *stubEnrollmentRepo) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.enrollments, id)
	return nil
}

func (s *stubEnrollmentRepo) ExpireLapsed(ctx context.Context, today models.Date) (int, error) {
	return s.expired, nil
}

func (s *stubEnrollmentRepo) used(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrollments[id].UsedCount
}

func TestLedgerConsume(t *testing.T) {
	repo := newStubEnrollmentRepo(models.Enrollment{ID: "enr-1", TotalCount: 10, UsedCount: 3})
	svc := NewLedgerService(repo, nil, 3, nil)

	e, err := svc.Consume(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 4, e.UsedCount)
	assert.Equal(t, 4, repo.used("enr-1"))
}

func TestLedgerConsumeAtTotalIsQuotaExhausted(t *testing.T) {
	repo := newStubEnrollmentRepo(models.Enrollment{ID: "enr-1", TotalCount: 5, UsedCount: 5})
	svc := NewLedgerService(repo, nil, 3, nil)

	_, err := svc.Consume(context.Background(), "enr-1")
	assert.ErrorIs(t, err, appErrors.ErrQuotaExhausted)
	assert.Equal(t, 5, repo.used("enr-1"))
}

func TestLedgerRetriesCASMiss(t *testing.T) {
	repo := newStubEnrollmentRepo(models.Enrollment{ID: "enr-1", TotalCount: 10, UsedCount: 3})
	repo.casMisses = 2
	metrics := NewMetricsService()
	svc := NewLedgerService(repo, metrics, 3, nil)

	e, err := svc.Consume(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 4, e.UsedCount)
}

func TestLedgerGivesUpAfterRetries(t *testing.T) {
	repo := newStubEnrollmentRepo(models.Enrollment{ID: "enr-1", TotalCount: 10, UsedCount: 3})
	repo.casMisses = 10
	svc := NewLedgerService(repo, nil, 2, nil)

	_, err := svc.Consume(context.Background(), "enr-1")
	assert.ErrorIs(t, err, appErrors.ErrStorage)
	assert.Equal(t, 3, repo.used("enr-1"))
	assert.Equal(t, 7, repo.casMisses)
}

func TestLedgerRestoreBelowZero(t *testing.T) {
	repo := newStubEnrollmentRepo(models.Enrollment{ID: "enr-1", TotalCount: 10})
	svc := NewLedgerService(repo, nil, 3, nil)

	_, err := svc.Restore(context.Background(), "enr-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestLedgerStorageFailure(t *testing.T) {
	repo := newStubEnrollmentRepo(models.Enrollment{ID: "enr-1", TotalCount: 10})
	repo.casErr = errors.New("connection reset")
	svc := NewLedgerService(repo, nil, 3, nil)

	_, err := svc.Consume(context.Background(), "enr-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.Retryable)
}

func TestLedgerConcurrentConsumeNeverOvershoots(t *testing.T) {
	repo := newStubEnrollmentRepo(models.Enrollment{ID: "enr-1", TotalCount: 5, UsedCount: 0})
	svc := NewLedgerService(repo, nil, 20, nil)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Consume(context.Background(), "enr-1")
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, repo.used("enr-1"))
}
