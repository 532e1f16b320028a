//go:build integration

package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pawclass-api/internal/models"
	"github.com/noah-isme/pawclass-api/internal/repository"
	"github.com/noah-isme/pawclass-api/internal/testutil/testdb"
)

type seed struct {
	classID    string
	scheduleID string
}

func seedGroupSession(t *testing.T, db *sqlx.DB, capacity int, date string) seed {
	t.Helper()
	s := seed{classID: uuid.NewString(), scheduleID: uuid.NewString()}
	db.MustExec(`INSERT INTO classes (id, name, type, default_max_students, cancel_hours_before) VALUES ($1, 'Puppy basics', 'group', $2, 24)`, s.classID, capacity)
	db.MustExec(`INSERT INTO schedules (id, class_id, date, start_time, end_time, type, max_students) VALUES ($1, $2, $3, '10:00', '11:00', 'group', $4)`, s.scheduleID, s.classID, date, capacity)
	return s
}

func seedEnrollment(t *testing.T, db *sqlx.DB, classID, studentID string, total, used int) string {
	t.Helper()
	id := uuid.NewString()
	db.MustExec(`INSERT INTO enrollments (id, student_id, class_id, total_count, used_count, valid_from, valid_until) VALUES ($1, $2, $3, $4, $5, '2025-01-01', '2025-12-31')`,
		id, studentID, classID, total, used)
	return id
}

func TestCreateAtomicLastSlotRace(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewBookingRepository(db)
	s := seedGroupSession(t, db, 1, "2025-01-10")

	const contenders = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      int
		rejected int
	)
	for i := 0; i < contenders; i++ {
		student := uuid.NewString()
		enrollment := seedEnrollment(t, db, s.classID, student, 10, 0)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.CreateAtomic(context.Background(), &models.Booking{ScheduleID: s.scheduleID, StudentID: student, EnrollmentID: enrollment})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, repository.ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, contenders-1, rejected)

	var active int
	require.NoError(t, db.Get(&active, `SELECT COUNT(*) FROM bookings WHERE schedule_id = $1 AND status <> 'cancelled'`, s.scheduleID))
	assert.Equal(t, 1, active)
}

func TestCreateAtomicDuplicateRace(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewBookingRepository(db)
	s := seedGroupSession(t, db, 5, "2025-01-10")
	enrollment := seedEnrollment(t, db, s.classID, "stu-dup", 10, 0)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.CreateAtomic(context.Background(), &models.Booking{ScheduleID: s.scheduleID, StudentID: "stu-dup", EnrollmentID: enrollment})
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrDuplicateBooking)
	}
	assert.Equal(t, 1, ok)
}

func TestCompleteWithUsageIsIdempotent(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewBookingRepository(db)
	s := seedGroupSession(t, db, 5, "2025-01-10")
	enrollment := seedEnrollment(t, db, s.classID, "stu-1", 10, 3)
	booking := &models.Booking{ScheduleID: s.scheduleID, StudentID: "stu-1", EnrollmentID: enrollment}
	require.NoError(t, repo.CreateAtomic(context.Background(), booking))

	today, err := models.ParseDate("2025-01-11")
	require.NoError(t, err)
	due, err := repo.ListDueForCompletion(context.Background(), today, "00:00:00", "", 100)
	require.NoError(t, err)
	require.Len(t, due, 1)

	at := time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
	first, err := repo.CompleteWithUsage(context.Background(), booking.ID, at)
	require.NoError(t, err)
	assert.True(t, first.Completed)
	assert.True(t, first.Deducted)
	assert.Equal(t, 4, first.UsedCount)

	second, err := repo.CompleteWithUsage(context.Background(), booking.ID, at)
	require.NoError(t, err)
	assert.False(t, second.Completed)

	var used int
	require.NoError(t, db.Get(&used, `SELECT used_count FROM enrollments WHERE id = $1`, enrollment))
	assert.Equal(t, 4, used)

	due, err = repo.ListDueForCompletion(context.Background(), today, "00:00:00", "", 100)
	require.NoError(t, err)
	assert.Empty(t, due)
}
