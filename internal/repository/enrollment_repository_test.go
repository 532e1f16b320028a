package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pawclass-api/internal/models"
)

func TestEnrollmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "template_id", "total_count", "used_count", "valid_from", "valid_until", "status", "price", "created_at", "updated_at"}).
		AddRow("enr-1", "stu-1", "cls-1", nil, 10, 4, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), "active", int64(150000), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).WithArgs("enr-1").WillReturnRows(rows)

	e, err := repo.FindByID(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, 6, e.Remaining())
	assert.Equal(t, "2025-03-31", e.ValidUntil.String())
	assert.Nil(t, e.TemplateID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMalformedIDIsMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	badUUID := &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).WithArgs("abc").WillReturnError(badUUID)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2")).WithArgs("abc", models.EnrollmentStatusSuspended, sqlmock.AnyArg()).WillReturnError(badUUID)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).WithArgs("abc").WillReturnError(badUUID)

	_, err := repo.FindByID(context.Background(), "abc")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.Equal(t, sql.ErrNoRows, repo.UpdateStatus(context.Background(), "abc", models.EnrollmentStatusSuspended))
	assert.Equal(t, sql.ErrNoRows, repo.Delete(context.Background(), "abc"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCompareAndSetUsage(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta("UPDATE enrollments SET used_count = $3, updated_at = $4 WHERE id = $1 AND used_count = $2")
	mock.ExpectExec(query).WithArgs("enr-1", 4, 5, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("enr-1", 4, 5, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(query).WithArgs("enr-1", 10, 11, sqlmock.AnyArg()).WillReturnError(&pq.Error{Code: "23514"})

	require.NoError(t, repo.CompareAndSetUsage(context.Background(), "enr-1", 4, 5))
	assert.ErrorIs(t, repo.CompareAndSetUsage(context.Background(), "enr-1", 4, 5), ErrUsageConflict)
	assert.ErrorIs(t, repo.CompareAndSetUsage(context.Background(), "enr-1", 10, 11), ErrUsageConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteReferenced(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).WithArgs("enr-1").
		WillReturnError(&pq.Error{Code: "23503"})

	assert.ErrorIs(t, repo.Delete(context.Background(), "enr-1"), ErrReferenced)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExpireLapsed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	today, _ := models.ParseDate("2025-01-10")
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = 'expired'")).
		WithArgs("2025-01-10", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.ExpireLapsed(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
