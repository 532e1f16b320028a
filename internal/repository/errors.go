package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Outcomes detected under row locks that services translate into domain errors.
var (
	ErrScheduleNotBookable = errors.New("schedule is not open for booking")
	ErrDuplicateBooking    = errors.New("student already holds a booking for the schedule")
	ErrCapacityExceeded    = errors.New("schedule capacity reached")
	ErrReferenced          = errors.New("record is still referenced")
	ErrUsageConflict       = errors.New("enrollment usage changed concurrently")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool     { return pqCode(err) == pqUniqueViolation }
func isForeignKeyViolation(err error) bool { return pqCode(err) == pqForeignKeyViolation }
func isCheckViolation(err error) bool      { return pqCode(err) == pqCheckViolation }

const pqInvalidTextRepresentation = "22P02"

// missing folds a malformed key into sql.ErrNoRows. A value that cannot be
// parsed as a UUID cannot identify a row.
func missing(err error) error {
	if pqCode(err) == pqInvalidTextRepresentation {
		return sql.ErrNoRows
	}
	return err
}
