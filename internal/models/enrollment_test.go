package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustDate(t *testing.T, raw string) Date {
	t.Helper()
	d, err := ParseDate(raw)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestEnrollmentValidOn(t *testing.T) {
	e := Enrollment{
		TotalCount: 10,
		UsedCount:  9,
		ValidFrom:  mustDate(t, "2025-01-01"),
		ValidUntil: mustDate(t, "2025-01-31"),
		Status:     EnrollmentStatusActive,
	}

	assert.Equal(t, 1, e.Remaining())
	assert.True(t, e.ValidOn(mustDate(t, "2025-01-01")))
	assert.True(t, e.ValidOn(mustDate(t, "2025-01-31")))
	assert.False(t, e.ValidOn(mustDate(t, "2025-02-01")))
	assert.False(t, e.ValidOn(mustDate(t, "2024-12-31")))

	e.UsedCount = 12
	assert.Zero(t, e.Remaining())
}

func TestEnrollmentNextUsage(t *testing.T) {
	e := Enrollment{TotalCount: 2, UsedCount: 2}
	_, err := e.NextUsage(1)
	assert.ErrorIs(t, err, ErrUsageExceedsTotal)

	next, err := e.NextUsage(-1)
	assert.NoError(t, err)
	assert.Equal(t, 1, next)

	e.UsedCount = 0
	_, err = e.NextUsage(-1)
	assert.ErrorIs(t, err, ErrUsageNegative)
}

func TestEnrollmentTransitions(t *testing.T) {
	assert.True(t, EnrollmentStatusActive.CanTransition(EnrollmentStatusSuspended))
	assert.True(t, EnrollmentStatusSuspended.CanTransition(EnrollmentStatusActive))
	assert.True(t, EnrollmentStatusActive.CanTransition(EnrollmentStatusExpired))
	assert.False(t, EnrollmentStatusExpired.CanTransition(EnrollmentStatusActive))
	assert.False(t, EnrollmentStatusActive.CanTransition(EnrollmentStatusActive))
}

func TestScheduleCapacity(t *testing.T) {
	max := 6
	assert.Equal(t, 6, Schedule{Type: SessionTypeGroup, MaxStudents: &max}.Capacity())
	assert.Equal(t, 1, Schedule{Type: SessionTypePrivate, MaxStudents: &max}.Capacity())

	detail := ScheduleDetail{Schedule: Schedule{Type: SessionTypeGroup, MaxStudents: &max}, BookedCount: 7}
	detail.FillAvailability()
	assert.Equal(t, 0, detail.Available)
}

func TestTicketTemplateValidity(t *testing.T) {
	tpl := TicketTemplate{ValidDays: 30}
	from, until := tpl.ValidityFrom(mustDate(t, "2025-01-10"))
	assert.Equal(t, "2025-01-10", from.String())
	assert.Equal(t, "2025-02-08", until.String())
}
