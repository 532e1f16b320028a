package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudioNowIgnoresHostTimezone(t *testing.T) {
	// 2025-01-09T16:30Z is already the 10th in UTC+9.
	studio := NewStudio(Fixed{T: time.Date(2025, 1, 9, 16, 30, 0, 0, time.UTC)}, 9)

	now := studio.Now()
	assert.Equal(t, 1, now.Hour())
	assert.Equal(t, 10, now.Day())
	assert.Equal(t, "2025-01-10", now.Format(DateLayout))
}

func TestStudioAt(t *testing.T) {
	studio := NewStudio(Fixed{}, 9)
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	start, err := studio.At(date, "10:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 1, 0, 0, 0, time.UTC), start.UTC())

	short, err := studio.At(date, "18:30")
	require.NoError(t, err)
	assert.Equal(t, 18, short.Hour())
	assert.Equal(t, 30, short.Minute())

	_, err = studio.At(date, "25:99")
	assert.Error(t, err)
}
