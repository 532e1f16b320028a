package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/pawclass-api/internal/models"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(&models.SweepSummary{Completed: 3, Skipped: 1}))
	assert.Equal(t, 2, exitCode(&models.SweepSummary{Completed: 3, Failed: 1}))
}
