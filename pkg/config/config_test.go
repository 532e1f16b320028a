package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Studio.UTCOffsetHours)
	assert.Equal(t, 500, cfg.Sweeper.BatchSize)
	assert.False(t, cfg.Sweeper.ExpireEnrollments)
	assert.Equal(t, 3, cfg.Ledger.CASRetries)
}

func TestLoadSweeperExpiryOptIn(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SWEEPER_EXPIRE_ENROLLMENTS", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Sweeper.ExpireEnrollments)
}
