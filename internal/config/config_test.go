package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("RATE_LIMIT_ENABLED", "")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 5, cfg.RateLimit.UploadBurst)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "Postgres")
	t.Setenv("RATE_LIMIT_ENABLED", "yes")
	t.Setenv("RATE_LIMIT_UPLOAD_RATE", "2.5")
	t.Setenv("DATABASE_MAX_OPEN_CONN", "not-a-number")
	t.Setenv("ENVIRONMENT", "production")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.DBType)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 2.5, cfg.RateLimit.UploadRate)
	assert.Equal(t, 20, cfg.DBMaxOpenConn)
	assert.True(t, cfg.IsProduction())
}

func TestUploadConfigHolder_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewUploadConfigHolder(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultUploadConfig(), holder.Get())
}

func TestValidateUploadConfig(t *testing.T) {
	assert.NoError(t, validateUploadConfig(DefaultUploadConfig()))

	cfg := DefaultUploadConfig()
	cfg.MaxUploadBytes = 0
	assert.Error(t, validateUploadConfig(cfg))

	cfg = DefaultUploadConfig()
	cfg.InsertBatchSize = -1
	assert.Error(t, validateUploadConfig(cfg))
}
