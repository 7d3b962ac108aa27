package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QBOM_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "")
	t.Setenv("DEV_MODE", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BACKUP_S3_BUCKET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.False(t, cfg.Backup.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QBOM_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9000")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BACKUP_S3_BUCKET", "qbom-backups")
	t.Setenv("BACKUP_S3_ACCESS_KEY_ID", "key")
	t.Setenv("BACKUP_S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("BACKUP_RETENTION_COUNT", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.NotNil(t, cfg.Backup)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, "qbom-backups", cfg.Backup.Bucket)
	assert.Equal(t, "0 3 * * *", cfg.Backup.Schedule)
	assert.Equal(t, 7, cfg.Backup.RetentionCount)
}

func TestLoadRejectsBackupWithoutCredentials(t *testing.T) {
	t.Setenv("QBOM_DATA_DIR", t.TempDir())
	t.Setenv("BACKUP_S3_BUCKET", "qbom-backups")
	t.Setenv("BACKUP_S3_ACCESS_KEY_ID", "")
	t.Setenv("BACKUP_S3_SECRET_ACCESS_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}
