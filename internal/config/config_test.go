package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(1), cfg.UserID)
	assert.Equal(t, 3, cfg.Scoring.BaseScore)
	assert.Equal(t, 3, cfg.Scoring.QueueThreshold)
	assert.True(t, cfg.DeepScan.Enabled)
	assert.Equal(t, 4, cfg.DeepScan.Threshold)
	assert.Equal(t, 50, cfg.DeepScan.LimitPerKeyword)
	assert.Equal(t, "Ringwood-VIC-3134", cfg.Seek.LocationSlug)
	assert.Equal(t, 10, cfg.Seek.DistanceKM)
	assert.Equal(t, "scrape_progress.json", cfg.Progress.File)
	assert.Equal(t, 25*time.Second, cfg.Browser.NavTimeout())
	assert.Equal(t, 4*time.Second, cfg.Pagination.WaitTimeout())
	assert.Equal(t, 200*time.Millisecond, cfg.Pagination.PollInterval())
	assert.Equal(t, 150*time.Millisecond, cfg.Pagination.SettleDelay())
	assert.Empty(t, cfg.DB.DSN)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
user_id: 7
keyword_limit: 2
scoring:
  base_score: 5
deep_scan:
  threshold: 6
db:
  dsn: postgres://jobhunter@localhost/jobs
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.UserID)
	assert.Equal(t, 2, cfg.KeywordLimit)
	assert.Equal(t, 5, cfg.Scoring.BaseScore)
	assert.Equal(t, 6, cfg.DeepScan.Threshold)
	// Unset keys keep their defaults.
	assert.Equal(t, 50, cfg.DeepScan.LimitPerKeyword)
	assert.Equal(t, "postgres://jobhunter@localhost/jobs", cfg.DB.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.UserID = 0
	assert.Error(t, cfg.Validate())

	cfg.UserID = 1
	cfg.DeepScan.LimitPerKeyword = 0
	assert.Error(t, cfg.Validate())

	cfg.DeepScan.Enabled = false
	cfg.DeepScan.LimitPerKeyword = 0
	assert.NoError(t, cfg.Validate())
}
