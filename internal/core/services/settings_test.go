package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tomes-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), "/data")

	settings, err := service.Get()
	require.NoError(t, err)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.HTTP, settings.HTTP)
	assert.Equal(t, filepath.Join("/data", "packages"), settings.Catalog.PackagesDir)
	assert.Equal(t, filepath.Join("/data", "downloads"), settings.Downloads.Dir)
	assert.Empty(t, settings.Catalog.SystemDir)
	assert.Equal(t, defaults.Catalog.ReleaseGrace, settings.Catalog.ReleaseGrace)
	assert.Equal(t, domain.DefaultDownloadQueueConfig(), settings.Downloads.Queue)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"http.timeout":             "10s",
		"http.user_agent":          "tomes-test",
		"http.rate_per_second":     int64(5),
		"catalog.registry_url":     "https://registry.example/index.json",
		"catalog.packages_dir":     "pkgs",
		"catalog.system_dir":       "/usr/share/tomes",
		"catalog.release_grace":    "500ms",
		"downloads.dir":            "/srv/chapters",
		"downloads.max_concurrent": int64(8),
		"downloads.max_retries":    int64(0),
		"downloads.retry_delay":    "1m",
		"downloads.auto_retry":     false,
	})
	service := NewSettingsService(store, "/data")

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, settings.HTTP.Timeout)
	assert.Equal(t, "tomes-test", settings.HTTP.UserAgent)
	assert.InDelta(t, 5.0, settings.HTTP.RatePerSecond, 0.001)
	assert.Equal(t, "https://registry.example/index.json", settings.Catalog.RegistryURL)
	assert.Equal(t, filepath.Join("/data", "pkgs"), settings.Catalog.PackagesDir)
	assert.Equal(t, "/usr/share/tomes", settings.Catalog.SystemDir)
	assert.Equal(t, 500*time.Millisecond, settings.Catalog.ReleaseGrace)
	assert.Equal(t, "/srv/chapters", settings.Downloads.Dir)
	assert.Equal(t, domain.DownloadQueueConfig{
		MaxConcurrent: 8, MaxRetries: 0, RetryDelay: time.Minute, AutoRetry: false,
	}, settings.Downloads.Queue)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"http.timeout":          "soon",
		"http.rate_per_second":  "fast",
		"catalog.release_grace": "-1s",
	})
	service := NewSettingsService(store, "")

	settings, err := service.Get()
	require.NoError(t, err)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.HTTP.Timeout, settings.HTTP.Timeout)
	assert.Equal(t, defaults.HTTP.RatePerSecond, settings.HTTP.RatePerSecond)
	assert.Equal(t, defaults.Catalog.ReleaseGrace, settings.Catalog.ReleaseGrace)
	assert.Equal(t, "packages", settings.Catalog.PackagesDir)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, "/data")

	want := service.GetDefaults()
	want.HTTP.Timeout = 12 * time.Second
	want.HTTP.RatePerSecond = 0.5
	want.Catalog.RegistryURL = "https://r.example/index.json"
	want.Catalog.SystemDir = "/opt/tomes"
	want.Downloads.Queue.MaxConcurrent = 1

	require.NoError(t, service.Save(&want))
	assert.Equal(t, "12s", store.GetString("http.timeout"))

	got, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestSettingsService_SaveDownloadQueueConfig_Validation(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), "")

	tests := []struct {
		name string
		cfg  domain.DownloadQueueConfig
	}{
		{"zero concurrency", domain.DownloadQueueConfig{MaxConcurrent: 0}},
		{"negative retries", domain.DownloadQueueConfig{MaxConcurrent: 1, MaxRetries: -1}},
		{"negative delay", domain.DownloadQueueConfig{MaxConcurrent: 1, RetryDelay: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.SaveDownloadQueueConfig(tt.cfg)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	assert.Equal(t, domain.DefaultDownloadQueueConfig(), service.GetDownloadQueueConfig())
}

func TestSettingsService_GetSchedulerConfig(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"scheduler.cache-cleanup.enabled":  false,
		"scheduler.pending-sweep.interval": "90s",
	})
	service := NewSettingsService(store, "")

	cfg := service.GetSchedulerConfig()

	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.GetTaskConfig(domain.TaskIDCacheCleanup).Enabled)
	assert.Equal(t, 6*time.Hour, cfg.GetTaskConfig(domain.TaskIDCacheCleanup).Interval)
	assert.True(t, cfg.GetTaskConfig(domain.TaskIDPendingSweep).Enabled)
	assert.Equal(t, 90*time.Second, cfg.GetTaskConfig(domain.TaskIDPendingSweep).Interval)

	require.NoError(t, store.Set("scheduler.enabled", false))
	assert.False(t, service.GetSchedulerConfig().Enabled)
}
