package services

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyHTTPTimeout       = "http.timeout"
	keyHTTPUserAgent     = "http.user_agent"
	keyHTTPRate          = "http.rate_per_second"
	keyRegistryURL       = "catalog.registry_url"
	keyPackagesDir       = "catalog.packages_dir"
	keySystemDir         = "catalog.system_dir"
	keyReleaseGrace      = "catalog.release_grace"
	keyDownloadsDir      = "downloads.dir"
	keyMaxConcurrent     = "downloads.max_concurrent"
	keyMaxRetries        = "downloads.max_retries"
	keyRetryDelay        = "downloads.retry_delay"
	keyAutoRetry         = "downloads.auto_retry"
	keySchedulerEnabled  = "scheduler.enabled"
	defaultPackagesDir   = "packages"
	defaultDownloadsDir  = "downloads"
	schedulerTaskPrefix  = "scheduler."
	schedulerEnabledKey  = ".enabled"
	schedulerIntervalKey = ".interval"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	dataDir     string
}

// NewSettingsService creates a new settings service. Relative or empty
// directories resolve against dataDir.
func NewSettingsService(configStore driven.ConfigStore, dataDir string) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		dataDir:     dataDir,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := s.GetDefaults()

	settings := &domain.AppSettings{
		HTTP: domain.HTTPSettings{
			Timeout:       s.getDuration(keyHTTPTimeout, defaults.HTTP.Timeout),
			UserAgent:     s.getString(keyHTTPUserAgent, defaults.HTTP.UserAgent),
			RatePerSecond: s.getFloat(keyHTTPRate, defaults.HTTP.RatePerSecond),
		},
		Catalog: domain.CatalogSettings{
			RegistryURL:  s.getString(keyRegistryURL, defaults.Catalog.RegistryURL),
			PackagesDir:  s.dir(s.getString(keyPackagesDir, defaults.Catalog.PackagesDir)),
			SystemDir:    s.configStore.GetString(keySystemDir), // No default - system packages are optional
			ReleaseGrace: s.getDuration(keyReleaseGrace, defaults.Catalog.ReleaseGrace),
		},
		Downloads: domain.DownloadSettings{
			Dir:   s.dir(s.getString(keyDownloadsDir, defaults.Downloads.Dir)),
			Queue: s.GetDownloadQueueConfig(),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyHTTPTimeout, settings.HTTP.Timeout.String()},
		{keyHTTPUserAgent, settings.HTTP.UserAgent},
		{keyHTTPRate, settings.HTTP.RatePerSecond},
		{keyRegistryURL, settings.Catalog.RegistryURL},
		{keyPackagesDir, settings.Catalog.PackagesDir},
		{keySystemDir, settings.Catalog.SystemDir},
		{keyReleaseGrace, settings.Catalog.ReleaseGrace.String()},
		{keyDownloadsDir, settings.Downloads.Dir},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return s.SaveDownloadQueueConfig(settings.Downloads.Queue)
}

// GetDefaults returns default settings with directories resolved.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	d := domain.DefaultAppSettings()
	d.Catalog.PackagesDir = s.dir(defaultPackagesDir)
	d.Downloads.Dir = s.dir(defaultDownloadsDir)
	return d
}

// GetDownloadQueueConfig returns the persisted queue configuration.
func (s *SettingsService) GetDownloadQueueConfig() domain.DownloadQueueConfig {
	d := domain.DefaultDownloadQueueConfig()
	return domain.DownloadQueueConfig{
		MaxConcurrent: s.getInt(keyMaxConcurrent, d.MaxConcurrent),
		MaxRetries:    s.getInt(keyMaxRetries, d.MaxRetries),
		RetryDelay:    s.getDuration(keyRetryDelay, d.RetryDelay),
		AutoRetry:     s.getBool(keyAutoRetry, d.AutoRetry),
	}
}

// SaveDownloadQueueConfig validates and persists the queue configuration.
func (s *SettingsService) SaveDownloadQueueConfig(cfg domain.DownloadQueueConfig) error {
	switch {
	case cfg.MaxConcurrent < 1:
		return domain.ValidationError("max concurrent downloads must be at least 1", nil)
	case cfg.MaxRetries < 0:
		return domain.ValidationError("max retries cannot be negative", nil)
	case cfg.RetryDelay < 0:
		return domain.ValidationError("retry delay cannot be negative", nil)
	}

	if err := s.configStore.Set(keyMaxConcurrent, cfg.MaxConcurrent); err != nil {
		return fmt.Errorf("save max concurrent: %w", err)
	}
	if err := s.configStore.Set(keyMaxRetries, cfg.MaxRetries); err != nil {
		return fmt.Errorf("save max retries: %w", err)
	}
	if err := s.configStore.Set(keyRetryDelay, cfg.RetryDelay.String()); err != nil {
		return fmt.Errorf("save retry delay: %w", err)
	}
	if err := s.configStore.Set(keyAutoRetry, cfg.AutoRetry); err != nil {
		return fmt.Errorf("save auto retry: %w", err)
	}
	return nil
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()
	cfg.Enabled = s.getBool(keySchedulerEnabled, cfg.Enabled)

	for taskID, taskCfg := range cfg.TaskConfigs {
		prefix := schedulerTaskPrefix + taskID
		taskCfg.Enabled = s.getBool(prefix+schedulerEnabledKey, taskCfg.Enabled)
		taskCfg.Interval = s.getDuration(prefix+schedulerIntervalKey, taskCfg.Interval)
		cfg.TaskConfigs[taskID] = taskCfg
	}

	return cfg
}

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getDuration reads a duration string like "45s" or "1h".
func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	str := s.configStore.GetString(key)
	if str == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(str)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

// dir resolves a relative directory against the data directory.
func (s *SettingsService) dir(p string) string {
	if p == "" || filepath.IsAbs(p) || s.dataDir == "" {
		return p
	}
	return filepath.Join(s.dataDir, p)
}
