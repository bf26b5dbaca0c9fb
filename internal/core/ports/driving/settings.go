package driving

import "github.com/custodia-labs/tomes-cli/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// GetDownloadQueueConfig returns the persisted queue configuration.
	GetDownloadQueueConfig() domain.DownloadQueueConfig

	// SaveDownloadQueueConfig validates and persists the queue configuration.
	SaveDownloadQueueConfig(cfg domain.DownloadQueueConfig) error

	// GetSchedulerConfig returns the maintenance scheduler configuration.
	GetSchedulerConfig() domain.SchedulerConfig
}
