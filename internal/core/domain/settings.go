package domain

import "time"

// HTTPSettings configures the request executor.
type HTTPSettings struct {
	Timeout   time.Duration
	UserAgent string

	// RatePerSecond limits requests per host. Zero disables limiting.
	RatePerSecond float64
}

// CatalogSettings configures package discovery and install.
type CatalogSettings struct {
	RegistryURL string

	// PackagesDir holds locally installed packages.
	PackagesDir string

	// SystemDir holds packages shared by every user. Optional.
	SystemDir string

	// ReleaseGrace bounds how long uninstall waits for subscribers to
	// release references.
	ReleaseGrace time.Duration
}

// DownloadSettings configures where chapters are written.
type DownloadSettings struct {
	Dir   string
	Queue DownloadQueueConfig
}

// AppSettings holds all application settings.
type AppSettings struct {
	HTTP      HTTPSettings
	Catalog   CatalogSettings
	Downloads DownloadSettings
}

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// DefaultAppSettings returns sensible defaults. Directory fields are left
// empty and resolved against the data directory by the caller.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		HTTP: HTTPSettings{
			Timeout:       30 * time.Second,
			UserAgent:     DefaultUserAgent,
			RatePerSecond: 2,
		},
		Catalog: CatalogSettings{
			ReleaseGrace: 2 * time.Second,
		},
		Downloads: DownloadSettings{
			Queue: DefaultDownloadQueueConfig(),
		},
	}
}
