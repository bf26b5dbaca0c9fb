// Command tomes browses, searches and downloads serialized fiction.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/tomes-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/tomes-cli/internal/adapters/driven/httpclient"
	"github.com/custodia-labs/tomes-cli/internal/adapters/driven/loader/native"
	"github.com/custodia-labs/tomes-cli/internal/adapters/driven/loader/script"
	"github.com/custodia-labs/tomes-cli/internal/adapters/driven/registry"
	"github.com/custodia-labs/tomes-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/tomes-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/tomes-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/core/services"
	"github.com/custodia-labs/tomes-cli/internal/logger"
	"github.com/custodia-labs/tomes-cli/internal/sources/builtin"
)

func main() {
	cli.SetBootstrap(bootstrap)

	err := cli.Execute(context.Background())
	if closeErr := cli.Close(); closeErr != nil {
		logger.Error("shutdown: %v", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// bootstrap wires the adapters and services for one command.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, func() error, error) {
	dataDir := opts.DataDir
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".tomes", "data")
	}

	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, dataDir)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, err
	}

	client := httpclient.New(httpclient.OptionsFromSettings(settings.HTTP))

	var reg driven.RegistryClient
	if settings.Catalog.RegistryURL != "" {
		rc, err := registry.New(settings.Catalog.RegistryURL, client)
		if err != nil {
			logger.Warn("registry disabled: %v", err)
		} else {
			reg = rc
		}
	}

	bundled, err := builtin.Load(client)
	if err != nil {
		return nil, nil, err
	}
	loaders := []driven.PackageLoader{
		script.New(client, settings.HTTP.Timeout),
		native.New(client),
	}
	catalog := services.NewCatalogManager(settings.Catalog, reg, loaders, bundled)
	if _, err := catalog.LoadAll(ctx); err != nil {
		return nil, nil, fmt.Errorf("loading packages: %w", err)
	}

	var (
		downloadStore  driven.DownloadStore
		schedulerStore driven.SchedulerStore
		closeFn        = func() error { return nil }
	)
	if opts.Ephemeral {
		downloadStore = memory.NewDownloadStore()
		schedulerStore = memory.NewSchedulerStore()
	} else {
		store, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, nil, err
		}
		downloadStore = store.DownloadStore()
		schedulerStore = store.SchedulerStore()
		closeFn = func() error {
			if err := store.Close(); err != nil {
				return fmt.Errorf("closing store: %w", err)
			}
			return nil
		}
	}

	queue := services.NewDownloadQueue(downloadStore, settingsService)
	if err := queue.Restore(ctx); err != nil {
		_ = closeFn()
		return nil, nil, err
	}

	scheduler := services.NewScheduler(settingsService.GetSchedulerConfig(), schedulerStore, catalog, queue)

	s := &cli.Services{
		Catalog:    catalog,
		Browse:     services.NewBrowseService(catalog),
		Search:     services.NewSearchAggregator(catalog),
		Queue:      queue,
		Downloader: services.NewDownloader(queue, catalog, settings.Downloads.Dir),
		Settings:   settingsService,
		Scheduler:  scheduler,
	}
	return s, closeFn, nil
}
