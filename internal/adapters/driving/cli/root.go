// Package cli implements the tomes command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tomes-cli/internal/core/ports/driving"
	"github.com/custodia-labs/tomes-cli/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// Options carries the root flags to the bootstrap function.
type Options struct {
	ConfigDir string
	DataDir   string
	// Ephemeral keeps the download queue in memory for this run.
	Ephemeral bool
}

// Services holds the driving ports the commands call.
type Services struct {
	Catalog    driving.CatalogManager
	Browse     driving.BrowseService
	Search     driving.SearchAggregator
	Queue      driving.DownloadQueue
	Downloader driving.Downloader
	Settings   driving.SettingsService
	Scheduler  driving.Scheduler
}

// BootstrapFunc builds the services for opts. The returned func releases
// them and may be nil.
type BootstrapFunc func(ctx context.Context, opts Options) (*Services, func() error, error)

var (
	catalogManager   driving.CatalogManager
	browseService    driving.BrowseService
	searchAggregator driving.SearchAggregator
	downloadQueue    driving.DownloadQueue
	downloader       driving.Downloader
	settingsService  driving.SettingsService
	scheduler        driving.Scheduler

	bootstrap BootstrapFunc
	shutdown  func() error

	verbose   bool
	configDir string
	dataDir   string
	ephemeral bool
)

// noServices marks commands that run without bootstrapping.
const noServices = "tomes.noServices"

var rootCmd = &cobra.Command{
	Use:   "tomes",
	Short: "Browse, search and download serialized fiction",
	Long: `tomes aggregates serialized fiction from pluggable sources.

Sources are bundled or installed as packages from a registry. Search fans a
query out to every source; chapters are fetched by a download queue.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/.tomes)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.tomes/data)")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep the download queue in memory")
}

// SetServices installs the services used by commands.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	catalogManager = s.Catalog
	browseService = s.Browse
	searchAggregator = s.Search
	downloadQueue = s.Queue
	downloader = s.Downloader
	settingsService = s.Settings
	scheduler = s.Scheduler
}

// SetBootstrap sets the function that builds services before a command
// runs. It is skipped when services are already installed.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// Close releases services built by the bootstrap function. It is safe to
// call more than once.
func Close() error {
	return teardown(nil, nil)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	logger.SetOutput(cmd.ErrOrStderr())

	if cmd.Annotations[noServices] == "true" || bootstrap == nil || catalogManager != nil {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, closeFn, err := bootstrap(ctx, Options{ConfigDir: configDir, DataDir: dataDir, Ephemeral: ephemeral})
	if err != nil {
		return fmt.Errorf("initialise: %w", err)
	}
	SetServices(s)
	shutdown = closeFn
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if shutdown == nil {
		return nil
	}
	fn := shutdown
	shutdown = nil
	return fn()
}
