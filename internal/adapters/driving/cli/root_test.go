package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBootstrap(t *testing.T, fn BootstrapFunc) {
	t.Helper()
	SetServices(nil)
	SetBootstrap(fn)
	t.Cleanup(func() {
		SetBootstrap(nil)
		SetServices(nil)
		configDir, dataDir, ephemeral = "", "", false
	})
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	for _, name := range []string{"verbose", "config-dir", "data-dir", "ephemeral"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "v", rootCmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestRootCmd_BootstrapsServices(t *testing.T) {
	var (
		got    Options
		closed int
	)
	withBootstrap(t, func(_ context.Context, opts Options) (*Services, func() error, error) {
		got = opts
		env := newStubServices(t)
		return env, func() error { closed++; return nil }, nil
	})

	out, err := execute(t, "--config-dir", "/etc/tomes", "--data-dir", "/var/tomes", "--ephemeral", "source", "list")
	require.NoError(t, err)

	assert.Equal(t, Options{ConfigDir: "/etc/tomes", DataDir: "/var/tomes", Ephemeral: true}, got)
	assert.Contains(t, out, "Alpha")
	assert.Equal(t, 1, closed)

	require.NoError(t, Close())
	assert.Equal(t, 1, closed, "shutdown runs once")
}

func TestRootCmd_BootstrapFailure(t *testing.T) {
	withBootstrap(t, func(context.Context, Options) (*Services, func() error, error) {
		return nil, nil, errors.New("database is locked")
	})

	_, err := execute(t, "download", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialise: database is locked")
}

func TestRootCmd_VersionSkipsBootstrap(t *testing.T) {
	withBootstrap(t, func(context.Context, Options) (*Services, func() error, error) {
		t.Fatal("bootstrap must not run for version")
		return nil, nil, nil
	})

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tomes version")
}

// newStubServices returns services over stub sources without installing them.
func newStubServices(t *testing.T) *Services {
	t.Helper()
	setupTestServices(t)
	s := &Services{
		Catalog:    catalogManager,
		Browse:     browseService,
		Search:     searchAggregator,
		Queue:      downloadQueue,
		Downloader: downloader,
		Settings:   settingsService,
	}
	SetServices(nil)
	return s
}
