package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

func TestCatalogCmd_Subcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range catalogCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "available", "install", "uninstall", "sweep"}, names)
}

func TestCatalogListCmd_ShowsBundledPackages(t *testing.T) {
	env := setupTestServices(t)

	out, err := execute(t, "catalog", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "builtin.alpha")
	assert.Contains(t, out, strconv.FormatInt(env.alpha.desc.ID, 10))
	assert.Contains(t, out, "builtin.broken")
	assert.Contains(t, out, "bundled")
	assert.Contains(t, out, "loaded")
	assert.Contains(t, out, "Alpha")
}

func TestCatalogListCmd_SkipsUnclaimedDirectories(t *testing.T) {
	env := setupTestServices(t)

	appSettings, err := env.settings.Get()
	require.NoError(t, err)
	dir := filepath.Join(appSettings.Catalog.PackagesDir, "junk")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	out, err := execute(t, "catalog", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "junk", "directories no loader claims are skipped")
}

func TestCatalogAvailableCmd_WithoutRegistry(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "catalog", "available")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCatalogInstallCmd_RequiresPackage(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "catalog", "install")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestCatalogUninstallCmd_UnknownPackage(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "catalog", "uninstall", "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalogSweepCmd(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "catalog", "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 leftover paths.")
}

func TestCatalogCmd_NotConfigured(t *testing.T) {
	SetServices(nil)

	_, err := execute(t, "catalog", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog manager not configured")
}
