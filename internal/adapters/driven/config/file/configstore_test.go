package file

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
	assert.Empty(t, store.Keys())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not valid TOML {{{[["), 0600))

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_ReadsNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[http]
timeout = "45s"
rate_per_second = 1.5

[downloads]
max_concurrent = 4
max_retries = "2"
auto_retry = true
dir = "/srv/tomes"

[scheduler.cache-cleanup]
enabled = false
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "45s", store.GetString("http.timeout"))
	assert.Equal(t, 4, store.GetInt("downloads.max_concurrent"))
	assert.Equal(t, 2, store.GetInt("downloads.max_retries"))
	assert.True(t, store.GetBool("downloads.auto_retry"))
	assert.Equal(t, "/srv/tomes", store.GetString("downloads.dir"))
	assert.False(t, store.GetBool("scheduler.cache-cleanup.enabled"))

	rate, ok := store.Get("http.rate_per_second")
	assert.True(t, ok)
	assert.Equal(t, 1.5, rate)
	assert.Equal(t, 1, store.GetInt("http.rate_per_second"))
}

func TestConfigStore_TypeMismatchReturnsZero(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("downloads.dir", "/tmp"))
	require.NoError(t, store.Set("downloads.max_retries", int64(3)))

	assert.Equal(t, 0, store.GetInt("downloads.dir"))
	assert.False(t, store.GetBool("downloads.dir"))
	assert.Equal(t, "", store.GetString("downloads.max_retries"))
	assert.Nil(t, store.GetStringSlice("downloads.dir"))
	assert.Equal(t, "", store.GetString("missing"))
}

func TestConfigStore_SetPersistsNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("catalog.registry_url", "https://registry.example/index.json"))
	require.NoError(t, store.Set("downloads.max_concurrent", 2))
	require.NoError(t, store.Set("downloads.auto_retry", false))
	require.NoError(t, store.Set("catalog.mirrors", []string{"a", "b"}))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[catalog]")
	assert.Contains(t, string(raw), "[downloads]")
	assert.False(t, strings.Contains(string(raw), `"downloads.max_concurrent"`))

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "https://registry.example/index.json", reloaded.GetString("catalog.registry_url"))
	assert.Equal(t, 2, reloaded.GetInt("downloads.max_concurrent"))
	assert.False(t, reloaded.GetBool("downloads.auto_retry"))
	assert.Equal(t, []string{"a", "b"}, reloaded.GetStringSlice("catalog.mirrors"))
	assert.Equal(t, []string{
		"catalog.mirrors", "catalog.registry_url", "downloads.auto_retry", "downloads.max_concurrent",
	}, reloaded.Keys())
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("http.user_agent", "tomes"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Save_WriteFileError(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("test", "value"))

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Save())
}

func TestConfigStore_SetWithUnmarshallableValue(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_Load_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), nil, 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, store.Keys())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Set("downloads.max_concurrent", i)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("downloads.max_concurrent")
		}()
	}
	wg.Wait()

	_, ok := store.Get("downloads.max_concurrent")
	assert.True(t, ok)
}

func TestUnflattenMap(t *testing.T) {
	got := unflattenMap(map[string]any{
		"a.b.c": 1,
		"a.d":   2,
		"e":     3,
		"f":     4,
		"f.g":   5,
	})

	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": 1},
			"d": 2,
		},
		"e":   3,
		"f":   4,
		"f.g": 5,
	}, got)
}

func TestFlattenMap(t *testing.T) {
	got := flattenMap(map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}, "d": 2},
		"e": 3,
	}, "")

	assert.Equal(t, map[string]any{"a.b.c": 1, "a.d": 2, "e": 3}, got)
}
