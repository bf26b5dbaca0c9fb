package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryRecord_Kind(t *testing.T) {
	tests := []struct {
		url  string
		want PackageKind
	}{
		{"https://x/foo.js", PackageScript},
		{"https://x/foo.JS?v=2", PackageScript},
		{"https://x/foo.apk", PackageCompiled},
		{"https://x/foo", PackageCompiled},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, RegistryRecord{PkgURL: tt.url}.Kind())
		})
	}
}

func TestRegistryRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		record  RegistryRecord
		wantErr bool
	}{
		{"script", RegistryRecord{PkgName: "foo", PkgURL: "https://x/foo.js"}, false},
		{"compiled with jar", RegistryRecord{PkgName: "bar", PkgURL: "https://x/bar.apk", JarURL: "https://x/bar.so"}, false},
		{"compiled without jar", RegistryRecord{PkgName: "bar", PkgURL: "https://x/bar.apk"}, true},
		{"no name", RegistryRecord{PkgURL: "https://x/foo.js"}, true},
		{"traversal", RegistryRecord{PkgName: "../evil", PkgURL: "https://x/foo.js"}, true},
		{"no url", RegistryRecord{PkgName: "foo"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistryRecord_MetadataComesFromRecord(t *testing.T) {
	r := RegistryRecord{
		PkgName: "foo",
		Name:    "foo",
		Lang:    "en",
		Version: 1,
		PkgURL:  "https://x/foo.js",
		IconURL: "https://x/foo.png",
	}

	m := r.Metadata()
	assert.Equal(t, SourceID("foo", "en", 1), m.ID)
	assert.Equal(t, "en", m.Lang)
	assert.Equal(t, "https://x/foo.png", m.Icon)
	assert.Equal(t, "https://x/foo.js", m.Site)
}

func TestInstallStep_IsTerminal(t *testing.T) {
	assert.False(t, InstallStep{Kind: StepDownloading}.IsTerminal())
	assert.False(t, InstallStep{Kind: StepIdle}.IsTerminal())
	assert.True(t, InstallStep{Kind: StepSuccess}.IsTerminal())
	assert.True(t, InstallStep{Kind: StepError}.IsTerminal())
}

func TestCatalogEntry_IsLoaded(t *testing.T) {
	d := NewSourceDescriptor("x", "en", "", 1, Capabilities{})

	assert.True(t, CatalogEntry{State: StateLoaded, Descriptor: &d}.IsLoaded())
	assert.False(t, CatalogEntry{State: StateLoaded}.IsLoaded())
	assert.False(t, CatalogEntry{State: StateFailed, Descriptor: &d}.IsLoaded())
}

func TestValidPackageName(t *testing.T) {
	assert.True(t, ValidPackageName("foo"))
	assert.True(t, ValidPackageName("builtin.novelhall"))
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.False(t, ValidPackageName(bad), bad)
	}
}

func TestCatalogEntry_SourceID(t *testing.T) {
	assert.Zero(t, CatalogEntry{PkgName: "foo"}.SourceID())

	d := NewSourceDescriptor("Foo", "en", "https://foo.example", 1, Capabilities{})
	assert.Equal(t, d.ID, CatalogEntry{PkgName: "foo", Descriptor: &d}.SourceID())
}
