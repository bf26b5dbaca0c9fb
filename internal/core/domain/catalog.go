package domain

import (
	"path"
	"strings"
)

// PackageKind distinguishes compiled bundles from interpreted scripts.
type PackageKind string

// Package kinds.
const (
	PackageCompiled PackageKind = "compiled"
	PackageScript   PackageKind = "script"
)

// ScriptExtension marks a registry pkgUrl as an interpreted package.
const ScriptExtension = ".js"

// Origin records where a catalog entry was discovered.
type Origin string

// Catalog origins.
const (
	OriginBundled    Origin = "bundled"
	OriginInstalled  Origin = "installed"
	OriginSystemWide Origin = "system"
	OriginRemoteOnly Origin = "remote"
)

// LoadState is the load state of a catalog entry.
type LoadState string

// Load states.
const (
	StateUnloaded LoadState = "unloaded"
	StateLoaded   LoadState = "loaded"
	StateFailed   LoadState = "failed"
)

// CatalogEntry is a provider package known to the catalog.
type CatalogEntry struct {
	PkgName string
	Name    string
	Lang    string
	Version int
	Kind    PackageKind
	Origin  Origin
	State   LoadState

	// Descriptor is set when State is StateLoaded.
	Descriptor *SourceDescriptor

	// Error holds the load failure message when State is StateFailed.
	Error string
}

// IsLoaded reports whether the entry resolved to a usable source.
func (e CatalogEntry) IsLoaded() bool {
	return e.State == StateLoaded && e.Descriptor != nil
}

// ValidPackageName reports whether pkg can name a package directory.
func ValidPackageName(pkg string) bool {
	return pkg != "" && pkg != "." && pkg != ".." && !strings.ContainsAny(pkg, `/\`)
}

// SourceID returns the descriptor id, or 0 when the entry is not loaded.
func (e CatalogEntry) SourceID() int64 {
	if e.Descriptor == nil {
		return 0
	}
	return e.Descriptor.ID
}

// RegistryRecord is one package in the remote registry index.
type RegistryRecord struct {
	PkgName     string `json:"pkgName"`
	Name        string `json:"name"`
	Lang        string `json:"lang"`
	Version     int    `json:"version"`
	PkgURL      string `json:"pkgUrl"`
	JarURL      string `json:"jarUrl,omitempty"`
	IconURL     string `json:"iconUrl"`
	Description string `json:"description"`
}

// Kind reports whether the record describes a script or a compiled bundle.
func (r RegistryRecord) Kind() PackageKind {
	u := r.PkgURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if strings.EqualFold(path.Ext(u), ScriptExtension) {
		return PackageScript
	}
	return PackageCompiled
}

// Validate checks the fields every install needs.
func (r RegistryRecord) Validate() error {
	switch {
	case r.PkgName == "":
		return ValidationError("registry record has no pkgName", nil)
	case !ValidPackageName(r.PkgName):
		return ValidationError("invalid package name "+r.PkgName, nil)
	case r.PkgURL == "":
		return ValidationError("registry record "+r.PkgName+" has no pkgUrl", nil)
	case r.Kind() == PackageCompiled && r.JarURL == "":
		return ValidationError("compiled package "+r.PkgName+" has no jarUrl", nil)
	}
	return nil
}

// Metadata builds the script sidecar from the registry record. The
// registry is authoritative, so a script cannot misrepresent its identity.
func (r RegistryRecord) Metadata() ScriptMetadata {
	return ScriptMetadata{
		ID:      SourceID(r.Name, r.Lang, r.Version),
		Name:    r.Name,
		Lang:    r.Lang,
		Version: r.Version,
		Site:    r.PkgURL,
		Icon:    r.IconURL,
	}
}

// RemotePackage is a registry record annotated with local install state.
type RemotePackage struct {
	Record    RegistryRecord
	Installed bool
	HasUpdate bool
}

// ScriptMetadata is the sidecar persisted next to a script package.
type ScriptMetadata struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Version int    `json:"version"`
	Site    string `json:"site"`
	Icon    string `json:"icon"`
}

// InstallStepKind is a progress stage of a package install.
type InstallStepKind string

// Install steps.
const (
	StepDownloading InstallStepKind = "downloading"
	StepInstalling  InstallStepKind = "installing"
	StepIdle        InstallStepKind = "idle"
	StepSuccess     InstallStepKind = "success"
	StepError       InstallStepKind = "error"
)

// InstallStep is one progress event of an install stream.
type InstallStep struct {
	Kind    InstallStepKind
	PkgName string

	// Message carries the cause for StepError.
	Message string
}

// IsTerminal reports whether no further steps follow.
func (s InstallStep) IsTerminal() bool {
	return s.Kind == StepSuccess || s.Kind == StepError
}

// ChangeKind is the kind of an installation-change notification.
type ChangeKind string

// Installation changes.
const (
	ChangeInstalled   ChangeKind = "installed"
	ChangeRemoving    ChangeKind = "removing"
	ChangeUninstalled ChangeKind = "uninstalled"
)

// InstallationChange notifies subscribers that a package changed.
type InstallationChange struct {
	Kind    ChangeKind
	PkgName string

	// SourceID identifies the affected source when known.
	SourceID int64
}
