package driven

import (
	"context"
	"errors"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

// ErrNoPackage is returned by a loader when the directory holds no
// artifact of its kind.
var ErrNoPackage = errors.New("no package artifact")

// PackageLoader stages, validates and loads one package family. Every
// package lives in its own directory named after the package.
type PackageLoader interface {
	// Kind returns the package family this loader handles.
	Kind() domain.PackageKind

	// Stage writes the downloaded artifact and any companion files
	// derived from rec into dir.
	Stage(dir string, rec domain.RegistryRecord, artifact []byte) error

	// Validate checks the staged package without retaining it.
	// Returns a domain.Failure of kind ErrValidation on bad input.
	Validate(ctx context.Context, dir, pkg string) error

	// Load resolves the package into a Source and retains a handle to it.
	// Returns ErrNoPackage when no artifact of this kind exists.
	Load(ctx context.Context, dir, pkg string) (Source, error)

	// Release drops any handle retained for pkg.
	Release(pkg string)
}
