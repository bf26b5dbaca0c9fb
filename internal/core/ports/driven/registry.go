package driven

import (
	"context"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

// RegistryClient reads the remote package index.
type RegistryClient interface {
	// FetchIndex returns every record of the registry index.
	FetchIndex(ctx context.Context) ([]domain.RegistryRecord, error)

	// FetchArtifact downloads a package artifact. Relative URLs are
	// resolved against the index URL.
	FetchArtifact(ctx context.Context, rawURL string) ([]byte, error)
}
