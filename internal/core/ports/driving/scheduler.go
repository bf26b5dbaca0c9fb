package driving

import "context"

// Scheduler runs recurring maintenance tasks such as sweeping deferred
// deletions and cleaning the download cache.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error
}
