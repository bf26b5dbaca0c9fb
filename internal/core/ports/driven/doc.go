// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Source: A content provider (bundled, script or compiled package)
//   - HTTPClient: Executes provider requests with headers and cookies
//   - PackageLoader: Validates and loads one package family
//   - RegistryClient: Fetches the remote package index and artifacts
//   - DownloadStore: Durable download tasks and cache entries
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SchedulerStore: Maintenance task state. Without it, the scheduler is disabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or source package
package driven
