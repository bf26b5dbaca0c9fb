// Package domain defines the core business entities for Tomes.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceDescriptor: Identity and capabilities of a content provider
//   - BookSummary, BookDetail, ChapterSummary, ContentPage: Scraped content
//   - CatalogEntry, RegistryRecord: Installable provider packages
//   - DownloadTask, DownloadStatus: Chapter retrieval queue state
//   - SearchItem, SearchSnapshot: Fan-out search buckets
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
