// Package constants provides shared constants used throughout the collection builder.
// This includes timeouts, retry limits, file permissions and the default
// artifact layout, which must stay consistent between the build and check runs.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the timeout for a single HTTP request
	DefaultHTTPTimeout = 30 * time.Second

	// SourceFetchTimeout bounds the complete fetch of one source (all pages, all retries)
	SourceFetchTimeout = 5 * time.Minute

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 30 * time.Minute

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the maximum number of retry attempts for a failed request
	MaxRetries = 4

	// MaxConcurrentFetches is the maximum number of sources fetched at once
	MaxConcurrentFetches = 4

	// DefaultPageSize is the number of registry records requested per page
	DefaultPageSize = 1000

	// DefaultMaxItems caps how many registry records one run will read.
	// This is a known scale limit of the registry query, not "unbounded".
	DefaultMaxItems = 10000

	// DefaultRequestsPerSecond paces registry page requests
	DefaultRequestsPerSecond = 2.0
)

// Registry constants
const (
	// ZenodoURL is the production registry
	ZenodoURL = "https://zenodo.org"

	// ZenodoSandboxURL is the sandbox registry
	ZenodoSandboxURL = "https://sandbox.zenodo.org"

	// CommunityKeyword marks every record that belongs to the collection
	CommunityKeyword = "bioimage.io"

	// TypeKeywordPrefix declares the item type, e.g. "bioimage.io:dataset"
	TypeKeywordPrefix = "bioimage.io:"

	// ResourceLinkPrefix marks related identifiers that link to other items
	ResourceLinkPrefix = "https://bioimage.io/#/r/"

	// UploadNote is appended to registry descriptions by the uploader
	UploadNote = " (Uploaded via https://bioimage.io)"

	// PluginDescriptorSuffix marks application sources that are plugin descriptors
	PluginDescriptorSuffix = ".imjoy.html"
)

// Artifact layout constants
const (
	// DefaultIndexPath is the authoritative index snapshot
	DefaultIndexPath = "rdf.yaml"

	// ProposedIndexName is the side file written by propose runs
	ProposedIndexName = "new-rdf.yaml"

	// DefaultDistDir holds the build outputs
	DefaultDistDir = "dist"

	// DefaultCollectionDir is the per-item record store
	DefaultCollectionDir = "collection"

	// ExportYAMLName is the canonical export, structural encoding
	ExportYAMLName = "rdf.yaml"

	// ExportJSONName is the canonical export, flat JSON encoding
	ExportJSONName = "rdf.json"

	// ReviewName is the review-queue artifact
	ReviewName = "test-rdf.yaml"

	// SummaryName is the markdown review summary
	SummaryName = "review-summary.md"

	// RecordName is the per-item record file name
	RecordName = "rdf.yaml"
)
