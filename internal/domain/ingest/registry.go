package ingest

import "context"

// SourceRegistry tracks (path -> content-hash) for change detection and
// stale-atom quarantine (spec §4.D). It is owned by the Watcher; external
// actors must go through the ingest application service to mutate it.
type SourceRegistry interface {
	// Lookup returns the recorded SourceRecord for path, or
	// errors.CodeNotFound if the path has never been ingested.
	Lookup(ctx context.Context, path string) (*SourceRecord, error)

	// Update records a new content-hash, total-atom count, and ingest
	// timestamp for path, inserting the record on first ingest.
	Update(ctx context.Context, record *SourceRecord) error

	// Delete removes the registry entry for path, used when an
	// administrator un-registers a remote source.
	Delete(ctx context.Context, path string) error

	// ListByPrefix returns every record whose path has the given prefix,
	// used by the Remote Fetcher to quarantine a whole repository's prior
	// generation (prefix "github:{owner}/{repo}/").
	ListByPrefix(ctx context.Context, prefix string) ([]*SourceRecord, error)
}
