package ingest

import "context"

// CompoundRepository defines the persistence contract for Compound
// aggregates. Implementations must honor the Ghost Data Protocol (spec §9):
// every UpsertBatch call is followed by a read-after-write verification, and
// a row-count mismatch surfaces as errors.CodeIngestVerifyFailed.
type CompoundRepository interface {
	// UpsertBatch writes compounds in natural-key upsert semantics (insert;
	// on conflict by id, update non-key columns) and verifies every id is
	// readable before returning.
	UpsertBatch(ctx context.Context, compounds []*Compound) error

	// FindByID retrieves a Compound by id. Returns
	// errors.CodeCompoundNotFound if absent.
	FindByID(ctx context.Context, id ID) (*Compound, error)

	// FindBySourcePath retrieves the most recently ingested Compound for a
	// given source path, or errors.CodeCompoundNotFound if none exists.
	FindBySourcePath(ctx context.Context, path string) (*Compound, error)

	// DeleteBySourcePath removes every Compound (and cascades to its
	// Molecules) ingested from the given path, used by the delete-on-resync
	// quarantine mode.
	DeleteBySourcePath(ctx context.Context, path string) error
}

// MoleculeRepository defines the persistence contract for Molecule entities,
// including the legacy flat retrieval table described in spec §4.C.
type MoleculeRepository interface {
	// UpsertBatch writes molecules in batches of ingest.IngestBatchSize,
	// verifying read-after-write for each batch.
	UpsertBatch(ctx context.Context, molecules []*Molecule) error

	// UpsertFlatAtoms writes the denormalized legacy retrieval rows
	// alongside the graph-native Molecule rows, so retrieval can serve
	// content without a Molecule->Compound join.
	UpsertFlatAtoms(ctx context.Context, molecules []*Molecule, compound *Compound, buckets, tags []string) error

	// FindByID retrieves a Molecule by id.
	FindByID(ctx context.Context, id ID) (*Molecule, error)

	// FindByCompoundID retrieves every Molecule belonging to a Compound,
	// ordered by Sequence.
	FindByCompoundID(ctx context.Context, compoundID ID) ([]*Molecule, error)

	// QuarantineBySourcePath marks every Molecule ingested from path as
	// provenance=quarantine and tags them #quarantined, used by the "tag"
	// quarantine mode (as opposed to delete).
	QuarantineBySourcePath(ctx context.Context, path string) (int, error)

	// DeleteBySourcePath hard-deletes every Molecule (and flat_atoms row)
	// ingested from path, used by the default delete-on-resync quarantine
	// mode.
	DeleteBySourcePath(ctx context.Context, path string) (int, error)
}

// AtomRepository defines the persistence contract for Atom graph vertices.
type AtomRepository interface {
	// UpsertBatch writes atoms deduplicated by id before the call (invariant
	// 3), verifying read-after-write for each batch.
	UpsertBatch(ctx context.Context, atoms []*Atom) error

	// FindByLabel retrieves an Atom by its canonical label, or
	// errors.CodeAtomNotFound if absent.
	FindByLabel(ctx context.Context, label string) (*Atom, error)

	// FindByIDs retrieves atoms in bulk, used to rehydrate a Molecule's tag
	// list for retrieval responses.
	FindByIDs(ctx context.Context, ids []ID) ([]*Atom, error)
}

// EdgeRepository defines the persistence contract for typed graph edges.
type EdgeRepository interface {
	// UpsertBatch writes edges with a natural-key upsert on
	// (SourceID, TargetID, Relation).
	UpsertBatch(ctx context.Context, edges []Edge) error

	// FindByTarget retrieves every edge pointing at an Atom, used by the
	// retrieval engine's neighbor-walk phase to find co-tagged molecules.
	FindByTarget(ctx context.Context, targetID ID, relation RelationKind) ([]Edge, error)
}
