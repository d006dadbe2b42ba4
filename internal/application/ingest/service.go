// Package ingest orchestrates the ingestion dataflow described in spec §2:
// Sanitizer -> Atomizer -> Persistence -> Source Registry -> full-text index.
// It is the seam the Watcher, Remote Fetcher, and CLI all call through so the
// quarantine-on-resync and idempotence rules live in exactly one place.
package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/domain/ingest/atomize"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

// Indexer is the narrow seam onto the full-text search backend; satisfied by
// internal/infrastructure/search/opensearch's Indexer.
type Indexer interface {
	BulkIndexMolecules(ctx context.Context, molecules []*ingest.Molecule, sourcePath string, atomLabels map[ingest.ID][]string) error
}

// CacheInvalidator is the narrow seam onto the retrieval result cache;
// satisfied directly by internal/infrastructure/database/redis's Cache. May
// be nil, in which case cached search results are never invalidated.
type CacheInvalidator interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// retrievalEpochKey must match application/retrieval's epochKey.
const retrievalEpochKey = "retrieval:epoch"

// QuarantineMode selects what happens to a source path's prior Compound
// generation when a re-ingest detects changed content.
type QuarantineMode string

const (
	// QuarantineModeTag marks the prior generation's molecules
	// provenance=quarantine and leaves them queryable as stale.
	QuarantineModeTag QuarantineMode = "tag"
	// QuarantineModeDelete hard-deletes the prior generation outright.
	QuarantineModeDelete QuarantineMode = "delete"
)

// Service wires the Atomizer to the persistence and registry layers,
// implementing the idempotence (invariant 4) and quarantine (invariant 5)
// rules around re-ingestion.
type Service struct {
	atomizer  *atomize.Atomizer
	compounds ingest.CompoundRepository
	molecules ingest.MoleculeRepository
	atoms     ingest.AtomRepository
	edges     ingest.EdgeRepository
	registry  ingest.SourceRegistry
	indexer   Indexer // may be nil; indexing failures never fail the ingest
	mode      QuarantineMode
	logger    logging.Logger

	cache     CacheInvalidator // may be nil
	pathLocks sync.Map         // source path -> *sync.Mutex, serializes quarantine-then-replace
}

// New constructs the ingest orchestration service.
func New(
	atomizer *atomize.Atomizer,
	compounds ingest.CompoundRepository,
	molecules ingest.MoleculeRepository,
	atoms ingest.AtomRepository,
	edges ingest.EdgeRepository,
	registry ingest.SourceRegistry,
	indexer Indexer,
	mode QuarantineMode,
	logger logging.Logger,
) *Service {
	return &Service{
		atomizer:  atomizer,
		compounds: compounds,
		molecules: molecules,
		atoms:     atoms,
		edges:     edges,
		registry:  registry,
		indexer:   indexer,
		mode:      mode,
		logger:    logger,
	}
}

// WithCache attaches the retrieval result cache's invalidation seam. Returns
// s for chaining.
func (s *Service) WithCache(cache CacheInvalidator) *Service {
	s.cache = cache
	return s
}

// lockFor returns the mutex serializing quarantine-then-replace for a single
// source path, generalizing the teacher's internal/infrastructure/database/
// redis/lock.go distributed-lock pattern to an in-process primitive: a
// single watcher instance has no cross-process contention to guard against.
func (s *Service) lockFor(sourcePath string) *sync.Mutex {
	m, _ := s.pathLocks.LoadOrStore(sourcePath, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// Outcome reports what IngestFile actually did, for CLI/HTTP callers that
// need to distinguish a no-op (unchanged content) from a fresh write.
type Outcome struct {
	Compound      *ingest.Compound
	MoleculeCount int
	Skipped       bool // content hash unchanged since the last ingest
	Quarantined   int  // molecules quarantined/deleted from the prior generation
}

// IngestFile runs the full pipeline for one file's raw bytes: hash-based
// change detection, sanitize+atomize, persistence upsert, prior-generation
// quarantine, full-text indexing, and registry update.
func (s *Service) IngestFile(ctx context.Context, raw []byte, sourcePath string, provenance ingest.Provenance, fileModTime time.Time) (*Outcome, error) {
	lock := s.lockFor(sourcePath)
	lock.Lock()
	defer lock.Unlock()

	hash := contentHash(raw)

	if prior, err := s.registry.Lookup(ctx, sourcePath); err == nil && !prior.Changed(hash) {
		s.logger.Debug("skipping unchanged source", logging.String("path", sourcePath))
		return &Outcome{Skipped: true}, nil
	}

	result, err := s.atomizer.Atomize(raw, sourcePath, provenance, fileModTime)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSanitizeRejected, "atomize failed")
	}
	if len(result.Molecules) == 0 {
		return nil, errors.New(errors.CodeAtomizeEmpty, "atomize produced no molecules")
	}

	quarantined, err := s.quarantinePriorGeneration(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	if err := s.atoms.UpsertBatch(ctx, result.Atoms); err != nil {
		return nil, err
	}
	if err := s.compounds.UpsertBatch(ctx, []*ingest.Compound{result.Compound}); err != nil {
		return nil, err
	}
	if err := s.molecules.UpsertBatch(ctx, result.Molecules); err != nil {
		return nil, err
	}
	if err := s.edges.UpsertBatch(ctx, result.Edges); err != nil {
		return nil, err
	}

	buckets, tags := splitAtomLabels(result.Atoms)
	if err := s.molecules.UpsertFlatAtoms(ctx, result.Molecules, result.Compound, buckets, tags); err != nil {
		return nil, err
	}

	if s.indexer != nil {
		labels := atomLabelsByMolecule(result.Molecules, result.Atoms)
		if idxErr := s.indexer.BulkIndexMolecules(ctx, result.Molecules, sourcePath, labels); idxErr != nil {
			s.logger.Warn("full-text index write failed, persistence already committed",
				logging.String("path", sourcePath), logging.Err(idxErr))
		}
	}

	record := &ingest.SourceRecord{
		Path:           sourcePath,
		ContentHash:    hash,
		TotalAtoms:     len(result.Atoms),
		LastIngestMs:   fileModTime.UnixMilli(),
		LastCompoundID: result.Compound.ID,
	}
	if err := s.registry.Update(ctx, record); err != nil {
		return nil, err
	}

	result.Compound.RecordIngested()
	for _, event := range result.Compound.Events() {
		s.logger.Info("domain event", logging.String("type", event.EventType()))
	}

	if s.cache != nil {
		if _, err := s.cache.Incr(ctx, retrievalEpochKey); err != nil {
			s.logger.Warn("retrieval cache epoch bump failed", logging.String("path", sourcePath), logging.Err(err))
		}
	}

	return &Outcome{Compound: result.Compound, MoleculeCount: len(result.Molecules), Quarantined: quarantined}, nil
}

func (s *Service) quarantinePriorGeneration(ctx context.Context, sourcePath string) (int, error) {
	if _, err := s.registry.Lookup(ctx, sourcePath); errors.IsCode(err, errors.CodeNotFound) {
		return 0, nil
	}
	switch s.mode {
	case QuarantineModeDelete:
		return s.molecules.DeleteBySourcePath(ctx, sourcePath)
	default:
		return s.molecules.QuarantineBySourcePath(ctx, sourcePath)
	}
}

func contentHash(raw []byte) string {
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])
}

func splitAtomLabels(atoms []*ingest.Atom) (buckets, tags []string) {
	for _, a := range atoms {
		if a.Kind == ingest.AtomKindSystem {
			buckets = append(buckets, a.Label)
		} else {
			tags = append(tags, a.Label)
		}
	}
	return buckets, tags
}

func atomLabelsByMolecule(molecules []*ingest.Molecule, atoms []*ingest.Atom) map[ingest.ID][]string {
	labelByID := make(map[ingest.ID]string, len(atoms))
	for _, a := range atoms {
		labelByID[a.ID] = a.Label
	}
	out := make(map[ingest.ID][]string, len(molecules))
	for _, m := range molecules {
		labels := make([]string, 0, len(m.AtomIDs))
		for _, id := range m.AtomIDs {
			if label, ok := labelByID[id]; ok {
				labels = append(labels, label)
			}
		}
		out[m.ID] = labels
	}
	return out
}
