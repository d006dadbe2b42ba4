package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/domain/ingest/atomize"
	"github.com/tagwalker/tagwalker/internal/domain/ingest/sanitize"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

// fakeRepos is an in-memory stand-in for the four persistence repositories
// plus the source registry, exercising the orchestration logic in Service
// without a database.
type fakeRepos struct {
	compounds map[ingest.ID]*ingest.Compound
	molecules map[ingest.ID]*ingest.Molecule
	byPath    map[string][]ingest.ID
	atoms     map[ingest.ID]*ingest.Atom
	edges     []ingest.Edge
	records   map[string]*ingest.SourceRecord
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		compounds: map[ingest.ID]*ingest.Compound{},
		molecules: map[ingest.ID]*ingest.Molecule{},
		byPath:    map[string][]ingest.ID{},
		atoms:     map[ingest.ID]*ingest.Atom{},
		records:   map[string]*ingest.SourceRecord{},
	}
}

func (f *fakeRepos) UpsertBatch(ctx context.Context, compounds []*ingest.Compound) error {
	for _, c := range compounds {
		f.compounds[c.ID] = c
	}
	return nil
}
func (f *fakeRepos) FindByID(ctx context.Context, id ingest.ID) (*ingest.Compound, error) {
	if c, ok := f.compounds[id]; ok {
		return c, nil
	}
	return nil, errors.New(errors.CodeCompoundNotFound, "not found")
}
func (f *fakeRepos) FindBySourcePath(ctx context.Context, path string) (*ingest.Compound, error) {
	return nil, errors.New(errors.CodeCompoundNotFound, "not found")
}
func (f *fakeRepos) DeleteBySourcePath(ctx context.Context, path string) error { return nil }

type fakeMoleculeRepo struct{ f *fakeRepos }

func (r *fakeMoleculeRepo) UpsertBatch(ctx context.Context, molecules []*ingest.Molecule) error {
	for _, m := range molecules {
		r.f.molecules[m.ID] = m
		r.f.byPath[string(m.CompoundID)] = append(r.f.byPath[string(m.CompoundID)], m.ID)
	}
	return nil
}
func (r *fakeMoleculeRepo) UpsertFlatAtoms(ctx context.Context, molecules []*ingest.Molecule, compound *ingest.Compound, buckets, tags []string) error {
	return nil
}
func (r *fakeMoleculeRepo) FindByID(ctx context.Context, id ingest.ID) (*ingest.Molecule, error) {
	return r.f.molecules[id], nil
}
func (r *fakeMoleculeRepo) FindByCompoundID(ctx context.Context, compoundID ingest.ID) ([]*ingest.Molecule, error) {
	return nil, nil
}
func (r *fakeMoleculeRepo) QuarantineBySourcePath(ctx context.Context, path string) (int, error) {
	return 0, nil
}
func (r *fakeMoleculeRepo) DeleteBySourcePath(ctx context.Context, path string) (int, error) {
	return 0, nil
}

type fakeAtomRepo struct{ f *fakeRepos }

func (r *fakeAtomRepo) UpsertBatch(ctx context.Context, atoms []*ingest.Atom) error {
	for _, a := range atoms {
		r.f.atoms[a.ID] = a
	}
	return nil
}
func (r *fakeAtomRepo) FindByLabel(ctx context.Context, label string) (*ingest.Atom, error) {
	for _, a := range r.f.atoms {
		if a.Label == label {
			return a, nil
		}
	}
	return nil, errors.New(errors.CodeAtomNotFound, "not found")
}
func (r *fakeAtomRepo) FindByIDs(ctx context.Context, ids []ingest.ID) ([]*ingest.Atom, error) {
	var out []*ingest.Atom
	for _, id := range ids {
		if a, ok := r.f.atoms[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeEdgeRepo struct{ f *fakeRepos }

func (r *fakeEdgeRepo) UpsertBatch(ctx context.Context, edges []ingest.Edge) error {
	r.f.edges = append(r.f.edges, edges...)
	return nil
}
func (r *fakeEdgeRepo) FindByTarget(ctx context.Context, targetID ingest.ID, relation ingest.RelationKind) ([]ingest.Edge, error) {
	return nil, nil
}

type fakeRegistry struct{ f *fakeRepos }

func (r *fakeRegistry) Lookup(ctx context.Context, path string) (*ingest.SourceRecord, error) {
	if rec, ok := r.f.records[path]; ok {
		return rec, nil
	}
	return nil, errors.New(errors.CodeNotFound, "not found")
}
func (r *fakeRegistry) Update(ctx context.Context, record *ingest.SourceRecord) error {
	r.f.records[record.Path] = record
	return nil
}
func (r *fakeRegistry) Delete(ctx context.Context, path string) error {
	delete(r.f.records, path)
	return nil
}
func (r *fakeRegistry) ListByPrefix(ctx context.Context, prefix string) ([]*ingest.SourceRecord, error) {
	return nil, nil
}

func newTestService() (*Service, *fakeRepos) {
	f := newFakeRepos()
	logger := logging.NewNopLogger()
	san := sanitize.New(logger)
	atomizer := atomize.New(san, nil, logger)
	svc := New(atomizer, f, &fakeMoleculeRepo{f}, &fakeAtomRepo{f}, &fakeEdgeRepo{f}, &fakeRegistry{f}, nil, QuarantineModeTag, logger)
	return svc, f
}

func TestService_IngestFile_FreshIngest(t *testing.T) {
	svc, f := newTestService()

	raw := []byte("The quick brown fox jumps. The lazy dog sleeps.\n")
	outcome, err := svc.IngestFile(context.Background(), raw, "notes/fox.md", ingest.ProvenanceInternal, time.Now())
	require.NoError(t, err)
	assert.False(t, outcome.Skipped)
	assert.Greater(t, outcome.MoleculeCount, 0)
	assert.Len(t, f.compounds, 1)
}

// TestService_IngestFile_IdempotentSkip covers invariant 4: re-ingesting
// identical bytes for the same path is a no-op.
func TestService_IngestFile_IdempotentSkip(t *testing.T) {
	svc, _ := newTestService()
	raw := []byte("The quick brown fox jumps. The lazy dog sleeps.\n")
	ctx := context.Background()

	_, err := svc.IngestFile(ctx, raw, "notes/fox.md", ingest.ProvenanceInternal, time.Now())
	require.NoError(t, err)

	outcome, err := svc.IngestFile(ctx, raw, "notes/fox.md", ingest.ProvenanceInternal, time.Now())
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
}

func TestService_IngestFile_ChangedContentCreatesNewCompound(t *testing.T) {
	svc, f := newTestService()
	ctx := context.Background()

	_, err := svc.IngestFile(ctx, []byte("Version one content here.\n"), "notes/doc.md", ingest.ProvenanceInternal, time.Now())
	require.NoError(t, err)

	outcome, err := svc.IngestFile(ctx, []byte("Version two content, completely different.\n"), "notes/doc.md", ingest.ProvenanceInternal, time.Now())
	require.NoError(t, err)
	assert.False(t, outcome.Skipped)
	assert.Len(t, f.compounds, 2)
}
