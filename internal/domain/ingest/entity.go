// Package ingest provides the core domain model for the ingestion pipeline:
// Compound, Molecule, Atom, Edge, and SourceRecord, plus the Sanitizer and
// Atomizer contracts that produce them.
package ingest

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"time"
)

// ID is the deterministic content-derived identifier used by every entity in
// this package. Unlike common.ID (a random UUID), an ingest ID is a pure hash
// of the entity's defining content so re-ingesting identical input always
// yields the same id (invariant 4 — idempotence).
type ID string

// Provenance labels the origin of a Compound or Molecule.
type Provenance string

const (
	ProvenanceInternal   Provenance = "internal"
	ProvenanceExternal   Provenance = "external"
	ProvenanceQuarantine Provenance = "quarantine"
	ProvenanceSystem     Provenance = "system"
)

// MoleculeKind classifies a Molecule's content for type-specific fission and
// scoring rules.
type MoleculeKind string

const (
	KindProse MoleculeKind = "prose"
	KindCode  MoleculeKind = "code"
	KindData  MoleculeKind = "data"
)

// AtomKind distinguishes path-derived structural tags from free-form concept
// tags discovered in molecule content.
type AtomKind string

const (
	AtomKindSystem  AtomKind = "system"
	AtomKindConcept AtomKind = "concept"
)

// RelationKind is the edge type between two entities in the atom graph.
type RelationKind string

const (
	RelationHasTag RelationKind = "has_tag" // Compound -> Atom
	RelationTagged RelationKind = "tagged"  // Molecule -> Atom
)

// DefaultAtomWeight is the weight assigned to a freshly created Atom.
const DefaultAtomWeight = 1.0

// ArchiveAtomWeight is the weight assigned to time-decayed/archive atoms
// (path contains /history/ or /archive/, per spec §4.B.3).
const ArchiveAtomWeight = 0.5

// DefaultMoleculeBytes is the maximum size of a single Molecule before
// post-split size enforcement force-chunks it (spec §4.B.5).
const DefaultMoleculeBytes = 1024

// ─────────────────────────────────────────────────────────────────────────────
// Domain events
// ─────────────────────────────────────────────────────────────────────────────

// DomainEvent is a marker interface for ingestion-pipeline domain events.
type DomainEvent interface {
	EventType() string
}

// CompoundIngestedEvent is published when the Atomizer produces a complete,
// persistable Compound topology.
type CompoundIngestedEvent struct {
	CompoundID    ID
	SourcePath    string
	MoleculeCount int
}

func (e CompoundIngestedEvent) EventType() string { return "compound.ingested" }

// MoleculeQuarantinedEvent is published when a prior generation of a
// Compound's molecules is superseded by a re-ingest with a changed
// content-hash (invariant 5).
type MoleculeQuarantinedEvent struct {
	SourcePath    string
	MoleculeCount int
}

func (e MoleculeQuarantinedEvent) EventType() string { return "molecule.quarantined" }

// ─────────────────────────────────────────────────────────────────────────────
// Deterministic ID derivation
// ─────────────────────────────────────────────────────────────────────────────

// NewCompoundID derives a Compound id from its sanitized body and source
// path. Per the Open Question 3 decision in SPEC_FULL.md, a changed body
// always yields a new id even for the same path.
func NewCompoundID(sanitizedBody, sourcePath string) ID {
	sum := md5.Sum([]byte(sanitizedBody + sourcePath))
	return ID("mem_" + hex.EncodeToString(sum[:]))
}

// NewMoleculeID derives a Molecule id from its owning compound, sequence
// index, and content, so identical molecules across identical re-ingests
// collide deterministically.
func NewMoleculeID(compoundID ID, sequence int, content string) ID {
	sum := md5.Sum([]byte(string(compoundID) + ":" + strconv.Itoa(sequence) + ":" + content))
	return ID("mcl_" + hex.EncodeToString(sum[:]))
}

// NewAtomID derives an Atom id from its canonical label. Atom labels are the
// natural key (invariant 3); two molecules tagging the same label always
// resolve to the same Atom.
func NewAtomID(label string) ID {
	sum := md5.Sum([]byte(label))
	return ID("atm_" + hex.EncodeToString(sum[:]))
}

// ─────────────────────────────────────────────────────────────────────────────
// Compound — the file-scale ingested unit
// ─────────────────────────────────────────────────────────────────────────────

// Compound is the aggregate root for a single ingested document. Its id is
// deterministic from content + path (NewCompoundID), so two ingests of
// unchanged content always resolve to the same Compound (invariant 4).
type Compound struct {
	ID                  ID
	SourcePath          string
	Body                string
	Provenance          Provenance
	MolecularSignature  uint64
	MoleculeIDs         []ID
	AtomIDs             []ID
	IngestedAt          time.Time

	events []DomainEvent
}

// NewCompound constructs a Compound from its already-sanitized body. The id
// is derived, never supplied, to keep the invariant that content determines
// identity.
func NewCompound(sanitizedBody, sourcePath string, provenance Provenance, signature uint64, ingestedAt time.Time) *Compound {
	c := &Compound{
		ID:                 NewCompoundID(sanitizedBody, sourcePath),
		SourcePath:         sourcePath,
		Body:               sanitizedBody,
		Provenance:         provenance,
		MolecularSignature: signature,
		IngestedAt:         ingestedAt,
	}
	return c
}

// AddMolecule records a Molecule id and the union of its Atom ids onto the
// Compound, preserving insertion order and de-duplicating atom ids.
func (c *Compound) AddMolecule(m *Molecule) {
	c.MoleculeIDs = append(c.MoleculeIDs, m.ID)
	for _, atomID := range m.AtomIDs {
		if !containsID(c.AtomIDs, atomID) {
			c.AtomIDs = append(c.AtomIDs, atomID)
		}
	}
}

// Events returns and clears the Compound's pending domain events.
func (c *Compound) Events() []DomainEvent {
	events := c.events
	c.events = nil
	return events
}

// RecordIngested appends a CompoundIngestedEvent to the pending event queue.
func (c *Compound) RecordIngested() {
	c.events = append(c.events, CompoundIngestedEvent{
		CompoundID:    c.ID,
		SourcePath:    c.SourcePath,
		MoleculeCount: len(c.MoleculeIDs),
	})
}

func containsID(ids []ID, target ID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Molecule — the sentence/code-block/data-row retrieval unit
// ─────────────────────────────────────────────────────────────────────────────

// Molecule is the fine-grained unit of retrieval produced by the Atomizer's
// fission step. Start/End are byte offsets into the owning Compound's Body
// (invariant 2): Body[Start:End] must equal Content, modulo the documented
// prose-split whitespace elision.
type Molecule struct {
	ID                  ID
	CompoundID          ID
	Sequence            int
	Content             string
	Start               int
	End                 int
	Kind                MoleculeKind
	NumericValue        *float64
	NumericUnit         string
	MolecularSignature  uint64
	Timestamp           time.Time
	AtomIDs             []ID
	Provenance          Provenance
}

// NewMolecule constructs a Molecule with a deterministic id. Start/End must
// already be validated by the caller (atomizer.Atomize) against
// compound.Body before this constructor is invoked.
func NewMolecule(compoundID ID, sequence int, content string, start, end int, kind MoleculeKind, signature uint64, timestamp time.Time, provenance Provenance) *Molecule {
	return &Molecule{
		ID:                 NewMoleculeID(compoundID, sequence, content),
		CompoundID:         compoundID,
		Sequence:           sequence,
		Content:            content,
		Start:              start,
		End:                end,
		Kind:               kind,
		MolecularSignature: signature,
		Timestamp:          timestamp,
		Provenance:         provenance,
	}
}

// TagWith appends atomID to the molecule's atom list, de-duplicating.
func (m *Molecule) TagWith(atomID ID) {
	if !containsID(m.AtomIDs, atomID) {
		m.AtomIDs = append(m.AtomIDs, atomID)
	}
}

// IsArchive reports whether the molecule carries the #Archive system atom,
// used by the retrieval engine's time-ladder scoring (spec §4.G.6).
func (m *Molecule) IsArchive(archiveAtomID ID) bool {
	return containsID(m.AtomIDs, archiveAtomID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Atom — concept/tag graph vertex
// ─────────────────────────────────────────────────────────────────────────────

// Atom is a globally shared, label-deduplicated concept or system marker.
// Its id is derived from Label (invariant 3), so the same tag discovered in
// two different molecules always resolves to the same Atom.
type Atom struct {
	ID     ID
	Label  string
	Kind   AtomKind
	Weight float64
}

// NewAtom constructs an Atom with a deterministic id and the default weight.
// Call WithArchiveWeight for path-derived archive/history tags.
func NewAtom(label string, kind AtomKind) *Atom {
	return &Atom{
		ID:     NewAtomID(label),
		Label:  label,
		Kind:   kind,
		Weight: DefaultAtomWeight,
	}
}

// WithArchiveWeight returns a shallow copy of the Atom with the time-decayed
// archive weight (0.5) applied.
func (a *Atom) WithArchiveWeight() *Atom {
	clone := *a
	clone.Weight = ArchiveAtomWeight
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Edge — typed directed relation between two graph entities
// ─────────────────────────────────────────────────────────────────────────────

// Edge is a typed directed relation, currently Compound->Atom (has_tag) or
// Molecule->Atom (tagged). The composite key (SourceID, TargetID, Relation)
// is the natural key for upserts.
type Edge struct {
	SourceID ID
	TargetID ID
	Relation RelationKind
	Weight   float64
}

// NewEdge constructs an Edge with the default weight.
func NewEdge(sourceID, targetID ID, relation RelationKind) Edge {
	return Edge{
		SourceID: sourceID,
		TargetID: targetID,
		Relation: relation,
		Weight:   DefaultAtomWeight,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// SourceRecord — the (path -> content-hash) registry entry
// ─────────────────────────────────────────────────────────────────────────────

// SourceRecord tracks the most recently ingested content-hash for a path,
// enabling the Watcher and Remote Fetcher to short-circuit unchanged files.
type SourceRecord struct {
	Path           string
	ContentHash    string
	TotalAtoms     int
	LastIngestMs   int64
	LastCompoundID ID
}

// Changed reports whether the supplied content-hash differs from the
// recorded one, i.e. whether a re-ingest must run the full pipeline.
func (r *SourceRecord) Changed(contentHash string) bool {
	return r.ContentHash != contentHash
}
