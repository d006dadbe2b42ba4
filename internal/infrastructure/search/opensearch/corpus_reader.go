package opensearch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/domain/retrieval"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

// moleculeDoc is the document shape indexed under MoleculeIndexMapping, with
// the byte-offset and tag fields the retrieval domain needs to rehydrate an
// ingest.Molecule from a search hit.
type moleculeDoc struct {
	MoleculeID string   `json:"molecule_id"`
	CompoundID string   `json:"compound_id"`
	SourcePath string   `json:"source_path"`
	Text       string   `json:"text"`
	AtomLabels []string `json:"atom_labels"`
	LineStart  int      `json:"line_start"`
	LineEnd    int      `json:"line_end"`
	IngestedAt string   `json:"ingested_at"`
}

// CorpusReader adapts retrieval.CorpusReader onto the OpenSearch molecule
// index, giving the pure Tag-Walker domain algorithm a production-grade
// full-text backend in place of the in-memory test fake.
type CorpusReader struct {
	searcher  *Searcher
	indexName string
	logger    logging.Logger
}

// NewCorpusReader constructs a retrieval.CorpusReader backed by OpenSearch.
func NewCorpusReader(searcher *Searcher, indexName string, logger logging.Logger) *CorpusReader {
	return &CorpusReader{searcher: searcher, indexName: indexName, logger: logger}
}

var _ retrieval.CorpusReader = (*CorpusReader)(nil)

// MoleculesContaining implements the Anchor phase's full-text lookup: a
// multi_match across the text field for any of the supplied terms.
func (c *CorpusReader) MoleculesContaining(ctx context.Context, terms []string) ([]*ingest.Molecule, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	should := make([]Query, len(terms))
	for i, term := range terms {
		should[i] = Query{QueryType: "match", Field: "text", Value: term, Boost: 1.0}
	}

	result, err := c.searcher.Search(ctx, SearchRequest{
		IndexName:  c.indexName,
		Query:      &Query{QueryType: "bool", Should: should, MinimumShouldMatch: "1"},
		Pagination: &Pagination{Offset: 0, Limit: 500},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeFtsSyntaxError, "anchor phase search failed")
	}
	return hitsToMolecules(result.Hits)
}

// MoleculesTagged implements the Neighbor-Walk phase's tag lookup: a terms
// filter against the denormalized atom_labels keyword field.
func (c *CorpusReader) MoleculesTagged(ctx context.Context, tags []string) ([]*ingest.Molecule, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	result, err := c.searcher.Search(ctx, SearchRequest{
		IndexName: c.indexName,
		Filters: []Filter{
			{Field: "atom_labels", FilterType: "terms", Value: tags},
		},
		Pagination: &Pagination{Offset: 0, Limit: 500},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeFtsSyntaxError, "neighbor phase search failed")
	}
	return hitsToMolecules(result.Hits)
}

// TagsOf returns the atom labels denormalized onto a single molecule
// document, used by the Anchor phase's tag-boost detection.
func (c *CorpusReader) TagsOf(ctx context.Context, moleculeID ingest.ID) ([]string, error) {
	result, err := c.searcher.Search(ctx, SearchRequest{
		IndexName:  c.indexName,
		Query:      &Query{QueryType: "term", Field: "molecule_id", Value: string(moleculeID)},
		Pagination: &Pagination{Offset: 0, Limit: 1},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeFtsSyntaxError, "tag lookup failed")
	}
	if len(result.Hits) == 0 {
		return nil, nil
	}
	var doc moleculeDoc
	if err := json.Unmarshal(result.Hits[0].Source, &doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to decode molecule document")
	}
	return doc.AtomLabels, nil
}

func hitsToMolecules(hits []SearchHit) ([]*ingest.Molecule, error) {
	out := make([]*ingest.Molecule, 0, len(hits))
	for _, hit := range hits {
		var doc moleculeDoc
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to decode molecule document")
		}
		ts, _ := time.Parse(time.RFC3339, doc.IngestedAt)
		out = append(out, &ingest.Molecule{
			ID:         ingest.ID(doc.MoleculeID),
			CompoundID: ingest.ID(doc.CompoundID),
			Content:    doc.Text,
			Start:      doc.LineStart,
			End:        doc.LineEnd,
			Timestamp:  ts,
		})
	}
	return out, nil
}

// MoleculeDocument converts a Molecule into the document shape indexed under
// MoleculeIndexMapping, called by the ingest application service after a
// successful persistence write.
func MoleculeDocument(m *ingest.Molecule, sourcePath string, atomLabels []string) (string, map[string]interface{}) {
	doc := map[string]interface{}{
		"molecule_id": string(m.ID),
		"compound_id": string(m.CompoundID),
		"source_path": sourcePath,
		"kind":        string(m.Kind),
		"text":        m.Content,
		"atom_labels": atomLabels,
		"line_start":  m.Start,
		"line_end":    m.End,
		"ingested_at": m.Timestamp.Format(time.RFC3339),
	}
	return string(m.ID), doc
}
