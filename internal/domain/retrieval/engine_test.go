package retrieval

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
)

// fakeCorpus is an in-memory CorpusReader for testing the Engine's
// orchestration logic without a real search backend.
type fakeCorpus struct {
	molecules []*ingest.Molecule
	tags      map[ingest.ID][]string
}

func (f *fakeCorpus) MoleculesContaining(ctx context.Context, terms []string) ([]*ingest.Molecule, error) {
	var out []*ingest.Molecule
	for _, m := range f.molecules {
		lower := strings.ToLower(m.Content)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeCorpus) MoleculesTagged(ctx context.Context, tags []string) ([]*ingest.Molecule, error) {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	var out []*ingest.Molecule
	for _, m := range f.molecules {
		for _, t := range f.tags[m.ID] {
			if want[t] {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeCorpus) TagsOf(ctx context.Context, id ingest.ID) ([]string, error) {
	return f.tags[id], nil
}

func buildScenario4Corpus() *fakeCorpus {
	corpus := &fakeCorpus{tags: make(map[ingest.ID][]string)}
	now := time.Now().UTC()

	addMolecule := func(id ingest.ID, content string, tags []string) {
		m := &ingest.Molecule{
			ID:         id,
			CompoundID: ingest.ID("cmp_1"),
			Content:    content,
			Start:      0,
			End:        len(content),
			Timestamp:  now,
		}
		corpus.molecules = append(corpus.molecules, m)
		corpus.tags[id] = tags
	}

	longContent := strings.Repeat("x", 140) + " rust systems language"
	// "both" molecules are inserted first so, under the Engine's tied-score
	// stable sort, they land within the top-10 anchors whose tags seed the
	// harvest — otherwise the #compiler tag would never surface.
	for i := 0; i < 5; i++ {
		addMolecule(ingest.ID("both_"+string(rune('a'+i))), longContent, []string{"#rust", "#compiler"})
	}
	for i := 0; i < 10; i++ {
		addMolecule(ingest.ID("rust_only_"+string(rune('a'+i))), longContent, []string{"#rust"})
	}
	for i := 0; i < 10; i++ {
		addMolecule(ingest.ID("compiler_only_"+string(rune('a'+i))), strings.Repeat("y", 140)+" compiler internals", []string{"#compiler"})
	}
	return corpus
}

func TestEngine_AnchorNeighborSplit(t *testing.T) {
	corpus := buildScenario4Corpus()
	engine := New(corpus, logging.NewNopLogger(), DefaultBM25Params())

	result, err := engine.Search(context.Background(), "rust", 2000)
	require.NoError(t, err)
	require.NotEmpty(t, result.Items)

	var anchorBytes, neighborBytes int
	for _, item := range result.Items {
		switch item.Phase {
		case "anchor":
			anchorBytes += len(item.Content)
			assert.True(t, strings.Contains(strings.ToLower(item.Content), "rust"))
		case "neighbor":
			neighborBytes += len(item.Content)
			assert.False(t, strings.Contains(strings.ToLower(item.Content), "rust"),
				"neighbor molecules must not contain the original query term")
		}
	}
	assert.Greater(t, anchorBytes, 0)
}

// TestEngine_RetrievalBudget covers invariant 6.
func TestEngine_RetrievalBudget(t *testing.T) {
	corpus := buildScenario4Corpus()
	engine := New(corpus, logging.NewNopLogger(), DefaultBM25Params())

	budget := 500
	result, err := engine.Search(context.Background(), "rust", budget)
	require.NoError(t, err)

	var total int
	for _, item := range result.Items {
		total += len(item.Content)
	}
	assert.LessOrEqual(t, float64(total), 1.05*float64(budget))
}

// TestEngine_AnchorNeighborDisjointness covers invariant 7 directly.
func TestEngine_AnchorNeighborDisjointness(t *testing.T) {
	corpus := buildScenario4Corpus()
	engine := New(corpus, logging.NewNopLogger(), DefaultBM25Params())

	result, err := engine.Search(context.Background(), "rust", 3000)
	require.NoError(t, err)

	anchorTerms := map[string]bool{}
	for _, item := range result.Items {
		if item.Phase == "anchor" {
			anchorTerms[strings.ToLower(item.Content)] = true
		}
	}
	for _, item := range result.Items {
		if item.Phase == "neighbor" {
			assert.False(t, strings.Contains(strings.ToLower(item.Content), "rust"))
		}
	}
}

func TestEngine_EmptyQueryReturnsEmpty(t *testing.T) {
	corpus := buildScenario4Corpus()
	engine := New(corpus, logging.NewNopLogger(), DefaultBM25Params())

	result, err := engine.Search(context.Background(), "!!!", 1000)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
}
