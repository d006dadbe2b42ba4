package retrieval

import (
	"context"
	"sort"
)

// anchorPhase implements spec §4.G step 2: a BM25-ranked, tag-boosted search
// over molecule content, taken greedily until cumulative content length
// reaches the Anchor phase's budget share. FTS failures degrade to an empty
// result set rather than propagating (spec §4.G "Failure modes").
func (e *Engine) anchorPhase(ctx context.Context, terms []string, budget int) ([]Item, int) {
	if len(terms) == 0 {
		return nil, 0
	}

	candidates, err := e.corpus.MoleculesContaining(ctx, terms)
	if err != nil {
		e.logger.Warn("anchor phase search failed, returning empty set")
		return nil, 0
	}
	if len(candidates) == 0 {
		return nil, 0
	}

	docTokens := make([][]string, len(candidates))
	for i, m := range candidates {
		docTokens[i] = tokenize(m.Content)
	}
	stats := computeCorpusStats(docTokens)

	type ranked struct {
		molecule int
		tags     []string
		score    float64
	}
	ranks := make([]ranked, len(candidates))
	for i, m := range candidates {
		tags, tagErr := e.corpus.TagsOf(ctx, m.ID)
		if tagErr != nil {
			tags = nil
		}
		tagSet := make(map[string]bool, len(tags))
		for _, t := range tags {
			tagSet[t] = true
		}
		taggedTerms := make(map[string]bool, len(terms))
		for _, term := range terms {
			if tagSet["#"+term] {
				taggedTerms[term] = true
			}
		}
		score := bm25Score(terms, docTokens[i], stats, taggedTerms, e.params)
		ranks[i] = ranked{molecule: i, tags: tags, score: score}
	}

	sort.SliceStable(ranks, func(i, j int) bool { return ranks[i].score > ranks[j].score })

	var items []Item
	var bytes int
	for _, r := range ranks {
		if r.score <= 0 {
			continue
		}
		m := candidates[r.molecule]
		items = append(items, Item{
			MoleculeID: m.ID,
			CompoundID: m.CompoundID,
			Content:    m.Content,
			Start:      m.Start,
			End:        m.End,
			Tags:       r.tags,
			Timestamp:  m.Timestamp,
			Score:      r.score,
			Phase:      "anchor",
		})
		bytes += len(m.Content)
		if bytes >= budget {
			break
		}
	}
	return items, bytes
}
