package retrieval

import (
	"context"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
)

// neighborPhase implements spec §4.G step 4: molecules sharing any harvested
// tag, excluding those already returned by Anchor and those containing an
// original query term (invariant 7 — anchor/neighbor disjointness), filling
// whatever budget remains.
func (e *Engine) neighborPhase(ctx context.Context, harvestedTags []string, queryTerms []string, exclude map[ingest.ID]bool, budget int) []Item {
	if len(harvestedTags) == 0 || budget <= 0 {
		return nil
	}

	candidates, err := e.corpus.MoleculesTagged(ctx, harvestedTags)
	if err != nil {
		e.logger.Warn("neighbor phase search failed, returning empty set")
		return nil
	}

	harvestedSet := make(map[string]bool, len(harvestedTags))
	for _, t := range harvestedTags {
		harvestedSet[t] = true
	}

	var items []Item
	var bytes int
	for _, m := range candidates {
		if exclude[m.ID] {
			continue
		}
		if containsAny(m.Content, queryTerms) {
			continue
		}

		tags, tagErr := e.corpus.TagsOf(ctx, m.ID)
		if tagErr != nil {
			continue
		}
		overlap := 0
		for _, t := range tags {
			if harvestedSet[t] {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}

		items = append(items, Item{
			MoleculeID: m.ID,
			CompoundID: m.CompoundID,
			Content:    m.Content,
			Start:      m.Start,
			End:        m.End,
			Tags:       tags,
			Timestamp:  m.Timestamp,
			Score:      float64(overlap),
			Phase:      "neighbor",
		})
		bytes += len(m.Content)
		if bytes >= budget {
			break
		}
	}
	return items
}
