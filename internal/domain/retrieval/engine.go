package retrieval

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
)

// anchorBudgetFraction and its complement split budget_bytes 70/30 between
// the Anchor and Neighbor-Walk phases (spec §4.G.2/4.G.4).
const (
	anchorBudgetFraction = 0.70
	tagHarvestTopK       = 10
	recentWindow         = 14 * 24 * time.Hour
	recentBoost          = 1.1
	archiveDecay         = 0.5
)

// queryEscapePattern strips characters that would crash a full-text-search
// parser: FTS operators and control characters (spec §4.G.1).
var queryEscapePattern = regexp.MustCompile(`[+\-&|!(){}\[\]^"~*?:\\]`)

// CorpusReader is the read-only index the Engine queries. Infrastructure
// (OpenSearch-backed in production, an in-memory fake in tests) implements
// this; the Engine itself never writes.
type CorpusReader interface {
	// MoleculesContaining returns candidate molecules whose content matches
	// at least one of terms. Implementations may over-return; the Engine
	// re-scores and filters locally.
	MoleculesContaining(ctx context.Context, terms []string) ([]*ingest.Molecule, error)

	// MoleculesTagged returns every molecule carrying at least one of the
	// given tag labels.
	MoleculesTagged(ctx context.Context, tags []string) ([]*ingest.Molecule, error)

	// TagsOf returns the atom labels attached to a molecule, by id.
	TagsOf(ctx context.Context, moleculeID ingest.ID) ([]string, error)
}

// Item is one enriched result row (spec §4.G.7).
type Item struct {
	MoleculeID ingest.ID
	CompoundID ingest.ID
	Content    string
	SourcePath string
	Start      int
	End        int
	Tags       []string
	Timestamp  time.Time
	Score      float64
	Phase      string // "anchor" or "neighbor"
}

// Result is the Engine's complete response to one search call.
type Result struct {
	Items     []Item
	Truncated bool
}

// Engine runs the Tag-Walker algorithm over a CorpusReader.
type Engine struct {
	corpus CorpusReader
	logger logging.Logger
	params BM25Params
}

// New constructs an Engine with the given ranking parameters. Pass
// DefaultBM25Params() absent an operator override.
func New(corpus CorpusReader, logger logging.Logger, params BM25Params) *Engine {
	return &Engine{corpus: corpus, logger: logger, params: params}
}

// Search runs the full seven-step algorithm and returns a budget-bounded,
// ordered, enriched result list. It never returns an error for FTS parser
// failures — those degrade a phase to the empty set (spec §4.G "Failure
// modes"); sourcePath lookups embedded in items come from the molecule's own
// SourcePath via the corpus, not from the Engine.
func (e *Engine) Search(ctx context.Context, query string, budgetBytes int) (*Result, error) {
	// Step 1: sanitize query.
	terms := sanitizeQueryTerms(query)

	anchorBudget := int(float64(budgetBytes) * anchorBudgetFraction)

	// Step 2: Anchor phase.
	anchorItems, anchorBytes := e.anchorPhase(ctx, terms, anchorBudget)

	// Step 3: tag harvest from top-K anchor molecules.
	harvested := e.harvestTags(ctx, anchorItems)

	// Step 4: Neighbor-Walk phase fills whatever budget remains, which may
	// exceed the nominal 30% share when Anchor under-filled (SPEC_FULL.md
	// Open Question 2 decision).
	remaining := budgetBytes - anchorBytes
	if remaining < 0 {
		remaining = 0
	}
	excludeIDs := make(map[ingest.ID]bool, len(anchorItems))
	for _, it := range anchorItems {
		excludeIDs[it.MoleculeID] = true
	}
	neighborItems := e.neighborPhase(ctx, harvested, terms, excludeIDs, remaining)

	// Step 5/6: ordering with time-ladder adjustment, then final budget trim.
	applyTimeLadder(anchorItems)
	applyTimeLadder(neighborItems)
	sortAnchors(anchorItems)
	sortNeighbors(neighborItems)

	all := append(anchorItems, neighborItems...)
	all, truncated := trimToBudget(all, budgetBytes)

	return &Result{Items: all, Truncated: truncated}, nil
}

// sanitizeQueryTerms implements step 1: strip FTS-crashing operator
// characters, then tokenize.
func sanitizeQueryTerms(query string) []string {
	clean := queryEscapePattern.ReplaceAllString(query, " ")
	return tokenize(clean)
}

// harvestTags implements step 3: unique tags from the top tagHarvestTopK
// anchor molecules, in score order.
func (e *Engine) harvestTags(ctx context.Context, anchors []Item) []string {
	limit := tagHarvestTopK
	if limit > len(anchors) {
		limit = len(anchors)
	}
	seen := make(map[string]bool)
	var tags []string
	for _, item := range anchors[:limit] {
		for _, tag := range item.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// applyTimeLadder implements step 6: archive molecules are scored down,
// recently-timestamped molecules are scored up.
func applyTimeLadder(items []Item) {
	now := time.Now().UTC()
	for i := range items {
		for _, tag := range items[i].Tags {
			if tag == "#Archive" {
				items[i].Score *= archiveDecay
				break
			}
		}
		if !items[i].Timestamp.IsZero() && now.Sub(items[i].Timestamp) <= recentWindow {
			items[i].Score *= recentBoost
		}
	}
}

func sortAnchors(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].MoleculeID < items[j].MoleculeID
	})
}

func sortNeighbors(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Timestamp.After(items[j].Timestamp)
	})
}

// trimToBudget enforces invariant 6: sum(len(content)) <= 1.05*budget_bytes.
// Items are kept in their given order; the first item that would push
// cumulative bytes past the cap is dropped along with everything after it.
func trimToBudget(items []Item, budgetBytes int) ([]Item, bool) {
	budgetCap := int(float64(budgetBytes) * 1.05)
	var kept []Item
	var total int
	truncated := false
	for _, item := range items {
		if total+len(item.Content) > budgetCap {
			truncated = true
			continue
		}
		kept = append(kept, item)
		total += len(item.Content)
	}
	return kept, truncated
}

func containsAny(haystack string, terms []string) bool {
	lower := strings.ToLower(haystack)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
