// Package retrieval implements the "Tag-Walker" hybrid retrieval algorithm:
// an Anchor phase (weighted full-text search) followed by a Neighbor-Walk
// phase (tag-graph traversal), combined under a byte budget (spec §4.G).
package retrieval

import (
	"math"
	"regexp"
	"strings"
)

// BM25Params configures the Anchor phase's ranking function. Defaults mirror
// the values recorded in SPEC_FULL.md's Open Question 1 resolution.
type BM25Params struct {
	K1       float64
	B        float64
	TagBoost float64
}

// DefaultBM25Params returns the ranking configuration used absent an
// operator override (RetrievalConfig.BM25K1 / BM25B / TagMatchBoost).
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.2, B: 0.75, TagBoost: 2.0}
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+`)

// tokenize lowercases and splits text into word tokens. Used identically for
// query terms and molecule content so term matching is case-insensitive.
func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// termFrequencies counts occurrences of each token.
func termFrequencies(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return freq
}

// corpusStats holds the document-frequency and average-length statistics
// BM25 needs, computed once per Anchor phase over the candidate set returned
// by the corpus reader (not the whole index — see DESIGN.md).
type corpusStats struct {
	docFreq   map[string]int
	totalDocs int
	avgDocLen float64
}

func computeCorpusStats(docs [][]string) corpusStats {
	stats := corpusStats{docFreq: make(map[string]int), totalDocs: len(docs)}
	var totalLen int
	for _, tokens := range docs {
		totalLen += len(tokens)
		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			if !seen[t] {
				seen[t] = true
				stats.docFreq[t]++
			}
		}
	}
	if stats.totalDocs > 0 {
		stats.avgDocLen = float64(totalLen) / float64(stats.totalDocs)
	}
	return stats
}

// idf is the standard BM25 inverse document frequency with the +1 floor that
// keeps the score non-negative for terms appearing in every document.
func idf(stats corpusStats, term string) float64 {
	n := float64(stats.totalDocs)
	df := float64(stats.docFreq[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// bm25Score scores one document's tokens against the query terms. tagged
// reports, per query term, whether that term also appears among the
// molecule's tag labels or owning bucket — each such term contributes the
// configured TagBoost multiplier on its own component (spec §4.G.2).
func bm25Score(queryTerms []string, docTokens []string, stats corpusStats, tagged map[string]bool, params BM25Params) float64 {
	if len(docTokens) == 0 {
		return 0
	}
	freq := termFrequencies(docTokens)
	docLen := float64(len(docTokens))

	var score float64
	for _, term := range queryTerms {
		f := float64(freq[term])
		if f == 0 {
			continue
		}
		numerator := f * (params.K1 + 1)
		denominator := f + params.K1*(1-params.B+params.B*docLen/stats.avgDocLen)
		component := idf(stats, term) * numerator / denominator
		if tagged[term] {
			component *= params.TagBoost
		}
		score += component
	}
	return score
}
