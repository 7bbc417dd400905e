package sources

import (
	"fmt"
	"sort"

	"github.com/recall-hq/recall/pkg/types"
)

// Normalize maps provider payloads into the common Hit representation.
// Relevance decays with provider rank: providers return their best matches
// first, so position is the only signal available uniformly across sources.
// The mapping is pure; given the same input it always produces the same hits.
func Normalize(source types.SourceKind, items []types.RawItem) []types.Hit {
	hits := make([]types.Hit, 0, len(items))
	for i, item := range items {
		id := item.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", source, i)
		}
		hits = append(hits, types.Hit{
			ID:        id,
			Source:    source,
			Content:   item.Content,
			Metadata:  item.Metadata,
			Relevance: rankScore(i),
		})
	}
	return hits
}

// NormalizeSnippets converts agent-scraped snippet strings for one source
func NormalizeSnippets(source types.SourceKind, snippets []string) []types.Hit {
	items := make([]types.RawItem, 0, len(snippets))
	for _, s := range snippets {
		items = append(items, types.RawItem{Content: s})
	}
	return Normalize(source, items)
}

// rankScore maps a zero-based provider rank to a relevance in [0.1, 1.0]
func rankScore(rank int) float64 {
	score := 1.0 - float64(rank)*0.05
	if score < 0.1 {
		return 0.1
	}
	return score
}

// Merge concatenates hit sets and orders them by relevance descending.
// Ties keep stable input order: source fetch order first, then item order.
// Deterministic given identical inputs; no randomness, no wall clock.
func Merge(hitSets [][]types.Hit) []types.Hit {
	var total int
	for _, set := range hitSets {
		total += len(set)
	}

	merged := make([]types.Hit, 0, total)
	for _, set := range hitSets {
		merged = append(merged, set...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Relevance > merged[j].Relevance
	})
	return merged
}
