package search

import (
	"context"
	"time"

	"github.com/sibyl-platform/sibyl/internal/retrieval"
)

// mergeGraphAndDocs implements step 4: RRF-merge G ⊕ D with equal
// weights (or caller-supplied weights), deduping on key (entity/chunk ID;
// the two populations never collide since they're disjoint ID spaces).
func mergeGraphAndDocs(graph, docs []retrieval.FusedItem, graphWeight, docWeight float64) []retrieval.FusedItem {
	if graphWeight == 0 && docWeight == 0 {
		graphWeight, docWeight = 1.0, 1.0
	}

	toRanked := func(items []retrieval.FusedItem) []retrieval.RankedItem {
		out := make([]retrieval.RankedItem, len(items))
		for i, it := range items {
			out[i] = retrieval.RankedItem{Key: it.Key, Score: it.RRFScore}
		}
		return out
	}

	return retrieval.Fuse([][]retrieval.RankedItem{toRanked(graph), toRanked(docs)}, []float64{graphWeight, docWeight}, retrieval.DefaultRRFConstant)
}

// applyRecencyBoost applies temporal decay over whichever items carry a
// CreatedAt (document chunks don't track one individually at this layer,
// so only graph-origin items decay (entities and episodes age, chunks
// don't).
func applyRecencyBoost(items []Item, cfg retrieval.DecayConfig) {
	for i := range items {
		if items[i].Origin != OriginGraph || items[i].CreatedAt.IsZero() {
			continue
		}
		ts := items[i].CreatedAt
		items[i].Score = retrieval.ApplyDecay(items[i].Score, &ts, time.Now(), cfg)
	}
}

// rerankItems implements step 6: cross-encoder rerank over the top-M
// items, falling back silently (original order/scores preserved) on any
// reranker failure per Reranker's own contract.
func rerankItems(ctx context.Context, r retrieval.Reranker, query string, items []Item) ([]Item, error) {
	candidates := make([]retrieval.Candidate, len(items))
	for i, it := range items {
		text := it.Snippet
		if text == "" {
			text = it.Title
		}
		candidates[i] = retrieval.Candidate{Key: it.ID, Text: text, Score: it.Score}
	}

	reranked, err := r.Rerank(ctx, query, candidates)
	if err != nil {
		return items, nil
	}

	byID := make(map[string]int, len(items))
	for i, it := range items {
		byID[it.ID] = i
	}
	out := make([]Item, 0, len(items))
	for _, c := range reranked {
		idx, ok := byID[c.Key]
		if !ok {
			continue
		}
		it := items[idx]
		it.Score = c.Score
		out = append(out, it)
	}
	return out, nil
}
