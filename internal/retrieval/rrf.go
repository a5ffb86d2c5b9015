package retrieval

import "sort"

// DefaultRRFConstant is the k in 1/(k+rank); 60 is the standard choice from
// the original Cormack et al. paper and is what every ranked list in this
// system fuses with unless a caller overrides it.
const DefaultRRFConstant = 60

// RankedItem is one entry in a ranked input list handed to Fuse. Rank is
// 1-based; callers are expected to have already sorted the list themselves
// (Fuse trusts the order it's given, it does not re-sort inputs by score).
type RankedItem struct {
	Key   string
	Score float64
}

// FusedItem is one row of Fuse's output.
type FusedItem struct {
	Key      string
	RRFScore float64
	// PerList holds each input list's contribution (0 if absent from that
	// list), indexed the same way the lists were passed to Fuse.
	PerList []float64
}

// KeyFunc extracts the dedup key for an item of application-specific type T.
type KeyFunc[T any] func(T) string

// Fuse computes weighted Reciprocal Rank Fusion across an arbitrary number
// of ranked lists. Each list's i-th element (0-indexed) is treated as rank
// i+1; an item absent from a list contributes 0 to that list's term. The
// merged score for item x is:
//
//	score(x) = sum_i weight_i / (k + rank_i(x))
//
// Output is sorted by fused score descending, ties broken by key ascending
// for determinism (mirrors the entity-ID tie-break used by unified search).
func Fuse(lists [][]RankedItem, weights []float64, k int) []FusedItem {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if weights == nil {
		weights = make([]float64, len(lists))
		for i := range weights {
			weights[i] = 1.0
		}
	}

	scores := map[string]float64{}
	perList := map[string][]float64{}
	order := []string{}

	for li, list := range lists {
		w := 1.0
		if li < len(weights) {
			w = weights[li]
		}
		for rank, item := range list {
			if _, seen := perList[item.Key]; !seen {
				perList[item.Key] = make([]float64, len(lists))
				order = append(order, item.Key)
			}
			contribution := w / float64(k+rank+1)
			scores[item.Key] += contribution
			perList[item.Key][li] = contribution
		}
	}

	out := make([]FusedItem, 0, len(order))
	for _, key := range order {
		out = append(out, FusedItem{Key: key, RRFScore: scores[key], PerList: perList[key]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// FuseTyped runs Fuse over application types, converting each list with
// keyOf before fusion and returning keys the caller can map back to T.
func FuseTyped[T any](lists [][]T, keyOf KeyFunc[T], weights []float64, k int) []FusedItem {
	ranked := make([][]RankedItem, len(lists))
	for i, list := range lists {
		r := make([]RankedItem, len(list))
		for j, item := range list {
			r[j] = RankedItem{Key: keyOf(item)}
		}
		ranked[i] = r
	}
	return Fuse(ranked, weights, k)
}
