// Package retrieval implements the cross-store ranking primitives described
// in the retrieval spec: an in-process BM25 index, a vector-search wrapper
// shared by the graph and chunk stores, Reciprocal Rank Fusion, temporal
// decay, and an optional cross-encoder/LLM rerank pass. Everything here is
// a pure scoring layer; callers own fetching candidates and persistence.
package retrieval

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// BM25 tuning constants, fixed per the Okapi BM25 formula this index uses.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]{2,}`)

// englishStopwords is the fixed stopword list removed during tokenization.
var englishStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "this": true, "but": true, "or": true, "not": true, "have": true,
	"had": true, "been": true, "their": true, "they": true, "them": true,
}

// Tokenize lowercases s, extracts alphanumeric runs of length >= 2, and
// drops English stopwords.
func Tokenize(s string) []string {
	lower := strings.ToLower(s)
	raw := tokenPattern.FindAllString(lower, -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if englishStopwords[t] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// BM25Doc is a single document indexed for lexical search.
type BM25Doc struct {
	ID   string
	Text string
}

// BM25Result is a scored hit from a BM25 search.
type BM25Result struct {
	ID    string
	Score float64
}

// postingList maps a term to the document IDs containing it and their
// term frequency within that document.
type postingList map[string]map[string]int

// BM25Index is a per-organization in-process inverted index. Scores are
// raw (unnormalized) Okapi BM25 values: RRF operates on rank, not score
// magnitude, so no normalization is performed here.
//
// The index is rebuilt wholesale rather than mutated incrementally: callers
// invalidate it (bump the version counter and call Rebuild) whenever the
// underlying entity or chunk set changes (create/update/delete).
type BM25Index struct {
	mu sync.RWMutex

	postings  postingList
	docLen    map[string]int
	totalLen  int
	docCount  int
	docText   map[string]string
	version   int
}

// NewBM25Index returns an empty index.
func NewBM25Index() *BM25Index {
	return &BM25Index{
		postings: postingList{},
		docLen:   map[string]int{},
		docText:  map[string]string{},
	}
}

// Version reports the current generation; callers can cache this alongside
// query results to detect staleness cheaply.
func (idx *BM25Index) Version() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.version
}

// Rebuild replaces the entire index contents from scratch and bumps the
// version counter. This is the only mutation path: BM25 here is a read
// replica over the authoritative entity/chunk store, not a store itself.
func (idx *BM25Index) Rebuild(docs []BM25Doc) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.postings = postingList{}
	idx.docLen = map[string]int{}
	idx.docText = map[string]string{}
	idx.totalLen = 0
	idx.docCount = len(docs)

	for _, d := range docs {
		terms := Tokenize(d.Text)
		idx.docLen[d.ID] = len(terms)
		idx.totalLen += len(terms)
		idx.docText[d.ID] = d.Text

		counts := map[string]int{}
		for _, t := range terms {
			counts[t]++
		}
		for term, tf := range counts {
			bucket, ok := idx.postings[term]
			if !ok {
				bucket = map[string]int{}
				idx.postings[term] = bucket
			}
			bucket[d.ID] = tf
		}
	}
	idx.version++
}

// avgDocLen returns the mean document length, or 0 for an empty index.
// Caller must hold at least a read lock.
func (idx *BM25Index) avgDocLen() float64 {
	if idx.docCount == 0 {
		return 0
	}
	return float64(idx.totalLen) / float64(idx.docCount)
}

// Search scores every document with at least one query term and returns
// the top `limit` by score descending, ties broken by ID ascending for
// determinism. An empty (post-tokenization) query returns no results
// rather than erroring, per the empty-query edge case.
func (idx *BM25Index) Search(query string, limit int) []BM25Result {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.docCount == 0 {
		return nil
	}

	avgLen := idx.avgDocLen()
	scores := map[string]float64{}

	for _, term := range terms {
		bucket, ok := idx.postings[term]
		if !ok {
			continue
		}
		idf := idfWeight(idx.docCount, len(bucket))
		for docID, tf := range bucket {
			dl := float64(idx.docLen[docID])
			denom := float64(tf) + bm25K1*(1-bm25B+bm25B*dl/avgLen)
			scores[docID] += idf * (float64(tf) * (bm25K1 + 1) / denom)
		}
	}

	results := make([]BM25Result, 0, len(scores))
	for id, score := range scores {
		results = append(results, BM25Result{ID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// idfWeight is the Robertson/Sparck-Jones IDF used by Okapi BM25, floored
// at a small positive value so a term appearing in every document still
// contributes rather than going negative and inverting the ranking.
func idfWeight(docCount, docFreq int) float64 {
	n := float64(docCount)
	df := float64(docFreq)
	w := math.Log((n-df+0.5)/(df+0.5) + 1)
	if w < 0 {
		return 0
	}
	return w
}

// registry of per-organization indexes, keyed by org ID, each independently
// versioned. One instance per org per §5's resource-sharing model.
type Registry struct {
	mu      sync.Mutex
	byOrg   map[uuid.UUID]*BM25Index
}

// NewRegistry returns an empty per-org index registry.
func NewRegistry() *Registry {
	return &Registry{byOrg: map[uuid.UUID]*BM25Index{}}
}

// For returns the index for orgID, creating it on first access.
func (r *Registry) For(orgID uuid.UUID) *BM25Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.byOrg[orgID]
	if !ok {
		idx = NewBM25Index()
		r.byOrg[orgID] = idx
	}
	return idx
}
