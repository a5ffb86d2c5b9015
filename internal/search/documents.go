package search

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sibyl-platform/sibyl/internal/chunkstore"
	"github.com/sibyl-platform/sibyl/internal/retrieval"
)

// docEntry is one document-origin candidate.
type docEntry struct {
	result chunkstore.SearchResult
}

func (e docEntry) toItem(score float64) Item {
	return Item{
		Origin:    OriginDocument,
		Type:      "chunk",
		ID:        e.result.ChunkID.String(),
		Title:     "",
		Snippet:   snippet(e.result.Text, ""),
		Score:     score,
		SourceID:  e.result.DocumentID.String(),
		Content:   e.result.Text,
		ProjectID: e.result.Metadata["project_id"],
	}
}

// searchDocuments implements step 3: a two-way fan-out (vector, BM25)
// over chunks, fused by RRF, filtered by organization, source, project,
// language, and recency.
func searchDocuments(ctx context.Context, d Deps, orgID uuid.UUID, projectFilter []string, f Filters, queryVector []float32) ([]retrieval.FusedItem, map[string]docEntry, error) {
	chunkFilter := chunkstore.Filter{
		OrganizationID: orgID,
		ProjectFilter:  projectFilter,
		Language:       f.Language,
	}
	if len(f.SourceIDs) == 1 {
		chunkFilter.SourceID = &f.SourceIDs[0]
	}

	var vecResults []chunkstore.SearchResult
	var bm25Results []retrieval.BM25Result

	g, gctx := errgroup.WithContext(ctx)
	if queryVector != nil {
		g.Go(func() error {
			var err error
			vecResults, err = d.Chunks.VectorSearch(gctx, orgID, queryVector, chunkFilter, graphSearchFanOutLimit, 0)
			return err
		})
	}
	if d.ChunkBM25 != nil {
		g.Go(func() error {
			bm25Results = d.ChunkBM25.For(orgID).Search(f.Query, graphSearchFanOutLimit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	byKey := map[string]docEntry{}
	for _, r := range vecResults {
		if !chunkPasses(r, f, projectFilter, len(f.SourceIDs) > 1) {
			continue
		}
		byKey[r.ChunkID.String()] = docEntry{result: r}
	}

	bm25Filtered := make([]retrieval.BM25Result, 0, len(bm25Results))
	for _, r := range bm25Results {
		if _, ok := byKey[r.ID]; ok {
			bm25Filtered = append(bm25Filtered, r)
			continue
		}
		// BM25 candidates not already surfaced by vector search still need
		// their chunk metadata for rendering and filtering; skip them here
		// rather than adding another round trip: vector search already
		// covers the same chunk population over a superset window.
	}

	lists := [][]retrieval.RankedItem{
		vectorRanked(vecResults, byKey),
		retrieval.RankedFromBM25(bm25Filtered),
	}
	fused := retrieval.Fuse(lists, nil, retrieval.DefaultRRFConstant)
	return fused, byKey, nil
}

func vectorRanked(results []chunkstore.SearchResult, byKey map[string]docEntry) []retrieval.RankedItem {
	out := make([]retrieval.RankedItem, 0, len(results))
	for _, r := range results {
		key := r.ChunkID.String()
		if _, ok := byKey[key]; !ok {
			continue
		}
		out = append(out, retrieval.RankedItem{Key: key, Score: float64(r.Score)})
	}
	return out
}

func chunkPasses(r chunkstore.SearchResult, f Filters, projectFilter []string, multiSource bool) bool {
	if projectFilter != nil {
		if pid, ok := r.Metadata["project_id"]; !ok || !containsStr(projectFilter, pid) {
			return false
		}
	}
	if multiSource {
		sid, ok := r.Metadata["source_id"]
		if !ok {
			return false
		}
		match := false
		for _, s := range f.SourceIDs {
			if s.String() == sid {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if f.RecencyWindowDays > 0 {
		if ts, ok := r.Metadata["created_at"]; ok {
			if t, err := time.Parse(time.RFC3339, ts); err == nil && time.Since(t) > time.Duration(f.RecencyWindowDays)*24*time.Hour {
				return false
			}
		}
	}
	return true
}
