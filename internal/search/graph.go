package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sibyl-platform/sibyl/internal/graphstore"
	"github.com/sibyl-platform/sibyl/internal/model"
	"github.com/sibyl-platform/sibyl/internal/retrieval"
)

// graphEntry is one graph-origin candidate, carrying the full entity so
// rendering and post-merge filtering never need a second round trip.
type graphEntry struct {
	entity model.Entity
}

func (e graphEntry) toItem(score float64) Item {
	return Item{
		Origin:    OriginGraph,
		Type:      string(e.entity.EntityType),
		ID:        e.entity.ID,
		Title:     e.entity.Name,
		Snippet:   snippet(e.entity.Description, e.entity.Content),
		Score:     score,
		ProjectID: e.entity.ProjectID,
		Content:   e.entity.Content,
		CreatedAt: e.entity.CreatedAt,
	}
}

// searchGraph implements step 2: empty query ⇒ a plain listing; otherwise
// a three-way fan-out (BM25, entity vectors, edge full-text) fused by RRF.
func searchGraph(ctx context.Context, d Deps, orgID uuid.UUID, projectFilter []string, f Filters, queryVector []float32, emptyQuery bool) ([]retrieval.FusedItem, map[string]graphEntry, error) {
	if emptyQuery {
		return graphListing(ctx, d, orgID, projectFilter, f)
	}

	var bm25Results []retrieval.BM25Result
	var vecResults []retrieval.EntitySearchResult
	var edgeResults []model.Relationship

	g, gctx := errgroup.WithContext(ctx)
	if d.EntityBM25 != nil {
		g.Go(func() error {
			bm25Results = d.EntityBM25.For(orgID).Search(f.Query, graphSearchFanOutLimit)
			return nil
		})
	}
	if d.EntityVectors != nil && queryVector != nil {
		g.Go(func() error {
			var err error
			vecResults, err = d.EntityVectors.Search(gctx, orgID, queryVector, projectFilter, graphSearchFanOutLimit, 0)
			return err
		})
	}
	g.Go(func() error {
		var err error
		edgeResults, err = d.Graph.SearchEdges(gctx, orgID, f.Query, graphstore.Filter{ProjectFilter: projectFilter}, graphSearchFanOutLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	candidateIDs := map[string]bool{}
	for _, r := range bm25Results {
		candidateIDs[r.ID] = true
	}
	for _, r := range vecResults {
		candidateIDs[r.EntityID] = true
	}
	for _, e := range edgeResults {
		candidateIDs[e.SourceID] = true
	}

	entities, err := fetchEntities(ctx, d.Graph, orgID, setToSlice(candidateIDs))
	if err != nil {
		return nil, nil, err
	}

	byKey := map[string]graphEntry{}
	for id, ent := range entities {
		if !entityPasses(ent, f, projectFilter) {
			continue
		}
		byKey[id] = graphEntry{entity: ent}
	}

	lists := [][]retrieval.RankedItem{
		retrieval.RankedFromBM25(filterBM25(bm25Results, byKey)),
		retrieval.RankedFromEntityVector(filterVector(vecResults, byKey)),
		edgesToRanked(edgeResults, byKey),
	}
	fused := retrieval.Fuse(lists, nil, retrieval.DefaultRRFConstant)
	return fused, byKey, nil
}

func graphListing(ctx context.Context, d Deps, orgID uuid.UUID, projectFilter []string, f Filters) ([]retrieval.FusedItem, map[string]graphEntry, error) {
	types := f.EntityTypes
	if len(types) == 0 {
		types = []model.EntityType{""}
	}

	byKey := map[string]graphEntry{}
	var order []string
	for _, t := range types {
		entities, _, err := d.Graph.ListByType(ctx, orgID, graphstore.Filter{EntityType: t, ProjectFilter: projectFilter}, graphSearchFanOutLimit, 0)
		if err != nil {
			return nil, nil, err
		}
		for _, ent := range entities {
			if !entityPasses(ent, f, projectFilter) {
				continue
			}
			if _, seen := byKey[ent.ID]; seen {
				continue
			}
			byKey[ent.ID] = graphEntry{entity: ent}
			order = append(order, ent.ID)
		}
	}

	fused := make([]retrieval.FusedItem, len(order))
	for i, id := range order {
		// Listing order (updated_at desc from the store) stands in for a
		// score: rank position converted to a descending pseudo-score so
		// it composes with RRF-scored results from the non-empty-query path.
		fused[i] = retrieval.FusedItem{Key: id, RRFScore: 1.0 / float64(i+1)}
	}
	return fused, byKey, nil
}

func entityPasses(e model.Entity, f Filters, projectFilter []string) bool {
	if len(f.EntityTypes) > 0 && !entityTypeIn(e.EntityType, f.EntityTypes) {
		return false
	}
	if f.Category != "" {
		if cat, _ := e.Metadata["category"].(string); cat != f.Category {
			return false
		}
	}
	if !projectAllowedForEntity(e.ProjectID, projectFilter) {
		return false
	}
	if f.RecencyWindowDays > 0 && time.Since(e.CreatedAt) > time.Duration(f.RecencyWindowDays)*24*time.Hour {
		return false
	}
	return true
}

func entityTypeIn(t model.EntityType, types []model.EntityType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// projectAllowedForEntity implements "project_id ∈ P ∪ {shared-project,
// unassigned}": P already carries the shared project (AccessibleProjectSet
// always includes it), so only the unassigned case needs a special rule.
func projectAllowedForEntity(projectID string, filter []string) bool {
	if filter == nil || projectID == "" {
		return true
	}
	return containsStr(filter, projectID)
}

func containsStr(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func setToSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func fetchEntities(ctx context.Context, store graphstore.Store, orgID uuid.UUID, ids []string) (map[string]model.Entity, error) {
	out := make(map[string]model.Entity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	type result struct {
		id  string
		ent *model.Entity
	}
	results := make(chan result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	const maxConcurrent = 16
	sem := make(chan struct{}, maxConcurrent)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			ent, err := store.GetEntity(gctx, orgID, id)
			if err != nil {
				// A candidate that vanished between the scoring stage and
				// this fetch (deleted concurrently) is simply dropped, not
				// an error for the whole search.
				results <- result{id: id, ent: nil}
				return nil
			}
			results <- result{id: id, ent: ent}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)
	for r := range results {
		if r.ent != nil {
			out[r.id] = *r.ent
		}
	}
	return out, nil
}

func filterBM25(results []retrieval.BM25Result, byKey map[string]graphEntry) []retrieval.BM25Result {
	out := make([]retrieval.BM25Result, 0, len(results))
	for _, r := range results {
		if _, ok := byKey[r.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

func filterVector(results []retrieval.EntitySearchResult, byKey map[string]graphEntry) []retrieval.EntitySearchResult {
	out := make([]retrieval.EntitySearchResult, 0, len(results))
	for _, r := range results {
		if _, ok := byKey[r.EntityID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// edgesToRanked converts edge-search hits into a descending-score-sorted
// RankedItem list keyed by source entity: Fuse trusts input order as rank,
// it does not re-sort, and SearchEdges returns matches in Cypher scan
// order rather than weight order.
func edgesToRanked(edges []model.Relationship, byKey map[string]graphEntry) []retrieval.RankedItem {
	seen := map[string]bool{}
	out := make([]retrieval.RankedItem, 0, len(edges))
	for _, e := range edges {
		if _, ok := byKey[e.SourceID]; !ok || seen[e.SourceID] {
			continue
		}
		seen[e.SourceID] = true
		out = append(out, retrieval.RankedItem{Key: e.SourceID, Score: float64(e.Weight)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func snippet(description, content string) string {
	s := description
	if s == "" {
		s = content
	}
	const maxLen = 240
	if len(s) > maxLen {
		s = s[:maxLen]
		if i := strings.LastIndexByte(s, ' '); i > 0 {
			s = s[:i]
		}
		s += "..."
	}
	return s
}
