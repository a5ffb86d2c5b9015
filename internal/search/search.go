// Package search implements C3's unified search and explore: plain Go
// functions over the C1 stores and C2 retrieval primitives, with no
// transport framing. Callers are expected to have already resolved the
// accessible-project set through internal/authz before calling in.
package search

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sibyl-platform/sibyl/internal/chunkstore"
	"github.com/sibyl-platform/sibyl/internal/embedder"
	"github.com/sibyl-platform/sibyl/internal/graphstore"
	"github.com/sibyl-platform/sibyl/internal/model"
	"github.com/sibyl-platform/sibyl/internal/retrieval"
	"github.com/sibyl-platform/sibyl/internal/sibylerr"
)

// Origin distinguishes a result's source store.
type Origin string

const (
	OriginGraph    Origin = "graph"
	OriginDocument Origin = "document"
)

// Filters is the parsed input to Search.
type Filters struct {
	Query string

	EntityTypes []model.EntityType
	Language    string
	Category    string

	// ProjectIDs narrows to a caller-specified subset of the accessible
	// set; empty means "every accessible project."
	ProjectIDs []string
	SourceIDs  []uuid.UUID

	// RecencyWindowDays, when > 0, excludes items older than this many
	// days (measured from CreatedAt).
	RecencyWindowDays int

	IncludeGraph     bool
	IncludeDocuments bool
	UseEnhanced      bool
	BoostRecent      bool

	// GraphWeight/DocWeight weight the G⊕D merge in step 4; zero values
	// default to equal weighting.
	GraphWeight float64
	DocWeight   float64

	IncludeContent bool
	Limit          int
	Offset         int
}

// Item is one ranked result, shaped to serialize directly regardless of
// origin.
type Item struct {
	Origin    Origin
	Type      string
	ID        string
	Title     string
	Snippet   string
	Score     float64
	SourceID  string
	URL       string
	Content   string
	ProjectID string
	CreatedAt time.Time
}

// Response is the full result of a Search call.
type Response struct {
	Items       []Item
	Total       int
	HasMore     bool
	ActualTotal *int
}

// Deps bundles the store/primitive handles Search and Explore need.
// EntityBM25/ChunkBM25/Reranker/EntityVectors may be nil to degrade a
// stage gracefully (e.g. no reranker configured ⇒ use_enhanced is a
// no-op).
type Deps struct {
	Graph         graphstore.Store
	Chunks        chunkstore.Store
	EntityVectors *retrieval.EntityVectorStore
	EntityBM25    *retrieval.Registry
	ChunkBM25     *retrieval.Registry
	Embedder      embedder.Embedder
	Reranker      retrieval.Reranker
	Decay         retrieval.DecayConfig
}

const graphSearchFanOutLimit = 100

// Search runs the unified retrieval algorithm for a single tenant.
// accessibleProjects is the caller's resolved accessible-project set (nil
// means "no filter," per the migration-window sentinel); the caller must
// already have rejected any project named explicitly in f that falls
// outside it: Search itself never 403s, it only filters.
func Search(ctx context.Context, d Deps, orgID uuid.UUID, accessibleProjects []uuid.UUID, f Filters) (*Response, error) {
	if f.Limit == 0 {
		return &Response{Items: []Item{}, HasMore: false}, nil
	}
	if !f.IncludeGraph && !f.IncludeDocuments {
		return &Response{Items: []Item{}}, nil
	}

	projectFilter := effectiveProjectFilter(accessibleProjects, f.ProjectIDs)
	emptyQuery := f.Query == ""

	var queryVector []float32
	if !emptyQuery && d.Embedder != nil {
		qv, err := d.Embedder.Embed(ctx, f.Query)
		if err != nil {
			return nil, sibylerr.StorageUnavailable("embedder", err)
		}
		queryVector = qv
	}

	var graphFused []retrieval.FusedItem
	var graphByKey map[string]graphEntry
	var docFused []retrieval.FusedItem
	var docByKey map[string]docEntry

	g, gctx := errgroup.WithContext(ctx)
	if f.IncludeGraph {
		g.Go(func() error {
			var err error
			graphFused, graphByKey, err = searchGraph(gctx, d, orgID, projectFilter, f, queryVector, emptyQuery)
			return err
		})
	}
	if f.IncludeDocuments && !emptyQuery {
		g.Go(func() error {
			var err error
			docFused, docByKey, err = searchDocuments(gctx, d, orgID, projectFilter, f, queryVector)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeGraphAndDocs(graphFused, docFused, f.GraphWeight, f.DocWeight)

	items := make([]Item, 0, len(merged))
	for _, m := range merged {
		if ge, ok := graphByKey[m.Key]; ok {
			items = append(items, ge.toItem(m.RRFScore))
			continue
		}
		if de, ok := docByKey[m.Key]; ok {
			items = append(items, de.toItem(m.RRFScore))
		}
	}

	if f.BoostRecent {
		applyRecencyBoost(items, d.Decay)
	}

	sortItems(items)

	if f.UseEnhanced && d.Reranker != nil && len(items) > 0 {
		reranked, err := rerankItems(ctx, d.Reranker, f.Query, items)
		if err != nil {
			return nil, err
		}
		items = reranked
	}

	if !f.IncludeContent {
		for i := range items {
			items[i].Content = ""
		}
	}

	total := len(items)
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	page := items[start:end]

	return &Response{
		Items:   page,
		Total:   total,
		HasMore: end < total,
	}, nil
}

func effectiveProjectFilter(accessible []uuid.UUID, requested []string) []string {
	if accessible == nil && len(requested) == 0 {
		return nil
	}
	if len(requested) > 0 {
		return requested
	}
	out := make([]string, len(accessible))
	for i, id := range accessible {
		out[i] = id.String()
	}
	return out
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
}
