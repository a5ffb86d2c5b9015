package search

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sibyl-platform/sibyl/internal/graphstore"
	"github.com/sibyl-platform/sibyl/internal/model"
	"github.com/sibyl-platform/sibyl/internal/sibylerr"
)

// Mode selects an Explore traversal shape.
type Mode string

const (
	ModeList         Mode = "list"
	ModeNeighborhood Mode = "neighborhood"
	ModeDependencies Mode = "dependencies"
	ModeTimeline     Mode = "timeline"
)

// ExploreFilters parameterizes Explore; which fields apply depends on Mode.
type ExploreFilters struct {
	// list
	EntityType model.EntityType
	Limit      int
	Offset     int

	// neighborhood, dependencies
	EntityID          string
	Depth             int
	RelationshipTypes []model.RelationshipType
	Direction         graphstore.Direction

	// timeline
	Since, Until time.Time
}

// ExploreItem is one flattened traversal result.
type ExploreItem struct {
	Entity       model.Entity
	RelationPath []string
	Depth        int
}

// ExploreResponse is the result of an Explore call.
type ExploreResponse struct {
	Items []ExploreItem
	Total int
}

// Explore dispatches to the mode-specific traversal.
func Explore(ctx context.Context, d Deps, orgID uuid.UUID, accessibleProjects []uuid.UUID, mode Mode, f ExploreFilters) (*ExploreResponse, error) {
	projectFilter := effectiveProjectFilter(accessibleProjects, nil)

	switch mode {
	case ModeList:
		return exploreList(ctx, d, orgID, projectFilter, f)
	case ModeNeighborhood:
		return exploreNeighborhood(ctx, d, orgID, projectFilter, f)
	case ModeDependencies:
		return exploreDependencies(ctx, d, orgID, projectFilter, f)
	case ModeTimeline:
		return exploreTimeline(ctx, d, orgID, projectFilter, f)
	default:
		return nil, sibylerr.Validation("unknown explore mode", map[string]any{"mode": string(mode)})
	}
}

func exploreList(ctx context.Context, d Deps, orgID uuid.UUID, projectFilter []string, f ExploreFilters) (*ExploreResponse, error) {
	entities, total, err := d.Graph.ListByType(ctx, orgID, graphstore.Filter{EntityType: f.EntityType, ProjectFilter: projectFilter}, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]ExploreItem, len(entities))
	for i, e := range entities {
		items[i] = ExploreItem{Entity: e}
	}
	return &ExploreResponse{Items: items, Total: total}, nil
}

// exploreNeighborhood traverses from EntityID up to Depth hops along
// RelationshipTypes in Direction, then filters visited nodes by project
// accessibility.
func exploreNeighborhood(ctx context.Context, d Deps, orgID uuid.UUID, projectFilter []string, f ExploreFilters) (*ExploreResponse, error) {
	if f.EntityID == "" {
		return nil, sibylerr.Validation("entity_id is required for neighborhood mode", nil)
	}
	hops, err := d.Graph.Traverse(ctx, orgID, f.EntityID, f.RelationshipTypes, f.Depth, f.Direction)
	if err != nil {
		return nil, err
	}
	return hopsToResponse(hops, projectFilter), nil
}

// exploreDependencies is a neighborhood traversal specialized to
// depends_on/blocks, suited to rendering a dependency DAG.
func exploreDependencies(ctx context.Context, d Deps, orgID uuid.UUID, projectFilter []string, f ExploreFilters) (*ExploreResponse, error) {
	if f.EntityID == "" {
		return nil, sibylerr.Validation("entity_id is required for dependencies mode", nil)
	}
	depth := f.Depth
	if depth == 0 {
		depth = 5
	}
	hops, err := d.Graph.Traverse(ctx, orgID, f.EntityID, []model.RelationshipType{model.RelDependsOn, model.RelBlocks}, depth, f.Direction)
	if err != nil {
		return nil, err
	}
	return hopsToResponse(hops, projectFilter), nil
}

func hopsToResponse(hops []graphstore.TraverseHop, projectFilter []string) *ExploreResponse {
	items := make([]ExploreItem, 0, len(hops))
	for _, h := range hops {
		if !projectAllowedForEntity(h.Entity.ProjectID, projectFilter) {
			continue
		}
		items = append(items, ExploreItem{Entity: h.Entity, RelationPath: h.RelationPath, Depth: h.Depth})
	}
	return &ExploreResponse{Items: items, Total: len(items)}
}

// exploreTimeline lists episodes (entity_type=episode) within [Since,
// Until], sorted descending by creation time. Episodes carry their
// valid-from timestamp in Metadata rather than as a first-class graph
// column, matching how Entity generalizes all tagged variants.
func exploreTimeline(ctx context.Context, d Deps, orgID uuid.UUID, projectFilter []string, f ExploreFilters) (*ExploreResponse, error) {
	entities, _, err := d.Graph.ListByType(ctx, orgID, graphstore.Filter{EntityType: model.EntityEpisode, ProjectFilter: projectFilter}, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}

	items := make([]ExploreItem, 0, len(entities))
	for _, e := range entities {
		validFrom := episodeValidFrom(e)
		if !f.Since.IsZero() && validFrom.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && validFrom.After(f.Until) {
			continue
		}
		items = append(items, ExploreItem{Entity: e})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return episodeValidFrom(items[i].Entity).After(episodeValidFrom(items[j].Entity))
	})
	return &ExploreResponse{Items: items, Total: len(items)}, nil
}

func episodeValidFrom(e model.Entity) time.Time {
	if v, ok := e.Metadata["valid_from"]; ok {
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t
			}
		}
	}
	return e.CreatedAt
}
