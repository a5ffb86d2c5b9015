package search

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sibyl-platform/sibyl/internal/chunkstore"
	"github.com/sibyl-platform/sibyl/internal/graphstore"
	"github.com/sibyl-platform/sibyl/internal/model"
)

type fakeGraph struct {
	entities map[string]model.Entity
	edges    []model.Relationship
}

func (f *fakeGraph) CreateEntity(ctx context.Context, groupID uuid.UUID, e *model.Entity) (*model.Entity, error) {
	panic("not used")
}
func (f *fakeGraph) CreateEntityDirect(ctx context.Context, groupID uuid.UUID, e *model.Entity) (*model.Entity, error) {
	panic("not used")
}
func (f *fakeGraph) GetEntity(ctx context.Context, groupID uuid.UUID, id string) (*model.Entity, error) {
	e, ok := f.entities[id]
	if !ok {
		return nil, errNotFoundFake
	}
	return &e, nil
}
func (f *fakeGraph) UpdateEntity(ctx context.Context, groupID uuid.UUID, e *model.Entity) (*model.Entity, error) {
	panic("not used")
}
func (f *fakeGraph) DeleteEntity(ctx context.Context, groupID uuid.UUID, id string) error {
	panic("not used")
}
func (f *fakeGraph) ListByType(ctx context.Context, groupID uuid.UUID, filt graphstore.Filter, limit, offset int) ([]model.Entity, int, error) {
	out := make([]model.Entity, 0, len(f.entities))
	for _, e := range f.entities {
		if filt.EntityType != "" && e.EntityType != filt.EntityType {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}
func (f *fakeGraph) BatchCreate(ctx context.Context, groupID uuid.UUID, entities []model.Entity) ([]model.Entity, error) {
	panic("not used")
}
func (f *fakeGraph) BatchUpdate(ctx context.Context, groupID uuid.UUID, entities []model.Entity) error {
	panic("not used")
}
func (f *fakeGraph) BatchDelete(ctx context.Context, groupID uuid.UUID, ids []string) error {
	panic("not used")
}
func (f *fakeGraph) CreateRelationship(ctx context.Context, groupID uuid.UUID, r *model.Relationship) (*model.Relationship, error) {
	panic("not used")
}
func (f *fakeGraph) ListEdges(ctx context.Context, groupID uuid.UUID, sourceID string, relType model.RelationshipType) ([]model.Relationship, error) {
	panic("not used")
}
func (f *fakeGraph) SearchNodes(ctx context.Context, groupID uuid.UUID, query string, filt graphstore.Filter, limit int) ([]model.Entity, error) {
	panic("not used")
}
func (f *fakeGraph) SearchEdges(ctx context.Context, groupID uuid.UUID, query string, filt graphstore.Filter, limit int) ([]model.Relationship, error) {
	return f.edges, nil
}
func (f *fakeGraph) Traverse(ctx context.Context, groupID uuid.UUID, sourceID string, edgeTypes []model.RelationshipType, maxDepth int, dir graphstore.Direction) ([]graphstore.TraverseHop, error) {
	panic("not used")
}
func (f *fakeGraph) AggregateCountsByType(ctx context.Context, groupID uuid.UUID) (map[model.EntityType]int, error) {
	panic("not used")
}
func (f *fakeGraph) Close(ctx context.Context) error { return nil }

type fakeErr struct{}

func (*fakeErr) Error() string { return "not found" }

var errNotFoundFake = &fakeErr{}

type fakeChunks struct {
	results []chunkstore.SearchResult
}

func (f *fakeChunks) PutDocument(ctx context.Context, doc *model.Document) (*model.Document, error) {
	panic("not used")
}
func (f *fakeChunks) GetDocument(ctx context.Context, id uuid.UUID, includeChunks bool) (*model.Document, []model.Chunk, error) {
	panic("not used")
}
func (f *fakeChunks) ListDocuments(ctx context.Context, sourceID uuid.UUID, limit, offset int) ([]model.Document, int, error) {
	panic("not used")
}
func (f *fakeChunks) DeleteDocument(ctx context.Context, id uuid.UUID) error { panic("not used") }
func (f *fakeChunks) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []model.Chunk) error {
	panic("not used")
}
func (f *fakeChunks) VectorSearch(ctx context.Context, orgID uuid.UUID, queryVector []float32, filt chunkstore.Filter, k int, minScore float32) ([]chunkstore.SearchResult, error) {
	return f.results, nil
}
func (f *fakeChunks) EnsureCollection(ctx context.Context, orgID uuid.UUID, dimension int) error {
	return nil
}

func TestSearchEmptyQueryReturnsGraphListingOnly(t *testing.T) {
	orgID := uuid.New()
	entities := map[string]model.Entity{
		"e1": {ID: "e1", OrganizationID: orgID, EntityType: model.EntityTask, Name: "Task One", CreatedAt: time.Now()},
	}
	d := Deps{Graph: &fakeGraph{entities: entities}, Chunks: &fakeChunks{}}

	resp, err := Search(context.Background(), d, orgID, nil, Filters{
		IncludeGraph: true, IncludeDocuments: true, Limit: 10,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "e1" {
		t.Fatalf("Items = %+v, want [e1]", resp.Items)
	}
}

func TestSearchIncludeGraphIncludeDocumentsFalseIsEmptyNotError(t *testing.T) {
	d := Deps{Graph: &fakeGraph{}, Chunks: &fakeChunks{}}
	resp, err := Search(context.Background(), d, uuid.New(), nil, Filters{Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("Items = %+v, want empty", resp.Items)
	}
}

func TestSearchLimitZeroReturnsEmptyNotHasMore(t *testing.T) {
	d := Deps{Graph: &fakeGraph{}, Chunks: &fakeChunks{}}
	resp, err := Search(context.Background(), d, uuid.New(), nil, Filters{IncludeGraph: true, Limit: 0})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Items) != 0 || resp.HasMore {
		t.Fatalf("resp = %+v, want empty/HasMore=false", resp)
	}
}

func TestSearchProjectFilterExcludesEntityOutsideAccessibleSet(t *testing.T) {
	orgID := uuid.New()
	accessible := uuid.New()
	outside := uuid.New()
	entities := map[string]model.Entity{
		"in":  {ID: "in", OrganizationID: orgID, EntityType: model.EntityTask, ProjectID: accessible.String(), CreatedAt: time.Now()},
		"out": {ID: "out", OrganizationID: orgID, EntityType: model.EntityTask, ProjectID: outside.String(), CreatedAt: time.Now()},
	}
	d := Deps{Graph: &fakeGraph{entities: entities}, Chunks: &fakeChunks{}}

	resp, err := Search(context.Background(), d, orgID, []uuid.UUID{accessible}, Filters{IncludeGraph: true, Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "in" {
		t.Fatalf("Items = %+v, want [in]", resp.Items)
	}
}

func TestSearchUnassignedEntityAlwaysVisible(t *testing.T) {
	orgID := uuid.New()
	accessible := uuid.New()
	entities := map[string]model.Entity{
		"unassigned": {ID: "unassigned", OrganizationID: orgID, EntityType: model.EntityTask, CreatedAt: time.Now()},
	}
	d := Deps{Graph: &fakeGraph{entities: entities}, Chunks: &fakeChunks{}}

	resp, err := Search(context.Background(), d, orgID, []uuid.UUID{accessible}, Filters{IncludeGraph: true, Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("Items = %+v, want unassigned entity included", resp.Items)
	}
}

func TestExploreListFiltersByEntityType(t *testing.T) {
	orgID := uuid.New()
	entities := map[string]model.Entity{
		"t1": {ID: "t1", EntityType: model.EntityTask},
		"p1": {ID: "p1", EntityType: model.EntityPattern},
	}
	d := Deps{Graph: &fakeGraph{entities: entities}}

	resp, err := Explore(context.Background(), d, orgID, nil, ModeList, ExploreFilters{EntityType: model.EntityTask, Limit: 10})
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Entity.ID != "t1" {
		t.Fatalf("Items = %+v, want [t1]", resp.Items)
	}
}

func TestExploreUnknownModeIsValidationError(t *testing.T) {
	d := Deps{Graph: &fakeGraph{}}
	if _, err := Explore(context.Background(), d, uuid.New(), nil, Mode("bogus"), ExploreFilters{}); err == nil {
		t.Fatal("Explore succeeded with unknown mode, want error")
	}
}
