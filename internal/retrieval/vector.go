package retrieval

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/sibyl-platform/sibyl/internal/sibylerr"
)

// EntitySearchResult is one scored hit from entity vector search.
type EntitySearchResult struct {
	EntityID  string
	Score     float32
	ProjectID string
}

// EntityVectorStore indexes graph-entity embeddings in a collection
// separate from document chunks ("entities_<org>" vs. chunkstore's
// "tenant_<org>"), so C3's graph stream (G) and document stream (D) each
// have their own dense-vector source before being RRF-merged together.
type EntityVectorStore struct {
	client *qdrant.Client
}

// NewEntityVectorStore dials the same Qdrant instance chunkstore uses, on
// a distinct collection namespace.
func NewEntityVectorStore(url string) (*EntityVectorStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		host, portStr = url, "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant port: %w", err)
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &EntityVectorStore{client: client}, nil
}

func (s *EntityVectorStore) Close() error { return s.client.Close() }

func entityCollectionName(orgID uuid.UUID) string {
	return fmt.Sprintf("entities_%s", orgID.String())
}

// EnsureCollection creates the entity collection if absent.
func (s *EntityVectorStore) EnsureCollection(ctx context.Context, orgID uuid.UUID, dimension int) error {
	name := entityCollectionName(orgID)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return sibylerr.StorageUnavailable("entity vector store", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return sibylerr.StorageUnavailable("entity vector store", err)
	}
	return nil
}

// Upsert indexes (or re-indexes) an entity's embedding.
func (s *EntityVectorStore) Upsert(ctx context.Context, orgID uuid.UUID, entityID, projectID string, vector []float32) error {
	name := entityCollectionName(orgID)
	point := &qdrant.PointStruct{
		Id: qdrant.NewID(entityID),
		Payload: map[string]*qdrant.Value{
			"entity_id":  qdrant.NewValueString(entityID),
			"project_id": qdrant.NewValueString(projectID),
		},
		Vectors: qdrant.NewVectors(vector...),
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: name, Points: []*qdrant.PointStruct{point}})
	if err != nil {
		return sibylerr.StorageUnavailable("entity vector store", err)
	}
	return nil
}

// Delete removes an entity's embedding, e.g. on delete_entity.
func (s *EntityVectorStore) Delete(ctx context.Context, orgID uuid.UUID, entityID string) error {
	name := entityCollectionName(orgID)
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points:         &qdrant.PointsSelector{PointsSelectorOneOf: &qdrant.PointsSelector_Points{Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{qdrant.NewID(entityID)}}}},
	})
	if err != nil {
		return sibylerr.StorageUnavailable("entity vector store", err)
	}
	return nil
}

// Search performs cosine-similarity top-k search over entity embeddings,
// scoped to org_id and (when non-nil) a project allow-list.
func (s *EntityVectorStore) Search(ctx context.Context, orgID uuid.UUID, queryVector []float32, projectFilter []string, k int, minScore float32) ([]EntitySearchResult, error) {
	name := entityCollectionName(orgID)
	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: qdrant.PtrOf(minScore),
	})
	if err != nil {
		return nil, sibylerr.StorageUnavailable("entity vector store", err)
	}

	results := make([]EntitySearchResult, 0, len(response))
	for _, point := range response {
		r := EntitySearchResult{Score: point.Score}
		if payload := point.Payload; payload != nil {
			if v, ok := payload["entity_id"]; ok {
				r.EntityID = v.GetStringValue()
			}
			if v, ok := payload["project_id"]; ok {
				r.ProjectID = v.GetStringValue()
			}
		}
		if projectFilter != nil && !containsStr(projectFilter, r.ProjectID) {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func containsStr(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// RankedFromBM25 converts BM25 results (already sorted) into RankedItems
// for Fuse.
func RankedFromBM25(results []BM25Result) []RankedItem {
	out := make([]RankedItem, len(results))
	for i, r := range results {
		out[i] = RankedItem{Key: r.ID, Score: r.Score}
	}
	return out
}

// RankedFromEntityVector converts entity vector results (already sorted
// by score descending, as Qdrant returns them) into RankedItems.
func RankedFromEntityVector(results []EntitySearchResult) []RankedItem {
	out := make([]RankedItem, len(results))
	for i, r := range results {
		out[i] = RankedItem{Key: r.EntityID, Score: float64(r.Score)}
	}
	return out
}
