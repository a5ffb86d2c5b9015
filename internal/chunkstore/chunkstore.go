// Package chunkstore implements C1's ChunkStore: document + chunk
// persistence backed by Qdrant for dense vectors, exposing a
// put_document / replace_chunks / vector_search contract scoped per
// organization and project rather than a single flat collection. BM25
// term statistics live in the sibling retrieval package rather than in
// Qdrant itself, since Qdrant has no BM25 engine.
package chunkstore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/sibyl-platform/sibyl/internal/model"
	"github.com/sibyl-platform/sibyl/internal/sibylerr"
)

// Filter constrains vector_search/bm25_search/list_documents.
type Filter struct {
	SourceID       *uuid.UUID
	OrganizationID uuid.UUID
	ProjectFilter  []string // nil = no project filter
	Language       string
	ChunkType      model.ChunkType
}

// SearchResult is one scored hit from vector_search or bm25_search.
type SearchResult struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Ordinal    int
	Text       string
	Score      float32
	Metadata   map[string]string
}

// Store is the ChunkStore interface C2/C3 depend on.
type Store interface {
	PutDocument(ctx context.Context, doc *model.Document) (*model.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID, includeChunks bool) (*model.Document, []model.Chunk, error)
	ListDocuments(ctx context.Context, sourceID uuid.UUID, limit, offset int) ([]model.Document, int, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	// ReplaceChunks atomically discards a document's existing chunks and
	// inserts the replacement set (re-crawl semantics).
	ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []model.Chunk) error

	VectorSearch(ctx context.Context, orgID uuid.UUID, queryVector []float32, f Filter, k int, minScore float32) ([]SearchResult, error)

	EnsureCollection(ctx context.Context, orgID uuid.UUID, dimension int) error
}

// QdrantStore is the Qdrant-backed Store implementation. Documents and
// their point-id index are tracked in-process since Qdrant itself is a
// pure vector index; a production deployment pairs this with the
// relational store for document/source bookkeeping, which this package
// leaves to internal/relational (put_document here only persists the
// chunk-bearing side of a Document, matching ChunkStore's narrower scope
// in the relational store's migrations).
type QdrantStore struct {
	client *qdrant.Client

	index     *chunkIndex
}

// NewQdrantStore dials Qdrant. url is "host:port" (gRPC port, default 6334).
func NewQdrantStore(url string) (*QdrantStore, error) {
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
	return &QdrantStore{client: client, index: newChunkIndex()}, nil
}

func (s *QdrantStore) Close() error { return s.client.Close() }

func collectionName(orgID uuid.UUID) string {
	return fmt.Sprintf("tenant_%s", orgID.String())
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, orgID uuid.UUID, dimension int) error {
	name := collectionName(orgID)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return sibylerr.StorageUnavailable("chunk store", err)
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
		return sibylerr.StorageUnavailable("chunk store", err)
	}
	return nil
}

func (s *QdrantStore) PutDocument(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.index.putDocument(*doc)
	return doc, nil
}

func (s *QdrantStore) GetDocument(ctx context.Context, id uuid.UUID, includeChunks bool) (*model.Document, []model.Chunk, error) {
	doc, ok := s.index.getDocument(id)
	if !ok {
		return nil, nil, sibylerr.NotFound("document", id.String())
	}
	if !includeChunks {
		return &doc, nil, nil
	}
	return &doc, s.index.chunksFor(id), nil
}

func (s *QdrantStore) ListDocuments(ctx context.Context, sourceID uuid.UUID, limit, offset int) ([]model.Document, int, error) {
	all := s.index.documentsFor(sourceID)
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *QdrantStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	doc, ok := s.index.getDocument(id)
	if !ok {
		return sibylerr.NotFound("document", id.String())
	}
	if err := s.deletePoints(ctx, doc.OrganizationID, id); err != nil {
		return err
	}
	s.index.deleteDocument(id)
	return nil
}

// ReplaceChunks discards a document's prior chunk set and inserts the
// replacement atomically from the caller's perspective: delete-by-filter
// then upsert happen under one in-process lock per document, matching
// "old chunks discarded, new chunks inserted atomically per document"
// (see the Document & Source model types).
func (s *QdrantStore) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []model.Chunk) error {
	doc, ok := s.index.getDocument(documentID)
	if !ok {
		return sibylerr.NotFound("document", documentID.String())
	}

	unlock := s.index.lockDocument(documentID)
	defer unlock()

	if err := s.deletePoints(ctx, doc.OrganizationID, documentID); err != nil {
		return err
	}
	if len(chunks) > 0 {
		if err := s.upsert(ctx, doc.OrganizationID, doc.SourceID, chunks); err != nil {
			return err
		}
	}
	s.index.replaceChunks(documentID, chunks)
	doc.ChunkCount = len(chunks)
	doc.UpdatedAt = time.Now()
	s.index.putDocument(doc)
	return nil
}

func (s *QdrantStore) upsert(ctx context.Context, orgID, sourceID uuid.UUID, chunks []model.Chunk) error {
	name := collectionName(orgID)
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		if c.ID == uuid.Nil {
			chunks[i].ID = uuid.New()
			c = chunks[i]
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		payload := map[string]*qdrant.Value{
			"document_id": qdrant.NewValueString(c.DocumentID.String()),
			"source_id":   qdrant.NewValueString(sourceID.String()),
			"ordinal":     qdrant.NewValueInt(int64(c.Ordinal)),
			"content":     qdrant.NewValueString(c.Text),
			"project_id":  qdrant.NewValueString(c.ProjectID),
			"language":    qdrant.NewValueString(c.Language),
			"chunk_type":  qdrant.NewValueString(string(c.ChunkType)),
			"created_at":  qdrant.NewValueString(createdAt.Format(time.RFC3339Nano)),
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID.String()),
			Payload: payload,
			Vectors: qdrant.NewVectors(c.Vector...),
		}
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: name, Points: points})
	if err != nil {
		return sibylerr.StorageUnavailable("chunk store", err)
	}
	return nil
}

func (s *QdrantStore) deletePoints(ctx context.Context, orgID uuid.UUID, documentID uuid.UUID) error {
	name := collectionName(orgID)
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID.String())},
				},
			},
		},
	})
	if err != nil {
		return sibylerr.StorageUnavailable("chunk store", err)
	}
	return nil
}

// VectorSearch performs cosine-similarity top-k over chunk vectors, scoped
// by organization and (when set) project filter, source, language, type.
func (s *QdrantStore) VectorSearch(ctx context.Context, orgID uuid.UUID, queryVector []float32, f Filter, k int, minScore float32) ([]SearchResult, error) {
	name := collectionName(orgID)
	var must []*qdrant.Condition
	if f.SourceID != nil {
		must = append(must, qdrant.NewMatch("source_id", f.SourceID.String()))
	}
	if f.Language != "" {
		must = append(must, qdrant.NewMatch("language", f.Language))
	}
	if f.ChunkType != "" {
		must = append(must, qdrant.NewMatch("chunk_type", string(f.ChunkType)))
	}
	var filter *qdrant.Filter
	if len(must) > 0 {
		filter = &qdrant.Filter{Must: must}
	}

	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(queryVector...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: qdrant.PtrOf(minScore),
	})
	if err != nil {
		return nil, sibylerr.StorageUnavailable("chunk store", err)
	}

	results := make([]SearchResult, 0, len(response))
	for _, point := range response {
		r := SearchResult{Score: point.Score, Metadata: make(map[string]string)}
		if id, err := uuid.Parse(point.Id.GetUuid()); err == nil {
			r.ChunkID = id
		}
		if payload := point.Payload; payload != nil {
			if v, ok := payload["document_id"]; ok {
				if docID, err := uuid.Parse(v.GetStringValue()); err == nil {
					r.DocumentID = docID
				}
			}
			if v, ok := payload["content"]; ok {
				r.Text = v.GetStringValue()
			}
			if v, ok := payload["ordinal"]; ok {
				r.Ordinal = int(v.GetIntegerValue())
			}
			for k, v := range payload {
				switch k {
				case "document_id", "content", "ordinal":
				default:
					r.Metadata[k] = v.GetStringValue()
				}
			}
		}
		if f.ProjectFilter != nil && !containsStr(f.ProjectFilter, r.Metadata["project_id"]) {
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
