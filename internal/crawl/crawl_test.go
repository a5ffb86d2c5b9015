package crawl

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sibyl-platform/sibyl/internal/chunkstore"
	"github.com/sibyl-platform/sibyl/internal/events"
	"github.com/sibyl-platform/sibyl/internal/model"
)

// fakeFetcher serves canned HTML keyed by URL.
type fakeFetcher struct {
	pages map[string]string
	fail  map[string]bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.fail[url] {
		return "", fmt.Errorf("fake: denied %s", url)
	}
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("fake: no page registered for %s", url)
	}
	return html, nil
}

// fakeEmbedder returns a fixed-dimension zero vector per input text.
type fakeEmbedder struct{ dim int }

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, e.dim), nil
}
func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dim)
	}
	return out, nil
}
func (e *fakeEmbedder) Dimension() int    { return e.dim }
func (e *fakeEmbedder) ModelName() string { return "fake" }

// fakeChunkStore is an in-memory chunkstore.Store sufficient for crawl
// orchestration tests; it doesn't model Qdrant's collection/vector
// semantics at all, only document/chunk bookkeeping.
type fakeChunkStore struct {
	mu        sync.Mutex
	documents map[uuid.UUID]model.Document
	chunks    map[uuid.UUID][]model.Chunk
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{documents: make(map[uuid.UUID]model.Document), chunks: make(map[uuid.UUID][]model.Chunk)}
}

func (s *fakeChunkStore) PutDocument(ctx context.Context, doc *model.Document) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return doc, nil
}
func (s *fakeChunkStore) GetDocument(ctx context.Context, id uuid.UUID, includeChunks bool) (*model.Document, []model.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, nil, fmt.Errorf("not found")
	}
	if !includeChunks {
		return &doc, nil, nil
	}
	return &doc, s.chunks[id], nil
}
func (s *fakeChunkStore) ListDocuments(ctx context.Context, sourceID uuid.UUID, limit, offset int) ([]model.Document, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Document
	for _, d := range s.documents {
		if d.SourceID == sourceID {
			out = append(out, d)
		}
	}
	return out, len(out), nil
}
func (s *fakeChunkStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}
func (s *fakeChunkStore) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[documentID] = chunks
	return nil
}
func (s *fakeChunkStore) VectorSearch(ctx context.Context, orgID uuid.UUID, queryVector []float32, f chunkstore.Filter, k int, minScore float32) ([]chunkstore.SearchResult, error) {
	return nil, nil
}
func (s *fakeChunkStore) EnsureCollection(ctx context.Context, orgID uuid.UUID, dimension int) error {
	return nil
}

func (s *fakeChunkStore) totalChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.chunks {
		n += len(c)
	}
	return n
}

// fakeSourceRepo is an in-memory SourceRepo.
type fakeSourceRepo struct {
	mu  sync.Mutex
	src *model.Source
}

func (r *fakeSourceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.src
	return &cp, nil
}
func (r *fakeSourceRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SourceStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.src.Status = status
	r.src.ErrorMessage = errMsg
	return nil
}
func (r *fakeSourceRepo) UpdateProgress(ctx context.Context, id uuid.UUID, crawled, total, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.src.PagesCrawled, r.src.PagesTotal, r.src.PagesFailed = crawled, total, failed
	return nil
}

func newTestBridge(t *testing.T) *events.Bridge {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return events.NewBridge(client, events.NewConnectionRegistry(nil), nil)
}

func TestCrawlerRunProcessesPagesAndCompletes(t *testing.T) {
	root := "https://docs.example/index.html"
	guide := "https://docs.example/guide"

	fetcher := &fakeFetcher{pages: map[string]string{
		root:  `<html><head><title>Home</title></head><body><h1>Home</h1><p>Welcome.</p><a href="/guide">Guide</a></body></html>`,
		guide: `<html><head><title>Guide</title></head><body><h1>Guide</h1><p>How to use this.</p></body></html>`,
	}}
	chunks := newFakeChunkStore()
	sources := &fakeSourceRepo{src: &model.Source{
		ID: uuid.New(), OrganizationID: uuid.New(), RootURL: root, MaxDepth: 2,
	}}

	c := New(fetcher, nil, &fakeEmbedder{dim: 4}, chunks, sources, newTestBridge(t), nil)
	if err := c.Run(context.Background(), sources.src); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sources.src.Status != model.SourceCompleted {
		t.Fatalf("Status = %q, want completed", sources.src.Status)
	}
	if sources.src.PagesCrawled != 2 {
		t.Fatalf("PagesCrawled = %d, want 2", sources.src.PagesCrawled)
	}
	if chunks.totalChunks() == 0 {
		t.Fatal("expected chunks to be stored for crawled pages")
	}
}

func TestCrawlerRunMarksPartialOnSomePageFailures(t *testing.T) {
	root := "https://docs.example/index.html"
	broken := "https://docs.example/broken"

	fetcher := &fakeFetcher{
		pages: map[string]string{
			root: `<html><head><title>Home</title></head><body><h1>Home</h1><p>Welcome.</p><a href="/broken">Broken</a></body></html>`,
		},
		fail: map[string]bool{broken: true},
	}
	sources := &fakeSourceRepo{src: &model.Source{
		ID: uuid.New(), OrganizationID: uuid.New(), RootURL: root, MaxDepth: 2,
	}}
	c := New(fetcher, nil, &fakeEmbedder{dim: 4}, newFakeChunkStore(), sources, newTestBridge(t), nil)

	if err := c.Run(context.Background(), sources.src); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sources.src.Status != model.SourcePartial {
		t.Fatalf("Status = %q, want partial", sources.src.Status)
	}
	if sources.src.PagesFailed != 1 {
		t.Fatalf("PagesFailed = %d, want 1", sources.src.PagesFailed)
	}
}

func TestCrawlerRunFailsWhenEveryFetchIsDenied(t *testing.T) {
	root := "https://docs.example/index.html"
	fetcher := &fakeFetcher{fail: map[string]bool{root: true}}
	sources := &fakeSourceRepo{src: &model.Source{
		ID: uuid.New(), OrganizationID: uuid.New(), RootURL: root, MaxDepth: 1,
	}}
	c := New(fetcher, nil, &fakeEmbedder{dim: 4}, newFakeChunkStore(), sources, newTestBridge(t), nil)

	if err := c.Run(context.Background(), sources.src); err == nil {
		t.Fatal("Run: want error when every fetch is denied")
	}
	if sources.src.Status != model.SourceFailed {
		t.Fatalf("Status = %q, want failed", sources.src.Status)
	}
}
