package chunkstore

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sibyl-platform/sibyl/internal/model"
)

// chunkIndex tracks document metadata and chunk bodies in-process,
// alongside the per-document lock that makes ReplaceChunks atomic from the
// caller's perspective. Qdrant holds vectors for search; this index holds
// the bookkeeping Qdrant's point payload doesn't need to round-trip
// through network calls on every read.
type chunkIndex struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]model.Document
	chunks    map[uuid.UUID][]model.Chunk // documentID -> chunks, ordinal order

	docLocksMu sync.Mutex
	docLocks   map[uuid.UUID]*sync.Mutex
}

func newChunkIndex() *chunkIndex {
	return &chunkIndex{
		documents: make(map[uuid.UUID]model.Document),
		chunks:    make(map[uuid.UUID][]model.Chunk),
		docLocks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

func (idx *chunkIndex) lockDocument(id uuid.UUID) func() {
	idx.docLocksMu.Lock()
	l, ok := idx.docLocks[id]
	if !ok {
		l = &sync.Mutex{}
		idx.docLocks[id] = l
	}
	idx.docLocksMu.Unlock()
	l.Lock()
	return l.Unlock
}

func (idx *chunkIndex) putDocument(d model.Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.documents[d.ID] = d
}

func (idx *chunkIndex) getDocument(id uuid.UUID) (model.Document, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	d, ok := idx.documents[id]
	return d, ok
}

func (idx *chunkIndex) deleteDocument(id uuid.UUID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.documents, id)
	delete(idx.chunks, id)
}

func (idx *chunkIndex) documentsFor(sourceID uuid.UUID) []model.Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]model.Document, 0)
	for _, d := range idx.documents {
		if d.SourceID == sourceID {
			out = append(out, d)
		}
	}
	return out
}

func (idx *chunkIndex) chunksFor(documentID uuid.UUID) []model.Chunk {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]model.Chunk(nil), idx.chunks[documentID]...)
}

func (idx *chunkIndex) replaceChunks(documentID uuid.UUID, chunks []model.Chunk) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.chunks[documentID] = append([]model.Chunk(nil), chunks...)
}
