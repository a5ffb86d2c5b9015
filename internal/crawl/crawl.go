// Package crawl implements the crawl_source job: fetch
// a source's URL set honoring include/exclude patterns and max depth,
// chunk each page by semantic boundaries, embed in batches, and replace
// each document's chunks atomically before updating the source's status
// and counters.
//
// Its semantic/sentence/fixed chunking strategies (headings-first with
// a sliding-window fallback) are generalized from "chunk arbitrary
// ingested content" to "chunk one crawled page," with a
// fetch/parse/link-discovery layer added on top for pages reached by
// crawling rather than direct upload.
package crawl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/sibyl-platform/sibyl/internal/chunkstore"
	"github.com/sibyl-platform/sibyl/internal/embedder"
	"github.com/sibyl-platform/sibyl/internal/events"
	"github.com/sibyl-platform/sibyl/internal/model"
)

// embedBatchSize caps how many chunk texts are sent to the embedding
// service per call, rather than embedding a page's chunks one at a time.
const embedBatchSize = 32

// SourceRepo is the slice of internal/relational.SourceStore's contract
// Crawler needs; splitting it out lets crawl logic be exercised with a
// fake in tests instead of a live Postgres instance.
type SourceRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Source, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.SourceStatus, errMsg string) error
	UpdateProgress(ctx context.Context, id uuid.UUID, crawled, total, failed int) error
}

// Crawler runs crawl_source jobs: it owns no job-queue concerns itself
// (internal/jobs.Worker drives it) and only orchestrates fetch -> parse
// -> chunk -> embed -> store for one Source at a time.
type Crawler struct {
	fetcher  Fetcher
	headless Fetcher // used instead of fetcher when a Source sets UseHeadless
	embed    embedder.Embedder
	chunks   chunkstore.Store
	sources  SourceRepo
	bridge   *events.Bridge
	logger   *slog.Logger
}

// New builds a Crawler. headless may be nil if no SpiderConfig in use
// sets UseHeadless; a nil logger falls back to slog.Default().
func New(fetcher, headless Fetcher, embed embedder.Embedder, chunks chunkstore.Store, sources SourceRepo, bridge *events.Bridge, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{fetcher: fetcher, headless: headless, embed: embed, chunks: chunks, sources: sources, bridge: bridge, logger: logger}
}

// crawledPage is one page queued for processing.
type crawledPage struct {
	url   string
	depth int
}

// Run executes the crawl_source job for one source: BFS over its URL
// set, chunk + embed + replace_chunks per page, then finalize status.
// Per-page fetch/parse failures are recorded but don't fail the job
// unless every page failed: the fetch has to be uniformly denied
// before the whole source is marked failed.
func (c *Crawler) Run(ctx context.Context, src *model.Source) error {
	root, err := url.Parse(src.RootURL)
	if err != nil {
		return fmt.Errorf("crawl: invalid root url %q: %w", src.RootURL, err)
	}

	if err := c.chunks.EnsureCollection(ctx, src.OrganizationID, c.embed.Dimension()); err != nil {
		return fmt.Errorf("crawl: ensure collection: %w", err)
	}

	c.bridge.Publish(ctx, events.CrawlStarted, map[string]any{"source_id": src.ID, "root_url": src.RootURL}, &src.OrganizationID)

	fetcher := c.fetcher
	if src.UseHeadless && c.headless != nil {
		fetcher = c.headless
	}

	visited := map[string]bool{root.String(): true}
	queue := []crawledPage{{url: root.String(), depth: 0}}

	crawled, failed := 0, 0
	for len(queue) > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		next := queue[0]
		queue = queue[1:]

		doc, links, err := c.processPage(ctx, src, fetcher, next.url)
		if err != nil {
			failed++
			c.logger.Warn("crawl page failed", "source_id", src.ID, "url", next.url, "error", err)
		} else {
			crawled++
			c.logger.Debug("crawled page", "source_id", src.ID, "url", next.url, "chunks", doc.ChunkCount)
		}

		if err := c.sources.UpdateProgress(ctx, src.ID, crawled, crawled+len(queue)+1, failed); err != nil {
			c.logger.Error("failed to update crawl progress", "source_id", src.ID, "error", err)
		}
		c.bridge.Publish(ctx, events.CrawlProgress, map[string]any{
			"source_id": src.ID, "pages_crawled": crawled, "pages_failed": failed,
		}, &src.OrganizationID)

		if next.depth >= src.MaxDepth {
			continue
		}
		for _, link := range links {
			if visited[link] {
				continue
			}
			linkURL, err := url.Parse(link)
			if err != nil || !sameHost(root, linkURL) {
				continue
			}
			if !matchesPatterns(link, src.IncludePatterns, src.ExcludePatterns) {
				continue
			}
			visited[link] = true
			queue = append(queue, crawledPage{url: link, depth: next.depth + 1})
		}
	}

	if crawled == 0 && failed > 0 {
		if err := c.sources.UpdateStatus(ctx, src.ID, model.SourceFailed, "every page fetch was denied"); err != nil {
			c.logger.Error("failed to update source status", "source_id", src.ID, "error", err)
		}
		c.bridge.Publish(ctx, events.CrawlComplete, map[string]any{"source_id": src.ID, "status": model.SourceFailed}, &src.OrganizationID)
		return fmt.Errorf("crawl: every page fetch was denied for source %s", src.ID)
	}

	status := model.SourceCompleted
	if failed > 0 {
		status = model.SourcePartial
	}
	if err := c.sources.UpdateStatus(ctx, src.ID, status, ""); err != nil {
		return fmt.Errorf("crawl: update final status: %w", err)
	}
	c.bridge.Publish(ctx, events.CrawlComplete, map[string]any{
		"source_id": src.ID, "status": status, "pages_crawled": crawled, "pages_failed": failed,
	}, &src.OrganizationID)
	return nil
}

// processPage fetches, parses, chunks, embeds, and replaces the chunk
// set for one page, within its own error boundary so a single bad page
// never aborts the crawl.
func (c *Crawler) processPage(ctx context.Context, src *model.Source, fetcher Fetcher, pageURL string) (*model.Document, []string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse url: %w", err)
	}

	rawHTML, err := fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}

	parsed, err := parsePage(rawHTML, base)
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}
	if parsed.Text == "" {
		return nil, parsed.Links, fmt.Errorf("page had no extractable text")
	}

	doc := &model.Document{
		ID:             uuid.New(),
		SourceID:       src.ID,
		OrganizationID: src.OrganizationID,
		ProjectID:      src.ProjectID,
		URL:            pageURL,
		Title:          parsed.Title,
		ContentHash:    hashContent(parsed.Text),
		Status:         "active",
	}
	if _, err := c.chunks.PutDocument(ctx, doc); err != nil {
		return nil, parsed.Links, fmt.Errorf("put document: %w", err)
	}

	textChunks := newChunker(ChunkerConfig{Method: "semantic"}).Chunk(parsed.Text)
	modelChunks, err := c.embedChunks(ctx, src, doc, textChunks)
	if err != nil {
		return doc, parsed.Links, fmt.Errorf("embed chunks: %w", err)
	}
	if err := c.chunks.ReplaceChunks(ctx, doc.ID, modelChunks); err != nil {
		return doc, parsed.Links, fmt.Errorf("replace chunks: %w", err)
	}
	doc.ChunkCount = len(modelChunks)
	return doc, parsed.Links, nil
}

func (c *Crawler) embedChunks(ctx context.Context, src *model.Source, doc *model.Document, chunks []textChunk) ([]model.Chunk, error) {
	result := make([]model.Chunk, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, tc := range batch {
			texts[i] = tc.Text
		}
		vectors, err := c.embed.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(batch))
		}

		for i, tc := range batch {
			chunkType := model.ChunkProse
			if tc.HasCode {
				chunkType = model.ChunkCode
			}
			result = append(result, model.Chunk{
				ID:             uuid.New(),
				DocumentID:     doc.ID,
				OrganizationID: src.OrganizationID,
				ProjectID:      src.ProjectID,
				Ordinal:        tc.Ordinal,
				Text:           tc.Text,
				Vector:         vectors[i],
				ChunkType:      chunkType,
			})
		}
	}
	return result, nil
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
