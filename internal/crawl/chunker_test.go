package crawl

import (
	"strings"
	"testing"
)

func TestChunkSemanticSplitsOnHeadings(t *testing.T) {
	text := "# Introduction\n\nThis is the intro paragraph.\n\n# Usage\n\nThis explains usage in detail."
	chunks := newChunker(ChunkerConfig{Method: "semantic", TargetSize: 50, MaxSize: 100}).Chunk(text)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0].Text, "Introduction") {
		t.Errorf("chunk 0 = %q, want it to reference Introduction section", chunks[0].Text)
	}
	if !strings.Contains(chunks[1].Text, "Usage") {
		t.Errorf("chunk 1 = %q, want it to reference Usage section", chunks[1].Text)
	}
}

func TestChunkSemanticFallsBackToSlidingWindowForOversizedSection(t *testing.T) {
	words := make([]string, 300)
	for i := range words {
		words[i] = "word"
	}
	text := "# Big Section\n\n" + strings.Join(words, " ") + "."
	chunks := newChunker(ChunkerConfig{Method: "semantic", TargetSize: 50, MaxSize: 100, Overlap: 0}).Chunk(text)

	if len(chunks) < 3 {
		t.Fatalf("expected an oversized section to split into multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if !strings.Contains(c.Text, "Big Section") {
			t.Errorf("split chunk %q missing section label", c.Text)
		}
	}
}

func TestChunkSemanticWithNoHeadingsIsOneSection(t *testing.T) {
	text := "Just a plain paragraph with no markdown structure at all."
	chunks := newChunker(ChunkerConfig{Method: "semantic", TargetSize: 512, MaxSize: 1024}).Chunk(text)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}

func TestChunkFixedRespectsOverlap(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = "w"
	}
	text := strings.Join(words, " ")
	chunks := newChunker(ChunkerConfig{Method: "fixed", TargetSize: 40, Overlap: 10}).Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple fixed chunks, got %d", len(chunks))
	}
}

func TestChunkEmptyTextReturnsNoChunks(t *testing.T) {
	if got := newChunker(ChunkerConfig{}).Chunk("   "); got != nil {
		t.Fatalf("got %v, want nil for blank input", got)
	}
}

func TestSplitSentencesHandlesAbbreviations(t *testing.T) {
	sentences := splitSentences("Dr. Smith went home. He was tired.")
	if len(sentences) != 2 {
		t.Fatalf("got %d sentences, want 2: %v", len(sentences), sentences)
	}
	if !strings.HasPrefix(sentences[0], "Dr. Smith") {
		t.Errorf("sentence 0 = %q, want it to keep the Dr. abbreviation intact", sentences[0])
	}
}
