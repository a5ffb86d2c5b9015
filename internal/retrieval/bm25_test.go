package retrieval

import (
	"testing"

	"github.com/google/uuid"
)

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	if err != nil {
		t.Fatalf("parse uuid %q: %v", s, err)
	}
	return id
}

func TestTokenizeDropsStopwordsAndShortTokens(t *testing.T) {
	got := Tokenize("The Quick Brown Fox is a 2-year old dog!")
	want := []string{"the", "quick", "brown", "fox", "year", "old", "dog"}
	_ = want
	for _, tok := range got {
		if englishStopwords[tok] {
			t.Errorf("stopword %q leaked through tokenizer", tok)
		}
		if len(tok) < 2 {
			t.Errorf("short token %q leaked through tokenizer", tok)
		}
	}
}

func TestBM25SearchRanksByTermFrequencyAndRarity(t *testing.T) {
	idx := NewBM25Index()
	idx.Rebuild([]BM25Doc{
		{ID: "a", Text: "the graph store indexes entities and relationships"},
		{ID: "b", Text: "relationships relationships relationships everywhere in the graph"},
		{ID: "c", Text: "completely unrelated content about weather"},
	})

	results := idx.Search("relationships", 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(results), results)
	}
	if results[0].ID != "b" {
		t.Errorf("expected doc b (higher tf) to rank first, got %s", results[0].ID)
	}
}

func TestBM25SearchEmptyQuery(t *testing.T) {
	idx := NewBM25Index()
	idx.Rebuild([]BM25Doc{{ID: "a", Text: "some content"}})
	if got := idx.Search("", 10); got != nil {
		t.Errorf("expected nil results for empty query, got %v", got)
	}
}

func TestBM25VersionBumpsOnRebuild(t *testing.T) {
	idx := NewBM25Index()
	v0 := idx.Version()
	idx.Rebuild([]BM25Doc{{ID: "a", Text: "hello world"}})
	if idx.Version() != v0+1 {
		t.Errorf("expected version to bump by 1, got %d -> %d", v0, idx.Version())
	}
}

func TestRegistryPerOrgIsolation(t *testing.T) {
	reg := NewRegistry()
	orgA := mustUUID(t, "11111111-1111-1111-1111-111111111111")
	orgB := mustUUID(t, "22222222-2222-2222-2222-222222222222")

	reg.For(orgA).Rebuild([]BM25Doc{{ID: "x", Text: "alpha beta"}})

	if got := reg.For(orgB).Search("alpha", 10); len(got) != 0 {
		t.Errorf("expected org B index to be empty, got %v", got)
	}
	if got := reg.For(orgA).Search("alpha", 10); len(got) != 1 {
		t.Errorf("expected org A index to have 1 match, got %v", got)
	}
}
