package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sibyl-platform/sibyl/internal/llm"
)

// Candidate is a generic scored item to be reranked, either a document
// chunk or a graph entity, identified opaquely by Key and summarized by
// Text for the cross-encoder prompt.
type Candidate struct {
	Key   string
	Text  string
	Score float64
}

// Reranker re-scores a shortlist of candidates against a query, using a
// Candidate type shared across graph and document results rather than
// one scoped to chunks alone.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error)
}

// MaxRerankCandidates is the top-M window sent to the reranker; results
// beyond this keep their pre-rerank order and score untouched.
const MaxRerankCandidates = 50

// LLMReranker scores query/document pairs with a single LLM call, an
// LLM-based approximation of a cross-encoder.
type LLMReranker struct {
	client llm.LLM
	model  string
}

// NewLLMReranker returns a reranker backed by client, using model for
// generation (e.g. a small instruct model suited to JSON-structured output).
func NewLLMReranker(client llm.LLM, model string) *LLMReranker {
	return &LLMReranker{client: client, model: model}
}

type rerankScore struct {
	Index int     `json:"doc_index"`
	Score float64 `json:"score"`
}

type rerankResponse struct {
	Scores []rerankScore `json:"scores"`
}

// Rerank scores up to MaxRerankCandidates candidates with a single LLM
// call and returns them sorted by the new score descending.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error) {
	if len(candidates) < 2 {
		return candidates, nil
	}

	window := candidates
	if len(window) > MaxRerankCandidates {
		window = window[:MaxRerankCandidates]
	}

	prompt := buildRerankPrompt(query, window)
	resp, err := r.client.Generate(ctx, prompt, llm.GenerateOptions{
		Model:       r.model,
		Temperature: 0,
		MaxTokens:   1024,
	})
	if err != nil {
		return candidates, nil
	}

	scores, err := parseRerankResponse(resp, len(window))
	if err != nil {
		return candidates, nil
	}

	scored := make([]Candidate, len(window))
	copy(scored, window)
	for i := range scored {
		scored[i].Score = scores[i]
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(window) < len(candidates) {
		scored = append(scored, candidates[len(window):]...)
	}
	return scored, nil
}

func buildRerankPrompt(query string, candidates []Candidate) string {
	var sb strings.Builder
	sb.WriteString("You are a relevance scoring system. Score each item's relevance to the query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nItems:\n")
	for i, c := range candidates {
		text := c.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Fprintf(&sb, "[%d]: %s\n\n", i, text)
	}
	sb.WriteString(`Score each item from 0.0 to 1.0 based on relevance to the query.
Output ONLY valid JSON: {"scores": [{"doc_index": 0, "score": 0.9}, ...]}
Output only JSON, no explanation:`)
	return sb.String()
}

func parseRerankResponse(resp string, n int) ([]float64, error) {
	resp = strings.TrimSpace(resp)
	if idx := strings.Index(resp, "```json"); idx != -1 {
		resp = resp[idx+7:]
		if end := strings.Index(resp, "```"); end != -1 {
			resp = resp[:end]
		}
	} else if idx := strings.Index(resp, "```"); idx != -1 {
		resp = resp[idx+3:]
		if end := strings.Index(resp, "```"); end != -1 {
			resp = resp[:end]
		}
	}

	var parsed rerankResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp)), &parsed); err != nil {
		return nil, err
	}

	scores := make([]float64, n)
	for _, s := range parsed.Scores {
		if s.Index < 0 || s.Index >= n {
			continue
		}
		score := s.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores[s.Index] = score
	}
	return scores, nil
}
