package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_collaborators.go -package=mocks paperhub/internal/rag Embedder,ChatModel,Reranker

import (
	"context"
	"errors"

	"paperhub/internal/retrieval"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExternalService is returned when an external service call fails.
	ErrExternalService = errors.New("external service error")
)

// Embedder turns a query string into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// ChatModel generates an answer from a system and user prompt. The returned
// map carries the provider's token accounting, nil when unavailable.
type ChatModel interface {
	Chat(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, map[string]any, error)
}

// Reranker reorders hits by relevance to the query. It must be treated as
// fallible and non-fatal: callers keep the original ranking on error.
type Reranker interface {
	Rerank(ctx context.Context, query string, hits []retrieval.Hit) ([]retrieval.Hit, error)
}

// AskRequest represents a question to answer over the corpus.
type AskRequest struct {
	// Question is the user's question to answer.
	Question string `json:"question"`
	// K is the desired number of source passages. Defaults to 6, capped at 50.
	K int `json:"k,omitempty"`
	// Temperature for the LLM call. Defaults to 0.2.
	Temperature float64 `json:"temperature,omitempty"`
	// MaxTokens caps the generated answer length. Defaults to 600.
	MaxTokens int `json:"max_output_tokens,omitempty"`
	// Rerank controls reranking; nil means default-on when a reranker is configured.
	Rerank *bool `json:"rerank,omitempty"`
	// Filters carries retrieval knobs (contains, year_min, year_max, neighbors,
	// per_doc, max_preview_chars) resolved per retrieval.Resolve.
	Filters map[string]any `json:"filters,omitempty"`
}

// AskResponse represents the answer to a question with its source citations.
type AskResponse struct {
	// Answer is the generated answer including the appended Sources section.
	Answer string `json:"answer"`
	// Sources are the passages the answer was grounded on, in prompt order.
	Sources []retrieval.Citation `json:"sources"`
	// Usage carries token accounting or short-circuit markers.
	Usage map[string]any `json:"usage,omitempty"`
	// Route is the question category the router picked, empty when routing is off.
	Route string `json:"route,omitempty"`
}
