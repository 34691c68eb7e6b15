package rag

import (
	"context"
	"fmt"
	"strings"

	"paperhub/internal/contextutil"
	"paperhub/internal/retrieval"
	"paperhub/internal/vectorstore"
)

const (
	defaultK           = 6
	maxK               = 50
	statisticMinK      = 4
	defaultTemperature = 0.2
	defaultMaxTokens   = 600

	// Overfetch so that filtering and per-document diversification still
	// leave enough survivors.
	overfetchFactor = 5
	overfetchFloor  = 50

	noHitsAnswer = "I couldn't find any relevant passages in the corpus to answer this question."
)

// Engine answers questions over the indexed corpus.
type Engine interface {
	// Ask retrieves relevant chunks and generates a cited answer.
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
	// AskStream runs the same pipeline but delivers the answer incrementally.
	AskStream(ctx context.Context, req AskRequest, emit func(StreamEvent) error) error
	// Search retrieves prepared hits without calling the chat model.
	Search(ctx context.Context, req SearchRequest) ([]retrieval.Hit, error)
}

// SearchRequest is a retrieval-only query.
type SearchRequest struct {
	Query string `json:"q"`
	// K is the desired number of hits. Defaults to 6, capped at 50.
	K int `json:"k,omitempty"`
	// Filters carries retrieval knobs resolved per retrieval.Resolve.
	Filters map[string]any `json:"filters,omitempty"`
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	embedder   Embedder
	index      vectorstore.VectorIndex
	collection string
	meta       retrieval.MetadataSource
	enrich     func(ctx context.Context) retrieval.EnrichFunc
	reranker   Reranker
	chat       ChatModel
	router     *Router
}

// NewEngine creates a new QA engine. enrich and reranker may be nil; router
// may be nil to disable question routing.
func NewEngine(
	embedder Embedder,
	index vectorstore.VectorIndex,
	collection string,
	meta retrieval.MetadataSource,
	enrich func(ctx context.Context) retrieval.EnrichFunc,
	reranker Reranker,
	chat ChatModel,
	router *Router,
) Engine {
	return &ragEngine{
		embedder:   embedder,
		index:      index,
		collection: collection,
		meta:       meta,
		enrich:     enrich,
		reranker:   reranker,
		chat:       chat,
		router:     router,
	}
}

// pipelineState carries the retrieval stage output into answer generation.
type pipelineState struct {
	question    string
	k           int
	temperature float64
	maxTokens   int
	route       Route
	lines       []string
	citations   []retrieval.Citation

	// short is non-nil when the pipeline terminated before the LLM call
	// (empty question, zero surviving hits).
	short *AskResponse
}

// Ask runs the full pipeline: embed, overfetch-query, optional rerank,
// prepare hits, build prompt, call the LLM, assemble the answer.
func (e *ragEngine) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	state, err := e.retrieve(ctx, req)
	if err != nil {
		return AskResponse{}, err
	}
	if state.short != nil {
		return *state.short, nil
	}

	system := systemPromptFor(state.route)
	user := buildUserPrompt(state.question, state.lines)

	logger.InfoContext(ctx, "calling chat model",
		"passages", len(state.lines),
		"user_prompt_length", len(user),
		"temperature", state.temperature,
		"max_tokens", state.maxTokens,
	)

	answer, usage, err := e.chat.Chat(ctx, system, user, state.temperature, state.maxTokens)
	if err != nil {
		logger.ErrorContext(ctx, "chat model call failed", "error", err)
		return AskResponse{}, fmt.Errorf("%w: chat model call failed: %v", ErrExternalService, err)
	}

	answer = appendSourcesFooter(answer, state.citations)

	logger.InfoContext(ctx, "qa query completed",
		"sources", len(state.citations),
		"answer_length", len(answer),
	)

	return AskResponse{
		Answer:  answer,
		Sources: state.citations,
		Usage:   usage,
		Route:   string(state.route),
	}, nil
}

// retrieve runs the pipeline up to and including prompt entry construction.
func (e *ragEngine) retrieve(ctx context.Context, req AskRequest) (*pipelineState, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question := strings.TrimSpace(req.Question)
	if question == "" {
		logger.InfoContext(ctx, "empty question, short-circuiting")
		return &pipelineState{short: &AskResponse{
			Answer:  "",
			Sources: []retrieval.Citation{},
			Usage:   map[string]any{"error": "empty question"},
		}}, nil
	}

	route := RouteDefault
	if e.router != nil {
		route = e.router.Classify(question)
	}

	k := effectiveK(route, req.K)
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	settings := retrieval.Resolve(req.Filters)

	logger.InfoContext(ctx, "qa query started",
		"question", question,
		"k", k,
		"route", string(route),
		"contains", settings.Contains,
	)

	vector, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed question", "error", err)
		return nil, fmt.Errorf("%w: failed to embed question: %v", ErrExternalService, err)
	}

	fetchK := overfetchFactor * k
	if fetchK < overfetchFloor {
		fetchK = overfetchFloor
	}

	results, err := e.search(ctx, vector, fetchK, settings)
	if err != nil {
		logger.ErrorContext(ctx, "vector search failed", "error", err)
		return nil, fmt.Errorf("%w: vector search failed: %v", ErrExternalService, err)
	}
	logger.InfoContext(ctx, "vector search completed", "results", len(results), "fetch_k", fetchK)

	hits := resultsToHits(results)

	if e.rerankEnabled(req, route) {
		reranked, err := e.reranker.Rerank(ctx, question, hits)
		if err != nil {
			// Reranking is best effort; a failure must never abort the request.
			logger.WarnContext(ctx, "rerank failed, keeping original order", "error", err)
		} else {
			hits = reranked
		}
	}

	var enrich retrieval.EnrichFunc
	if e.enrich != nil {
		enrich = e.enrich(ctx)
	}
	prepared := retrieval.PrepareHits(ctx, hits, e.meta, enrich, settings, k)
	if len(prepared) == 0 {
		logger.InfoContext(ctx, "no hits survived preparation")
		return &pipelineState{short: &AskResponse{
			Answer:  noHitsAnswer,
			Sources: []retrieval.Citation{},
			Usage:   map[string]any{"retrieved": 0},
			Route:   string(route),
		}}, nil
	}

	lines, citations := retrieval.BuildPromptEntries(prepared, settings.MaxSnippetChars)

	return &pipelineState{
		question:    question,
		k:           k,
		temperature: temperature,
		maxTokens:   maxTokens,
		route:       route,
		lines:       lines,
		citations:   citations,
	}, nil
}

// Search embeds the query, overfetches, and returns prepared hits. It skips
// reranking and the chat model; the raw retrieval order is preserved.
func (e *ragEngine) Search(ctx context.Context, req SearchRequest) ([]retrieval.Hit, error) {
	logger := contextutil.LoggerFromContext(ctx)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	k := effectiveK(RouteDefault, req.K)

	settings := retrieval.Resolve(req.Filters)

	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return nil, fmt.Errorf("%w: failed to embed query: %v", ErrExternalService, err)
	}

	fetchK := overfetchFactor * k
	if fetchK < overfetchFloor {
		fetchK = overfetchFloor
	}

	results, err := e.search(ctx, vector, fetchK, settings)
	if err != nil {
		logger.ErrorContext(ctx, "vector search failed", "error", err)
		return nil, fmt.Errorf("%w: vector search failed: %v", ErrExternalService, err)
	}

	var enrich retrieval.EnrichFunc
	if e.enrich != nil {
		enrich = e.enrich(ctx)
	}
	prepared := retrieval.PrepareHits(ctx, resultsToHits(results), e.meta, enrich, settings, k)

	logger.InfoContext(ctx, "search completed", "query", query, "hits", len(prepared))
	return prepared, nil
}

// search pushes year bounds into the store when it supports native filtering
// and falls back to a plain query otherwise.
func (e *ragEngine) search(ctx context.Context, vector []float32, k int, settings retrieval.Settings) ([]vectorstore.SearchResult, error) {
	filters := storeFilters(settings)
	if len(filters) > 0 {
		if filterable, ok := e.index.(vectorstore.FilterableIndex); ok {
			return filterable.QueryFiltered(ctx, e.collection, vector, k, filters)
		}
	}
	return e.index.Query(ctx, e.collection, vector, k)
}

func storeFilters(settings retrieval.Settings) map[string]any {
	filters := make(map[string]any)
	if settings.YearMin != nil {
		filters["year_min"] = *settings.YearMin
	}
	if settings.YearMax != nil {
		filters["year_max"] = *settings.YearMax
	}
	return filters
}

// effectiveK resolves the requested k against the defaults and caps.
// Statistic questions need a handful of passages to surface the numeric
// ones, so they never run with fewer than four.
func effectiveK(route Route, k int) int {
	if k <= 0 {
		k = defaultK
	}
	if k > maxK {
		k = maxK
	}
	if route == RouteStatistic && k < statisticMinK {
		k = statisticMinK
	}
	return k
}

func (e *ragEngine) rerankEnabled(req AskRequest, route Route) bool {
	if e.reranker == nil {
		return false
	}
	if req.Rerank != nil {
		return *req.Rerank
	}
	// Statistic questions favour the raw vector ranking; the lexical pass
	// tends to bury the numeric passages.
	return route != RouteStatistic
}

func resultsToHits(results []vectorstore.SearchResult) []retrieval.Hit {
	hits := make([]retrieval.Hit, 0, len(results))
	for _, r := range results {
		id := r.PointID
		if chunkID, ok := r.Meta["chunk_id"].(string); ok && chunkID != "" {
			id = chunkID
		}
		hits = append(hits, retrieval.Hit{
			ID:    id,
			Score: float64(r.Score),
			Meta:  r.Meta,
		})
	}
	return hits
}
