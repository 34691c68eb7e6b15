package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"paperhub/internal/contextutil"
	"paperhub/internal/rag"
	"paperhub/internal/retrieval"
)

// SearchHandler handles retrieval-only queries.
type SearchHandler struct {
	engine rag.Engine
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(engine rag.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// SearchResponse represents the HTTP response payload for search queries.
type SearchResponse struct {
	Query string          `json:"query"`
	Hits  []retrieval.Hit `json:"hits"`
	Count int             `json:"count"`
}

// ServeHTTP handles GET /api/search. Retrieval knobs come in as query
// parameters: q, k, contains, year_min, year_max, per_doc, neighbors.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	params := r.URL.Query()
	query := strings.TrimSpace(params.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	k := 0
	if raw := params.Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		k = parsed
	}

	filters := make(map[string]any)
	for _, key := range []string{"contains", "year_min", "year_max", "per_doc", "neighbors", "max_preview_chars", "max_snippet_chars", "no_truncate"} {
		if raw := params.Get(key); raw != "" {
			filters[key] = raw
		}
	}

	hits, err := h.engine.Search(ctx, rag.SearchRequest{
		Query:   query,
		K:       k,
		Filters: filters,
	})
	if err != nil {
		handleEngineError(w, ctx, err, "Failed to search")
		return
	}

	if hits == nil {
		hits = []retrieval.Hit{}
	}

	writeJSON(ctx, w, http.StatusOK, SearchResponse{
		Query: query,
		Hits:  hits,
		Count: len(hits),
	})
}
