package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"paperhub/internal/handlers"
	"paperhub/internal/ingest"
	"paperhub/internal/rag"
	"paperhub/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine             rag.Engine
	IngestPipeline     *ingest.Pipeline
	Index              vectorstore.CollectionChecker
	DB                 *sql.DB
	Collection         string
	EmbeddingModelName string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	askHandler := handlers.NewAskHandler(deps.Engine)
	searchHandler := handlers.NewSearchHandler(deps.Engine)
	ingestHandler := handlers.NewIngestHandler(deps.IngestPipeline, deps.EmbeddingModelName)
	statsHandler := handlers.NewStatsHandler(deps.IngestPipeline, deps.EmbeddingModelName)
	healthHandler := handlers.NewHealthHandler(deps.Index, deps.DB, deps.Collection)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodGet, "/search", searchHandler)
		r.Method(http.MethodPost, "/ingest", ingestHandler)
		r.Method(http.MethodGet, "/stats", statsHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	return r
}
