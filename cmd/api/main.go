package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"paperhub/internal/config"
	"paperhub/internal/http"
	"paperhub/internal/ingest"
	"paperhub/internal/links"
	"paperhub/internal/llm"
	"paperhub/internal/rag"
	"paperhub/internal/storage"
	"paperhub/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)

	ctx := context.Background()

	index, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collection exists with correct vector size
	if err := index.EnsureCollection(ctx, cfg.QdrantCollection, cfg.VectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.VectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.VectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.VectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.VectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.VectorSize)

	chatClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	metaCache := storage.NewMetaCache(chunkRepo)
	enricher := links.NewEnricher(docRepo)

	ingestPipeline := ingest.NewPipeline(
		docRepo,
		chunkRepo,
		embedder,
		index,
		cfg.QdrantCollection,
		cfg.Runtime.ChunkMaxTokens,
		cfg.Runtime.ChunkOverlap,
		metaCache,
		enricher,
	)

	var reranker rag.Reranker
	if cfg.Runtime.Rerank {
		reranker = rag.NewLexicalReranker()
	}
	var router *rag.Router
	if cfg.Runtime.Router {
		router = rag.NewRouter()
	}

	engine := rag.NewEngine(
		embedder,
		index,
		cfg.QdrantCollection,
		metaCache,
		enricher.EnrichFunc,
		reranker,
		chatClient,
		router,
	)
	engine = rag.WithDefaultFilters(engine, cfg.Runtime.Retrieval)

	apiHandler := http.NewRouter(&http.Deps{
		Engine:             engine,
		IngestPipeline:     ingestPipeline,
		Index:              index,
		DB:                 db,
		Collection:         cfg.QdrantCollection,
		EmbeddingModelName: cfg.EmbeddingModelName,
	})

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, apiHandler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
