package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"paperhub/internal/chunker"
	"paperhub/internal/contextutil"
	"paperhub/internal/llm"
	"paperhub/internal/storage"
	"paperhub/internal/vectorstore"
)

const embedBatchSize = 32

// Invalidator is anything holding a cache that goes stale when the corpus
// changes (metadata cache, document link lookup).
type Invalidator interface {
	Invalidate()
}

// Pipeline orchestrates the ingestion of documents into SQLite and the
// vector index.
type Pipeline struct {
	docRepo    storage.DocumentStore
	chunkRepo  storage.ChunkStore
	embedder   *llm.EmbeddingsClient
	index      vectorstore.VectorIndex
	collection string
	tokenizer  chunker.Tokenizer
	maxTokens  int
	overlap    int
	caches     []Invalidator
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	docRepo storage.DocumentStore,
	chunkRepo storage.ChunkStore,
	embedder *llm.EmbeddingsClient,
	index vectorstore.VectorIndex,
	collection string,
	maxTokens, overlap int,
	caches ...Invalidator,
) *Pipeline {
	return &Pipeline{
		docRepo:    docRepo,
		chunkRepo:  chunkRepo,
		embedder:   embedder,
		index:      index,
		collection: collection,
		tokenizer:  chunker.NewWordTokenizer(),
		maxTokens:  maxTokens,
		overlap:    overlap,
		caches:     caches,
	}
}

// IngestDocument chunks a document, embeds the chunks, and stores them in
// both SQLite and the vector index. Re-ingesting an existing document
// replaces its chunks; chunk ids are recomputed from the chunk index, so
// stable positions keep stable ids.
func (p *Pipeline) IngestDocument(ctx context.Context, doc *storage.Document) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if doc == nil || doc.ID == "" {
		return 0, fmt.Errorf("document id is required")
	}

	chunks, err := chunker.ChunkRecord(doc, p.maxTokens, p.overlap, p.tokenizer)
	if err != nil {
		return 0, fmt.Errorf("failed to chunk document %s: %w", doc.ID, err)
	}

	if err := p.docRepo.Upsert(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to upsert document: %w", err)
	}

	// Drop any previous chunks before inserting the replacement set.
	oldIDs, err := p.chunkRepo.ListIDsByDoc(ctx, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list old chunk ids: %w", err)
	}
	if len(oldIDs) > 0 {
		pointIDs := make([]string, len(oldIDs))
		for i, id := range oldIDs {
			pointIDs[i] = pointIDFor(id)
		}
		if err := p.index.Delete(ctx, p.collection, pointIDs); err != nil {
			logger.WarnContext(ctx, "failed to delete old vectors", "doc_id", doc.ID, "count", len(oldIDs), "error", err)
			// Continue anyway, the upsert below overwrites matching ids.
		}
		if err := p.chunkRepo.DeleteByDoc(ctx, doc.ID); err != nil {
			return 0, fmt.Errorf("failed to delete old chunks: %w", err)
		}
	}

	if len(chunks) == 0 {
		logger.WarnContext(ctx, "document produced no chunks", "doc_id", doc.ID)
		p.invalidateCaches()
		return 0, nil
	}

	if err := p.chunkRepo.InsertBatch(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := p.embedAndUpsert(ctx, chunks); err != nil {
		return 0, err
	}

	p.invalidateCaches()

	logger.InfoContext(ctx, "ingested document", "doc_id", doc.ID, "chunks", len(chunks), "title", doc.Title)
	return len(chunks), nil
}

// IngestAll ingests a batch of documents. Errors for individual documents
// are logged but don't stop the run.
func (p *Pipeline) IngestAll(ctx context.Context, docs []storage.Document) error {
	logger := contextutil.LoggerFromContext(ctx)

	logger.InfoContext(ctx, "starting ingestion", "total_docs", len(docs))

	var successCount, errorCount int
	for i := range docs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := p.IngestDocument(ctx, &docs[i]); err != nil {
			errorCount++
			logger.ErrorContext(ctx, "failed to ingest document", "doc_id", docs[i].ID, "error", err)
			continue
		}
		successCount++
	}

	logger.InfoContext(ctx, "ingestion completed", "total_docs", len(docs), "success", successCount, "errors", errorCount)

	if errorCount > 0 {
		return fmt.Errorf("ingestion completed with %d errors", errorCount)
	}
	return nil
}

func (p *Pipeline) embedAndUpsert(ctx context.Context, chunks []storage.ChunkRecord) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		embeddings, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks [%d:%d]: %w", start, end, err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(embeddings))
		}

		points := make([]vectorstore.Point, len(batch))
		for i, chunk := range batch {
			meta := chunk.Meta()
			meta["chunk_id"] = chunk.ID
			points[i] = vectorstore.Point{
				ID:   pointIDFor(chunk.ID),
				Vec:  embeddings[i],
				Meta: meta,
			}
		}

		if err := p.index.Upsert(ctx, p.collection, points); err != nil {
			return fmt.Errorf("failed to upsert vectors: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) invalidateCaches() {
	for _, cache := range p.caches {
		cache.Invalidate()
	}
}

// pointIDFor maps a chunk id to a deterministic UUID. Qdrant only accepts
// UUID or integer point ids, and the mapping must be stable so re-ingesting
// a document overwrites its own points.
func pointIDFor(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}
