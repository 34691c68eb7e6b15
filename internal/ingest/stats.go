package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// ChunkerVersion identifies the chunking implementation. Bump it when the
// chunking logic changes in a way that invalidates existing indexes.
const ChunkerVersion = "v1.0"

// CoverageStats contains statistics about the indexed corpus.
type CoverageStats struct {
	// DocsProcessed is the total number of documents in the store.
	DocsProcessed int `json:"docs_processed"`
	// DocsWithoutChunks is the number of documents that produced 0 chunks.
	DocsWithoutChunks int `json:"docs_without_chunks"`
	// ChunksEmbedded is the number of chunks stored and indexed.
	ChunksEmbedded int `json:"chunks_embedded"`
	// ChunkTokenStats summarizes token counts per chunk.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// CoverageStats computes corpus coverage statistics from the database.
func (p *Pipeline) CoverageStats(ctx context.Context, embeddingModelName string) (*CoverageStats, error) {
	stats := &CoverageStats{
		ChunkerVersion: ChunkerVersion,
	}

	docs, err := p.docRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	stats.DocsProcessed = len(docs)

	chunks, err := p.chunkRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	stats.ChunksEmbedded = len(chunks)

	docsWithChunks := make(map[string]struct{}, len(docs))
	tokenCounts := make([]int, 0, len(chunks))
	for _, chunk := range chunks {
		docsWithChunks[chunk.DocID] = struct{}{}
		tokenCounts = append(tokenCounts, chunk.NTokens)
	}
	for _, doc := range docs {
		if _, ok := docsWithChunks[doc.ID]; !ok {
			stats.DocsWithoutChunks++
		}
	}

	stats.ChunkTokenStats = computeTokenStats(tokenCounts)

	indexVersionInput := fmt.Sprintf("%s|%s|maxTokens=%d|overlap=%d",
		ChunkerVersion, embeddingModelName, p.maxTokens, p.overlap)
	hash := sha256.Sum256([]byte(indexVersionInput))
	stats.IndexVersion = hex.EncodeToString(hash[:])[:16]

	return stats, nil
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	min := sorted[0]
	max := sorted[len(sorted)-1]

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}
	p95 := sorted[p95Index]

	return ChunkTokenStats{
		Min:  min,
		Max:  max,
		Mean: math.Round(mean*100) / 100,
		P95:  p95,
	}
}
