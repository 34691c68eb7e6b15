package storage

import (
	"context"
	"fmt"
	"sync"
)

// Meta converts a chunk record into the loosely-typed metadata map the
// retrieval pipeline works with. Zero-valued optional fields are omitted so
// downstream presence checks behave like missing keys.
func (c *ChunkRecord) Meta() map[string]any {
	meta := map[string]any{
		"id":          c.ID,
		"doc_id":      c.DocID,
		"chunk_index": c.ChunkIndex,
		"text":        c.Text,
		"n_tokens":    c.NTokens,
	}
	if c.Title != "" {
		meta["title"] = c.Title
	}
	if c.Year != 0 {
		meta["year"] = c.Year
	}
	if c.Page != 0 {
		meta["page"] = c.Page
	}
	if len(c.SourceHints) > 0 {
		hints := make([]any, len(c.SourceHints))
		for i, h := range c.SourceHints {
			hints[i] = h
		}
		meta["source_hints"] = hints
	}
	return meta
}

// MetaCache is a process-wide, lazily-built map of chunk id to metadata.
// Concurrent first access may race to build the map; each racer builds a
// complete copy and only one wins, so readers never observe partial data.
// Injected into the engine rather than accessed globally so tests can
// substitute fake stores.
type MetaCache struct {
	chunks ChunkStore

	mu   sync.RWMutex
	meta map[string]map[string]any
}

// NewMetaCache creates a cache backed by the given chunk store.
func NewMetaCache(chunks ChunkStore) *MetaCache {
	return &MetaCache{chunks: chunks}
}

// EnsureLoaded populates the cache if it has not been built yet.
// Safe for concurrent use; a duplicate build is tolerated, a torn read is not.
func (c *MetaCache) EnsureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.meta != nil
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	records, err := c.chunks.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load chunk metadata: %w", err)
	}
	meta := make(map[string]map[string]any, len(records))
	for i := range records {
		meta[records[i].ID] = records[i].Meta()
	}

	c.mu.Lock()
	if c.meta == nil {
		c.meta = meta
	}
	c.mu.Unlock()
	return nil
}

// Invalidate clears the cache so the next access reloads it.
// Called after ingest mutates the chunk set.
func (c *MetaCache) Invalidate() {
	c.mu.Lock()
	c.meta = nil
	c.mu.Unlock()
}

// MetaMap returns the full chunk-id to metadata mapping, loading it on first use.
func (c *MetaCache) MetaMap(ctx context.Context) (map[string]map[string]any, error) {
	if err := c.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta, nil
}

// GetMetadata returns metadata for a single chunk id, or nil when unknown.
func (c *MetaCache) GetMetadata(ctx context.Context, id string) (map[string]any, error) {
	m, err := c.MetaMap(ctx)
	if err != nil {
		return nil, err
	}
	return m[id], nil
}
