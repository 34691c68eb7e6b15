package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// countingChunkStore records how often ListAll runs.
type countingChunkStore struct {
	mu      sync.Mutex
	calls   int
	records []ChunkRecord
	err     error
}

func (s *countingChunkStore) ListAll(context.Context) ([]ChunkRecord, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *countingChunkStore) InsertBatch(context.Context, []ChunkRecord) error { return nil }

func (s *countingChunkStore) DeleteByDoc(context.Context, string) error { return nil }

func (s *countingChunkStore) ListIDsByDoc(context.Context, string) ([]string, error) {
	return nil, nil
}
func (s *countingChunkStore) GetByID(context.Context, string) (*ChunkRecord, error) {
	return nil, ErrNotFound
}

func TestMetaCacheLoadOnce(t *testing.T) {
	store := &countingChunkStore{records: []ChunkRecord{
		{ID: "d_chunk0001", DocID: "d", ChunkIndex: 1, Text: "one", NTokens: 1, Title: "Doc"},
		{ID: "d_chunk0002", DocID: "d", ChunkIndex: 2, Text: "two", NTokens: 1},
	}}
	cache := NewMetaCache(store)
	ctx := context.Background()

	meta, err := cache.GetMetadata(ctx, "d_chunk0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta["title"] != "Doc" || meta["text"] != "one" {
		t.Errorf("unexpected metadata: %v", meta)
	}

	if _, err := cache.MetaMap(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta, _ := cache.GetMetadata(ctx, "d_chunk0002"); meta["text"] != "two" {
		t.Errorf("unexpected metadata: %v", meta)
	}

	if store.calls != 1 {
		t.Errorf("expected a single ListAll, got %d", store.calls)
	}
}

func TestMetaCacheUnknownID(t *testing.T) {
	cache := NewMetaCache(&countingChunkStore{})
	meta, err := cache.GetMetadata(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta != nil {
		t.Errorf("expected nil for unknown id, got %v", meta)
	}
}

func TestMetaCacheInvalidate(t *testing.T) {
	store := &countingChunkStore{records: []ChunkRecord{
		{ID: "d_chunk0001", DocID: "d", ChunkIndex: 1, Text: "old", NTokens: 1},
	}}
	cache := NewMetaCache(store)
	ctx := context.Background()

	if _, err := cache.MetaMap(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.records = []ChunkRecord{
		{ID: "d_chunk0001", DocID: "d", ChunkIndex: 1, Text: "new", NTokens: 1},
	}
	cache.Invalidate()

	meta, err := cache.GetMetadata(ctx, "d_chunk0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta["text"] != "new" {
		t.Errorf("expected reload after invalidate, got %v", meta["text"])
	}
	if store.calls != 2 {
		t.Errorf("expected 2 loads, got %d", store.calls)
	}
}

func TestMetaCacheLoadError(t *testing.T) {
	cache := NewMetaCache(&countingChunkStore{err: errors.New("db gone")})
	if err := cache.EnsureLoaded(context.Background()); err == nil {
		t.Error("expected load error to propagate")
	}
}

func TestMetaCacheConcurrentAccess(t *testing.T) {
	store := &countingChunkStore{records: []ChunkRecord{
		{ID: "d_chunk0001", DocID: "d", ChunkIndex: 1, Text: "one", NTokens: 1},
	}}
	cache := NewMetaCache(store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta, err := cache.GetMetadata(context.Background(), "d_chunk0001")
			if err != nil || meta == nil {
				t.Errorf("concurrent read failed: %v %v", meta, err)
			}
		}()
	}
	wg.Wait()
}
