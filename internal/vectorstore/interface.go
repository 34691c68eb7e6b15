package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_index.go -package=mocks paperhub/internal/vectorstore VectorIndex,FilterableIndex

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search, ordered by
// descending score.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// VectorIndex is the basic capability every vector backend offers.
type VectorIndex interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Query performs a plain similarity search.
	Query(ctx context.Context, collection string, vector []float32, k int) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error
}

// FilterableIndex is the optional capability of pushing metadata filters into
// the store. Callers detect it with a type assertion and fall back to the
// plain Query on stores that lack it.
type FilterableIndex interface {
	VectorIndex

	// QueryFiltered performs a similarity search constrained by store-native
	// filters translated from the given map (year_min, year_max, doc_id).
	QueryFiltered(ctx context.Context, collection string, vector []float32, k int, filters map[string]any) ([]SearchResult, error)
}

// CollectionChecker reports whether a collection exists; used by health checks.
type CollectionChecker interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
}
