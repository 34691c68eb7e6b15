// Package links resolves document-level provenance (filename, source URL)
// and served-PDF URLs for retrieval metadata.
package links

import (
	"context"
	"fmt"
	"sync"

	"paperhub/internal/contextutil"
	"paperhub/internal/retrieval"
	"paperhub/internal/storage"
)

// docInfo is the slice of document metadata the enricher needs.
type docInfo struct {
	Filename  string
	SourceURL string
}

// Enricher augments chunk metadata with filename, rel_path, source_url, and a
// served-PDF url. The doc-level lookup is loaded lazily at most once per
// process; enrichment failures degrade to whatever fields are already
// present, never to an error.
type Enricher struct {
	docs storage.DocumentStore

	mu     sync.RWMutex
	lookup map[string]docInfo
}

// NewEnricher creates an enricher backed by the given document store.
func NewEnricher(docs storage.DocumentStore) *Enricher {
	return &Enricher{docs: docs}
}

func (e *Enricher) docLookup(ctx context.Context) map[string]docInfo {
	e.mu.RLock()
	lookup := e.lookup
	e.mu.RUnlock()
	if lookup != nil {
		return lookup
	}

	built := make(map[string]docInfo)
	records, err := e.docs.ListAll(ctx)
	if err != nil {
		logger := contextutil.LoggerFromContext(ctx)
		logger.WarnContext(ctx, "document lookup load failed, enrichment degraded", "error", err)
		// Leave the cache unset so a later request can retry.
		return built
	}
	for _, doc := range records {
		built[doc.ID] = docInfo{Filename: doc.Filename, SourceURL: doc.SourceURL}
	}

	e.mu.Lock()
	if e.lookup == nil {
		e.lookup = built
	}
	lookup = e.lookup
	e.mu.Unlock()
	return lookup
}

// Invalidate clears the cached doc lookup after ingest changes the corpus.
func (e *Enricher) Invalidate() {
	e.mu.Lock()
	e.lookup = nil
	e.mu.Unlock()
}

// EnrichFunc adapts the enricher to the retrieval pipeline's hook.
func (e *Enricher) EnrichFunc(ctx context.Context) retrieval.EnrichFunc {
	return func(meta map[string]any) {
		e.Enrich(ctx, meta)
	}
}

// Enrich populates filename, rel_path, source_url, page, and url on the given
// metadata in place. Fields already set by upstream metadata win.
func (e *Enricher) Enrich(ctx context.Context, meta map[string]any) {
	docID, _ := meta["doc_id"].(string)
	if docID == "" {
		return
	}

	info := e.docLookup(ctx)[docID]

	filename, _ := meta["filename"].(string)
	if filename == "" {
		filename = info.Filename
	}
	if filename == "" {
		filename = docID + ".pdf"
	}
	if _, ok := meta["filename"]; !ok {
		meta["filename"] = filename
	}
	if _, ok := meta["rel_path"]; !ok {
		meta["rel_path"] = filename
	}

	sourceURL, _ := meta["source_url"].(string)
	if sourceURL == "" {
		sourceURL = info.SourceURL
	}
	if sourceURL != "" {
		meta["source_url"] = sourceURL
	}

	page := coercePage(meta["page"])
	if page > 0 {
		meta["page"] = page
	}

	meta["url"] = BuildPDFURL(docID, page)
}

// BuildPDFURL constructs the served PDF URL for a document id, with an
// optional page fragment. Page numbers clamp to 1.
func BuildPDFURL(docID string, page int) string {
	base := "/pdf/by-id/" + docID
	if page <= 0 {
		return base
	}
	return fmt.Sprintf("%s#page=%d", base, page)
}

// coercePage parses a loosely-typed page value, clamping to a 1-based number.
// Unusable values yield 0.
func coercePage(value any) int {
	var page int
	switch v := value.(type) {
	case int:
		page = v
	case int64:
		page = int(v)
	case float64:
		page = int(v)
	case string:
		if _, err := fmt.Sscanf(v, "%d", &page); err != nil {
			return 0
		}
	default:
		return 0
	}
	if page < 1 {
		return 1
	}
	return page
}
