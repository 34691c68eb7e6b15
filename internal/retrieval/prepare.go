package retrieval

import (
	"context"
	"strings"

	"paperhub/internal/contextutil"
)

// Hit is one retrieval result flowing through the pipeline: the chunk id, its
// similarity score, and the resolved metadata map.
type Hit struct {
	ID    string         `json:"id"`
	Score float64        `json:"score"`
	Meta  map[string]any `json:"metadata"`
}

// MetadataSource is the point-lookup capability every metadata backend offers.
type MetadataSource interface {
	// GetMetadata returns the metadata map for a chunk id, or nil when unknown.
	GetMetadata(ctx context.Context, id string) (map[string]any, error)
}

// BulkMetadataSource is the optional bulk capability. When a source exposes
// it, the pipeline resolves all hits (and their stitch neighbors) from one
// map instead of issuing point lookups.
type BulkMetadataSource interface {
	MetaMap(ctx context.Context) (map[string]map[string]any, error)
}

// EnrichFunc augments hit metadata in place with externally resolved fields
// (canonical URL, source URL, relative path). Failures are the enricher's
// problem; the pipeline proceeds with whatever fields it set.
type EnrichFunc func(meta map[string]any)

// PrepareHits resolves metadata, applies keyword and year filters, enforces
// the per-document cap, stitches neighbor previews, and caps the result to
// limit survivors. The relative order of raw hits is preserved among
// survivors; this is a stable filter, not a re-sort.
//
// Callers are responsible for overfetching raw hits so that filtering still
// leaves enough survivors.
func PrepareHits(ctx context.Context, hits []Hit, src MetadataSource, enrich EnrichFunc, settings Settings, limit int) []Hit {
	if len(hits) == 0 {
		return nil
	}

	logger := contextutil.LoggerFromContext(ctx)

	var lookup map[string]map[string]any
	if bulk, ok := src.(BulkMetadataSource); ok {
		m, err := bulk.MetaMap(ctx)
		if err != nil {
			logger.WarnContext(ctx, "bulk metadata load failed, falling back to point lookups", "error", err)
		} else {
			lookup = m
		}
	}

	perDocCounts := make(map[string]int)
	prepared := make([]Hit, 0, len(hits))

	for _, hit := range hits {
		chunkID := hit.ID
		if chunkID == "" {
			chunkID = metaString(hit.Meta, "id")
		}
		if chunkID == "" {
			continue
		}

		base := hit.Meta
		if fromLookup, ok := lookup[chunkID]; ok {
			base = fromLookup
		} else if src != nil {
			extra, err := src.GetMetadata(ctx, chunkID)
			if err != nil {
				logger.WarnContext(ctx, "metadata lookup failed", "chunk_id", chunkID, "error", err)
			} else if extra != nil {
				base = extra
			}
		}
		if base == nil {
			continue
		}

		meta := copyMeta(base)
		meta["id"] = chunkID

		docID := metaString(meta, "doc_id")
		if docID == "" {
			docID = DocIDFromChunkID(chunkID)
		}
		meta["doc_id"] = docID

		title := metaString(meta, "title", "doc_title")
		if title == "" {
			title = docID
		}
		meta["title"] = title

		// Coerce a string year to int when possible; unparseable values stay
		// as-is for the year filter to judge.
		if yearStr, ok := meta["year"].(string); ok {
			if year, parsed := metaInt(meta, "year"); parsed {
				meta["year"] = year
			} else {
				meta["year"] = yearStr
			}
		}

		if enrich != nil {
			enrich(meta)
		}

		if !passesFilters(meta, settings) {
			continue
		}

		if settings.PerDoc > 0 && perDocCounts[docID] >= settings.PerDoc {
			continue
		}

		previewLookup := lookup
		if previewLookup == nil {
			previewLookup = map[string]map[string]any{chunkID: meta}
		}
		preview := StitchPreview(meta, previewLookup, settings.Neighbors, settings.MaxPreviewChars, settings.NoTruncate)
		if preview == "" {
			// No usable text anywhere in the stitched window.
			continue
		}
		meta["preview"] = preview
		if metaString(meta, "text") == "" {
			meta["text"] = preview
		}
		meta["score"] = hit.Score

		prepared = append(prepared, Hit{ID: chunkID, Score: hit.Score, Meta: meta})
		perDocCounts[docID]++

		if limit > 0 && len(prepared) >= limit {
			break
		}
	}

	return prepared
}

// passesFilters applies the keyword and year filters to resolved metadata.
// The keyword filter checks text, falling back to preview. A year bound
// rejects hits whose year is missing or unparseable; with no bound set, the
// year is not consulted at all.
func passesFilters(meta map[string]any, settings Settings) bool {
	if len(settings.Contains) > 0 {
		text := strings.ToLower(metaString(meta, "text", "preview"))
		matched := false
		for _, kw := range settings.Contains {
			if strings.Contains(text, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if settings.YearMin != nil || settings.YearMax != nil {
		year, ok := metaInt(meta, "year")
		if !ok {
			return false
		}
		if settings.YearMin != nil && year < *settings.YearMin {
			return false
		}
		if settings.YearMax != nil && year > *settings.YearMax {
			return false
		}
	}

	return true
}
