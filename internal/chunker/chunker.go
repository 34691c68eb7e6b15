package chunker

import (
	"fmt"
	"log/slog"

	"paperhub/internal/storage"
)

// ValidationError reports an input-contract violation in chunking parameters
// or record fields.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Piece is one emitted chunk: its exact substring of the source text plus the
// half-open token and byte ranges that produced it.
type Piece struct {
	Text       string
	TokenStart int
	TokenEnd   int
	CharStart  int
	CharEnd    int
}

// ChunkText splits text into overlapping, token-bounded pieces with exact
// offset tracking back to the source.
//
// The document is tokenized once; the token sequence is walked with stride
// maxTokens-overlap, emitting windows [i, i+maxTokens) clipped to the total
// length. Each window's byte range is the start offset of its first token
// through the end offset of its last token whose end lies strictly past the
// window start; this guards against offset gaps collapsing a span. An empty
// document yields no pieces; a document shorter than maxTokens yields one.
func ChunkText(text string, maxTokens, overlap int, tok Tokenizer) ([]Piece, error) {
	if maxTokens <= 0 {
		return nil, &ValidationError{Field: "max_tokens", Message: "must be greater than 0"}
	}
	if overlap < 0 || overlap >= maxTokens {
		return nil, &ValidationError{Field: "overlap", Message: fmt.Sprintf("must be in [0, %d)", maxTokens)}
	}
	if tok == nil {
		tok = NewWordTokenizer()
	}

	spans := tok.Tokenize(text)
	if len(spans) == 0 {
		return nil, nil
	}

	stride := maxTokens - overlap
	var pieces []Piece
	truncated := false

	for start := 0; start < len(spans); start += stride {
		end := start + maxTokens
		if end > len(spans) {
			end = len(spans)
			truncated = true
		}

		charStart := spans[start].Start
		charEnd := charStart
		for i := end - 1; i >= start; i-- {
			if spans[i].End > charStart {
				charEnd = spans[i].End
				break
			}
		}
		// Guarantee non-empty chunk text even on degenerate spans.
		if charEnd <= charStart && charStart < len(text) {
			charEnd = charStart + 1
		}

		pieces = append(pieces, Piece{
			Text:       text[charStart:charEnd],
			TokenStart: start,
			TokenEnd:   end,
			CharStart:  charStart,
			CharEnd:    charEnd,
		})

		if end == len(spans) {
			break
		}
	}

	if truncated {
		slog.Debug("final chunk window clipped to document end",
			"total_tokens", len(spans), "max_tokens", maxTokens, "chunks", len(pieces))
	}

	return pieces, nil
}

// ChunkRecord chunks a document record and assembles persistent chunk records.
// IDs follow the <doc_id>_chunk<NNNN> convention, 4-digit and 1-based; the
// numeric suffix is a wire-level contract that neighbor resolution parses
// back, so it must never change shape.
func ChunkRecord(doc *storage.Document, maxTokens, overlap int, tok Tokenizer) ([]storage.ChunkRecord, error) {
	if doc == nil || doc.ID == "" {
		return nil, &ValidationError{Field: "id", Message: "document record requires a stable identifier"}
	}

	pieces, err := ChunkText(doc.Text, maxTokens, overlap, tok)
	if err != nil {
		return nil, err
	}

	ocr := docLooksOCR(doc.Meta)

	records := make([]storage.ChunkRecord, 0, len(pieces))
	for i, p := range pieces {
		idx := i + 1
		rec := storage.ChunkRecord{
			ID:         fmt.Sprintf("%s_chunk%04d", doc.ID, idx),
			DocID:      doc.ID,
			ChunkIndex: idx,
			Text:       p.Text,
			NTokens:    p.TokenEnd - p.TokenStart,
			TokenStart: p.TokenStart,
			TokenEnd:   p.TokenEnd,
			CharStart:  p.CharStart,
			CharEnd:    p.CharEnd,
		}
		if doc.Title != "" {
			rec.Title = doc.Title
		}
		if doc.Year != 0 {
			rec.Year = doc.Year
		}
		rec.Page = pageForOffset(doc.Text, p.CharStart)
		if hasTable(p.Text) {
			rec.SourceHints = append(rec.SourceHints, "table")
		}
		if ocr {
			rec.SourceHints = append(rec.SourceHints, "ocr")
		}
		records = append(records, rec)
	}

	return records, nil
}

// docLooksOCR reports whether extraction metadata marks the document as
// OCR-derived (any listed OCR pages, or an OCR ratio above zero).
func docLooksOCR(meta map[string]any) bool {
	if meta == nil {
		return false
	}
	if pages, ok := meta["ocr_pages"].(string); ok && pages != "" {
		return true
	}
	switch ratio := meta["ocr_ratio"].(type) {
	case float64:
		return ratio > 0
	case int:
		return ratio > 0
	}
	return false
}
