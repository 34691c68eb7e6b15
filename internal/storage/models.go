package storage

import "time"

// Document represents one ingested source file after extraction and cleaning.
// The full text is consumed by the chunker at ingest time; at query time only
// the id embedded in chunk metadata refers back to it.
type Document struct {
	ID        string         // doc_id, stable across re-ingests
	Title     string
	Year      int            // 0 when unknown
	Filename  string         // original PDF filename
	SourceURL string         // where the PDF was downloaded from
	Text      string         // full cleaned text
	Meta      map[string]any // extraction metadata (ocr ratio, table pages, page count)
	CreatedAt time.Time
}

// ChunkRecord is the atomic retrievable unit. Records are created in bulk by
// the chunker, persisted once, and never mutated; a re-chunk pass replaces
// them wholesale.
type ChunkRecord struct {
	ID          string   // "<doc_id>_chunk<NNNN>", 4-digit, 1-based
	DocID       string
	ChunkIndex  int      // 1-based, matches the numeric suffix of ID
	Text        string
	NTokens     int      // TokenEnd - TokenStart
	TokenStart  int      // half-open token range within the document
	TokenEnd    int
	CharStart   int      // half-open byte range into the document text
	CharEnd     int
	Title       string   // carried from the document when present
	Year        int      // 0 when unknown
	Page        int      // 0 when unknown
	SourceHints []string // e.g. "table", "ocr"
}
