package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks paperhub/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ChunkStore defines the interface for chunk storage operations.
type ChunkStore interface {
	// InsertBatch inserts chunk records inside a single transaction.
	InsertBatch(ctx context.Context, chunks []ChunkRecord) error
	// DeleteByDoc deletes all chunks for a given document ID.
	DeleteByDoc(ctx context.Context, docID string) error
	// ListIDsByDoc returns all chunk IDs for a document, ordered by chunk_index.
	ListIDsByDoc(ctx context.Context, docID string) ([]string, error)
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	// ListAll returns every chunk record, ordered by id.
	ListAll(ctx context.Context) ([]ChunkRecord, error)
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

const chunkColumns = "id, doc_id, chunk_index, text, n_tokens, token_start, token_end, char_start, char_end, title, year, page, source_hints"

// InsertBatch inserts chunk records inside a single transaction.
// Chunk IDs must already carry the <doc_id>_chunk<NNNN> format.
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks ("+chunkColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i := range chunks {
		c := &chunks[i]
		_, err := stmt.ExecContext(ctx,
			c.ID, c.DocID, c.ChunkIndex, c.Text, c.NTokens,
			c.TokenStart, c.TokenEnd, c.CharStart, c.CharEnd,
			c.Title, c.Year, c.Page, strings.Join(c.SourceHints, ","),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk batch: %w", err)
	}
	return nil
}

// DeleteByDoc deletes all chunks for a given document ID.
// Used when re-ingesting a document to remove old chunks before inserting new ones.
func (r *ChunkRepo) DeleteByDoc(ctx context.Context, docID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", docID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by doc: %w", err)
	}
	return nil
}

// ListIDsByDoc returns all chunk IDs for a document, ordered by chunk_index.
// Returns an empty slice if no chunks exist (not an error).
// Used to collect vector index point IDs for deletion before re-ingesting.
func (r *ChunkRepo) ListIDsByDoc(ctx context.Context, docID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM chunks WHERE doc_id = ? ORDER BY chunk_index",
		docID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id,
	)
	chunk, err := scanChunk(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}
	return chunk, nil
}

// ListAll returns every chunk record, ordered by id.
// Feeds the process-wide metadata cache; acceptable because a corpus of
// chunked PDFs stays well within memory.
func (r *ChunkRepo) ListAll(ctx context.Context) ([]ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+chunkColumns+" FROM chunks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []ChunkRecord
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

func scanChunk(scan func(dest ...any) error) (*ChunkRecord, error) {
	var chunk ChunkRecord
	var hints string
	err := scan(
		&chunk.ID, &chunk.DocID, &chunk.ChunkIndex, &chunk.Text, &chunk.NTokens,
		&chunk.TokenStart, &chunk.TokenEnd, &chunk.CharStart, &chunk.CharEnd,
		&chunk.Title, &chunk.Year, &chunk.Page, &hints,
	)
	if err != nil {
		return nil, err
	}
	if hints != "" {
		chunk.SourceHints = strings.Split(hints, ",")
	}
	return &chunk, nil
}
