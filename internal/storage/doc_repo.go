package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks paperhub/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DocumentStore defines the interface for document storage operations.
type DocumentStore interface {
	// Upsert inserts or replaces a document record.
	Upsert(ctx context.Context, doc *Document) error
	// GetByID gets a document by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*Document, error)
	// ListAll returns every document without its full text, ordered by id.
	ListAll(ctx context.Context) ([]Document, error)
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Upsert inserts or replaces a document record.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *Document) error {
	metaJSON := []byte("{}")
	if len(doc.Meta) > 0 {
		var err error
		metaJSON, err = json.Marshal(doc.Meta)
		if err != nil {
			return fmt.Errorf("failed to encode document meta: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, year, filename, source_url, text, meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   year = excluded.year,
		   filename = excluded.filename,
		   source_url = excluded.source_url,
		   text = excluded.text,
		   meta = excluded.meta`,
		doc.ID, doc.Title, doc.Year, doc.Filename, doc.SourceURL, doc.Text, string(metaJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// GetByID gets a document by its ID. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*Document, error) {
	var doc Document
	var metaJSON string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, title, year, filename, source_url, text, meta, created_at FROM documents WHERE id = ?",
		id,
	).Scan(&doc.ID, &doc.Title, &doc.Year, &doc.Filename, &doc.SourceURL, &doc.Text, &metaJSON, &doc.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &doc.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode document meta: %w", err)
		}
	}

	return &doc, nil
}

// ListAll returns every document without its full text, ordered by id.
// The text column is skipped to keep listing cheap on large corpora.
func (r *DocumentRepo) ListAll(ctx context.Context) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, title, year, filename, source_url, created_at FROM documents ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Year, &doc.Filename, &doc.SourceURL, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}
