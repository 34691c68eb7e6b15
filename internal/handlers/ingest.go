package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"paperhub/internal/contextutil"
	"paperhub/internal/ingest"
	"paperhub/internal/storage"
)

// IngestHandler handles document ingestion and index statistics.
type IngestHandler struct {
	pipeline           *ingest.Pipeline
	embeddingModelName string
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(pipeline *ingest.Pipeline, embeddingModelName string) *IngestHandler {
	return &IngestHandler{
		pipeline:           pipeline,
		embeddingModelName: embeddingModelName,
	}
}

// IngestRequest represents the HTTP request payload for document ingestion.
type IngestRequest struct {
	DocID     string         `json:"doc_id"`
	Title     string         `json:"title,omitempty"`
	Year      int            `json:"year,omitempty"`
	Filename  string         `json:"filename,omitempty"`
	SourceURL string         `json:"source_url,omitempty"`
	Text      string         `json:"text"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// IngestResponse reports how a document was ingested.
type IngestResponse struct {
	DocID  string `json:"doc_id"`
	Chunks int    `json:"chunks"`
}

// ServeHTTP handles POST /api/ingest.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.DocID = strings.TrimSpace(req.DocID)
	if req.DocID == "" {
		writeError(w, http.StatusBadRequest, "doc_id is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	doc := &storage.Document{
		ID:        req.DocID,
		Title:     req.Title,
		Year:      req.Year,
		Filename:  req.Filename,
		SourceURL: req.SourceURL,
		Text:      req.Text,
		Meta:      req.Meta,
		CreatedAt: time.Now().UTC(),
	}

	chunks, err := h.pipeline.IngestDocument(ctx, doc)
	if err != nil {
		logger.ErrorContext(ctx, "ingestion failed", "doc_id", req.DocID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to ingest document")
		return
	}

	writeJSON(ctx, w, http.StatusOK, IngestResponse{
		DocID:  req.DocID,
		Chunks: chunks,
	})
}

// StatsHandler serves corpus coverage statistics.
type StatsHandler struct {
	pipeline           *ingest.Pipeline
	embeddingModelName string
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(pipeline *ingest.Pipeline, embeddingModelName string) *StatsHandler {
	return &StatsHandler{
		pipeline:           pipeline,
		embeddingModelName: embeddingModelName,
	}
}

// ServeHTTP handles GET /api/stats.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := h.pipeline.CoverageStats(ctx, h.embeddingModelName)
	if err != nil {
		logger.ErrorContext(ctx, "failed to compute stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	writeJSON(ctx, w, http.StatusOK, stats)
}
