package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"paperhub/internal/contextutil"
	"paperhub/internal/rag"
	"paperhub/internal/retrieval"
)

// AskHandler handles HTTP requests for QA queries.
type AskHandler struct {
	engine rag.Engine
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(engine rag.Engine) *AskHandler {
	return &AskHandler{engine: engine}
}

// AskRequest represents the HTTP request payload for QA queries.
// Accepts both "question" and "query" keys; "question" wins when both are set.
type AskRequest struct {
	Question    string         `json:"question"`
	Query       string         `json:"query"`
	K           int            `json:"k,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_output_tokens,omitempty"`
	Rerank      *bool          `json:"rerank,omitempty"`
	Filters     map[string]any `json:"filters,omitempty"`
}

// AskResponse represents the HTTP response payload for QA queries.
type AskResponse struct {
	Answer string `json:"answer"`

	// Citations lists the sources the answer was grounded on.
	Citations []retrieval.Citation `json:"citations"`

	// Sources mirrors Citations for clients that still expect that key.
	Sources []retrieval.Citation `json:"sources"`

	Usage map[string]any `json:"usage,omitempty"`

	Route string `json:"route,omitempty"`

	LatencyMS int64 `json:"latency_ms"`
}

// ServeHTTP handles POST /api/ask. The stream=true query parameter switches
// the response to Server-Sent Events.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = strings.TrimSpace(req.Query)
	}
	if question == "" {
		logger.WarnContext(ctx, "empty question in request")
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}

	if req.K < 0 {
		req.K = 0
	}

	ragReq := rag.AskRequest{
		Question:    question,
		K:           req.K,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Rerank:      req.Rerank,
		Filters:     req.Filters,
	}

	if isStreamRequested(r) {
		h.serveStream(w, r, ragReq)
		return
	}

	start := time.Now()
	resp, err := h.engine.Ask(ctx, ragReq)
	if err != nil {
		handleEngineError(w, ctx, err, "Failed to process question")
		return
	}

	writeJSON(ctx, w, http.StatusOK, AskResponse{
		Answer:    resp.Answer,
		Citations: resp.Sources,
		Sources:   resp.Sources,
		Usage:     resp.Usage,
		Route:     resp.Route,
		LatencyMS: time.Since(start).Milliseconds(),
	})
}

func isStreamRequested(r *http.Request) bool {
	v := strings.ToLower(r.URL.Query().Get("stream"))
	return v == "true" || v == "1"
}

// serveStream delivers the answer as Server-Sent Events, one JSON event per
// data line.
func (h *AskHandler) serveStream(w http.ResponseWriter, r *http.Request, req rag.AskRequest) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported by connection")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(event rag.StreamEvent) error {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := h.engine.AskStream(ctx, req, emit); err != nil {
		// Headers are already sent; deliver the failure in-band.
		logger.ErrorContext(ctx, "stream failed", "error", err)
		data, _ := json.Marshal(map[string]string{"type": "error", "message": "stream failed"})
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}
