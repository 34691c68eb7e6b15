package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"paperhub/internal/rag"
	"paperhub/internal/retrieval"
)

// mockRAGEngine is a hand-rolled engine stub; per-test behavior is plugged in
// through the func fields.
type mockRAGEngine struct {
	askFunc       func(ctx context.Context, req rag.AskRequest) (rag.AskResponse, error)
	askStreamFunc func(ctx context.Context, req rag.AskRequest, emit func(rag.StreamEvent) error) error
	searchFunc    func(ctx context.Context, req rag.SearchRequest) ([]retrieval.Hit, error)
}

func (m *mockRAGEngine) Ask(ctx context.Context, req rag.AskRequest) (rag.AskResponse, error) {
	if m.askFunc == nil {
		return rag.AskResponse{}, errors.New("ask not stubbed")
	}
	return m.askFunc(ctx, req)
}

func (m *mockRAGEngine) AskStream(ctx context.Context, req rag.AskRequest, emit func(rag.StreamEvent) error) error {
	if m.askStreamFunc == nil {
		return errors.New("ask stream not stubbed")
	}
	return m.askStreamFunc(ctx, req, emit)
}

func (m *mockRAGEngine) Search(ctx context.Context, req rag.SearchRequest) ([]retrieval.Hit, error) {
	if m.searchFunc == nil {
		return nil, errors.New("search not stubbed")
	}
	return m.searchFunc(ctx, req)
}

func postAsk(t *testing.T, h http.Handler, body string, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/ask"+query, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAskHandler(t *testing.T) {
	var gotReq rag.AskRequest
	engine := &mockRAGEngine{
		askFunc: func(_ context.Context, req rag.AskRequest) (rag.AskResponse, error) {
			gotReq = req
			return rag.AskResponse{
				Answer: "the answer [S1]",
				Sources: []retrieval.Citation{
					{SID: "S1", DocID: "doc1", Title: "Paper", Score: 0.9},
				},
				Usage: map[string]any{"total_tokens": 50},
				Route: "impact",
			}, nil
		},
	}
	h := NewAskHandler(engine)

	rec := postAsk(t, h, `{"question":"how much water?","k":4,"filters":{"year_min":2020}}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if gotReq.Question != "how much water?" || gotReq.K != 4 {
		t.Errorf("engine request = %+v", gotReq)
	}
	if gotReq.Filters["year_min"] != float64(2020) {
		t.Errorf("filters not forwarded: %v", gotReq.Filters)
	}

	var resp AskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Answer != "the answer [S1]" || resp.Route != "impact" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Citations) != 1 || len(resp.Sources) != 1 || resp.Citations[0].SID != "S1" {
		t.Errorf("citations not mirrored: %+v", resp)
	}
	if resp.LatencyMS < 0 {
		t.Errorf("latency_ms = %d", resp.LatencyMS)
	}
}

func TestAskHandlerQueryAlias(t *testing.T) {
	var gotQuestion string
	engine := &mockRAGEngine{
		askFunc: func(_ context.Context, req rag.AskRequest) (rag.AskResponse, error) {
			gotQuestion = req.Question
			return rag.AskResponse{}, nil
		},
	}
	h := NewAskHandler(engine)

	if rec := postAsk(t, h, `{"query":"from the query key"}`, ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotQuestion != "from the query key" {
		t.Errorf("query alias not honored: %q", gotQuestion)
	}

	// question wins when both keys are present.
	postAsk(t, h, `{"question":"primary","query":"secondary"}`, "")
	if gotQuestion != "primary" {
		t.Errorf("question should win over query, got %q", gotQuestion)
	}
}

func TestAskHandlerValidation(t *testing.T) {
	h := NewAskHandler(&mockRAGEngine{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{not json`, http.StatusBadRequest},
		{"missing question", `{}`, http.StatusBadRequest},
		{"blank question", `{"question":"  "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postAsk(t, h, tt.body, "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, expected %d", rec.Code, tt.want)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
				t.Errorf("expected an error payload, got %s", rec.Body.String())
			}
		})
	}
}

func TestAskHandlerMethodNotAllowed(t *testing.T) {
	h := NewAskHandler(&mockRAGEngine{})
	req := httptest.NewRequest(http.MethodGet, "/api/ask", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, expected 405", rec.Code)
	}
}

func TestAskHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			"vector store down",
			fmt.Errorf("%w: vector search failed: connection refused", rag.ErrExternalService),
			http.StatusServiceUnavailable,
		},
		{
			"llm down",
			fmt.Errorf("%w: chat model call failed: timeout", rag.ErrExternalService),
			http.StatusBadGateway,
		},
		{
			"invalid input",
			fmt.Errorf("%w: bad filter", rag.ErrInvalidInput),
			http.StatusBadRequest,
		},
		{
			"unknown failure",
			errors.New("boom"),
			http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockRAGEngine{
				askFunc: func(context.Context, rag.AskRequest) (rag.AskResponse, error) {
					return rag.AskResponse{}, tt.err
				},
			}
			rec := postAsk(t, NewAskHandler(engine), `{"question":"q"}`, "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, expected %d", rec.Code, tt.want)
			}
		})
	}
}

func decodeSSE(t *testing.T, body string) []rag.StreamEvent {
	t.Helper()
	var events []rag.StreamEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev rag.StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("malformed SSE data line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestAskHandlerStreaming(t *testing.T) {
	engine := &mockRAGEngine{
		askStreamFunc: func(_ context.Context, _ rag.AskRequest, emit func(rag.StreamEvent) error) error {
			for _, ev := range []rag.StreamEvent{
				{Type: "delta", Text: "part one "},
				{Type: "delta", Text: "part two"},
				{Type: "sources", Sources: []retrieval.Citation{{SID: "S1", DocID: "doc1"}}},
				{Type: "done", Usage: map[string]any{"total_tokens": 9}},
			} {
				if err := emit(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}

	rec := postAsk(t, NewAskHandler(engine), `{"question":"q"}`, "?stream=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	events := decodeSSE(t, rec.Body.String())
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[0].Type != "delta" || events[3].Type != "done" {
		t.Errorf("unexpected event sequence: %+v", events)
	}
}

func TestAskHandlerStreamingError(t *testing.T) {
	engine := &mockRAGEngine{
		askStreamFunc: func(_ context.Context, _ rag.AskRequest, emit func(rag.StreamEvent) error) error {
			_ = emit(rag.StreamEvent{Type: "delta", Text: "partial"})
			return fmt.Errorf("%w: stream broken", rag.ErrExternalService)
		},
	}

	rec := postAsk(t, NewAskHandler(engine), `{"question":"q"}`, "?stream=1")
	// Headers are flushed before the failure, so the error travels in-band.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"type":"error"`) {
		t.Errorf("expected in-band error event, got %s", rec.Body.String())
	}
}
