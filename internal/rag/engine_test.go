package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"paperhub/internal/rag/mocks"
	"paperhub/internal/retrieval"
	"paperhub/internal/vectorstore"
	vectorstore_mocks "paperhub/internal/vectorstore/mocks"
)

const testCollection = "papers"

// metaSource serves chunk metadata from a map; implements only the
// point-lookup capability.
type metaSource struct {
	records map[string]map[string]any
}

func (s *metaSource) GetMetadata(_ context.Context, id string) (map[string]any, error) {
	return s.records[id], nil
}

func testMeta() *metaSource {
	return &metaSource{records: map[string]map[string]any{
		"doc1_chunk0001": {"doc_id": "doc1", "title": "Water Report", "year": 2020, "page": 3, "text": "water usage rose sharply"},
		"doc2_chunk0001": {"doc_id": "doc2", "title": "Soil Survey", "year": 2021, "page": 7, "text": "soil salinity findings"},
	}}
}

func searchResults() []vectorstore.SearchResult {
	return []vectorstore.SearchResult{
		{PointID: "uuid-1", Score: 0.92, Meta: map[string]any{"chunk_id": "doc1_chunk0001"}},
		{PointID: "uuid-2", Score: 0.85, Meta: map[string]any{"chunk_id": "doc2_chunk0001"}},
	}
}

func TestAskEmptyQuestionShortCircuits(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No expectations: the embedder, index, and chat model must not be
	// touched for an empty question.
	embedder := mocks.NewMockEmbedder(ctrl)
	index := vectorstore_mocks.NewMockVectorIndex(ctrl)
	chat := mocks.NewMockChatModel(ctrl)

	engine := NewEngine(embedder, index, testCollection, testMeta(), nil, nil, chat, nil)

	resp, err := engine.Ask(context.Background(), AskRequest{Question: "   "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != "" {
		t.Errorf("expected empty answer, got %q", resp.Answer)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(resp.Sources))
	}
	if resp.Usage["error"] != "empty question" {
		t.Errorf("expected empty-question usage marker, got %v", resp.Usage)
	}
}

func TestAskNoHitsShortCircuits(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedQuery(gomock.Any(), "anything relevant?").Return([]float32{0.1, 0.2}, nil)

	index := vectorstore_mocks.NewMockVectorIndex(ctrl)
	index.EXPECT().Query(gomock.Any(), testCollection, gomock.Any(), 50).Return(nil, nil)

	chat := mocks.NewMockChatModel(ctrl) // must not be called

	engine := NewEngine(embedder, index, testCollection, testMeta(), nil, nil, chat, nil)

	resp, err := engine.Ask(context.Background(), AskRequest{Question: "anything relevant?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Answer != noHitsAnswer {
		t.Errorf("expected fallback answer, got %q", resp.Answer)
	}
	if resp.Usage["retrieved"] != 0 {
		t.Errorf("expected retrieved=0 usage, got %v", resp.Usage)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("expected empty sources slice, got %v", resp.Sources)
	}
}

func TestAskHappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedQuery(gomock.Any(), "how did water usage change?").Return([]float32{0.5}, nil)

	// Default k is 6; overfetch is max(5*6, 50) = 50.
	index := vectorstore_mocks.NewMockVectorIndex(ctrl)
	index.EXPECT().Query(gomock.Any(), testCollection, gomock.Any(), 50).Return(searchResults(), nil)

	var gotSystem, gotUser string
	chat := mocks.NewMockChatModel(ctrl)
	chat.EXPECT().
		Chat(gomock.Any(), gomock.Any(), gomock.Any(), 0.2, 600).
		DoAndReturn(func(_ context.Context, system, user string, _ float64, _ int) (string, map[string]any, error) {
			gotSystem, gotUser = system, user
			return "Usage rose sharply [S1].", map[string]any{"total_tokens": 42}, nil
		})

	engine := NewEngine(embedder, index, testCollection, testMeta(), nil, nil, chat, nil)

	resp, err := engine.Ask(context.Background(), AskRequest{Question: "how did water usage change?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(gotSystem, "Answer ONLY from the provided source passages") {
		t.Error("system prompt missing grounding instruction")
	}
	if !strings.Contains(gotUser, "[S1] Water Report (2020, doc1, p.3):") {
		t.Errorf("user prompt missing first source line:\n%s", gotUser)
	}
	if !strings.Contains(gotUser, "how did water usage change?") {
		t.Error("user prompt missing the question")
	}

	if !strings.Contains(resp.Answer, "Usage rose sharply [S1].") {
		t.Errorf("answer lost the model output: %q", resp.Answer)
	}
	if !strings.Contains(resp.Answer, "Sources:\nS1 — Water Report (2020, p.3, doc1)") {
		t.Errorf("answer missing sources footer:\n%s", resp.Answer)
	}

	if len(resp.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(resp.Sources))
	}
	if resp.Sources[0].SID != "S1" || resp.Sources[0].DocID != "doc1" {
		t.Errorf("unexpected first citation: %+v", resp.Sources[0])
	}
	if resp.Usage["total_tokens"] != 42 {
		t.Errorf("usage not propagated: %v", resp.Usage)
	}
}

func TestAskCapsK(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedQuery(gomock.Any(), gomock.Any()).Return([]float32{0.5}, nil)

	// k=500 clamps to 50, so the overfetch is 5*50 = 250.
	index := vectorstore_mocks.NewMockVectorIndex(ctrl)
	index.EXPECT().Query(gomock.Any(), testCollection, gomock.Any(), 250).Return(nil, nil)

	chat := mocks.NewMockChatModel(ctrl)
	engine := NewEngine(embedder, index, testCollection, testMeta(), nil, nil, chat, nil)

	if _, err := engine.Ask(context.Background(), AskRequest{Question: "q", K: 500}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAskRerankFailureKeepsOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedQuery(gomock.Any(), gomock.Any()).Return([]float32{0.5}, nil)

	index := vectorstore_mocks.NewMockVectorIndex(ctrl)
	index.EXPECT().Query(gomock.Any(), testCollection, gomock.Any(), 50).Return(searchResults(), nil)

	reranker := mocks.NewMockReranker(ctrl)
	reranker.EXPECT().Rerank(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("rerank backend down"))

	chat := mocks.NewMockChatModel(ctrl)
	chat.EXPECT().Chat(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("answer [S1]", nil, nil)

	engine := NewEngine(embedder, index, testCollection, testMeta(), nil, reranker, chat, nil)

	resp, err := engine.Ask(context.Background(), AskRequest{Question: "some question"})
	if err != nil {
		t.Fatalf("rerank failure must not fail the request: %v", err)
	}
	if resp.Sources[0].DocID != "doc1" || resp.Sources[1].DocID != "doc2" {
		t.Errorf("original retrieval order not preserved: %+v", resp.Sources)
	}
}

func TestAskRerankReordersSources(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedQuery(gomock.Any(), gomock.Any()).Return([]float32{0.5}, nil)

	index := vectorstore_mocks.NewMockVectorIndex(ctrl)
	index.EXPECT().Query(gomock.Any(), testCollection, gomock.Any(), 50).Return(searchResults(), nil)

	reranker := mocks.NewMockReranker(ctrl)
	reranker.EXPECT().Rerank(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, hits []retrieval.Hit) ([]retrieval.Hit, error) {
			reversed := make([]retrieval.Hit, 0, len(hits))
			for i := len(hits) - 1; i >= 0; i-- {
				reversed = append(reversed, hits[i])
			}
			return reversed, nil
		})

	chat := mocks.NewMockChatModel(ctrl)
	chat.EXPECT().Chat(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("answer", nil, nil)

	engine := NewEngine(embedder, index, testCollection, testMeta(), nil, reranker, chat, nil)

	resp, err := engine.Ask(context.Background(), AskRequest{Question: "some question"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Sources[0].DocID != "doc2" {
		t.Errorf("reranked order not reflected in citations: %+v", resp.Sources)
	}
}

func TestAskExplicitRerankOff(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedQuery(gomock.Any(), gomock.Any()).Return([]float32{0.5}, nil)

	index := vectorstore_mocks.NewMockVectorIndex(ctrl)
	index.EXPECT().Query(gomock.Any(), testCollection, gomock.Any(), 50).Return(searchResults(), nil)

	reranker := mocks.NewMockReranker(ctrl) // must not be called

	chat := mocks.NewMockChatModel(ctrl)
	chat.EXPECT().Chat(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("answer", nil, nil)

	engine := NewEngine(embedder, index, testCollection, testMeta(), nil, reranker, chat, nil)

	off := false
	if _, err := engine.Ask(context.Background(), AskRequest{Question: "q", Rerank: &off}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAskStatisticRouteSkipsRerank(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedQuery(gomock.Any(), gomock.Any()).Return([]float32{0.5}, nil)

	index := vectorstore_mocks.NewMockVectorIndex(ctrl)
	index.EXPECT().Query(gomock.Any(), testCollection, gomock.Any(), 50).Return(searchResults(), nil)

	reranker := mocks.NewMockReranker(ctrl) // must not be called for statistic questions

	var gotSystem string
	chat := mocks.NewMockChatModel(ctrl)
	chat.EXPECT().Chat(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, system, _ string, _ float64, _ int) (string, map[string]any, error) {
			gotSystem = system
			return "42% [S1]", nil, nil
		})

	engine := NewEngine(embedder, index, testCollection, testMeta(), nil, reranker, chat, NewRouter())

	resp, err := engine.Ask(context.Background(), AskRequest{Question: "what percentage of farms use drip irrigation?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Route != string(RouteStatistic) {
		t.Errorf("route = %q, expected statistic", resp.Route)
	}
	if !strings.Contains(gotSystem, "quantitative") {
		t.Error("statistic route should extend the system prompt")
	}
}

func TestAskEmbedFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedQuery(gomock.Any(), gomock.Any()).Return(nil, errors.New("embeddings api down"))

	index := vectorstore_mocks.NewMockVectorIndex(ctrl)
	chat := mocks.NewMockChatModel(ctrl)

	engine := NewEngine(embedder, index, testCollection, testMeta(), nil, nil, chat, nil)

	_, err := engine.Ask(context.Background(), AskRequest{Question: "q"})
	if !errors.Is(err, ErrExternalService) {
		t.Errorf("expected ErrExternalService, got %v", err)
	}
}

func TestAskChatFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedQuery(gomock.Any(), gomock.Any()).Return([]float32{0.5}, nil)

	index := vectorstore_mocks.NewMockVectorIndex(ctrl)
	index.EXPECT().Query(gomock.Any(), testCollection, gomock.Any(), 50).Return(searchResults(), nil)

	chat := mocks.NewMockChatModel(ctrl)
	chat.EXPECT().Chat(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", nil, errors.New("llm timeout"))

	engine := NewEngine(embedder, index, testCollection, testMeta(), nil, nil, chat, nil)

	_, err := engine.Ask(context.Background(), AskRequest{Question: "q"})
	if !errors.Is(err, ErrExternalService) {
		t.Errorf("expected ErrExternalService, got %v", err)
	}
}

func TestAskPushesYearFiltersToStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedQuery(gomock.Any(), gomock.Any()).Return([]float32{0.5}, nil)

	index := vectorstore_mocks.NewMockFilterableIndex(ctrl)
	index.EXPECT().
		QueryFiltered(gomock.Any(), testCollection, gomock.Any(), 50, map[string]any{"year_min": 2020}).
		Return(searchResults(), nil)

	chat := mocks.NewMockChatModel(ctrl)
	chat.EXPECT().Chat(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("answer", nil, nil)

	engine := NewEngine(embedder, index, testCollection, testMeta(), nil, nil, chat, nil)

	_, err := engine.Ask(context.Background(), AskRequest{
		Question: "q",
		Filters:  map[string]any{"year_min": 2020},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedQuery(gomock.Any(), "water usage").Return([]float32{0.5}, nil)

	index := vectorstore_mocks.NewMockVectorIndex(ctrl)
	index.EXPECT().Query(gomock.Any(), testCollection, gomock.Any(), 50).Return(searchResults(), nil)

	chat := mocks.NewMockChatModel(ctrl) // search never touches the chat model

	engine := NewEngine(embedder, index, testCollection, testMeta(), nil, nil, chat, nil)

	hits, err := engine.Search(context.Background(), SearchRequest{Query: "water usage", K: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "doc1_chunk0001" {
		t.Errorf("expected chunk id resolved from payload, got %s", hits[0].ID)
	}
	if hits[0].Meta["preview"] == "" {
		t.Error("expected stitched preview on prepared hits")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := NewEngine(
		mocks.NewMockEmbedder(ctrl),
		vectorstore_mocks.NewMockVectorIndex(ctrl),
		testCollection, testMeta(), nil, nil,
		mocks.NewMockChatModel(ctrl), nil,
	)

	_, err := engine.Search(context.Background(), SearchRequest{Query: "  "})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEffectiveK(t *testing.T) {
	tests := []struct {
		name  string
		route Route
		k     int
		want  int
	}{
		{"zero defaults", RouteDefault, 0, 6},
		{"negative defaults", RouteDefault, -1, 6},
		{"capped", RouteDefault, 500, 50},
		{"statistic floor", RouteStatistic, 2, 4},
		{"statistic above floor", RouteStatistic, 10, 10},
		{"definition passes through", RouteDefinition, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := effectiveK(tt.route, tt.k); got != tt.want {
				t.Errorf("effectiveK(%q, %d) = %d, want %d", tt.route, tt.k, got, tt.want)
			}
		})
	}
}
