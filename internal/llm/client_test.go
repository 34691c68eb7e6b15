package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChat(t *testing.T) {
	var gotReq ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		resp := ChatResponse{
			Choices: []ChatChoice{{Message: ChatChoiceMessage{Role: "assistant", Content: "the answer"}}},
			Usage:   &ChatUsage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model")

	answer, usage, err := client.Chat(context.Background(), "system prompt", "user prompt", 0.2, 600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "the answer" {
		t.Errorf("answer = %q", answer)
	}
	if usage["total_tokens"] != 150 || usage["prompt_tokens"] != 120 {
		t.Errorf("usage = %v", usage)
	}

	if gotReq.Model != "test-model" || gotReq.Temperature != 0.2 || gotReq.MaxTokens != 600 {
		t.Errorf("request parameters not forwarded: %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
	if gotReq.Stream {
		t.Error("blocking chat must not request streaming")
	}
}

func TestChatOmitsEmptySystemMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected a single user message, got %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Choices: []ChatChoice{{Message: ChatChoiceMessage{Content: "ok"}}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "m")
	if _, _, err := client.Chat(context.Background(), "", "question", 0.2, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChatMissingUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Choices: []ChatChoice{{Message: ChatChoiceMessage{Content: "answer"}}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "m")
	_, usage, err := client.Chat(context.Background(), "s", "u", 0.2, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage != nil {
		t.Errorf("expected nil usage when the API omits it, got %v", usage)
	}
}

func TestChatErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "m")
	_, _, err := client.Chat(context.Background(), "s", "u", 0.2, 100)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "m")
	if _, _, err := client.Chat(context.Background(), "s", "u", 0.2, 100); err == nil {
		t.Error("expected an error for an empty choices array")
	}
}

func TestStreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("expected stream=true in the request")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{"The ", "answer ", "[S1]."}
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "m")

	var got strings.Builder
	err := client.StreamChat(context.Background(), "s", "u", 0.2, 100, func(chunk string) error {
		got.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "The answer [S1]." {
		t.Errorf("streamed answer = %q", got.String())
	}
}

func TestStreamChatSkipsMalformedChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, ": a comment line\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"kept\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "m")

	var got strings.Builder
	err := client.StreamChat(context.Background(), "s", "u", 0.2, 100, func(chunk string) error {
		got.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "kept" {
		t.Errorf("streamed answer = %q", got.String())
	}
}

func TestStreamChatCallbackErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"chunk\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "m")
	err := client.StreamChat(context.Background(), "s", "u", 0.2, 100, func(string) error {
		return fmt.Errorf("consumer gone")
	})
	if err == nil || !strings.Contains(err.Error(), "consumer gone") {
		t.Errorf("expected callback error, got %v", err)
	}
}

func TestChatUsageMap(t *testing.T) {
	var nilUsage *ChatUsage
	if nilUsage.Map() != nil {
		t.Error("nil usage must map to nil")
	}

	m := (&ChatUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}).Map()
	if m["prompt_tokens"] != 1 || m["completion_tokens"] != 2 || m["total_tokens"] != 3 {
		t.Errorf("unexpected map: %v", m)
	}
}
