package rag

import (
	"context"
	"fmt"

	"paperhub/internal/contextutil"
	"paperhub/internal/retrieval"
)

// StreamEvent is one unit of a streamed answer.
type StreamEvent struct {
	// Type is "delta" for answer text, "sources" for the citation list,
	// or "done" when the stream is complete.
	Type string `json:"type"`
	// Text carries answer text for delta events.
	Text string `json:"text,omitempty"`
	// Sources carries the citation list on the sources event.
	Sources []retrieval.Citation `json:"sources,omitempty"`
	// Usage carries token accounting or short-circuit markers on done.
	Usage map[string]any `json:"usage,omitempty"`
}

// StreamingChatModel is the optional capability of generating incrementally.
// Engines fall back to a single blocking call when the chat model lacks it.
type StreamingChatModel interface {
	StreamChat(ctx context.Context, system, user string, temperature float64, maxTokens int, callback func(chunk string) error) error
}

// AskStream runs the retrieval pipeline and streams the generated answer as
// delta events, followed by a sources event and a done event. Short circuits
// (empty question, no hits) produce a single delta with the fixed answer.
func (e *ragEngine) AskStream(ctx context.Context, req AskRequest, emit func(StreamEvent) error) error {
	logger := contextutil.LoggerFromContext(ctx)

	state, err := e.retrieve(ctx, req)
	if err != nil {
		return err
	}

	if state.short != nil {
		if state.short.Answer != "" {
			if err := emit(StreamEvent{Type: "delta", Text: state.short.Answer}); err != nil {
				return err
			}
		}
		if err := emit(StreamEvent{Type: "sources", Sources: state.short.Sources}); err != nil {
			return err
		}
		return emit(StreamEvent{Type: "done", Usage: state.short.Usage})
	}

	system := systemPromptFor(state.route)
	user := buildUserPrompt(state.question, state.lines)

	if streamer, ok := e.chat.(StreamingChatModel); ok {
		err := streamer.StreamChat(ctx, system, user, state.temperature, state.maxTokens, func(chunk string) error {
			return emit(StreamEvent{Type: "delta", Text: chunk})
		})
		if err != nil {
			logger.ErrorContext(ctx, "streaming chat call failed", "error", err)
			return fmt.Errorf("%w: streaming chat call failed: %v", ErrExternalService, err)
		}
		if err := emit(StreamEvent{Type: "sources", Sources: state.citations}); err != nil {
			return err
		}
		return emit(StreamEvent{Type: "done"})
	}

	// Chat model cannot stream; deliver the whole answer as one delta.
	answer, usage, err := e.chat.Chat(ctx, system, user, state.temperature, state.maxTokens)
	if err != nil {
		logger.ErrorContext(ctx, "chat model call failed", "error", err)
		return fmt.Errorf("%w: chat model call failed: %v", ErrExternalService, err)
	}
	if err := emit(StreamEvent{Type: "delta", Text: answer}); err != nil {
		return err
	}
	if err := emit(StreamEvent{Type: "sources", Sources: state.citations}); err != nil {
		return err
	}
	return emit(StreamEvent{Type: "done", Usage: usage})
}
