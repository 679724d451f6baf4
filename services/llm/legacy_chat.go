package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// legacyChatAdapter speaks the token-streaming chat completion protocol:
// one delta chunk per text fragment, a sentinel when the answer is complete.
type legacyChatAdapter struct {
	client *openai.Client
	logger *slog.Logger
}

func newLegacyChatAdapter(cfg Config) *legacyChatAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = cfg.HTTPClient
	return &legacyChatAdapter{
		client: openai.NewClientWithConfig(clientCfg),
		logger: cfg.Logger,
	}
}

func toChatMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

// streamAttempt implements the protocolAdapter interface
func (a *legacyChatAdapter) streamAttempt(ctx context.Context, conv Conversation,
	model string, emit EmitFunc) (attemptResult, error) {

	ctx, span := tracer.Start(ctx, "legacyChatAdapter.streamAttempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.String("llm.protocol", string(ProtocolLegacyChat)),
	)

	var res attemptResult
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toChatMessages(conv.Messages),
		Stream:      true,
		Temperature: conv.Temperature,
		MaxTokens:   conv.MaxOutputTokens,
	}

	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, fmt.Errorf("opening chat completion stream for %s: %w", model, err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			// Completion sentinel. The answer is whole.
			if ferr := forward(emit, DoneEvent(), &res); ferr != nil {
				return res, ferr
			}
			span.SetAttributes(attribute.Int("llm.events", res.events))
			return res, nil
		}
		if err != nil {
			span.RecordError(err)
			if res.produced() {
				// The provider died mid-answer. Fragments already forwarded
				// stand; the consumer sees the stream end without Done.
				a.logger.Warn("chat completion stream broke mid-answer",
					"model", model, "events", res.events, "error", err)
				return res, nil
			}
			span.SetStatus(codes.Error, err.Error())
			return res, fmt.Errorf("chat completion stream for %s: %w", model, err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if ferr := forward(emit, ContentEvent(delta), &res); ferr != nil {
			return res, ferr
		}
	}
}
