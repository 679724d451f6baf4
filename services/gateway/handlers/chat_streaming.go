// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file implements the streaming chat endpoint: the user's message is
// persisted, conversation history and document context are assembled into a
// prompt, and the model's reply is streamed back over Server-Sent Events
// while being accumulated for persistence.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ezazahamad2003/founder-llm/services/gateway/datatypes"
	"github.com/ezazahamad2003/founder-llm/services/gateway/ingest"
	"github.com/ezazahamad2003/founder-llm/services/gateway/observability"
	"github.com/ezazahamad2003/founder-llm/services/gateway/store"
	"github.com/ezazahamad2003/founder-llm/services/gateway/telemetry"
	"github.com/ezazahamad2003/founder-llm/services/llm"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// heartbeatInterval is how often keepalive comments are sent during
	// streaming. Must be shorter than typical load balancer timeouts (60s).
	heartbeatInterval = 15 * time.Second

	// maxHistoryTurns is the number of stored messages loaded as
	// conversation context. Only the most recent turns are sent upstream.
	maxHistoryTurns = 20

	// replyTemperature and replyMaxTokens are the generation settings for
	// chat replies. Requests do not override them.
	replyTemperature = 0.7
	replyMaxTokens   = 4096
)

// systemPrompt frames every conversation. Document context, when requested,
// is appended under a "Document Context:" heading.
const systemPrompt = "You are a helpful, knowledgeable AI assistant for startup founders (legal and business). " +
	"Answer like ChatGPT with clear, polished Markdown. Keep output scannable and well-structured.\n\n" +

	"Default structure (adapt as needed):\n" +
	"- **Direct answer (1–2 sentences)**\n" +
	"- **Key points**: short bullet list of the most important facts or options\n" +
	"- **Next steps**: concise, actionable guidance\n\n" +

	"Formatting rules:\n" +
	"- Prefer short paragraphs (1–3 sentences)\n" +
	"- Use bullets and numbered lists over long blocks of text\n" +
	"- Use headings (##) only for longer explanations\n" +
	"- Use code blocks for code or commands only\n" +
	"- State assumptions briefly and avoid speculation\n\n" +

	"Behavior:\n" +
	"- Be concise and friendly; ask for clarification if critical info is missing\n" +
	"- When legal nuance matters, call it out clearly and suggest safe actions\n" +
	"- Do not include unnecessary preambles; get to the point"

// =============================================================================
// Interface Definition
// =============================================================================

// ChatStreamHandler handles the streaming chat message endpoint.
//
// # Description
//
// ChatStreamHandler coordinates between the HTTP layer and the completion
// gateway. It owns the request-scoped concerns: validation, persistence of
// both sides of the turn, context assembly, SSE mechanics, heartbeats, and
// metrics. Model selection and fallback live in the llm package.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; one instance serves all
// requests.
type ChatStreamHandler interface {
	// HandleChatMessage processes POST /v1/chats/:chatId/message requests
	// and responds with a Server-Sent Events stream.
	HandleChatMessage(c *gin.Context)
}

// =============================================================================
// Struct Definition
// =============================================================================

// chatStreamHandler implements ChatStreamHandler for production use.
//
// # Fields
//
//   - store: Chat store for history and message persistence
//   - gateway: Completion gateway with model fallback
//   - tracer: OpenTelemetry tracer for distributed tracing
//
// # Thread Safety
//
// Thread-safe. All fields are read-only after construction.
// No shared mutable state between requests.
type chatStreamHandler struct {
	store   *store.Store
	gateway *llm.Gateway
	tracer  trace.Tracer
}

// =============================================================================
// Constructor
// =============================================================================

// NewChatStreamHandler creates a ChatStreamHandler with the provided dependencies.
//
// # Inputs
//
//   - st: Chat store. Must not be nil.
//   - gw: Completion gateway. Must not be nil.
//
// # Outputs
//
//   - ChatStreamHandler: Ready for use with the Gin router
//
// # Examples
//
//	handler := handlers.NewChatStreamHandler(st, gw)
//	router.POST("/v1/chats/:chatId/message", handler.HandleChatMessage)
//
// # Limitations
//
//   - Panics on nil store or gateway (programming errors)
func NewChatStreamHandler(st *store.Store, gw *llm.Gateway) ChatStreamHandler {
	if st == nil {
		panic("NewChatStreamHandler: store must not be nil")
	}
	if gw == nil {
		panic("NewChatStreamHandler: gateway must not be nil")
	}

	return &chatStreamHandler{
		store:   st,
		gateway: gw,
		tracer:  otel.Tracer("founder.gateway.handlers.chat_streaming"),
	}
}

// =============================================================================
// Handler Methods
// =============================================================================

// HandleChatMessage processes a chat message and streams the reply.
//
// # Description
//
// Handles POST /v1/chats/:chatId/message requests. The flow is:
//  1. Parse and validate request body
//  2. Verify the chat exists (404 if not)
//  3. Persist the user message
//  4. Load recent history and, when file_ids are present, document context
//  5. Assemble the conversation (system prompt + history + current message)
//  6. Set SSE headers, create the writer, start the heartbeat
//  7. Stream events from the completion gateway onto the wire
//  8. Persist the accumulated assistant reply when non-empty
//
// The endpoint always streams; the request's "stream" field is accepted for
// wire compatibility but ignored.
//
// # Inputs
//
//   - c: Gin context containing the HTTP request
//
// Request Body (datatypes.ChatMessageRequest):
//   - message: Required. The user's message text (max 32KB).
//   - user_id: Required. Sender identifier.
//   - file_ids: Optional. Up to 10 ingested files to cite as context.
//   - model: Optional. Requested model; unknown IDs fall through the
//     fallback chain.
//
// # Outputs
//
// SSE Events:
//   - data: {"content":"Hello"}   (one per fragment)
//   - data: [DONE]                (successful completion)
//   - data: {"error":"..."}       (no model produced output)
//
// HTTP Status (before streaming starts):
//   - 400 Bad Request: Invalid request body or validation failure
//   - 404 Not Found: Chat does not exist
//   - 500 Internal Server Error: Store failure or SSE setup failure
//
// # Limitations
//
//   - Errors during streaming are sent as events, not HTTP errors
//   - A provider dying mid-reply ends the stream without a terminal event;
//     the partial reply is still persisted
//
// # Assumptions
//
//   - Client supports SSE
func (h *chatStreamHandler) HandleChatMessage(c *gin.Context) {
	startTime := time.Now()
	endpoint := observability.EndpointChatStream
	chatID := c.Param("chatId")

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleChatMessage")
	defer span.End()

	logger := telemetry.LoggerWithChat(ctx, nil, chatID)

	// Track active stream (for metrics)
	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted(endpoint)
		defer m.StreamEnded(endpoint)
	}

	success := false
	defer func() {
		// Record final metrics
		if m := observability.DefaultMetrics; m != nil {
			duration := time.Since(startTime).Seconds()
			m.RecordRequest(endpoint, success)
			m.RecordStreamDuration(endpoint, duration, success)
		}
	}()

	// Step 1: Parse request body
	var req datatypes.ChatMessageRequest
	if err := c.BindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request body")
		logger.Error("Failed to parse chat message request", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	span.SetAttributes(
		attribute.String("chat.id", chatID),
		attribute.String("user.id", req.UserID),
		attribute.String("request.model", req.Model),
		attribute.Int("request.file_count", len(req.FileIDs)),
	)

	// Step 2: Validate request
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		logger.Error("Chat message validation failed", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	// Step 3: Verify chat exists
	if _, err := h.store.GetChat(ctx, chatID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			span.SetStatus(codes.Error, "chat not found")
			logger.Warn("Message for unknown chat")
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		logger.Error("Failed to load chat", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeStoreError)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
		return
	}

	// Step 4: Persist the user message
	if _, err := h.store.CreateMessage(ctx, chatID, datatypes.RoleUser, req.Message, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		logger.Error("Failed to save user message", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeStoreError)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
		return
	}

	// Step 5: Load history. The tail window includes the message saved above.
	history, err := h.store.GetChatMessages(ctx, chatID, maxHistoryTurns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		logger.Error("Failed to load chat history", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeStoreError)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat history"})
		return
	}

	// Step 6: Load document context when files are cited
	docContext := ""
	if len(req.FileIDs) > 0 {
		logger.Info("Loading document context", "fileCount", len(req.FileIDs))
		docContext, err = ingest.BuildContext(ctx, h.store, req.FileIDs, ingest.ContextMaxChars)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "context assembly failed")
			logger.Error("Failed to build document context", "error", err)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeStoreError)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document context"})
			return
		}
		logger.Info("Document context loaded", "chars", len(docContext))
	}

	// Step 7: Assemble the conversation
	conv := buildConversation(history, req.Message, docContext)
	span.SetAttributes(attribute.Int("conversation.message_count", len(conv.Messages)))

	// Step 8: Set SSE headers and create writer
	SetSSEHeaders(c.Writer)
	sseWriter, err := NewSSEWriter(c.Writer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "SSE setup failed")
		logger.Error("Failed to create SSE writer", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeInternal)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	// Step 9: Start heartbeat goroutine to prevent connection timeouts
	heartbeatDone := make(chan struct{})
	go h.runHeartbeat(ctx, sseWriter, endpoint, heartbeatDone)

	// Step 10: Create the accumulator that captures the reply for persistence
	accumulator, accErr := NewSecureReplyAccumulator()
	if accErr != nil {
		logger.Warn("Failed to create reply accumulator, reply will not be persisted", "error", accErr)
	}
	defer func() {
		if accumulator != nil {
			accumulator.Destroy()
		}
	}()

	// Step 11: Stream events from the completion gateway
	var contentCount int32
	firstContentTime := time.Time{}
	streamErr := h.streamFromGateway(ctx, chatID, conv, req.Model, sseWriter, endpoint, &contentCount, &firstContentTime, accumulator)

	// Stop heartbeat
	close(heartbeatDone)

	// Record time to first content fragment
	if !firstContentTime.IsZero() {
		ttft := firstContentTime.Sub(startTime).Seconds()
		span.SetAttributes(attribute.Float64("stream.time_to_first_token_seconds", ttft))
		if m := observability.DefaultMetrics; m != nil {
			m.RecordTimeToFirstToken(endpoint, ttft)
		}
	}
	span.SetAttributes(attribute.Int("stream.content_events", int(contentCount)))

	if streamErr != nil {
		span.RecordError(streamErr)
		span.SetStatus(codes.Error, "streaming failed")
		logger.Error("Chat streaming failed", "error", streamErr, "contentEvents", contentCount)

		// Categorize error for metrics
		if errors.Is(streamErr, context.Canceled) {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeClientDisconnect)
				m.RecordClientDisconnect(endpoint)
			}
		} else {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeLLMError)
			}
		}
		// Upstream failures were already expressed on the event stream.
		return
	}

	// Step 12: Persist the assistant reply when the stream produced content
	h.persistReply(ctx, chatID, req.FileIDs, accumulator, endpoint)

	success = true
	span.SetStatus(codes.Ok, "stream completed")
}

// =============================================================================
// Private Methods
// =============================================================================

// streamFromGateway runs the completion request and forwards events to the wire.
//
// # Description
//
// Translates gateway events into the SSE wire format one-to-one: the
// gateway decides which events exist (including the terminal Done or Error),
// this method only transports them. Content fragments are additionally
// counted, timed, and fed to the accumulator so the reply can be persisted
// after the stream ends.
//
// # Inputs
//
//   - ctx: Request context; cancellation aborts the upstream call.
//   - chatID: Chat identifier for logging.
//   - conv: Assembled conversation.
//   - requestedModel: Model override from the request, may be empty.
//   - writer: SSE writer for the response.
//   - endpoint: Metrics endpoint label.
//   - contentCount: Incremented per content event.
//   - firstContentTime: Set when the first content event arrives.
//   - accumulator: Captures fragments for persistence. May be nil.
//
// # Outputs
//
//   - error: Non-nil only for consumer-side failures (cancellation or a
//     failed write). Provider failures arrive as events.
func (h *chatStreamHandler) streamFromGateway(
	ctx context.Context,
	chatID string,
	conv llm.Conversation,
	requestedModel string,
	writer SSEWriter,
	endpoint observability.Endpoint,
	contentCount *int32,
	firstContentTime *time.Time,
	accumulator ReplyAccumulator,
) error {
	logger := telemetry.LoggerWithChat(ctx, nil, chatID)

	emit := func(event llm.StreamEvent) error {
		// Check for cancellation before writing
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch event.Type {
		case llm.EventContent:
			if firstContentTime.IsZero() {
				*firstContentTime = time.Now()
			}
			atomic.AddInt32(contentCount, 1)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordEvent(endpoint, observability.EventLabelContent)
			}
			if accumulator != nil {
				if err := accumulator.Write(event.Content); err != nil {
					logger.Warn("Failed to accumulate fragment for persistence",
						"error", err,
						"accumulatorId", accumulator.ID(),
					)
				}
			}
			return writer.WriteContent(event.Content)

		case llm.EventDone:
			if m := observability.DefaultMetrics; m != nil {
				m.RecordEvent(endpoint, observability.EventLabelDone)
			}
			return writer.WriteDone()

		case llm.EventError:
			if m := observability.DefaultMetrics; m != nil {
				m.RecordEvent(endpoint, observability.EventLabelError)
			}
			return writer.WriteError(event.Err)
		}
		return nil
	}

	if err := h.gateway.Stream(ctx, conv, requestedModel, emit); err != nil {
		logger.Error("Gateway stream failed", "error", err)
		return err
	}
	return nil
}

// persistReply finalizes the accumulator and stores the assistant message.
//
// # Description
//
// Empty replies are not stored; a stream where every candidate failed, or
// that carried only a terminal event, leaves no assistant turn. The save
// runs detached from the request context so a client that hangs up right
// after [DONE] does not lose the reply. The message metadata records the
// reply digest and the cited files.
func (h *chatStreamHandler) persistReply(
	ctx context.Context,
	chatID string,
	fileIDs []string,
	accumulator ReplyAccumulator,
	endpoint observability.Endpoint,
) {
	if accumulator == nil {
		return
	}
	logger := telemetry.LoggerWithChat(ctx, nil, chatID)

	reply, digest, err := accumulator.Finalize()
	if err != nil {
		logger.Warn("Failed to finalize reply accumulator",
			"error", err,
			"accumulatorId", accumulator.ID(),
		)
		return
	}
	if reply == "" {
		return
	}

	metadata := map[string]interface{}{"content_sha256": digest}
	if len(fileIDs) > 0 {
		metadata["file_ids"] = fileIDs
	}

	saveCtx := context.WithoutCancel(ctx)
	if _, err := h.store.CreateMessage(saveCtx, chatID, datatypes.RoleAssistant, reply, metadata); err != nil {
		logger.Error("Failed to save assistant reply", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeStoreError)
		}
		return
	}
	logger.Info("Assistant reply saved", "chars", len(reply))
}

// runHeartbeat sends periodic keepalive comments until the stream ends.
//
// # Description
//
// Runs in a goroutine alongside streaming. Sends ": ping" comments every
// heartbeatInterval to prevent load balancer timeouts while the model is
// thinking or a fallback chain is being walked. Stops when done is closed,
// the context is cancelled, or a write fails.
//
// # Inputs
//
//   - ctx: Request context.
//   - writer: SSE writer (thread-safe).
//   - endpoint: Metrics endpoint label.
//   - done: Closed by the caller when streaming finishes.
func (h *chatStreamHandler) runHeartbeat(
	ctx context.Context,
	writer SSEWriter,
	endpoint observability.Endpoint,
	done <-chan struct{},
) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				slog.Debug("Failed to write keepalive", "error", err)
				return
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordKeepAlive(endpoint)
			}
		}
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// buildConversation assembles the upstream conversation for one turn.
//
// # Description
//
// Layers the system prompt (with document context appended when present),
// the stored history, and the current message. The history window already
// contains the just-persisted current message as its last element; it is
// dropped there and re-added explicitly so the transcript always ends with
// the current user turn.
//
// # Inputs
//
//   - history: Recent messages in chronological order.
//   - current: The user's message for this turn.
//   - docContext: Assembled document context, may be empty.
//
// # Outputs
//
//   - llm.Conversation: Ready for Gateway.Stream.
func buildConversation(history []datatypes.ChatMessage, current, docContext string) llm.Conversation {
	prompt := systemPrompt
	if docContext != "" {
		prompt += "\n\nDocument Context:\n" + docContext
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: prompt})

	if n := len(history); n > 0 {
		history = history[:n-1]
	}
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: llm.Role(msg.Role), Content: msg.Content})
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: current})

	return llm.Conversation{
		Messages:        messages,
		Temperature:     replyTemperature,
		MaxOutputTokens: replyMaxTokens,
	}
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ ChatStreamHandler = (*chatStreamHandler)(nil)
