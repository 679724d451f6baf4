// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// =============================================================================
// Structured Response Protocol
// =============================================================================

// structuredRequest is the request body for the structured response
// endpoint. Unlike the legacy chat protocol, input content is nested one
// level deeper and the token cap is named max_output_tokens.
type structuredRequest struct {
	Model           string            `json:"model"`
	Input           []structuredInput `json:"input"`
	Stream          bool              `json:"stream,omitempty"`
	Temperature     float32           `json:"temperature,omitempty"`
	MaxOutputTokens int               `json:"max_output_tokens,omitempty"`
}

type structuredInput struct {
	Role    string              `json:"role"`
	Content []structuredContent `json:"content"`
}

type structuredContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// structuredStreamEvent is the envelope for one server-sent event on the
// streaming form. Type discriminates; the other fields are sparse.
type structuredStreamEvent struct {
	Type     string              `json:"type"`
	Delta    string              `json:"delta,omitempty"`
	Response *structuredResponse `json:"response,omitempty"`
	Error    *structuredError    `json:"error,omitempty"`
}

type structuredError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *structuredError) String() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// structuredResponse is the one-shot response body (and the payload of
// completion events on the streaming form).
type structuredResponse struct {
	ID     string             `json:"id"`
	Status string             `json:"status"`
	Output []structuredOutput `json:"output"`
	Error  *structuredError   `json:"error,omitempty"`
}

type structuredOutput struct {
	Type    string              `json:"type"`
	Content []structuredContent `json:"content"`
}

// outputText concatenates every output_text block in order.
func (r *structuredResponse) outputText() string {
	var sb strings.Builder
	for _, out := range r.Output {
		for _, c := range out.Content {
			if c.Type == "output_text" {
				sb.WriteString(c.Text)
			}
		}
	}
	return sb.String()
}

// structuredAdapter speaks the structured response protocol.
//
// # Description
//
// Streams completions from the /responses endpoint, decoding delta events
// into Content and the completion event into Done. When the streaming call
// cannot be established at all, the same attempt is retried once in
// one-shot mode and a non-empty answer is surfaced as a single Content
// followed by Done.
//
// # Limitations
//
//   - A provider error after the stream is established ends the attempt
//     where it stands: forwarded fragments are not retracted and the
//     one-shot fallback is not used, so the consumer may see a truncated
//     answer with no terminal event.
//
// # Thread Safety
//
// Safe for concurrent use; the adapter holds no per-request state.
type structuredAdapter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

func newStructuredAdapter(cfg Config) *structuredAdapter {
	return &structuredAdapter{
		httpClient: cfg.HTTPClient,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		logger:     cfg.Logger,
	}
}

// buildRequest converts a conversation into the structured input shape.
func (a *structuredAdapter) buildRequest(conv Conversation, model string, stream bool) structuredRequest {
	input := make([]structuredInput, len(conv.Messages))
	for i, m := range conv.Messages {
		input[i] = structuredInput{
			Role: string(m.Role),
			Content: []structuredContent{
				{Type: "input_text", Text: m.Content},
			},
		}
	}
	return structuredRequest{
		Model:           model,
		Input:           input,
		Stream:          stream,
		Temperature:     conv.Temperature,
		MaxOutputTokens: conv.MaxOutputTokens,
	}
}

// post sends one request to the /responses endpoint and returns the raw
// response. Non-nil errors mean the call never got a usable answer.
func (a *structuredAdapter) post(ctx context.Context, body structuredRequest) (*http.Response, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling structured request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/responses", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("creating structured request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending structured request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, newUpstreamError(resp.StatusCode, respBody)
	}
	return resp, nil
}

// streamAttempt implements the protocolAdapter interface.
//
// # Description
//
// Tries the streaming form first. If the stream cannot be established the
// same attempt falls back to one-shot mode; if that also yields nothing,
// the attempt ends with zero events and the error says why.
//
// # Outputs
//
//   - attemptResult: how many events reached the consumer.
//   - error: non-nil only when nothing was surfaced, except for callback
//     failures, which are returned regardless.
func (a *structuredAdapter) streamAttempt(ctx context.Context, conv Conversation,
	model string, emit EmitFunc) (attemptResult, error) {

	ctx, span := tracer.Start(ctx, "structuredAdapter.streamAttempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.String("llm.protocol", string(ProtocolStructuredResponse)),
	)

	var res attemptResult
	resp, err := a.post(ctx, a.buildRequest(conv, model, true))
	if err != nil {
		// The stream never opened. Same attempt, one-shot form.
		span.RecordError(err)
		a.logger.Info("structured stream setup failed, retrying one-shot",
			"model", model, "error", err)
		return a.oneShot(ctx, conv, model, emit)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev structuredStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			a.logger.Warn("skipping unparseable stream event", "model", model, "error", err)
			continue
		}
		switch ev.Type {
		case "response.output_text.delta":
			if ev.Delta == "" {
				continue
			}
			if ferr := forward(emit, ContentEvent(ev.Delta), &res); ferr != nil {
				return res, ferr
			}
		case "response.completed", "response.done":
			if ferr := forward(emit, DoneEvent(), &res); ferr != nil {
				return res, ferr
			}
			span.SetAttributes(attribute.Int("llm.events", res.events))
			return res, nil
		case "error":
			err := fmt.Errorf("structured stream for %s reported: %s", model, ev.Error.String())
			span.RecordError(err)
			if res.produced() {
				// Mid-answer failure. Forwarded fragments stand, no Done.
				a.logger.Warn("structured stream broke mid-answer",
					"model", model, "events", res.events, "error", err)
				return res, nil
			}
			span.SetStatus(codes.Error, err.Error())
			return res, err
		}
	}
	if err := scanner.Err(); err != nil {
		span.RecordError(err)
		if res.produced() {
			a.logger.Warn("structured stream broke mid-answer",
				"model", model, "events", res.events, "error", err)
			return res, nil
		}
		span.SetStatus(codes.Error, err.Error())
		return res, fmt.Errorf("reading structured stream for %s: %w", model, err)
	}

	// The server closed the stream without a completion event.
	if res.produced() {
		return res, nil
	}
	return res, fmt.Errorf("structured stream for %s ended with no events", model)
}

// oneShot runs the non-streaming form and surfaces a non-empty answer as
// Content followed by Done.
func (a *structuredAdapter) oneShot(ctx context.Context, conv Conversation,
	model string, emit EmitFunc) (attemptResult, error) {

	var res attemptResult
	text, err := a.createResponse(ctx, conv, model)
	if err != nil {
		return res, fmt.Errorf("structured one-shot for %s: %w", model, err)
	}
	if text == "" {
		return res, fmt.Errorf("structured one-shot for %s returned an empty answer", model)
	}
	if ferr := forward(emit, ContentEvent(text), &res); ferr != nil {
		return res, ferr
	}
	if ferr := forward(emit, DoneEvent(), &res); ferr != nil {
		return res, ferr
	}
	return res, nil
}

// createResponse runs one non-streaming structured call and returns the
// full output text. The connectivity probe uses this directly.
func (a *structuredAdapter) createResponse(ctx context.Context, conv Conversation, model string) (string, error) {
	resp, err := a.post(ctx, a.buildRequest(conv, model, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading structured response: %w", err)
	}
	var parsed structuredResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parsing structured response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("structured response reported: %s", parsed.Error.String())
	}
	return parsed.outputText(), nil
}
