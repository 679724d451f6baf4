// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("founder.llm.gateway")

// =============================================================================
// Gateway
// =============================================================================

// Gateway runs normalized conversations against upstream completion models.
//
// # Description
//
// Each request walks an ordered candidate list (the requested model, then
// the configured fallbacks). Every candidate is classified once into the
// protocol it speaks and streamed through the matching adapter. The first
// candidate to surface any output owns the request; candidates that produce
// nothing are skipped silently. Only when the whole chain is exhausted does
// the consumer see an Error event.
//
// # Thread Safety
//
// Safe for concurrent use. Requests share nothing but the adapters, which
// are stateless between calls.
type Gateway struct {
	cfg        Config
	structured *structuredAdapter
	adapters   map[Protocol]protocolAdapter
	logger     *slog.Logger
}

// New builds a Gateway from an explicit Config.
//
// # Inputs
//
//   - cfg: gateway configuration. APIKey is required; everything else
//     falls back to defaults.
//
// # Outputs
//
//   - *Gateway: ready for concurrent use.
//   - error: non-nil when the configuration is unusable.
func New(cfg Config) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm gateway requires an API key")
	}
	cfg.applyDefaults()

	g := &Gateway{
		cfg:        cfg,
		structured: newStructuredAdapter(cfg),
		logger:     cfg.Logger,
	}
	g.adapters = map[Protocol]protocolAdapter{
		ProtocolLegacyChat:         newLegacyChatAdapter(cfg),
		ProtocolStructuredResponse: g.structured,
	}
	return g, nil
}

// Stream runs one completion request end to end.
//
// # Description
//
// Events are handed to emit as they arrive from upstream; nothing is
// buffered. The stream always finishes in one of three shapes: content
// followed by Done, content cut short with no terminal event (the provider
// died mid-answer), or a single Error event naming every candidate when
// none of them produced output.
//
// # Inputs
//
//   - ctx: cancels the in-flight upstream call; no further candidates are
//     tried after cancellation.
//   - conv: the conversation, read-only.
//   - requestedModel: tried first; empty selects the configured default.
//   - emit: receives events in order. A non-nil return stops the request.
//
// # Outputs
//
//   - error: non-nil only for consumer-side failures (cancellation or a
//     failing emit). Upstream failures are expressed on the event stream.
func (g *Gateway) Stream(ctx context.Context, conv Conversation, requestedModel string, emit EmitFunc) error {
	ctx, span := tracer.Start(ctx, "Gateway.Stream")
	defer span.End()

	if requestedModel == "" {
		requestedModel = g.cfg.DefaultModel
	}
	candidates := buildCandidates(requestedModel, g.cfg.FallbackModels)
	span.SetAttributes(
		attribute.String("llm.requested_model", requestedModel),
		attribute.Int("llm.num_candidates", len(candidates)),
	)

	attempted := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return err
		}
		attempted = append(attempted, cand.ID)

		res, err := g.adapters[cand.Protocol].streamAttempt(ctx, conv, cand.ID, emit)
		if err != nil && errors.Is(err, errCallback) {
			// The consumer is gone. Nothing left to serve.
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		if ctx.Err() != nil {
			span.RecordError(ctx.Err())
			return ctx.Err()
		}
		if res.produced() {
			// This candidate owns the response, however its stream ended.
			span.SetAttributes(
				attribute.String("llm.served_by", cand.ID),
				attribute.Int("llm.events", res.events),
				attribute.Bool("llm.completed", res.done),
			)
			g.logger.Info("completion served",
				"model", cand.ID, "protocol", cand.Protocol,
				"events", res.events, "completed", res.done)
			return nil
		}
		g.logger.Warn("model produced no output, trying next candidate",
			"model", cand.ID, "protocol", cand.Protocol, "error", err)
	}

	msg := "all models failed: " + strings.Join(attempted, ", ")
	span.SetStatus(codes.Error, msg)
	g.logger.Error("candidate chain exhausted", "attempted", attempted)
	if err := emit(ErrorEvent(msg)); err != nil {
		return fmt.Errorf("%w: %v", errCallback, err)
	}
	return nil
}
