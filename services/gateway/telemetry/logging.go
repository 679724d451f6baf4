// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// LoggerWithTrace returns a logger with trace correlation fields attached.
//
// Description:
//
//	If the context carries a valid span, the returned logger includes
//	trace_id and span_id fields so log lines can be correlated with
//	traces in Grafana/Loki. Without a span the original logger is
//	returned unchanged.
//
// Inputs:
//
//	ctx - Context potentially containing a span. May be nil.
//	logger - Base logger. If nil, slog.Default() is used.
//
// Outputs:
//
//	*slog.Logger - Logger with trace fields, or the base logger.
//
// Example:
//
//	log := telemetry.LoggerWithTrace(ctx, s.logger)
//	log.Info("chat completion served", "chat_id", chatID)
//
// Thread Safety: Safe for concurrent use.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if ctx == nil {
		return logger
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}

	return logger.With(
		"trace_id", spanCtx.TraceID().String(),
		"span_id", spanCtx.SpanID().String(),
	)
}

// LoggerWithChat returns a logger scoped to a single chat.
//
// Description:
//
//	Adds a chat_id field on top of any trace correlation fields. Use in
//	handlers and workers that operate on one conversation so its log
//	lines can be filtered together.
//
// Inputs:
//
//	ctx - Context potentially containing a span. May be nil.
//	logger - Base logger. If nil, slog.Default() is used.
//	chatID - The chat identifier to attach.
//
// Outputs:
//
//	*slog.Logger - Logger with chat_id (and trace fields when present).
//
// Thread Safety: Safe for concurrent use.
func LoggerWithChat(ctx context.Context, logger *slog.Logger, chatID string) *slog.Logger {
	return LoggerWithTrace(ctx, logger).With("chat_id", chatID)
}
