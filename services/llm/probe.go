// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

const (
	probeAttempts    = 3
	probeInitialWait = 500 * time.Millisecond
)

// Probe reports whether the upstream API currently answers completions.
//
// # Description
//
// Sends a minimal non-streaming structured request to the configured probe
// model, retrying transient failures up to three times with a doubling
// backoff (0.5s, then 1s). Request-shaped failures such as a bad request
// or an unknown model stop the probe immediately; retrying those cannot
// change the answer. Unrecognized failures count as permanent.
//
// # Inputs
//
//   - ctx: bounds the whole probe including backoff sleeps.
//
// # Outputs
//
//   - bool: true when any attempt succeeds. The probe never returns an
//     error; callers only want yes or no.
//
// # Limitations
//
//   - Blocks for up to three attempts plus 1.5s of backoff. Run it off the
//     request path.
func (g *Gateway) Probe(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "Gateway.Probe")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", g.cfg.ProbeModel))

	conv := Conversation{
		Messages:        []Message{{Role: RoleUser, Content: "ping"}},
		MaxOutputTokens: 16,
	}

	wait := probeInitialWait
	for attempt := 1; attempt <= probeAttempts; attempt++ {
		probeCtx, cancel := context.WithTimeout(ctx, g.cfg.ProbeTimeout)
		_, err := g.structured.createResponse(probeCtx, conv, g.cfg.ProbeModel)
		cancel()
		if err == nil {
			span.SetAttributes(attribute.Int("probe.attempts", attempt))
			g.logger.Info("connectivity probe succeeded",
				"model", g.cfg.ProbeModel, "attempt", attempt)
			return true
		}

		g.logger.Warn("connectivity probe attempt failed",
			"model", g.cfg.ProbeModel, "attempt", attempt, "error", err)
		span.RecordError(err)

		if !isTransient(err) || attempt == probeAttempts {
			return false
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return false
		}
		wait *= 2
	}
	return false
}

// ProbeModel returns the model ID the probe targets.
func (g *Gateway) ProbeModel() string {
	return g.cfg.ProbeModel
}
