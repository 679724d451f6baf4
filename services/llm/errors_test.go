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
	"testing"
)

// TestIsTransient verifies the connectivity-shaped vs request-shaped split.
func TestIsTransient(t *testing.T) {
	t.Parallel()

	transient := []error{
		context.DeadlineExceeded,
		&upstreamError{status: 408, msg: "request timeout"},
		&upstreamError{status: 429, msg: "too many requests"},
		&upstreamError{status: 500, msg: "internal"},
		&upstreamError{status: 502, msg: "bad gateway"},
		&upstreamError{status: 503, msg: "unavailable"},
		&upstreamError{status: 504, msg: "gateway timeout"},
		errors.New("dial tcp 127.0.0.1:1: connection refused"),
		errors.New("read tcp: connection reset by peer"),
		fmt.Errorf("sending structured request: %w", errors.New("net/http: request timed out")),
	}
	for _, err := range transient {
		if !isTransient(err) {
			t.Errorf("Expected transient classification for: %v", err)
		}
	}

	permanent := []error{
		nil,
		&upstreamError{status: 400, msg: "malformed"},
		&upstreamError{status: 401, msg: "bad key"},
		&upstreamError{status: 404, msg: "model not found"},
		errors.New("parsing structured response: unexpected end of JSON input"),
	}
	for _, err := range permanent {
		if isTransient(err) {
			t.Errorf("Expected permanent classification for: %v", err)
		}
	}
}

// TestNewUpstreamError verifies provider messages are lifted out of error
// bodies when present.
func TestNewUpstreamError(t *testing.T) {
	t.Parallel()

	withMessage := newUpstreamError(404, []byte(`{"error":{"message":"model gone"}}`))
	if withMessage.msg != "model gone" {
		t.Errorf("Expected extracted message, got %q", withMessage.msg)
	}
	if withMessage.status != 404 {
		t.Errorf("Expected status 404, got %d", withMessage.status)
	}

	raw := newUpstreamError(500, []byte("plain text failure\n"))
	if raw.msg != "plain text failure" {
		t.Errorf("Expected trimmed raw body, got %q", raw.msg)
	}
}
