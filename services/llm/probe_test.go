// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// TestProbe_HealthyFirstTry verifies a working upstream answers on the
// first attempt against the fixed probe model.
func TestProbe_HealthyFirstTry(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var gotModel atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req structuredRequest
		if err := decodeJSONBody(r, &req); err != nil {
			t.Errorf("decoding probe request: %v", err)
		}
		gotModel.Store(req.Model)
		if req.Stream {
			t.Error("Probe must not ask for a streaming response")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, structuredOneShotBody("pong"))
	}))
	defer server.Close()

	g := newTestGateway(t, server.URL, nil)

	if !g.Probe(context.Background()) {
		t.Fatal("Expected Probe to return true")
	}
	if hits.Load() != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", hits.Load())
	}
	if got, _ := gotModel.Load().(string); got != "gpt-5" {
		t.Errorf("Expected the fixed probe model gpt-5, got %q", got)
	}
}

// TestProbe_PermanentFailureNoRetry verifies request-shaped failures stop
// the probe after one attempt.
func TestProbe_PermanentFailureNoRetry(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"model not found", http.StatusNotFound, `{"error":{"message":"model not available"}}`},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"malformed input"}}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				http.Error(w, tc.body, tc.status)
			}))
			defer server.Close()

			g := newTestGateway(t, server.URL, nil)

			start := time.Now()
			if g.Probe(context.Background()) {
				t.Fatal("Expected Probe to return false")
			}
			if hits.Load() != 1 {
				t.Errorf("Expected exactly 1 attempt for a permanent failure, got %d", hits.Load())
			}
			if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
				t.Errorf("Permanent failure should not back off, took %v", elapsed)
			}
		})
	}
}

// TestProbe_TransientThenHealthy verifies the retry budget: transient
// failures back off 0.5s then 1s before the third attempt succeeds.
func TestProbe_TransientThenHealthy(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, `{"error":{"message":"service unavailable"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, structuredOneShotBody("pong"))
	}))
	defer server.Close()

	g := newTestGateway(t, server.URL, nil)

	start := time.Now()
	if !g.Probe(context.Background()) {
		t.Fatal("Expected Probe to recover on the third attempt")
	}
	elapsed := time.Since(start)
	if hits.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", hits.Load())
	}
	if elapsed < 1400*time.Millisecond {
		t.Errorf("Expected roughly 1.5s of backoff, got %v", elapsed)
	}
}

// TestProbe_TransientExhaustion verifies the probe gives up after three
// transient failures.
func TestProbe_TransientExhaustion(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":{"message":"too many requests"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	g := newTestGateway(t, server.URL, nil)

	if g.Probe(context.Background()) {
		t.Fatal("Expected Probe to return false after exhausting retries")
	}
	if hits.Load() != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", hits.Load())
	}
}

// TestProbe_ContextCancellation verifies cancellation ends the probe
// during backoff instead of sleeping through it.
func TestProbe_ContextCancellation(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":{"message":"unavailable"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	g := newTestGateway(t, server.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	if g.Probe(ctx) {
		t.Fatal("Expected Probe to return false")
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("Expected cancellation to cut the backoff short, took %v", elapsed)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", hits.Load())
	}
}
