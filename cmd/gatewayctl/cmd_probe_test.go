// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeOnce_HealthyUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/responses", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"resp","status":"completed","output":[{"type":"message","content":[{"type":"output_text","text":"pong"}]}]}`))
	}))
	defer server.Close()

	cfg := Config{
		OpenAIAPIKey:  "test-key",
		OpenAIBaseURL: server.URL,
		ProbeModel:    "gpt-5",
	}

	result, err := probeOnce(cfg, 10*time.Second)

	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.Equal(t, "gpt-5", result.Model)
}

func TestProbeOnce_UnhealthyUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "unknown model"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	cfg := Config{
		OpenAIAPIKey:  "test-key",
		OpenAIBaseURL: server.URL,
	}

	result, err := probeOnce(cfg, 10*time.Second)

	require.NoError(t, err)
	assert.False(t, result.Healthy)
}

func TestProbeOnce_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := probeOnce(Config{}, time.Second)

	assert.Error(t, err)
}
