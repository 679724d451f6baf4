// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command gateway starts the founder-llm gateway HTTP server.
//
// This is the main entry point for the containerized gateway service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - GATEWAY_PORT: HTTP server port (default: 8000)
//   - GATEWAY_DATA_DIR: chat store directory (default: ./data/gateway)
//   - GATEWAY_ENABLE_METRICS: Prometheus /metrics endpoint (default: true)
//   - GATEWAY_DEFAULT_MODEL: model used when requests name none
//   - GATEWAY_FALLBACK_MODELS: comma-separated fallback chain
//   - GATEWAY_PROBE_MODEL: model the connectivity probe targets
//   - OPENAI_API_KEY: upstream provider credential (required)
//   - OPENAI_BASE_URL: upstream API base URL (optional)
//   - GCS_BUCKET: bucket for uploaded documents (optional)
//   - GCS_CREDENTIALS_PATH: service account key file (optional)
//   - ALLOWED_ORIGINS: comma-separated CORS allowlist (default: http://localhost:3000)
//   - ADMIN_TOKEN: key guarding /v1/admin routes (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: localhost:4317)
//
// # Usage
//
//	# Build
//	go build -o gateway ./cmd/gateway
//
//	# Run
//	OPENAI_API_KEY=sk-... ./gateway
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ezazahamad2003/founder-llm/services/gateway"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := gateway.Config{
		Port:           getEnvInt("GATEWAY_PORT", 8000),
		OTelEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		EnableMetrics:  getEnvBool("GATEWAY_ENABLE_METRICS", true),
		DataDir:        getEnvString("GATEWAY_DATA_DIR", "./data/gateway"),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		GCSCredentials: os.Getenv("GCS_CREDENTIALS_PATH"),
		AllowedOrigins: getEnvString("ALLOWED_ORIGINS", "http://localhost:3000"),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		DefaultModel:   os.Getenv("GATEWAY_DEFAULT_MODEL"),
		FallbackModels: getEnvList("GATEWAY_FALLBACK_MODELS"),
		ProbeModel:     os.Getenv("GATEWAY_PROBE_MODEL"),
	}

	slog.Info("Starting gateway",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"gcs_bucket", cfg.GCSBucket,
		"metrics", cfg.EnableMetrics,
	)

	// Create the gateway with default (no-op) extension options.
	// Hosted builds pass custom ServiceOptions here.
	svc, err := gateway.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Gateway error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable into a slice.
// Returns nil when unset so downstream defaults apply.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}
