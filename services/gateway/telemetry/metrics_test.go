// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestNewMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	meter := otel.Meter("test_metrics")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	// Verify all metrics are created
	if metrics.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal is nil")
	}
	if metrics.HTTPRequestDuration == nil {
		t.Error("HTTPRequestDuration is nil")
	}
	if metrics.HTTPActiveRequests == nil {
		t.Error("HTTPActiveRequests is nil")
	}
	if metrics.ProbeChecksTotal == nil {
		t.Error("ProbeChecksTotal is nil")
	}
	if metrics.ProbeCheckDuration == nil {
		t.Error("ProbeCheckDuration is nil")
	}
	if metrics.IngestJobsTotal == nil {
		t.Error("IngestJobsTotal is nil")
	}
	if metrics.IngestDuration == nil {
		t.Error("IngestDuration is nil")
	}
	if metrics.FileChunksTotal == nil {
		t.Error("FileChunksTotal is nil")
	}
	if metrics.ErrorsTotal == nil {
		t.Error("ErrorsTotal is nil")
	}
}

func TestMetrics_RecordHTTPMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	meter := otel.Meter("test_http_metrics")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("method", "POST"),
		attribute.String("path", "/v1/chats/:chatId/message"),
		attribute.Int("status", 200),
	)

	// Should not panic
	metrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
	metrics.HTTPRequestDuration.Record(ctx, 0.123, attrs)
	metrics.HTTPActiveRequests.Add(ctx, 1)
	metrics.HTTPActiveRequests.Add(ctx, -1)
}

func TestMetrics_RecordProbeMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	meter := otel.Meter("test_probe_metrics")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()

	metrics.ProbeChecksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", "healthy"),
	))
	metrics.ProbeCheckDuration.Record(ctx, 0.45, metric.WithAttributes(
		attribute.String("outcome", "healthy"),
	))
}

func TestMetrics_RecordIngestMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	meter := otel.Meter("test_ingest_metrics")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()

	metrics.IngestJobsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", "completed"),
	))
	metrics.IngestDuration.Record(ctx, 2.5, metric.WithAttributes(
		attribute.String("status", "completed"),
	))
	metrics.FileChunksTotal.Add(ctx, 12)
}

func TestMetrics_RegisterStoreSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	meter := otel.Meter("test_store_size")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	currentSize := int64(4096)
	reg, err := metrics.RegisterStoreSize(meter, func() int64 {
		return currentSize
	})
	if err != nil {
		t.Fatalf("RegisterStoreSize() error = %v", err)
	}
	defer reg.Unregister()

	// Verify gauge was created
	if metrics.StoreSizeBytes == nil {
		t.Error("StoreSizeBytes is nil after registration")
	}
}

func TestMetrics_RecordErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	meter := otel.Meter("test_errors")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()

	metrics.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", "store"),
		attribute.String("component", "chats"),
	))
}
