// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the founder gateway.
//
// Description:
//
//	Provides standard counters, histograms, and gauges for HTTP requests,
//	upstream health probes, and file ingestion. All metrics use the
//	"gateway_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks currently active HTTP requests.
	HTTPActiveRequests metric.Int64UpDownCounter

	// --- Probe Metrics ---

	// ProbeChecksTotal counts upstream health probe runs by outcome.
	ProbeChecksTotal metric.Int64Counter

	// ProbeCheckDuration records probe duration in seconds.
	ProbeCheckDuration metric.Float64Histogram

	// --- Ingest Metrics ---

	// IngestJobsTotal counts file ingestion jobs by status.
	IngestJobsTotal metric.Int64Counter

	// IngestDuration records file ingestion duration in seconds.
	IngestDuration metric.Float64Histogram

	// FileChunksTotal counts chunks written during ingestion.
	FileChunksTotal metric.Int64Counter

	// --- Store Metrics ---

	// StoreSizeBytes tracks the on-disk size of the chat store.
	StoreSizeBytes metric.Int64ObservableGauge

	// --- Error Metrics ---

	// ErrorsTotal counts total errors by type and component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
//
// Description:
//
//	Registers all pre-defined metrics with the provided meter.
//	Returns an error if any metric registration fails.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all counters and histograms initialized.
//	error - Non-nil if metric registration fails.
//
// Example:
//
//	meter := otel.Meter("gateway")
//	metrics, err := telemetry.NewMetrics(meter)
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
//	metrics.HTTPRequestsTotal.Add(ctx, 1, ...)
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// --- HTTP Metrics ---
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"gateway_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"gateway_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"gateway_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	// --- Probe Metrics ---
	m.ProbeChecksTotal, err = meter.Int64Counter(
		"gateway_probe_checks_total",
		metric.WithDescription("Total upstream health probe runs"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create probe_checks_total: %w", err)
	}

	m.ProbeCheckDuration, err = meter.Float64Histogram(
		"gateway_probe_check_duration_seconds",
		metric.WithDescription("Upstream health probe duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("create probe_check_duration: %w", err)
	}

	// --- Ingest Metrics ---
	m.IngestJobsTotal, err = meter.Int64Counter(
		"gateway_ingest_jobs_total",
		metric.WithDescription("Total file ingestion jobs"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ingest_jobs_total: %w", err)
	}

	m.IngestDuration, err = meter.Float64Histogram(
		"gateway_ingest_duration_seconds",
		metric.WithDescription("File ingestion duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, fmt.Errorf("create ingest_duration: %w", err)
	}

	m.FileChunksTotal, err = meter.Int64Counter(
		"gateway_file_chunks_total",
		metric.WithDescription("Total chunks written during ingestion"),
		metric.WithUnit("{chunk}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create file_chunks_total: %w", err)
	}

	// Note: StoreSizeBytes requires a callback registration, handled separately

	// --- Error Metrics ---
	m.ErrorsTotal, err = meter.Int64Counter(
		"gateway_errors_total",
		metric.WithDescription("Total errors by type and component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}

// RegisterStoreSize registers a callback for the store size gauge.
//
// Description:
//
//	Sets up an observable gauge that reports the on-disk size of the chat
//	store. The callback is invoked each time metrics are scraped.
//
// Inputs:
//
//	meter - The OTel meter to use for registration.
//	sizeFunc - A function that returns the current store size in bytes.
//
// Outputs:
//
//	metric.Registration - Registration handle for cleanup.
//	error - Non-nil if registration fails.
func (m *Metrics) RegisterStoreSize(meter metric.Meter, sizeFunc func() int64) (metric.Registration, error) {
	var err error
	m.StoreSizeBytes, err = meter.Int64ObservableGauge(
		"gateway_store_size_bytes",
		metric.WithDescription("On-disk size of the chat store"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create store_size_bytes: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.StoreSizeBytes, sizeFunc())
		return nil
	}, m.StoreSizeBytes)
}
