// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the file upload lifecycle handlers: signing upload
// URLs, triggering ingestion, and reading back file metadata and chunks.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ezazahamad2003/founder-llm/services/gateway/blobstore"
	"github.com/ezazahamad2003/founder-llm/services/gateway/datatypes"
	"github.com/ezazahamad2003/founder-llm/services/gateway/ingest"
	"github.com/ezazahamad2003/founder-llm/services/gateway/store"
	"github.com/ezazahamad2003/founder-llm/services/gateway/telemetry"
)

// BlobStore is the object storage surface the handlers need. It is a
// superset of ingest.Downloader so one client serves both signing and
// ingestion. A nil BlobStore means file storage is not configured and the
// file endpoints answer 503.
type BlobStore interface {
	// SignedUploadURL returns a short-lived URL the client PUTs the file to.
	SignedUploadURL(objectPath, contentType string) (string, error)

	// Download fetches an uploaded object's bytes.
	Download(ctx context.Context, objectPath string) ([]byte, error)

	// Delete removes an object. Missing objects are not an error.
	Delete(ctx context.Context, objectPath string) error
}

// SignFileUpload issues a signed upload URL and registers the file record.
//
// # Description
//
// Handles POST /v1/files/sign. The file record is created in pending state
// before the URL is returned, so an ingest request for the ID is valid as
// soon as the client finishes uploading.
//
// # Outputs
//
//   - 200 OK: datatypes.FileSignResponse
//   - 400 Bad Request: invalid body or validation failure
//   - 503 Service Unavailable: no blob storage configured
//   - 500 Internal Server Error: store or signing failure
func SignFileUpload(st *store.Store, blobs BlobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.FileSignRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse file sign request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Error("File sign validation failed", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
			return
		}
		if blobs == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "file storage is not configured"})
			return
		}

		objectPath := blobstore.ObjectPath(req.UserID, req.Filename)
		file := datatypes.NewFile(req.UserID, req.ChatID, req.Filename, objectPath, req.ContentType)

		if err := st.CreateFile(c.Request.Context(), file); err != nil {
			slog.Error("Failed to create file record", "error", err, "userId", req.UserID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create file record"})
			return
		}

		uploadURL, err := blobs.SignedUploadURL(objectPath, req.ContentType)
		if err != nil {
			slog.Error("Failed to sign upload URL", "error", err, "fileId", file.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign upload URL"})
			return
		}

		slog.Info("Upload URL signed", "fileId", file.ID, "userId", req.UserID, "path", objectPath)
		c.JSON(http.StatusOK, datatypes.FileSignResponse{
			UploadURL: uploadURL,
			FilePath:  objectPath,
			FileID:    file.ID,
		})
	}
}

// IngestFile downloads an uploaded file and splits it into context chunks.
//
// # Description
//
// Handles POST /v1/files/ingest. The caller must own the file. Ingestion
// runs synchronously; the response reports how many chunks were created.
//
// # Inputs
//
//   - metrics: optional ingestion counters. May be nil.
//
// # Outputs
//
//   - 200 OK: datatypes.FileIngestResponse
//   - 400 Bad Request: invalid body or validation failure
//   - 403 Forbidden: caller does not own the file
//   - 404 Not Found: no file with that ID
//   - 503 Service Unavailable: no blob storage configured
//   - 500 Internal Server Error: ingestion failure
func IngestFile(st *store.Store, blobs BlobStore, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var req datatypes.FileIngestRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse file ingest request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Error("File ingest validation failed", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
			return
		}
		if blobs == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "file storage is not configured"})
			return
		}

		file, err := st.GetFile(ctx, req.FileID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
				return
			}
			slog.Error("Failed to load file", "error", err, "fileId", req.FileID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load file"})
			return
		}
		if file.UserID != req.UserID {
			slog.Warn("File ingest denied: ownership mismatch", "fileId", req.FileID, "userId", req.UserID)
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized to ingest this file"})
			return
		}

		start := time.Now()
		result, err := ingest.Run(ctx, st, blobs, req.FileID)
		recordIngest(ctx, metrics, time.Since(start), result, err)

		if err != nil {
			slog.Error("File ingestion failed", "error", err, "fileId", req.FileID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		slog.Info("File ingested", "fileId", req.FileID, "chunks", result.ChunksCreated)
		c.JSON(http.StatusOK, result)
	}
}

// recordIngest publishes ingestion outcome metrics. No-op when metrics is nil.
func recordIngest(ctx context.Context, metrics *telemetry.Metrics, elapsed time.Duration, result *datatypes.FileIngestResponse, err error) {
	if metrics == nil {
		return
	}

	status := datatypes.FileStatusCompleted
	if err != nil {
		status = datatypes.FileStatusFailed
	}
	attrs := metric.WithAttributes(attribute.String("status", status))

	metrics.IngestJobsTotal.Add(ctx, 1, attrs)
	metrics.IngestDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err == nil && result != nil {
		metrics.FileChunksTotal.Add(ctx, int64(result.ChunksCreated))
	}
}

// GetFile fetches a single file record.
//
// # Outputs
//
//   - 200 OK: the file record
//   - 404 Not Found: no file with that ID
//   - 500 Internal Server Error: store failure
func GetFile(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileID := c.Param("fileId")

		file, err := st.GetFile(c.Request.Context(), fileID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
				return
			}
			slog.Error("Failed to load file", "error", err, "fileId", fileID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load file"})
			return
		}
		c.JSON(http.StatusOK, file)
	}
}

// GetFileChunks lists a file's context chunks in index order.
//
// # Outputs
//
//   - 200 OK: {"chunks": [...]}; empty list when the file is unknown or
//     has not been ingested
//   - 500 Internal Server Error: store failure
func GetFileChunks(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileID := c.Param("fileId")

		chunks, err := st.GetFileChunks(c.Request.Context(), fileID)
		if err != nil {
			slog.Error("Failed to list file chunks", "error", err, "fileId", fileID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list file chunks"})
			return
		}
		if chunks == nil {
			chunks = []datatypes.FileChunk{}
		}
		c.JSON(http.StatusOK, gin.H{"chunks": chunks})
	}
}
