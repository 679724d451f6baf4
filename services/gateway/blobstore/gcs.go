// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package blobstore holds uploaded documents in a Google Cloud Storage
// bucket. Clients upload directly via signed URLs; the gateway only
// downloads blobs back for ingestion and deletes them on chat cleanup.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

const (
	// uploadURLTTL bounds how long a signed upload URL stays valid.
	uploadURLTTL = time.Hour

	// maxDownloadBytes caps a single blob download during ingestion.
	maxDownloadBytes = 64 << 20
)

// unsafeChars matches filename characters that are replaced before the
// name is embedded in an object path.
var unsafeChars = regexp.MustCompile(`[^\w\s\-.]`)

type Client struct {
	storageClient *storage.Client
	BucketName    string
}

// NewClient opens a storage client authenticated with the service account
// key at saKeyPath, scoped to the named bucket.
func NewClient(ctx context.Context, bucketName, saKeyPath string) (*Client, error) {
	if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", saKeyPath)
	}

	storageClient, err := storage.NewClient(ctx, option.WithCredentialsFile(saKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &Client{
		storageClient: storageClient,
		BucketName:    bucketName,
	}, nil
}

// SignedUploadURL returns a V4 signed URL that lets the holder PUT an
// object at objectPath with the given content type. The URL expires
// after uploadURLTTL.
func (c *Client) SignedUploadURL(objectPath, contentType string) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		Expires:     time.Now().Add(uploadURLTTL),
		ContentType: contentType,
	}

	url, err := c.storageClient.Bucket(c.BucketName).SignedURL(objectPath, opts)
	if err != nil {
		return "", fmt.Errorf("failed to sign upload URL for %s: %w", objectPath, err)
	}
	return url, nil
}

// Download reads the full object at objectPath. Downloads larger than
// maxDownloadBytes are rejected.
func (c *Client) Download(ctx context.Context, objectPath string) ([]byte, error) {
	reader, err := c.storageClient.Bucket(c.BucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("object %s not found in bucket %s: %w", objectPath, c.BucketName, err)
		}
		return nil, fmt.Errorf("failed to open GCS object %s: %w", objectPath, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", objectPath, err)
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("object %s exceeds the %d byte download limit", objectPath, maxDownloadBytes)
	}
	return data, nil
}

// Delete removes the object at objectPath. A missing object is not an
// error so cleanup stays idempotent.
func (c *Client) Delete(ctx context.Context, objectPath string) error {
	err := c.storageClient.Bucket(c.BucketName).Object(objectPath).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %s: %w", objectPath, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.storageClient.Close()
}

// ObjectPath builds a unique storage path for an upload, prefixed by the
// owning user so per-user listing and cleanup stay cheap.
func ObjectPath(userID, filename string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	uniqueID := uuid.New().String()[:8]
	return fmt.Sprintf("%s/%s_%s_%s", userID, timestamp, uniqueID, sanitizeFilename(filename))
}

// sanitizeFilename strips path components and replaces characters that
// are unsafe in an object name.
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	return unsafeChars.ReplaceAllString(filename, "_")
}
