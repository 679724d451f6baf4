// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// ============================================================================
// NewClient Tests
// ============================================================================

func TestNewClient_NonExistentSAKeyPath(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, "test-bucket", "/nonexistent/path/to/key.json")
	if err == nil {
		t.Fatal("NewClient with non-existent SA key should return error")
	}
	if !strings.Contains(err.Error(), "service account key not found") {
		t.Errorf("Error should mention SA key not found, got: %v", err)
	}
	if !strings.Contains(err.Error(), "/nonexistent/path/to/key.json") {
		t.Errorf("Error should contain the path, got: %v", err)
	}
}

func TestNewClient_EmptyPath(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, "test-bucket", "")
	if err == nil {
		t.Fatal("NewClient with empty SA key path should return error")
	}
}

func TestNewClient_InvalidCredentialsFile(t *testing.T) {
	ctx := context.Background()

	tmpDir := t.TempDir()
	invalidKeyPath := filepath.Join(tmpDir, "invalid_key.json")
	if err := os.WriteFile(invalidKeyPath, []byte("not valid json"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	_, err := NewClient(ctx, "test-bucket", invalidKeyPath)
	if err == nil {
		t.Fatal("NewClient with invalid credentials file should return error")
	}
	if !strings.Contains(err.Error(), "failed to create GCS storage client") {
		t.Errorf("Error should mention failed to create client, got: %v", err)
	}
}

// ============================================================================
// ObjectPath Tests
// ============================================================================

func TestObjectPath_Shape(t *testing.T) {
	path := ObjectPath("user-1", "pitch_deck.txt")

	pattern := regexp.MustCompile(`^user-1/\d{8}_\d{6}_[0-9a-f]{8}_pitch_deck\.txt$`)
	if !pattern.MatchString(path) {
		t.Errorf("ObjectPath = %q, want match for %v", path, pattern)
	}
}

func TestObjectPath_Unique(t *testing.T) {
	a := ObjectPath("user-1", "notes.txt")
	b := ObjectPath("user-1", "notes.txt")
	if a == b {
		t.Errorf("ObjectPath should produce unique paths, got %q twice", a)
	}
}

func TestObjectPath_StripsDirectories(t *testing.T) {
	path := ObjectPath("user-1", "../../etc/secrets.txt")
	if strings.Contains(path, "..") {
		t.Errorf("ObjectPath should strip path traversal, got %q", path)
	}
	if !strings.HasSuffix(path, "_secrets.txt") {
		t.Errorf("ObjectPath should keep the base name, got %q", path)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"plain", "report.txt", "report.txt"},
		{"spaces kept", "term sheet.txt", "term sheet.txt"},
		{"unsafe replaced", "cap!table@v2.txt", "cap_table_v2.txt"},
		{"path stripped", "/tmp/uploads/deck.md", "deck.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.filename); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

// ============================================================================
// Integration Tests (require real GCS credentials)
// ============================================================================

func TestClient_SignedUploadURL_Integration(t *testing.T) {
	keyPath := os.Getenv("GCS_TEST_SA_KEY_PATH")
	bucketName := os.Getenv("GCS_TEST_BUCKET_NAME")

	if keyPath == "" || bucketName == "" {
		t.Skip("Skipping integration test: GCS_TEST_SA_KEY_PATH and GCS_TEST_BUCKET_NAME not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, bucketName, keyPath)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	url, err := client.SignedUploadURL("test/integration_upload.txt", "text/plain")
	if err != nil {
		t.Fatalf("SignedUploadURL failed: %v", err)
	}
	if !strings.HasPrefix(url, "https://") {
		t.Errorf("Signed URL should be https, got %q", url)
	}
}
