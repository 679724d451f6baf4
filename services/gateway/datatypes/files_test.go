// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"
	"time"
)

// =============================================================================
// FileSignRequest Validation Tests
// =============================================================================

func TestFileSignRequest_Validate_Success(t *testing.T) {
	req := &FileSignRequest{
		Filename:    "pitch-deck.txt",
		ContentType: "text/plain",
		UserID:      "user-42",
	}

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestFileSignRequest_Validate_WithChatID(t *testing.T) {
	req := &FileSignRequest{
		Filename:    "pitch-deck.txt",
		ContentType: "text/plain",
		UserID:      "user-42",
		ChatID:      "550e8400-e29b-41d4-a716-446655440000",
	}

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request with chat_id, got error: %v", err)
	}
}

func TestFileSignRequest_Validate_MissingFilename(t *testing.T) {
	req := &FileSignRequest{
		ContentType: "text/plain",
		UserID:      "user-42",
	}

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing filename, got nil")
	}
}

func TestFileSignRequest_Validate_MissingContentType(t *testing.T) {
	req := &FileSignRequest{
		Filename: "pitch-deck.txt",
		UserID:   "user-42",
	}

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing content_type, got nil")
	}
}

func TestFileSignRequest_Validate_MissingUserID(t *testing.T) {
	req := &FileSignRequest{
		Filename:    "pitch-deck.txt",
		ContentType: "text/plain",
	}

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing user_id, got nil")
	}
}

func TestFileSignRequest_Validate_InvalidChatID(t *testing.T) {
	req := &FileSignRequest{
		Filename:    "pitch-deck.txt",
		ContentType: "text/plain",
		UserID:      "user-42",
		ChatID:      "not-a-uuid",
	}

	if err := req.Validate(); err == nil {
		t.Error("expected error for invalid chat_id, got nil")
	}
}

// =============================================================================
// FileIngestRequest Validation Tests
// =============================================================================

func TestFileIngestRequest_Validate_Success(t *testing.T) {
	req := &FileIngestRequest{
		FileID: "550e8400-e29b-41d4-a716-446655440000",
		UserID: "user-42",
	}

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestFileIngestRequest_Validate_MissingFileID(t *testing.T) {
	req := &FileIngestRequest{
		UserID: "user-42",
	}

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing file_id, got nil")
	}
}

func TestFileIngestRequest_Validate_InvalidFileID(t *testing.T) {
	req := &FileIngestRequest{
		FileID: "not-a-uuid",
		UserID: "user-42",
	}

	if err := req.Validate(); err == nil {
		t.Error("expected error for invalid file_id, got nil")
	}
}

func TestFileIngestRequest_Validate_MissingUserID(t *testing.T) {
	req := &FileIngestRequest{
		FileID: "550e8400-e29b-41d4-a716-446655440000",
	}

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing user_id, got nil")
	}
}

// =============================================================================
// NewFile Tests
// =============================================================================

func TestNewFile_StartsPending(t *testing.T) {
	file := NewFile("user-42", "", "notes.txt", "uploads/user-42/notes.txt", "text/plain")

	if file.Status != FileStatusPending {
		t.Errorf("expected new file status to be %s, got %s", FileStatusPending, file.Status)
	}
}

func TestNewFile_SetsFields(t *testing.T) {
	file := NewFile("user-42", "chat-1", "notes.txt", "uploads/user-42/notes.txt", "text/plain")

	if file.ID == "" {
		t.Error("expected NewFile to generate ID, got empty string")
	}
	if file.UserID != "user-42" {
		t.Errorf("expected UserID to be user-42, got %s", file.UserID)
	}
	if file.ChatID != "chat-1" {
		t.Errorf("expected ChatID to be chat-1, got %s", file.ChatID)
	}
	if file.Filename != "notes.txt" {
		t.Errorf("expected Filename to be notes.txt, got %s", file.Filename)
	}
	if file.FilePath != "uploads/user-42/notes.txt" {
		t.Errorf("expected FilePath to be uploads/user-42/notes.txt, got %s", file.FilePath)
	}
	if file.MimeType != "text/plain" {
		t.Errorf("expected MimeType to be text/plain, got %s", file.MimeType)
	}
}

func TestNewFile_ProcessedAtZeroUntilIngested(t *testing.T) {
	file := NewFile("user-42", "", "notes.txt", "uploads/user-42/notes.txt", "text/plain")

	if file.ProcessedAt != 0 {
		t.Errorf("expected ProcessedAt to be 0 before ingestion, got %d", file.ProcessedAt)
	}
}

func TestNewFile_SetsTimestamp(t *testing.T) {
	before := time.Now().UnixMilli()
	file := NewFile("user-42", "", "notes.txt", "uploads/user-42/notes.txt", "text/plain")
	after := time.Now().UnixMilli()

	if file.CreatedAt < before || file.CreatedAt > after {
		t.Errorf("expected created_at between %d and %d, got %d",
			before, after, file.CreatedAt)
	}
}

// =============================================================================
// NewFileChunk Tests
// =============================================================================

func TestNewFileChunk_SetsFields(t *testing.T) {
	chunk := NewFileChunk("file-1", 3, "chunk text")

	if chunk.ID == "" {
		t.Error("expected NewFileChunk to generate ID, got empty string")
	}
	if chunk.FileID != "file-1" {
		t.Errorf("expected FileID to be file-1, got %s", chunk.FileID)
	}
	if chunk.Index != 3 {
		t.Errorf("expected Index to be 3, got %d", chunk.Index)
	}
	if chunk.Content != "chunk text" {
		t.Errorf("expected Content to be 'chunk text', got %q", chunk.Content)
	}
}

// =============================================================================
// Status Constants Tests
// =============================================================================

func TestFileStatusConstants(t *testing.T) {
	statuses := map[string]string{
		FileStatusPending:    "pending",
		FileStatusProcessing: "processing",
		FileStatusCompleted:  "completed",
		FileStatusFailed:     "failed",
	}

	for got, want := range statuses {
		if got != want {
			t.Errorf("expected status constant %q, got %q", want, got)
		}
	}
}
