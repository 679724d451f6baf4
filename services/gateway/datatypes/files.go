// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains request, response, and record types for file upload
// signing and document ingestion. For chat types, see chat.go.
package datatypes

import (
	"time"
)

// =============================================================================
// File Status Constants
// =============================================================================

// File processing statuses. A file starts as pending when its record is
// created at sign time, moves to processing when ingestion picks it up, and
// ends as completed or failed.
const (
	FileStatusPending    = "pending"
	FileStatusProcessing = "processing"
	FileStatusCompleted  = "completed"
	FileStatusFailed     = "failed"
)

// =============================================================================
// File Upload Signing Types
// =============================================================================

// FileSignRequest represents the body for requesting a signed upload URL.
//
// # Description
//
// FileSignRequest is sent before a client uploads a document. The gateway
// creates a pending file record and returns a signed PUT URL so the client
// uploads directly to blob storage without proxying bytes through the API.
// Used for the POST /v1/files/sign endpoint.
//
// # Fields
//
//   - Filename: Required. Original filename, kept for display and context
//     citations.
//   - ContentType: Required. MIME type the client will upload with.
//   - UserID: Required. Owner of the file.
//   - ChatID: Optional. Links the file to a chat so it can be cleaned up
//     when the chat is deleted.
//
// # Validation
//
// Uses go-playground/validator:
//   - Filename: required, max 256 characters
//   - ContentType: required, max 128 characters
//   - UserID: required, max 128 characters, no ":" (store key separator)
//   - ChatID: must be a valid UUID v4 when present
type FileSignRequest struct {
	Filename    string `json:"filename" validate:"required,max=256"`
	ContentType string `json:"content_type" validate:"required,max=128"`
	UserID      string `json:"user_id" validate:"required,max=128,excludesall=:"`
	ChatID      string `json:"chat_id" validate:"omitempty,uuid4"`
}

// Validate validates the FileSignRequest fields.
func (r *FileSignRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// FileSignResponse represents the response to a signed upload request.
//
// # Fields
//
//   - UploadURL: Signed URL the client PUTs the file bytes to.
//   - FilePath: Object path within the bucket, stored on the file record.
//   - FileID: Identifier of the created file record.
//   - Token: Optional bearer token for blob backends that require one on
//     upload. Empty for GCS V4 signed URLs.
type FileSignResponse struct {
	UploadURL string `json:"upload_url"`
	FilePath  string `json:"file_path"`
	FileID    string `json:"file_id"`
	Token     string `json:"token,omitempty"`
}

// =============================================================================
// File Ingestion Types
// =============================================================================

// FileIngestRequest represents the body for triggering document ingestion.
//
// # Description
//
// FileIngestRequest is sent after the client finishes uploading to the
// signed URL. The gateway downloads the blob, splits it into chunks, and
// stores them for context assembly. Used for the POST /v1/files/ingest
// endpoint.
//
// # Validation
//
// Uses go-playground/validator:
//   - FileID: required, must be a valid UUID v4
//   - UserID: required, max 128 characters, no ":" (store key separator)
//   - ChatID: must be a valid UUID v4 when present
type FileIngestRequest struct {
	FileID string `json:"file_id" validate:"required,uuid4"`
	UserID string `json:"user_id" validate:"required,max=128,excludesall=:"`
	ChatID string `json:"chat_id" validate:"omitempty,uuid4"`
}

// Validate validates the FileIngestRequest fields.
func (r *FileIngestRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// FileIngestResponse represents the result of a document ingestion run.
//
// # Fields
//
//   - FileID: Identifier of the ingested file.
//   - Status: Final file status ("completed" or "failed").
//   - ChunksCreated: Number of context chunks written to the store.
//   - Message: Human-readable outcome description.
type FileIngestResponse struct {
	FileID        string `json:"file_id"`
	Status        string `json:"status"`
	ChunksCreated int    `json:"chunks_created"`
	Message       string `json:"message"`
}

// =============================================================================
// File Record Types
// =============================================================================

// File represents a stored file record.
//
// # Description
//
// File tracks an uploaded document through its lifecycle: created as
// pending at sign time, updated through processing to completed or failed
// by ingestion. The blob itself lives in object storage at FilePath; only
// metadata and extracted chunks live in the store.
//
// # Fields
//
//   - ID: Unique identifier (UUID v4), generated server-side.
//   - ChatID: Optional parent chat for cleanup on chat deletion.
//   - UserID: Owner of the file.
//   - Filename: Original filename.
//   - FilePath: Object path within the blob bucket.
//   - FileSize: Size in bytes, populated after ingestion downloads the blob.
//   - MimeType: Declared content type from the sign request.
//   - Status: One of the FileStatus constants.
//   - CreatedAt: Unix timestamp in milliseconds (UTC) at sign time.
//   - ProcessedAt: Unix timestamp in milliseconds (UTC) when ingestion
//     finished. Zero until then.
type File struct {
	ID          string `json:"id"`
	ChatID      string `json:"chat_id,omitempty"`
	UserID      string `json:"user_id"`
	Filename    string `json:"filename"`
	FilePath    string `json:"file_path"`
	FileSize    int64  `json:"file_size,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
	ProcessedAt int64  `json:"processed_at,omitempty"`
}

// NewFile creates a pending File record with a generated ID and timestamp.
//
// # Inputs
//
//   - userID: The owning user's identifier
//   - chatID: Optional parent chat (may be empty)
//   - filename: Original filename
//   - filePath: Object path within the blob bucket
//   - mimeType: Declared content type
//
// # Outputs
//
//   - *File: A new file record in "pending" status
func NewFile(userID, chatID, filename, filePath, mimeType string) *File {
	return &File{
		ID:        generateUUID(),
		ChatID:    chatID,
		UserID:    userID,
		Filename:  filename,
		FilePath:  filePath,
		MimeType:  mimeType,
		Status:    FileStatusPending,
		CreatedAt: time.Now().UnixMilli(),
	}
}

// FileChunk represents one extracted text chunk of an ingested file.
//
// # Description
//
// Chunks are produced by the ingestion splitter and read back in index
// order when assembling document context for a chat message.
//
// # Fields
//
//   - ID: Unique identifier (UUID v4).
//   - FileID: Parent file identifier.
//   - Index: Zero-based chunk position within the file.
//   - Content: Extracted text.
//   - CreatedAt: Unix timestamp in milliseconds (UTC).
type FileChunk struct {
	ID        string `json:"id"`
	FileID    string `json:"file_id"`
	Index     int    `json:"chunk_index"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// NewFileChunk creates a FileChunk with a generated ID and timestamp.
func NewFileChunk(fileID string, index int, content string) *FileChunk {
	return &FileChunk{
		ID:        generateUUID(),
		FileID:    fileID,
		Index:     index,
		Content:   content,
		CreatedAt: time.Now().UnixMilli(),
	}
}
