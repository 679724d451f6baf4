// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the gateway service.
//
// This file contains chat and message types for the conversation endpoints.
// For file upload and ingestion types, see files.go. For admin types, see
// admin.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants for Input Bounds
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message content.
	// Checked in bytes, not runes, so oversized payloads are rejected before
	// they reach the store or the LLM.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxFilesPerMessage is the maximum number of file references a single
	// chat message may carry as document context.
	MaxFilesPerMessage = 10

	// MaxTitleLength is the maximum length of a chat title in characters.
	MaxTitleLength = 512
)

// Message roles stored with each chat message and forwarded to the LLM.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// gatewayValidate is the validator instance for gateway datatypes.
// Initialized in init() with custom validators.
var gatewayValidate *validator.Validate

func init() {
	gatewayValidate = validator.New()

	// Register custom validator for message content size
	_ = gatewayValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes validates that a string field does not exceed MaxMessageContentBytes.
//
// # Description
//
// Custom validator to enforce message size limits. Checks byte length
// (not rune count) to prevent memory exhaustion with large payloads.
//
// # Inputs
//
//   - fl: Validator field level containing the string to validate
//
// # Outputs
//
//   - bool: true if content <= 32KB, false otherwise
func validateMaxBytes(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	return len(content) <= MaxMessageContentBytes
}

// generateUUID returns a new random UUID string for record identifiers.
func generateUUID() string {
	return uuid.New().String()
}

// =============================================================================
// Chat Request Types
// =============================================================================

// ChatCreateRequest represents the body for creating a new chat.
//
// # Description
//
// ChatCreateRequest carries the owning user and an optional human-readable
// title. This is used for the POST /v1/chats endpoint. The chat ID and
// timestamps are generated server-side.
//
// # Fields
//
//   - UserID: Required. Identifier of the user who owns the chat.
//   - Title: Optional. Display title, defaults to empty (clients typically
//     set it from the first message).
//
// # Validation
//
// Uses go-playground/validator:
//   - UserID: required, max 128 characters, no ":" (store key separator)
//   - Title: max 512 characters
type ChatCreateRequest struct {
	UserID string `json:"user_id" validate:"required,max=128,excludesall=:"`
	Title  string `json:"title" validate:"omitempty,max=512"`
}

// Validate validates the ChatCreateRequest fields.
func (r *ChatCreateRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// ChatMessageRequest represents the body of a streaming chat message.
//
// # Description
//
// ChatMessageRequest contains the user's message plus optional document
// references and model override. This is used for the
// POST /v1/chats/:chatId/message endpoint, which always responds with a
// Server-Sent Events stream.
//
// # Fields
//
//   - Message: Required. The user's message text. Limited to 32KB.
//   - UserID: Required. Identifier of the sending user.
//   - FileIDs: Optional. Up to 10 ingested file IDs whose chunks are
//     injected into the system prompt as document context.
//   - Model: Optional. Requested model ID. Empty selects the configured
//     default; unknown IDs still enter the fallback chain.
//   - Stream: Accepted for wire compatibility. The endpoint always streams.
//
// # Validation
//
// Uses go-playground/validator:
//   - Message: required, max 32768 bytes (32KB)
//   - UserID: required, max 128 characters, no ":" (store key separator)
//   - FileIDs: 0-10 elements, each non-empty
//   - Model: max 128 characters
//
// # Examples
//
//	req := ChatMessageRequest{
//	    Message: "How do I incorporate in Delaware?",
//	    UserID:  "user-42",
//	    FileIDs: []string{"550e8400-e29b-41d4-a716-446655440000"},
//	}
type ChatMessageRequest struct {
	Message string   `json:"message" validate:"required,maxbytes"`
	UserID  string   `json:"user_id" validate:"required,max=128,excludesall=:"`
	FileIDs []string `json:"file_ids" validate:"omitempty,max=10,dive,required"`
	Model   string   `json:"model" validate:"omitempty,max=128"`
	Stream  bool     `json:"stream"`
}

// Validate validates the ChatMessageRequest fields.
//
// # Outputs
//
//   - error: Non-nil if validation failed, with details about which field
func (r *ChatMessageRequest) Validate() error {
	return gatewayValidate.Struct(r)
}

// =============================================================================
// Chat Record Types
// =============================================================================

// Chat represents a stored conversation container.
//
// # Description
//
// Chat is the persisted record for a conversation. It is returned by the
// chat CRUD endpoints and listed under a user's chats. Messages are stored
// separately (see ChatMessage) and keyed by the chat ID.
//
// # Fields
//
//   - ID: Unique identifier (UUID v4), generated server-side.
//   - UserID: Owner of the chat.
//   - Title: Optional display title.
//   - CreatedAt: Unix timestamp in milliseconds (UTC) at creation.
//   - UpdatedAt: Unix timestamp in milliseconds (UTC), bumped on new messages.
type Chat struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// NewChat creates a Chat with a generated ID and current timestamps.
//
// # Inputs
//
//   - userID: The owning user's identifier
//   - title: Optional display title (may be empty)
//
// # Outputs
//
//   - *Chat: A new chat record ready for storage
func NewChat(userID, title string) *Chat {
	now := time.Now().UnixMilli()
	return &Chat{
		ID:        generateUUID(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ChatMessage represents a single stored message within a chat.
//
// # Description
//
// ChatMessage is the persisted record for one turn of a conversation. The
// Seq field provides a monotonically increasing per-chat ordering used as
// the storage sort key, so history reads do not depend on timestamp
// resolution.
//
// # Fields
//
//   - ID: Unique identifier (UUID v4), generated server-side.
//   - ChatID: Parent chat identifier.
//   - Seq: Per-chat sequence number, assigned by the store on write.
//   - Role: One of "user", "assistant", "system".
//   - Content: Message text.
//   - CreatedAt: Unix timestamp in milliseconds (UTC).
//   - Metadata: Optional free-form annotations (model served, source files).
type ChatMessage struct {
	ID        string                 `json:"id"`
	ChatID    string                 `json:"chat_id"`
	Seq       uint64                 `json:"seq"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	CreatedAt int64                  `json:"created_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewChatMessage creates a ChatMessage with a generated ID and timestamp.
// The Seq field is left zero; the store assigns it on write.
//
// # Inputs
//
//   - chatID: Parent chat identifier
//   - role: Message role ("user", "assistant", "system")
//   - content: Message text
//
// # Outputs
//
//   - *ChatMessage: A new message record ready for storage
func NewChatMessage(chatID, role, content string) *ChatMessage {
	return &ChatMessage{
		ID:        generateUUID(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UnixMilli(),
	}
}
