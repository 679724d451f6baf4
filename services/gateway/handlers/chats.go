// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the chat CRUD handlers. The streaming message endpoint
// lives in chat_streaming.go.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/ezazahamad2003/founder-llm/services/gateway/datatypes"
	"github.com/ezazahamad2003/founder-llm/services/gateway/store"
)

// blobDeleteConcurrency bounds parallel blob deletions during a chat cascade.
const blobDeleteConcurrency = 4

// CreateChat creates a new conversation container.
//
// # Description
//
// Handles POST /v1/chats. The chat ID and timestamps are generated
// server-side; the client supplies the owning user and an optional title.
//
// # Outputs
//
//   - 200 OK: the created chat record
//   - 400 Bad Request: invalid body or validation failure
//   - 500 Internal Server Error: store failure
func CreateChat(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ChatCreateRequest
		if err := c.BindJSON(&req); err != nil {
			slog.Error("Failed to parse chat create request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Error("Chat create validation failed", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
			return
		}

		slog.Info("Creating new chat", "userId", req.UserID)
		chat, err := st.CreateChat(c.Request.Context(), req.UserID, req.Title)
		if err != nil {
			slog.Error("Failed to create chat", "error", err, "userId", req.UserID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
			return
		}

		slog.Info("Chat created", "chatId", chat.ID, "userId", req.UserID)
		c.JSON(http.StatusOK, chat)
	}
}

// GetChat fetches a single chat record.
//
// # Outputs
//
//   - 200 OK: the chat record
//   - 404 Not Found: no chat with that ID
//   - 500 Internal Server Error: store failure
func GetChat(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID := c.Param("chatId")

		chat, err := st.GetChat(c.Request.Context(), chatID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
				return
			}
			slog.Error("Failed to load chat", "error", err, "chatId", chatID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
			return
		}
		c.JSON(http.StatusOK, chat)
	}
}

// GetChatMessages lists a chat's messages in chronological order.
//
// # Description
//
// Handles GET /v1/chats/:chatId/messages?limit=100. The limit selects the
// most recent messages; the response is still oldest-first.
//
// # Outputs
//
//   - 200 OK: {"messages": [...]}
//   - 400 Bad Request: non-numeric limit
//   - 500 Internal Server Error: store failure
func GetChatMessages(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID := c.Param("chatId")

		limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}

		messages, err := st.GetChatMessages(c.Request.Context(), chatID, limit)
		if err != nil {
			slog.Error("Failed to list messages", "error", err, "chatId", chatID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
			return
		}
		if messages == nil {
			messages = []datatypes.ChatMessage{}
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages})
	}
}

// DeleteChat permanently deletes a chat and all associated data.
//
// # Description
//
// Handles DELETE /v1/chats/:chatId. Requires the X-User-Id header and
// ownership of the chat. The cascade removes, in order: messages, file
// chunks, blob objects (best-effort, in parallel), file records, and
// finally the chat itself. Blob deletion failures are logged and skipped;
// orphaned objects cost storage, not correctness.
//
// # Inputs
//
//   - blobs: Blob client for object cleanup. May be nil, in which case
//     blob objects are left behind.
//
// # Outputs
//
//   - 200 OK: {"status": "deleted", "chat_id": ...}
//   - 400 Bad Request: missing X-User-Id header
//   - 403 Forbidden: caller does not own the chat
//   - 404 Not Found: no chat with that ID
//   - 500 Internal Server Error: store failure mid-cascade
func DeleteChat(st *store.Store, blobs BlobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		chatID := c.Param("chatId")

		userID := c.GetHeader("X-User-Id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-User-Id header"})
			return
		}

		// Verify chat exists and ownership
		chat, err := st.GetChat(ctx, chatID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
				return
			}
			slog.Error("Failed to load chat for deletion", "error", err, "chatId", chatID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
			return
		}
		if chat.UserID != userID {
			slog.Warn("Chat delete denied: ownership mismatch", "chatId", chatID, "userId", userID)
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized to delete this chat"})
			return
		}

		slog.Info("Deleting chat", "chatId", chatID, "userId", userID)

		if err := st.DeleteMessagesByChat(ctx, chatID); err != nil {
			slog.Error("Failed to delete chat messages", "error", err, "chatId", chatID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat data"})
			return
		}

		files, err := st.GetFilesByChat(ctx, chatID)
		if err != nil {
			slog.Error("Failed to list chat files", "error", err, "chatId", chatID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat data"})
			return
		}

		fileIDs := make([]string, 0, len(files))
		for _, f := range files {
			fileIDs = append(fileIDs, f.ID)
		}

		if err := st.DeleteChunksByFileIDs(ctx, fileIDs); err != nil {
			slog.Error("Failed to delete file chunks", "error", err, "chatId", chatID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat data"})
			return
		}

		deleteChatBlobs(c, blobs, files)

		if err := st.DeleteFiles(ctx, fileIDs); err != nil {
			slog.Error("Failed to delete file records", "error", err, "chatId", chatID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat data"})
			return
		}

		if err := st.DeleteChat(ctx, chatID); err != nil {
			slog.Error("Failed to delete chat record", "error", err, "chatId", chatID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat"})
			return
		}

		slog.Info("Chat deleted", "chatId", chatID, "files", len(files))
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "chat_id": chatID})
	}
}

// deleteChatBlobs removes the chat's blob objects in parallel, best-effort.
func deleteChatBlobs(c *gin.Context, blobs BlobStore, files []datatypes.File) {
	if blobs == nil || len(files) == 0 {
		return
	}

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.SetLimit(blobDeleteConcurrency)
	for _, f := range files {
		if f.FilePath == "" {
			continue
		}
		path := f.FilePath
		g.Go(func() error {
			if err := blobs.Delete(ctx, path); err != nil {
				slog.Warn("Failed to delete blob object", "path", path, "error", err)
			}
			return nil
		})
	}
	// Workers never return errors; Wait only joins them.
	_ = g.Wait()
}
