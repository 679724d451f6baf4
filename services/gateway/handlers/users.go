// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the per-user listing handlers.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ezazahamad2003/founder-llm/services/gateway/datatypes"
	"github.com/ezazahamad2003/founder-llm/services/gateway/store"
)

// GetUserChats lists a user's chats, most recently active first.
//
// # Description
//
// Handles GET /v1/users/:userId/chats?limit=50.
//
// # Outputs
//
//   - 200 OK: {"chats": [...]}
//   - 400 Bad Request: non-numeric limit
//   - 500 Internal Server Error: store failure
func GetUserChats(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")

		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}

		chats, err := st.GetUserChats(c.Request.Context(), userID, limit)
		if err != nil {
			slog.Error("Failed to list user chats", "error", err, "userId", userID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list chats"})
			return
		}
		if chats == nil {
			chats = []datatypes.Chat{}
		}
		c.JSON(http.StatusOK, gin.H{"chats": chats})
	}
}

// GetUserFiles lists a user's files, newest first, optionally scoped to a chat.
//
// # Description
//
// Handles GET /v1/users/:userId/files?limit=50&chat_id=....
//
// # Outputs
//
//   - 200 OK: {"files": [...]}
//   - 400 Bad Request: non-numeric limit
//   - 500 Internal Server Error: store failure
func GetUserFiles(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		chatID := c.Query("chat_id")

		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}

		files, err := st.GetUserFiles(c.Request.Context(), userID, limit, chatID)
		if err != nil {
			slog.Error("Failed to list user files", "error", err, "userId", userID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
			return
		}
		if files == nil {
			files = []datatypes.File{}
		}
		c.JSON(http.StatusOK, gin.H{"files": files})
	}
}
