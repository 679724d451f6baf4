// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the admin handlers. Routing guards them with the
// admin key middleware; the handlers themselves do no auth.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ezazahamad2003/founder-llm/services/gateway/datatypes"
	"github.com/ezazahamad2003/founder-llm/services/gateway/store"
	"github.com/ezazahamad2003/founder-llm/services/gateway/telemetry"
	"github.com/ezazahamad2003/founder-llm/services/llm"
)

// AdminOverview reports store-wide entity counts.
//
// # Outputs
//
//   - 200 OK: datatypes.AdminOverview
//   - 500 Internal Server Error: store failure
func AdminOverview(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		overview, err := st.AdminStats(c.Request.Context())
		if err != nil {
			slog.Error("Failed to compute admin overview", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute overview"})
			return
		}
		c.JSON(http.StatusOK, overview)
	}
}

// AdminListUsers lists every user seen by the store with per-user counts.
//
// # Outputs
//
//   - 200 OK: {"users": [...]}
//   - 500 Internal Server Error: store failure
func AdminListUsers(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := st.ListUsers(c.Request.Context())
		if err != nil {
			slog.Error("Failed to list users", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
			return
		}
		if users == nil {
			users = []datatypes.AdminUser{}
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

// AdminUserChats lists any user's chats without an ownership check.
//
// # Outputs
//
//   - 200 OK: {"chats": [...]}
//   - 500 Internal Server Error: store failure
func AdminUserChats(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")

		chats, err := st.GetUserChats(c.Request.Context(), userID, 0)
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

// AdminUserFiles lists any user's files without an ownership check.
//
// # Outputs
//
//   - 200 OK: {"files": [...]}
//   - 500 Internal Server Error: store failure
func AdminUserFiles(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")

		files, err := st.GetUserFiles(c.Request.Context(), userID, 0, "")
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

// AdminChatMessages lists any chat's messages without an ownership check.
//
// # Outputs
//
//   - 200 OK: {"messages": [...]}
//   - 500 Internal Server Error: store failure
func AdminChatMessages(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID := c.Param("chatId")

		messages, err := st.GetChatMessages(c.Request.Context(), chatID, 0)
		if err != nil {
			slog.Error("Failed to list chat messages", "error", err, "chatId", chatID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
			return
		}
		if messages == nil {
			messages = []datatypes.ChatMessage{}
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages})
	}
}

// LLMHealth runs one connectivity probe against the upstream API.
//
// # Description
//
// Handles GET /admin/llm/health. The probe retries internally with
// backoff, so a single call can block for a few seconds. The HTTP status
// is 200 either way; the body carries the verdict.
//
// # Inputs
//
//   - metrics: optional probe counters. May be nil.
//
// # Outputs
//
//   - 200 OK: datatypes.LLMHealthResponse
func LLMHealth(gw *llm.Gateway, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		start := time.Now()
		healthy := gw.Probe(ctx)
		elapsed := time.Since(start)

		if metrics != nil {
			outcome := "healthy"
			if !healthy {
				outcome = "unhealthy"
			}
			attrs := metric.WithAttributes(attribute.String("outcome", outcome))
			metrics.ProbeChecksTotal.Add(ctx, 1, attrs)
			metrics.ProbeCheckDuration.Record(ctx, elapsed.Seconds(), attrs)
		}

		slog.Info("LLM health probe finished", "healthy", healthy, "durationMs", elapsed.Milliseconds())
		c.JSON(http.StatusOK, datatypes.LLMHealthResponse{
			Healthy: healthy,
			Model:   gw.ProbeModel(),
		})
	}
}
