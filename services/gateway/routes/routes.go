// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/ezazahamad2003/founder-llm/pkg/extensions"
	"github.com/ezazahamad2003/founder-llm/services/gateway/handlers"
	"github.com/ezazahamad2003/founder-llm/services/gateway/middleware"
	"github.com/ezazahamad2003/founder-llm/services/gateway/store"
	"github.com/ezazahamad2003/founder-llm/services/gateway/telemetry"
	"github.com/ezazahamad2003/founder-llm/services/llm"
)

// SetupRoutes registers all HTTP routes on the router.
//
// blobs may be nil when no blob storage is configured; the file endpoints
// then respond 503. authProvider guards the admin group.
func SetupRoutes(router *gin.Engine, st *store.Store, gw *llm.Gateway,
	blobs handlers.BlobStore, metrics *telemetry.Metrics,
	authProvider extensions.AuthProvider) {

	router.GET("/", handlers.HealthCheck)
	router.GET("/health", handlers.HealthCheck)

	streamHandler := handlers.NewChatStreamHandler(st, gw)

	// API version 1 group
	v1 := router.Group("/v1")
	{
		chats := v1.Group("/chats")
		{
			chats.POST("", handlers.CreateChat(st))
			chats.GET("/:chatId", handlers.GetChat(st))
			chats.DELETE("/:chatId", handlers.DeleteChat(st, blobs))
			chats.GET("/:chatId/messages", handlers.GetChatMessages(st))
			// The streaming endpoint
			chats.POST("/:chatId/message", streamHandler.HandleChatMessage)
		}

		files := v1.Group("/files")
		{
			files.POST("/sign", handlers.SignFileUpload(st, blobs))
			files.POST("/ingest", handlers.IngestFile(st, blobs, metrics))
			files.GET("/:fileId", handlers.GetFile(st))
			files.GET("/:fileId/chunks", handlers.GetFileChunks(st))
		}

		users := v1.Group("/users")
		{
			users.GET("/:userId/chats", handlers.GetUserChats(st))
			users.GET("/:userId/files", handlers.GetUserFiles(st))
		}

		// Administration routes, guarded by the admin key
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(authProvider))
		{
			admin.GET("/overview", handlers.AdminOverview(st))
			admin.GET("/users", handlers.AdminListUsers(st))
			admin.GET("/users/:userId/chats", handlers.AdminUserChats(st))
			admin.GET("/users/:userId/files", handlers.AdminUserFiles(st))
			admin.GET("/chats/:chatId/messages", handlers.AdminChatMessages(st))
			admin.GET("/llm/health", handlers.LLMHealth(gw, metrics))
		}
	}
}
