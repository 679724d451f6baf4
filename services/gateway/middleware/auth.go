// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the gateway service.
//
// This package contains middleware for admin authentication and
// cross-origin request handling. Authentication integrates with the
// extensions package so deployments can swap the key check for a real
// identity provider.
//
// # Admin Authentication Flow
//
// The admin middleware extracts the key from the X-Admin-Key header,
// validates it using the configured AuthProvider, and stores the
// resulting AuthInfo in the Gin context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	AdminAuth
//	   │
//	   ├─► Extract key from "X-Admin-Key: <key>"
//	   │
//	   ├─► provider.Validate(ctx, key)
//	   │
//	   └─► Store AuthInfo in context
//	           │
//	           ▼
//	       Handler (retrieves via GetAuthInfo)
//
// # Local Behavior
//
// When using NopAuthProvider, all requests are authenticated as
// "local-user" with admin privileges. This keeps single-user local
// deployments working without any key management.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ezazahamad2003/founder-llm/pkg/extensions"
)

// =============================================================================
// Context Keys
// =============================================================================

// authInfoKey is the context key for storing AuthInfo.
// Using a fixed key prevents collisions with other context values.
const authInfoKey = "founder_auth_info"

// adminKeyHeader carries the admin API key.
const adminKeyHeader = "X-Admin-Key"

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthInfo stores the authenticated caller info in the Gin context.
// The stored AuthInfo can be retrieved by handlers via GetAuthInfo.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated caller info from the Gin context.
// Returns nil if the request was not authenticated or the stored value has
// the wrong type.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// =============================================================================
// Admin Auth Middleware
// =============================================================================

// AdminAuth creates a Gin middleware that guards admin routes.
//
// # Description
//
// Extracts the admin key from the X-Admin-Key header and validates it
// using the provided AuthProvider. A missing key, a wrong key, and a
// provider that was never configured all produce the same 403; callers
// learn nothing about which of the three happened.
//
// # Inputs
//
//   - provider: AuthProvider to validate keys. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware function ready for use with Gin.
//
// # Examples
//
//	admin := router.Group("/v1/admin")
//	admin.Use(middleware.AdminAuth(opts.AuthProvider))
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func AdminAuth(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(adminKeyHeader)

		authInfo, err := provider.Validate(c.Request.Context(), key)
		if err != nil {
			slog.Warn("Admin request rejected",
				"path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Invalid or missing admin API key",
			})
			return
		}

		SetAuthInfo(c, authInfo)
		c.Next()
	}
}
