// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Service identity reported by the health endpoint.
const (
	ServiceName    = "founder-llm-gateway"
	ServiceVersion = "1.0.0"
)

// HealthCheck reports liveness.
//
// # Description
//
// Handles GET /health. Always returns 200 with the service identity; it
// proves the process is up and serving, nothing more. Upstream provider
// health has its own endpoint (the admin LLM probe).
//
// # Outputs
//
//   - 200 OK: {"status": "ok", "service": ..., "version": ...}
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": ServiceName,
		"version": ServiceVersion,
	})
}
