// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains response types for the admin endpoints.
package datatypes

// AdminOverview represents aggregate statistics for the admin dashboard.
//
// # Fields
//
//   - TotalUsers: Number of distinct users that own at least one chat.
//   - TotalChats: Total chat count.
//   - TotalMessages: Total stored message count.
//   - TotalFiles: Total file record count.
//   - RecentActivity: The most recently created chats, newest first
//     (capped at 10).
type AdminOverview struct {
	TotalUsers     int    `json:"total_users"`
	TotalChats     int    `json:"total_chats"`
	TotalMessages  int    `json:"total_messages"`
	TotalFiles     int    `json:"total_files"`
	RecentActivity []Chat `json:"recent_activity"`
}

// AdminUser represents one user row in the admin user listing.
//
// # Description
//
// Users are derived from chat ownership. There is no separate identity
// store, so FirstSeen is taken from the user's oldest chat.
//
// # Fields
//
//   - ID: The user identifier.
//   - ChatCount: Number of chats owned by the user.
//   - FileCount: Number of file records owned by the user.
//   - FirstSeen: Unix timestamp in milliseconds (UTC) of the oldest chat.
type AdminUser struct {
	ID        string `json:"id"`
	ChatCount int    `json:"chat_count"`
	FileCount int    `json:"file_count"`
	FirstSeen int64  `json:"first_seen,omitempty"`
}

// LLMHealthResponse represents the result of an on-demand connectivity probe.
//
// # Fields
//
//   - Healthy: Whether the provider answered a minimal request.
//   - Model: The fixed model ID the probe used.
type LLMHealthResponse struct {
	Healthy bool   `json:"healthy"`
	Model   string `json:"model"`
}
