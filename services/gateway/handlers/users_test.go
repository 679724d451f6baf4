// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezazahamad2003/founder-llm/services/gateway/datatypes"
)

// =============================================================================
// GetUserChats Tests
// =============================================================================

// TestGetUserChats_ReturnsOwnChatsOnly verifies per-user isolation.
func TestGetUserChats_ReturnsOwnChatsOnly(t *testing.T) {
	st := newTestStore(t)
	router := gin.New()
	router.GET("/v1/users/:userId/chats", GetUserChats(st))

	ctx := context.Background()
	_, err := st.CreateChat(ctx, "user-1", "Mine")
	require.NoError(t, err)
	_, err = st.CreateChat(ctx, "user-2", "Someone else's")
	require.NoError(t, err)

	w := performRequest(router, "GET", "/v1/users/user-1/chats", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Chats []datatypes.Chat `json:"chats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Chats, 1)
	assert.Equal(t, "Mine", body.Chats[0].Title)
	assert.Equal(t, "user-1", body.Chats[0].UserID)
}

// TestGetUserChats_EmptyList verifies the JSON shape for an unknown user.
func TestGetUserChats_EmptyList(t *testing.T) {
	st := newTestStore(t)
	router := gin.New()
	router.GET("/v1/users/:userId/chats", GetUserChats(st))

	w := performRequest(router, "GET", "/v1/users/nobody/chats", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"chats":[]`, "empty list must serialize as [], not null")
}

// TestGetUserChats_InvalidLimit verifies 400 on a non-numeric limit.
func TestGetUserChats_InvalidLimit(t *testing.T) {
	st := newTestStore(t)
	router := gin.New()
	router.GET("/v1/users/:userId/chats", GetUserChats(st))

	w := performRequest(router, "GET", "/v1/users/user-1/chats?limit=abc", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid limit", decodeError(t, w))
}

// TestGetUserChats_LimitApplies verifies the limit caps the result.
func TestGetUserChats_LimitApplies(t *testing.T) {
	st := newTestStore(t)
	router := gin.New()
	router.GET("/v1/users/:userId/chats", GetUserChats(st))

	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		_, err := st.CreateChat(ctx, "user-1", title)
		require.NoError(t, err)
	}

	w := performRequest(router, "GET", "/v1/users/user-1/chats?limit=2", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Chats []datatypes.Chat `json:"chats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Chats, 2)
}

// =============================================================================
// GetUserFiles Tests
// =============================================================================

// TestGetUserFiles_ReturnsOwnFilesOnly verifies per-user isolation.
func TestGetUserFiles_ReturnsOwnFilesOnly(t *testing.T) {
	st := newTestStore(t)
	router := gin.New()
	router.GET("/v1/users/:userId/files", GetUserFiles(st))

	ctx := context.Background()
	mine := datatypes.NewFile("user-1", "", "mine.txt", "user-1/mine.txt", "text/plain")
	require.NoError(t, st.CreateFile(ctx, mine))
	other := datatypes.NewFile("user-2", "", "other.txt", "user-2/other.txt", "text/plain")
	require.NoError(t, st.CreateFile(ctx, other))

	w := performRequest(router, "GET", "/v1/users/user-1/files", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Files []datatypes.File `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Files, 1)
	assert.Equal(t, "mine.txt", body.Files[0].Filename)
}

// TestGetUserFiles_FiltersByChat verifies the chat_id query filter.
func TestGetUserFiles_FiltersByChat(t *testing.T) {
	st := newTestStore(t)
	router := gin.New()
	router.GET("/v1/users/:userId/files", GetUserFiles(st))

	ctx := context.Background()
	chat, err := st.CreateChat(ctx, "user-1", "With files")
	require.NoError(t, err)

	inChat := datatypes.NewFile("user-1", chat.ID, "in-chat.txt", "user-1/in-chat.txt", "text/plain")
	require.NoError(t, st.CreateFile(ctx, inChat))
	loose := datatypes.NewFile("user-1", "", "loose.txt", "user-1/loose.txt", "text/plain")
	require.NoError(t, st.CreateFile(ctx, loose))

	w := performRequest(router, "GET", "/v1/users/user-1/files?chat_id="+chat.ID, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Files []datatypes.File `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Files, 1)
	assert.Equal(t, "in-chat.txt", body.Files[0].Filename)
}

// TestGetUserFiles_EmptyList verifies the JSON shape for an unknown user.
func TestGetUserFiles_EmptyList(t *testing.T) {
	st := newTestStore(t)
	router := gin.New()
	router.GET("/v1/users/:userId/files", GetUserFiles(st))

	w := performRequest(router, "GET", "/v1/users/nobody/files", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"files":[]`, "empty list must serialize as [], not null")
}
