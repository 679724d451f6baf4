// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezazahamad2003/founder-llm/pkg/extensions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockAuthProvider is a test implementation of extensions.AuthProvider.
type mockAuthProvider struct {
	authInfo *extensions.AuthInfo
	err      error
}

func (m *mockAuthProvider) Validate(_ context.Context, _ string) (*extensions.AuthInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.authInfo, nil
}

// newAdminRouter builds a router with the admin guard in front of a
// handler that reports the authenticated user.
func newAdminRouter(provider extensions.AuthProvider) *gin.Engine {
	router := gin.New()
	admin := router.Group("/v1/admin")
	admin.Use(AdminAuth(provider))
	admin.GET("/overview", func(c *gin.Context) {
		info := GetAuthInfo(c)
		if info == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "auth info missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": info.UserID})
	})
	return router
}

func performAdminRequest(router *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/overview", nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAdminAuth_ValidKey(t *testing.T) {
	provider, err := extensions.NewStaticTokenProvider("super-secret")
	require.NoError(t, err)
	router := newAdminRouter(provider)

	w := performAdminRequest(router, "super-secret")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", decodeBody(t, w)["user_id"])
}

func TestAdminAuth_MissingKey(t *testing.T) {
	provider, err := extensions.NewStaticTokenProvider("super-secret")
	require.NoError(t, err)
	router := newAdminRouter(provider)

	w := performAdminRequest(router, "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid or missing admin API key", decodeBody(t, w)["error"])
}

func TestAdminAuth_WrongKey(t *testing.T) {
	provider, err := extensions.NewStaticTokenProvider("super-secret")
	require.NoError(t, err)
	router := newAdminRouter(provider)

	w := performAdminRequest(router, "guessed-key")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid or missing admin API key", decodeBody(t, w)["error"])
}

// Missing and wrong keys must be indistinguishable to the caller.
func TestAdminAuth_MissingAndWrongKeyLookIdentical(t *testing.T) {
	provider, err := extensions.NewStaticTokenProvider("super-secret")
	require.NoError(t, err)
	router := newAdminRouter(provider)

	missing := performAdminRequest(router, "")
	wrong := performAdminRequest(router, "guessed-key")

	assert.Equal(t, missing.Code, wrong.Code)
	assert.Equal(t, missing.Body.String(), wrong.Body.String())
}

func TestAdminAuth_ProviderError(t *testing.T) {
	provider := &mockAuthProvider{err: assert.AnError}
	router := newAdminRouter(provider)

	w := performAdminRequest(router, "any-key")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid or missing admin API key", decodeBody(t, w)["error"])
}

func TestAdminAuth_NopProviderAllowsAll(t *testing.T) {
	router := newAdminRouter(&extensions.NopAuthProvider{})

	w := performAdminRequest(router, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "local-user", decodeBody(t, w)["user_id"])
}

func TestAdminAuth_MockProviderIdentityFlowsThrough(t *testing.T) {
	provider := &mockAuthProvider{
		authInfo: &extensions.AuthInfo{
			UserID: "ops-team",
			Roles:  []string{"admin"},
		},
	}
	router := newAdminRouter(provider)

	w := performAdminRequest(router, "opaque-token")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops-team", decodeBody(t, w)["user_id"])
}

func TestSetGetAuthInfo_RoundTrip(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	info := &extensions.AuthInfo{
		UserID: "admin",
		Email:  "admin@example.com",
		Roles:  []string{"admin"},
	}

	SetAuthInfo(c, info)
	got := GetAuthInfo(c)

	require.NotNil(t, got)
	assert.Equal(t, "admin", got.UserID)
	assert.Equal(t, "admin@example.com", got.Email)
	assert.True(t, got.HasRole("admin"))
}

func TestGetAuthInfo_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Nil(t, GetAuthInfo(c))
}

func TestGetAuthInfo_WrongType(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(authInfoKey, "not an auth info")

	assert.Nil(t, GetAuthInfo(c))
}
