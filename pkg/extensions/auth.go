// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when authentication fails. Implementations
// should wrap this error with additional context.
//
// Example:
//
//	if !validToken {
//	    return nil, fmt.Errorf("invalid token format: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful
// authentication.
//
// Required fields (always populated):
//   - UserID: Unique identifier for the caller
//
// Optional fields (may be empty):
//   - Email: Caller's email address
//   - Roles: List of roles the caller holds
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated caller.
	// This is the only required field and must never be empty.
	UserID string

	// Email is the caller's email address.
	Email string

	// Roles contains role memberships for authorization decisions.
	// Common roles: "admin", "user"
	Roles []string
}

// HasRole checks if the caller holds a specific role.
//
//	if !authInfo.HasRole("admin") {
//	    return ErrUnauthorized
//	}
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens and returns caller identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// The default NopAuthProvider always returns a valid "local-user" with
// admin privileges so the service works without any authentication
// infrastructure. Deployments that set an admin token get
// StaticTokenProvider instead; anything richer (OIDC, API-key stores)
// implements this same interface.
type AuthProvider interface {
	// Validate checks the token and returns the caller's identity.
	//
	// Returns:
	//   - *AuthInfo: identity information if valid
	//   - error: ErrUnauthorized (or wrapped) if invalid
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider is the default provider for deployments without an
// admin token. It always returns a valid local user with admin privileges.
//
// Thread-safe: this implementation has no mutable state.
type NopAuthProvider struct{}

// Validate always returns a valid local user with admin privileges.
// The token is ignored, including the empty string. This is intentional
// for local single-user deployments.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

// StaticTokenProvider validates callers against one fixed secret token.
//
// This backs the admin surface: the deployment configures a single admin
// token and every admin request must present it. Comparison is constant
// time.
//
// Thread-safe: this implementation has no mutable state after creation.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider accepting exactly the given
// token. An empty token is rejected at construction; an unset secret must
// fail closed rather than accept everything.
func NewStaticTokenProvider(token string) (*StaticTokenProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("static token provider requires a non-empty token")
	}
	return &StaticTokenProvider{token: token}, nil
}

// Validate accepts only the configured token.
func (p *StaticTokenProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.token)) != 1 {
		return nil, fmt.Errorf("token mismatch: %w", ErrUnauthorized)
	}
	return &AuthInfo{
		UserID: "admin",
		Roles:  []string{"admin"},
	}, nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*StaticTokenProvider)(nil)
)
