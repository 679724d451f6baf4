// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines injection points for deployment-specific
// behavior.
//
// The gateway service works out of the box as a local single-user utility;
// hosted deployments swap in concrete implementations of these interfaces
// without modifying the core codebase.
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups the extension points for service configuration.
//
// Pass this to service constructors. All fields are optional; nil values
// are replaced with no-op defaults.
//
// Example:
//
//	// Local: use defaults
//	opts := extensions.DefaultOptions()
//
//	// Hosted: inject implementations
//	opts := extensions.ServiceOptions{
//	    AuthProvider: oidcProvider,
//	}
type ServiceOptions struct {
	// AuthProvider validates admin tokens.
	// Default: NopAuthProvider (always returns a valid local user)
	AuthProvider AuthProvider
}

// DefaultOptions returns ServiceOptions with no-op defaults. All admin
// operations are allowed; appropriate only for local deployments.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider: &NopAuthProvider{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
// Useful for fluent configuration.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}
