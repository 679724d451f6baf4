// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"os"

	"github.com/mattn/go-isatty"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess  = 0 // Operation completed successfully
	CLIExitFindings = 1 // Operation completed with findings (e.g. unhealthy upstream)
	CLIExitError    = 2 // Operation failed
)

// probeResult holds probe command output.
type probeResult struct {
	Healthy    bool   `json:"healthy"`
	Model      string `json:"model"`
	DurationMs int64  `json:"duration_ms"`
}

// classification holds one classify command row.
type classification struct {
	Model    string `json:"model"`
	Protocol string `json:"protocol"`
}

// stdoutIsTTY reports whether stdout is attached to a terminal.
// Piped output (scripts, CI) gets machine-readable JSON instead.
func stdoutIsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// outputJSON writes structured data as a single JSON line to stdout.
func outputJSON(data interface{}) error {
	return json.NewEncoder(os.Stdout).Encode(data)
}
