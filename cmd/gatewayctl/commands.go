// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"time"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath   string
	jsonOutput   bool
	probeTimeout time.Duration

	rootCmd = &cobra.Command{
		Use:   "gatewayctl",
		Short: "A cli to operate the founder-llm streaming gateway",
		Long: `gatewayctl performs operational checks against the upstream
				completion provider the gateway depends on.`,
	}

	// --- Connectivity ---
	probeCmd = &cobra.Command{
		Use:   "probe",
		Short: "Check upstream connectivity; exits 0 when healthy, 1 when not",
		Run:   runProbe, // Defined in cmd_probe.go
	}

	// --- Routing ---
	classifyCmd = &cobra.Command{
		Use:   "classify [model-id...]",
		Short: "Print the wire protocol each model ID is routed to",
		Args:  cobra.MinimumNArgs(1),
		Run:   runClassify, // Defined in cmd_classify.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"Path to the gatewayctl configuration file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Force JSON output even on a terminal")

	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 15*time.Second,
		"Overall deadline for the probe, including retries")

	rootCmd.AddCommand(classifyCmd)
}
