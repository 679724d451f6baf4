// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ezazahamad2003/founder-llm/services/llm"
)

// runProbe checks upstream connectivity and reports the outcome.
//
// Exit codes: 0 healthy, 1 unhealthy, 2 probe could not run at all.
func runProbe(cmd *cobra.Command, args []string) {
	result, err := probeOnce(config, probeTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(CLIExitError)
	}

	if jsonOutput || !stdoutIsTTY() {
		if err := outputJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(CLIExitError)
		}
	} else if result.Healthy {
		fmt.Printf("upstream healthy: model=%s (%dms)\n", result.Model, result.DurationMs)
	} else {
		fmt.Printf("upstream unhealthy: model=%s (%dms)\n", result.Model, result.DurationMs)
	}

	if !result.Healthy {
		os.Exit(CLIExitFindings)
	}
}

// probeOnce builds a gateway from the configuration and runs a single
// connectivity probe bounded by the given deadline.
func probeOnce(cfg Config, timeout time.Duration) (probeResult, error) {
	gw, err := llm.New(llm.Config{
		APIKey:         cfg.apiKey(),
		BaseURL:        cfg.OpenAIBaseURL,
		DefaultModel:   cfg.DefaultModel,
		FallbackModels: cfg.FallbackModels,
		ProbeModel:     cfg.ProbeModel,
	})
	if err != nil {
		return probeResult{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	healthy := gw.Probe(ctx)

	return probeResult{
		Healthy:    healthy,
		Model:      gw.ProbeModel(),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}
