// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ezazahamad2003/founder-llm/services/llm"
)

// runClassify prints the wire protocol each given model ID is routed to.
func runClassify(cmd *cobra.Command, args []string) {
	results := classifyModels(args)

	if jsonOutput || !stdoutIsTTY() {
		if err := outputJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(CLIExitError)
		}
		return
	}

	for _, r := range results {
		fmt.Printf("%s\t%s\n", r.Model, r.Protocol)
	}
}

// classifyModels maps model IDs to their protocols in input order.
func classifyModels(ids []string) []classification {
	out := make([]classification, 0, len(ids))
	for _, id := range ids {
		out = append(out, classification{
			Model:    id,
			Protocol: string(llm.ClassifyModel(id)),
		})
	}
	return out
}
