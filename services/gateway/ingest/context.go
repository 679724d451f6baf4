// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ezazahamad2003/founder-llm/services/gateway/store"
)

// ContextMaxChars bounds the document context injected into a chat prompt.
const ContextMaxChars = 10000

// BuildContext assembles document context for a chat turn from the chunks
// of the given files. Each chunk is cited with its source filename; chunks
// are appended in file order until the next one would push the total past
// maxChars.
func BuildContext(ctx context.Context, st *store.Store, fileIDs []string, maxChars int) (string, error) {
	if len(fileIDs) == 0 {
		return "", nil
	}

	chunks, err := st.GetChunksByFileIDs(ctx, fileIDs)
	if err != nil {
		return "", fmt.Errorf("failed to load file chunks: %w", err)
	}

	filenames := make(map[string]string, len(fileIDs))
	for _, fileID := range fileIDs {
		file, err := st.GetFile(ctx, fileID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return "", fmt.Errorf("failed to load file %s: %w", fileID, err)
		}
		filenames[fileID] = file.Filename
	}

	var parts []string
	total := 0
	for _, chunk := range chunks {
		filename := filenames[chunk.FileID]
		if filename == "" {
			filename = "Unknown"
		}

		part := fmt.Sprintf("[Document: %s]\n%s\n", filename, chunk.Content)
		if total+len(part) > maxChars {
			break
		}
		parts = append(parts, part)
		total += len(part)
	}

	return strings.Join(parts, "\n"), nil
}
