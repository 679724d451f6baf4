// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ingest turns uploaded documents into retrievable chunks. A file
// moves pending -> processing -> completed (or failed); only completed
// files contribute chunks to chat context.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/ezazahamad2003/founder-llm/services/gateway/datatypes"
	"github.com/ezazahamad2003/founder-llm/services/gateway/store"
)

const (
	chunkSize = 1000
	// chunkOverlap is 10% of the chunk size.
	chunkOverlap = 100
)

var (
	defaultSeparators  = []string{"\n\n", "\n", " ", ""}
	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"\n\n", "\n", " ", "",
	}

	// utf8BOM is stripped before validation so BOM-prefixed exports from
	// common editors ingest cleanly.
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	pdfMagic = []byte("%PDF-")
)

// Downloader fetches an uploaded blob by its storage path.
type Downloader interface {
	Download(ctx context.Context, objectPath string) ([]byte, error)
}

// Run processes one uploaded file end to end: download the blob, extract
// its text, split it, and persist the chunks. The file record's status is
// updated as the job progresses; failures leave it marked failed with no
// processed_at timestamp.
//
// Returns store.ErrNotFound (wrapped) when the file record is missing.
func Run(ctx context.Context, st *store.Store, blobs Downloader, fileID string) (*datatypes.FileIngestResponse, error) {
	file, err := st.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if _, err := st.UpdateFileStatus(ctx, fileID, datatypes.FileStatusProcessing, 0); err != nil {
		return nil, fmt.Errorf("failed to mark file as processing: %w", err)
	}
	slog.Info("Ingestion started", "file_id", fileID, "filename", file.Filename)

	data, err := blobs.Download(ctx, file.FilePath)
	if err != nil {
		markFailed(ctx, st, fileID)
		return nil, fmt.Errorf("failed to download %s: %w", file.FilePath, err)
	}

	if err := st.UpdateFileSize(ctx, fileID, int64(len(data))); err != nil {
		slog.Warn("Failed to record file size", "file_id", fileID, "error", err)
	}

	text, err := extractText(data)
	if err != nil {
		markFailed(ctx, st, fileID)
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		markFailed(ctx, st, fileID)
		return nil, errors.New("no text extracted from file")
	}

	splitter := splitterForFile(file.Filename)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		markFailed(ctx, st, fileID)
		return nil, fmt.Errorf("failed to split content: %w", err)
	}
	if len(chunks) == 0 {
		slog.Warn("No chunks produced after splitting", "file_id", fileID)
		markFailed(ctx, st, fileID)
		return nil, errors.New("no chunks produced after splitting")
	}
	slog.Info("Split document into chunks", "file_id", fileID, "chunk_count", len(chunks))

	records := make([]*datatypes.FileChunk, len(chunks))
	for i, chunk := range chunks {
		records[i] = datatypes.NewFileChunk(fileID, i, chunk)
	}
	if err := st.CreateFileChunks(ctx, records); err != nil {
		markFailed(ctx, st, fileID)
		return nil, fmt.Errorf("failed to save chunks: %w", err)
	}

	if _, err := st.UpdateFileStatus(ctx, fileID, datatypes.FileStatusCompleted, time.Now().UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to mark file as completed: %w", err)
	}

	charCount := utf8.RuneCountInString(text)
	slog.Info("Ingestion complete", "file_id", fileID, "chunk_count", len(chunks), "chars", charCount)

	return &datatypes.FileIngestResponse{
		FileID:        fileID,
		Status:        datatypes.FileStatusCompleted,
		ChunksCreated: len(chunks),
		Message:       fmt.Sprintf("Successfully extracted %d characters", charCount),
	}, nil
}

// extractText validates that the blob is plain UTF-8 text. Binary formats
// are rejected here; PDFs get a pointed message since they are the most
// common upload this gateway does not parse.
func extractText(data []byte) (string, error) {
	if bytes.HasPrefix(data, pdfMagic) {
		return "", errors.New("PDF extraction is not supported: convert the document to plain text or markdown and upload again")
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", errors.New("file is not valid UTF-8 text")
	}
	return string(data), nil
}

// markFailed is the failure-path status write. It runs detached from the
// caller's cancellation so an aborted job still lands in a terminal state.
func markFailed(ctx context.Context, st *store.Store, fileID string) {
	if _, err := st.UpdateFileStatus(context.WithoutCancel(ctx), fileID, datatypes.FileStatusFailed, 0); err != nil {
		slog.Warn("Failed to mark file as failed", "file_id", fileID, "error", err)
	}
}

func splitterForFile(filename string) textsplitter.TextSplitter {
	switch filepath.Ext(filename) {
	case ".md", ".markdown":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(markdownSeparators),
		)

	default:
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(defaultSeparators),
		)
	}
}
