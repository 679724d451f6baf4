// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezazahamad2003/founder-llm/services/gateway/datatypes"
	"github.com/ezazahamad2003/founder-llm/services/gateway/store"
)

// stubDownloader serves blobs from memory so ingestion runs without GCS.
type stubDownloader struct {
	blobs map[string][]byte
	err   error
}

func (d *stubDownloader) Download(_ context.Context, objectPath string) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	data, ok := d.blobs[objectPath]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectPath)
	}
	return data, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func createPendingFile(t *testing.T, st *store.Store, filename, path string) *datatypes.File {
	t.Helper()
	file := datatypes.NewFile("user-1", "", filename, path, "text/plain")
	require.NoError(t, st.CreateFile(context.Background(), file))
	return file
}

func TestRun_PlainText(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	text := "Market analysis for the seed round."
	file := createPendingFile(t, st, "analysis.txt", "user-1/analysis.txt")
	blobs := &stubDownloader{blobs: map[string][]byte{file.FilePath: []byte(text)}}

	resp, err := Run(ctx, st, blobs, file.ID)
	require.NoError(t, err)

	assert.Equal(t, file.ID, resp.FileID)
	assert.Equal(t, datatypes.FileStatusCompleted, resp.Status)
	assert.Equal(t, 1, resp.ChunksCreated)
	assert.Equal(t, fmt.Sprintf("Successfully extracted %d characters", len(text)), resp.Message)

	stored, err := st.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.FileStatusCompleted, stored.Status)
	assert.Greater(t, stored.ProcessedAt, int64(0))
	assert.Equal(t, int64(len(text)), stored.FileSize)

	chunks, err := st.GetFileChunks(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Content)
}

func TestRun_MultipleChunks(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	text := strings.Repeat("All fundraising notes from the week.\n\n", 60)
	file := createPendingFile(t, st, "notes.txt", "user-1/notes.txt")
	blobs := &stubDownloader{blobs: map[string][]byte{file.FilePath: []byte(text)}}

	resp, err := Run(ctx, st, blobs, file.ID)
	require.NoError(t, err)
	assert.Greater(t, resp.ChunksCreated, 1)

	chunks, err := st.GetFileChunks(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, chunks, resp.ChunksCreated)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, chunk.Content)
		assert.LessOrEqual(t, len(chunk.Content), chunkSize)
	}
}

func TestRun_RejectsPDF(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	file := createPendingFile(t, st, "term_sheet.pdf", "user-1/term_sheet.pdf")
	blobs := &stubDownloader{blobs: map[string][]byte{file.FilePath: []byte("%PDF-1.4\n%binary")}}

	_, err := Run(ctx, st, blobs, file.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PDF extraction is not supported")

	stored, err := st.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.FileStatusFailed, stored.Status)
	assert.Zero(t, stored.ProcessedAt)
}

func TestRun_RejectsBinary(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	file := createPendingFile(t, st, "image.png", "user-1/image.png")
	blobs := &stubDownloader{blobs: map[string][]byte{file.FilePath: {0xFF, 0xFE, 0x00, 0x01}}}

	_, err := Run(ctx, st, blobs, file.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid UTF-8")

	stored, err := st.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.FileStatusFailed, stored.Status)
}

func TestRun_EmptyText(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty blob", []byte{}},
		{"whitespace only", []byte("   \n\t  ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			ctx := context.Background()

			file := createPendingFile(t, st, "blank.txt", "user-1/blank.txt")
			blobs := &stubDownloader{blobs: map[string][]byte{file.FilePath: tt.data}}

			_, err := Run(ctx, st, blobs, file.ID)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "no text extracted")

			stored, err := st.GetFile(ctx, file.ID)
			require.NoError(t, err)
			assert.Equal(t, datatypes.FileStatusFailed, stored.Status)
		})
	}
}

func TestRun_DownloadError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	file := createPendingFile(t, st, "gone.txt", "user-1/gone.txt")
	blobs := &stubDownloader{err: fmt.Errorf("bucket unavailable")}

	_, err := Run(ctx, st, blobs, file.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to download")

	stored, err := st.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.FileStatusFailed, stored.Status)
}

func TestRun_FileNotFound(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := Run(ctx, st, &stubDownloader{}, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRun_StripsBOM(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...)
	file := createPendingFile(t, st, "bom.txt", "user-1/bom.txt")
	blobs := &stubDownloader{blobs: map[string][]byte{file.FilePath: data}}

	resp, err := Run(ctx, st, blobs, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "Successfully extracted 5 characters", resp.Message)

	chunks, err := st.GetFileChunks(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0].Content)
}

func TestRun_MessageCountsCharacters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// 3 runes, 9 bytes.
	text := "日本語"
	file := createPendingFile(t, st, "intl.txt", "user-1/intl.txt")
	blobs := &stubDownloader{blobs: map[string][]byte{file.FilePath: []byte(text)}}

	resp, err := Run(ctx, st, blobs, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "Successfully extracted 3 characters", resp.Message)

	stored, err := st.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stored.FileSize)
}
