// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/ezazahamad2003/founder-llm/services/gateway/datatypes"
)

// defaultFileListLimit bounds GetUserFiles when the caller passes no limit.
const defaultFileListLimit = 50

// CreateFile stores a file record prepared by datatypes.NewFile.
func (s *Store) CreateFile(ctx context.Context, file *datatypes.File) error {
	err := s.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := setJSON(txn, fileKey(file.ID), file); err != nil {
			return err
		}
		return txn.Set(userFileKey(file.UserID, file.ID), nil)
	})
	if err != nil {
		return fmt.Errorf("create file %s: %w", file.ID, err)
	}
	return nil
}

// GetFile fetches a file record by ID. Returns ErrNotFound when it does
// not exist.
func (s *Store) GetFile(ctx context.Context, fileID string) (*datatypes.File, error) {
	var file datatypes.File
	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, fileKey(fileID), &file)
	})
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// UpdateFileStatus sets a file's processing status. A positive processedAt
// stamps when ingestion finished. Returns ErrNotFound when the file does
// not exist.
func (s *Store) UpdateFileStatus(ctx context.Context, fileID, status string, processedAt int64) (*datatypes.File, error) {
	var file datatypes.File
	err := s.withRetry(ctx, func(txn *badger.Txn) error {
		if err := getJSON(txn, fileKey(fileID), &file); err != nil {
			return err
		}
		file.Status = status
		if processedAt > 0 {
			file.ProcessedAt = processedAt
		}
		return setJSON(txn, fileKey(fileID), &file)
	})
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// UpdateFileSize records the blob size once ingestion has downloaded it.
func (s *Store) UpdateFileSize(ctx context.Context, fileID string, size int64) error {
	return s.withRetry(ctx, func(txn *badger.Txn) error {
		var file datatypes.File
		if err := getJSON(txn, fileKey(fileID), &file); err != nil {
			return err
		}
		file.FileSize = size
		return setJSON(txn, fileKey(fileID), &file)
	})
}

// GetUserFiles lists a user's files, newest first, optionally filtered to
// one chat. A non-positive limit defaults to 50.
func (s *Store) GetUserFiles(ctx context.Context, userID string, limit int, chatID string) ([]datatypes.File, error) {
	if limit <= 0 {
		limit = defaultFileListLimit
	}

	var files []datatypes.File
	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return iteratePrefix(txn, userFilesPrefix(userID), true, func(item *badger.Item) error {
			_, fileID, ok := splitIndexKey(item.Key(), prefixUserFiles)
			if !ok {
				return nil
			}
			var file datatypes.File
			if err := getJSON(txn, fileKey(fileID), &file); err != nil {
				if err == ErrNotFound {
					return nil
				}
				return err
			}
			if chatID != "" && file.ChatID != chatID {
				return nil
			}
			files = append(files, file)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list files for %s: %w", userID, err)
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].CreatedAt != files[j].CreatedAt {
			return files[i].CreatedAt > files[j].CreatedAt
		}
		return files[i].ID < files[j].ID
	})
	if len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

// GetFilesByChat lists all files linked to a chat.
func (s *Store) GetFilesByChat(ctx context.Context, chatID string) ([]datatypes.File, error) {
	var files []datatypes.File
	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return iteratePrefix(txn, []byte(prefixFile), false, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				var file datatypes.File
				if err := json.Unmarshal(val, &file); err != nil {
					return fmt.Errorf("decode file %s: %w", item.Key(), err)
				}
				if file.ChatID == chatID {
					files = append(files, file)
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list files for chat %s: %w", chatID, err)
	}
	return files, nil
}

// DeleteFiles removes file records and their user index entries.
// Missing records are skipped. Chunks are removed separately via
// DeleteChunksByFileIDs.
func (s *Store) DeleteFiles(ctx context.Context, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}

	return s.WithTxn(ctx, func(txn *badger.Txn) error {
		for _, fileID := range fileIDs {
			var file datatypes.File
			if err := getJSON(txn, fileKey(fileID), &file); err != nil {
				if err == ErrNotFound {
					continue
				}
				return err
			}
			if err := txn.Delete(fileKey(fileID)); err != nil {
				return err
			}
			if err := txn.Delete(userFileKey(file.UserID, fileID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateFileChunks stores extracted chunks in one write batch.
func (s *Store) CreateFileChunks(ctx context.Context, chunks []*datatypes.FileChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, chunk := range chunks {
		data, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("marshal chunk %d of %s: %w", chunk.Index, chunk.FileID, err)
		}
		if err := wb.Set(fileChunkKey(chunk.FileID, chunk.Index), data); err != nil {
			return fmt.Errorf("batch chunk %d of %s: %w", chunk.Index, chunk.FileID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush chunks: %w", err)
	}
	return nil
}

// GetFileChunks returns a file's chunks in index order.
func (s *Store) GetFileChunks(ctx context.Context, fileID string) ([]datatypes.FileChunk, error) {
	var chunks []datatypes.FileChunk
	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return iteratePrefix(txn, fileChunksPrefix(fileID), false, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				var chunk datatypes.FileChunk
				if err := json.Unmarshal(val, &chunk); err != nil {
					return fmt.Errorf("decode chunk %s: %w", item.Key(), err)
				}
				chunks = append(chunks, chunk)
				return nil
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list chunks for %s: %w", fileID, err)
	}
	return chunks, nil
}

// GetChunksByFileIDs returns chunks for multiple files, preserving the
// given file order with chunks in index order within each file.
func (s *Store) GetChunksByFileIDs(ctx context.Context, fileIDs []string) ([]datatypes.FileChunk, error) {
	var chunks []datatypes.FileChunk
	for _, fileID := range fileIDs {
		fileChunks, err := s.GetFileChunks(ctx, fileID)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, fileChunks...)
	}
	return chunks, nil
}

// DeleteChunksByFileIDs removes all chunks of the given files.
func (s *Store) DeleteChunksByFileIDs(ctx context.Context, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	for _, fileID := range fileIDs {
		if err := s.db.DropPrefix(fileChunksPrefix(fileID)); err != nil {
			return fmt.Errorf("drop chunks for %s: %w", fileID, err)
		}
	}
	return nil
}
