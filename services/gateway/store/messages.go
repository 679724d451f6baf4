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
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/ezazahamad2003/founder-llm/services/gateway/datatypes"
)

// defaultMessageListLimit bounds GetChatMessages when the caller passes no
// limit.
const defaultMessageListLimit = 100

// CreateMessage appends a message to a chat, assigning the next sequence
// number and bumping the chat's updated_at. Returns ErrNotFound when the
// chat does not exist.
func (s *Store) CreateMessage(ctx context.Context, chatID, role, content string, metadata map[string]interface{}) (*datatypes.ChatMessage, error) {
	msg := datatypes.NewChatMessage(chatID, role, content)
	msg.Metadata = metadata

	err := s.withRetry(ctx, func(txn *badger.Txn) error {
		// Verifies chat existence and bumps updated_at in one read.
		if err := touchChat(txn, chatID); err != nil {
			return err
		}

		seq, err := nextSeq(txn, chatID)
		if err != nil {
			return err
		}
		msg.Seq = seq

		return setJSON(txn, chatMsgKey(chatID, seq), msg)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("create message in %s: %w", chatID, err)
	}
	return msg, nil
}

// nextSeq increments and returns the chat's message sequence counter.
// Concurrent callers conflict on the counter key; withRetry handles that.
func nextSeq(txn *badger.Txn, chatID string) (uint64, error) {
	var last uint64
	item, err := txn.Get(chatSeqKey(chatID))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		last = 0
	case err != nil:
		return 0, fmt.Errorf("read sequence counter: %w", err)
	default:
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &last)
		}); err != nil {
			return 0, fmt.Errorf("decode sequence counter: %w", err)
		}
	}

	next := last + 1
	data, err := json.Marshal(next)
	if err != nil {
		return 0, err
	}
	return next, txn.Set(chatSeqKey(chatID), data)
}

// GetChatMessages returns the most recent messages of a chat in
// chronological order. A non-positive limit defaults to 100.
func (s *Store) GetChatMessages(ctx context.Context, chatID string, limit int) ([]datatypes.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultMessageListLimit
	}

	prefix := chatMsgsPrefix(chatID)
	var msgs []datatypes.ChatMessage

	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true // newest first, so the limit keeps the tail

		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(msgs) < limit; it.Next() {
			var msg datatypes.ChatMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return fmt.Errorf("decode message %s: %w", it.Item().Key(), err)
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", chatID, err)
	}

	// Reverse back to chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// DeleteMessagesByChat removes all messages of a chat and resets its
// sequence counter.
func (s *Store) DeleteMessagesByChat(ctx context.Context, chatID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	if err := s.db.DropPrefix(chatMsgsPrefix(chatID)); err != nil {
		return fmt.Errorf("drop messages for %s: %w", chatID, err)
	}
	return s.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(chatSeqKey(chatID))
	})
}
