// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ezazahamad2003/founder-llm/services/gateway/datatypes"
)

// defaultChatListLimit bounds GetUserChats when the caller passes no limit.
const defaultChatListLimit = 50

// CreateChat creates a new chat for a user. An empty title defaults to
// "New Chat".
func (s *Store) CreateChat(ctx context.Context, userID, title string) (*datatypes.Chat, error) {
	if title == "" {
		title = "New Chat"
	}
	chat := datatypes.NewChat(userID, title)

	err := s.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := setJSON(txn, chatKey(chat.ID), chat); err != nil {
			return err
		}
		return txn.Set(userChatKey(userID, chat.ID), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

// GetChat fetches a chat by ID. Returns ErrNotFound when it does not exist.
func (s *Store) GetChat(ctx context.Context, chatID string) (*datatypes.Chat, error) {
	var chat datatypes.Chat
	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, chatKey(chatID), &chat)
	})
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// UpdateChatTitle sets a chat's title and bumps its updated_at.
// Returns ErrNotFound when the chat does not exist.
func (s *Store) UpdateChatTitle(ctx context.Context, chatID, title string) (*datatypes.Chat, error) {
	var chat datatypes.Chat
	err := s.withRetry(ctx, func(txn *badger.Txn) error {
		if err := getJSON(txn, chatKey(chatID), &chat); err != nil {
			return err
		}
		chat.Title = title
		chat.UpdatedAt = time.Now().UnixMilli()
		return setJSON(txn, chatKey(chatID), &chat)
	})
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetUserChats lists a user's chats, most recently updated first.
// A non-positive limit defaults to 50.
func (s *Store) GetUserChats(ctx context.Context, userID string, limit int) ([]datatypes.Chat, error) {
	if limit <= 0 {
		limit = defaultChatListLimit
	}

	var chats []datatypes.Chat
	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return iteratePrefix(txn, userChatsPrefix(userID), true, func(item *badger.Item) error {
			_, chatID, ok := splitIndexKey(item.Key(), prefixUserChats)
			if !ok {
				return nil
			}
			var chat datatypes.Chat
			if err := getJSON(txn, chatKey(chatID), &chat); err != nil {
				// Index entry without a record: skip rather than fail the listing.
				if err == ErrNotFound {
					return nil
				}
				return err
			}
			chats = append(chats, chat)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list chats for %s: %w", userID, err)
	}

	sort.SliceStable(chats, func(i, j int) bool {
		if chats[i].UpdatedAt != chats[j].UpdatedAt {
			return chats[i].UpdatedAt > chats[j].UpdatedAt
		}
		return chats[i].ID < chats[j].ID
	})
	if len(chats) > limit {
		chats = chats[:limit]
	}
	return chats, nil
}

// DeleteChat removes the chat record, its user index entry, and its
// sequence counter. Messages are removed separately via
// DeleteMessagesByChat. Returns ErrNotFound when the chat does not exist.
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	return s.WithTxn(ctx, func(txn *badger.Txn) error {
		var chat datatypes.Chat
		if err := getJSON(txn, chatKey(chatID), &chat); err != nil {
			return err
		}
		if err := txn.Delete(chatKey(chatID)); err != nil {
			return err
		}
		if err := txn.Delete(userChatKey(chat.UserID, chatID)); err != nil {
			return err
		}
		return txn.Delete(chatSeqKey(chatID))
	})
}

// touchChat bumps a chat's updated_at within an existing transaction.
func touchChat(txn *badger.Txn, chatID string) error {
	var chat datatypes.Chat
	if err := getJSON(txn, chatKey(chatID), &chat); err != nil {
		return err
	}
	chat.UpdatedAt = time.Now().UnixMilli()
	return setJSON(txn, chatKey(chatID), &chat)
}
