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

// recentActivityLimit caps the recent-chats list in AdminStats.
const recentActivityLimit = 10

// AdminStats aggregates store-wide totals and the most recent chats.
func (s *Store) AdminStats(ctx context.Context) (*datatypes.AdminOverview, error) {
	overview := &datatypes.AdminOverview{
		RecentActivity: []datatypes.Chat{},
	}
	users := make(map[string]struct{})
	var chats []datatypes.Chat

	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		err := iteratePrefix(txn, []byte(prefixChat), false, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				var chat datatypes.Chat
				if err := json.Unmarshal(val, &chat); err != nil {
					return fmt.Errorf("decode chat %s: %w", item.Key(), err)
				}
				users[chat.UserID] = struct{}{}
				chats = append(chats, chat)
				return nil
			})
		})
		if err != nil {
			return err
		}

		err = iteratePrefix(txn, []byte(prefixChatMsgs), true, func(item *badger.Item) error {
			overview.TotalMessages++
			return nil
		})
		if err != nil {
			return err
		}

		return iteratePrefix(txn, []byte(prefixFile), true, func(item *badger.Item) error {
			overview.TotalFiles++
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("admin stats: %w", err)
	}

	overview.TotalUsers = len(users)
	overview.TotalChats = len(chats)

	sort.SliceStable(chats, func(i, j int) bool {
		if chats[i].CreatedAt != chats[j].CreatedAt {
			return chats[i].CreatedAt > chats[j].CreatedAt
		}
		return chats[i].ID < chats[j].ID
	})
	if len(chats) > recentActivityLimit {
		chats = chats[:recentActivityLimit]
	}
	overview.RecentActivity = chats

	return overview, nil
}

// ListUsers derives the user list from chat ownership, with per-user chat
// and file counts. FirstSeen is the oldest chat's created_at.
func (s *Store) ListUsers(ctx context.Context) ([]datatypes.AdminUser, error) {
	byID := make(map[string]*datatypes.AdminUser)

	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		err := iteratePrefix(txn, []byte(prefixChat), false, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				var chat datatypes.Chat
				if err := json.Unmarshal(val, &chat); err != nil {
					return fmt.Errorf("decode chat %s: %w", item.Key(), err)
				}
				user, ok := byID[chat.UserID]
				if !ok {
					user = &datatypes.AdminUser{ID: chat.UserID}
					byID[chat.UserID] = user
				}
				user.ChatCount++
				if user.FirstSeen == 0 || chat.CreatedAt < user.FirstSeen {
					user.FirstSeen = chat.CreatedAt
				}
				return nil
			})
		})
		if err != nil {
			return err
		}

		return iteratePrefix(txn, []byte(prefixUserFiles), true, func(item *badger.Item) error {
			userID, _, ok := splitIndexKey(item.Key(), prefixUserFiles)
			if !ok {
				return nil
			}
			user, ok := byID[userID]
			if !ok {
				// Files without chats still surface the user.
				user = &datatypes.AdminUser{ID: userID}
				byID[userID] = user
			}
			user.FileCount++
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]datatypes.AdminUser, 0, len(byID))
	for _, user := range byID {
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}
