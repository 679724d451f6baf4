// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"fmt"
	"strings"
)

// Key layout. Segments are colon-separated; record IDs are UUIDs and user
// IDs reject ":" at validation, so segment boundaries are unambiguous.
//
//	chat:<chatID>                    -> datatypes.Chat
//	chatseq:<chatID>                 -> last assigned message sequence
//	chatmsgs:<chatID>:<seq %016d>    -> datatypes.ChatMessage
//	file:<fileID>                    -> datatypes.File
//	filechunk:<fileID>:<idx %06d>    -> datatypes.FileChunk
//	userchats:<userID>:<chatID>      -> "" (index)
//	userfiles:<userID>:<fileID>      -> "" (index)
//
// Message sequence numbers are fixed-width so lexical key order matches
// insertion order.

const (
	prefixChat       = "chat:"
	prefixChatSeq    = "chatseq:"
	prefixChatMsgs   = "chatmsgs:"
	prefixFile       = "file:"
	prefixFileChunks = "filechunk:"
	prefixUserChats  = "userchats:"
	prefixUserFiles  = "userfiles:"
)

func chatKey(chatID string) []byte {
	return []byte(prefixChat + chatID)
}

func chatSeqKey(chatID string) []byte {
	return []byte(prefixChatSeq + chatID)
}

func chatMsgsPrefix(chatID string) []byte {
	return []byte(prefixChatMsgs + chatID + ":")
}

func chatMsgKey(chatID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%016d", prefixChatMsgs, chatID, seq))
}

func fileKey(fileID string) []byte {
	return []byte(prefixFile + fileID)
}

func fileChunksPrefix(fileID string) []byte {
	return []byte(prefixFileChunks + fileID + ":")
}

func fileChunkKey(fileID string, index int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", prefixFileChunks, fileID, index))
}

func userChatsPrefix(userID string) []byte {
	return []byte(prefixUserChats + userID + ":")
}

func userChatKey(userID, chatID string) []byte {
	return []byte(prefixUserChats + userID + ":" + chatID)
}

func userFilesPrefix(userID string) []byte {
	return []byte(prefixUserFiles + userID + ":")
}

func userFileKey(userID, fileID string) []byte {
	return []byte(prefixUserFiles + userID + ":" + fileID)
}

// splitIndexKey splits an index key ("userchats:<userID>:<id>") into its
// owner and record ID. The record ID never contains ":", so the split is
// taken at the last separator.
func splitIndexKey(key []byte, prefix string) (owner, id string, ok bool) {
	rest := strings.TrimPrefix(string(key), prefix)
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}
