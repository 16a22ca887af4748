// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import "github.com/gotd/td/tg"

// normalizeAll maps a page of raw platform messages to flat Message
// records, dropping service and empty variants. Platform order is
// preserved (newest first, unreversed).
func normalizeAll(raw []tg.MessageClass) []Message {
	messages := make([]Message, 0, len(raw))
	for _, entry := range raw {
		if message, ok := normalize(entry); ok {
			messages = append(messages, message)
		}
	}
	return messages
}

// normalize maps one raw message to the flat record. Returns false for
// the service and empty variants, which carry no user-visible content.
func normalize(raw tg.MessageClass) (Message, bool) {
	message, ok := raw.(*tg.Message)
	if !ok {
		return Message{}, false
	}

	normalized := Message{
		ID:        message.ID,
		Text:      message.Message,
		Timestamp: int64(message.Date),
	}

	if from, ok := message.GetFromID(); ok {
		if sender, ok := senderID(from); ok {
			normalized.SenderID = sender
		}
	}

	if header, ok := replyHeader(message); ok {
		if target, ok := header.GetReplyToMsgID(); ok {
			normalized.ReplyTo = target
		}
	}
	if root, ok := threadRoot(message); ok {
		normalized.TopicID = root
	}

	return normalized, true
}

// senderID flattens the peer sum type into a single identifier. The
// three peer kinds carry their ID in differently named fields; the
// switch is exhaustive over the closed set.
func senderID(peer tg.PeerClass) (int64, bool) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID, true
	case *tg.PeerChat:
		return p.ChatID, true
	case *tg.PeerChannel:
		return p.ChannelID, true
	}
	return 0, false
}

// replyHeader returns the message's reply header when it is a regular
// message reply. Story replies carry no thread metadata.
func replyHeader(message *tg.Message) (*tg.MessageReplyHeader, bool) {
	raw, ok := message.GetReplyTo()
	if !ok {
		return nil, false
	}
	header, ok := raw.(*tg.MessageReplyHeader)
	return header, ok
}

// threadRoot derives the forum topic a message belongs to from its
// reply metadata: the explicit thread top when present, otherwise the
// direct reply target. Messages with no reply metadata have no thread
// root — they implicitly belong to the general topic.
func threadRoot(message *tg.Message) (int, bool) {
	header, ok := replyHeader(message)
	if !ok {
		return 0, false
	}
	if topID, ok := header.GetReplyToTopID(); ok {
		return topID, true
	}
	if msgID, ok := header.GetReplyToMsgID(); ok {
		return msgID, true
	}
	return 0, false
}
