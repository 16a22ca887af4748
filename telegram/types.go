// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

// Message is the flat, normalized record of one chat message. A
// Message is an immutable value: it is produced fresh by every fetch
// and every subscription event and never mutated afterwards. The ID is
// unique within its source chat, not globally — deduplication by ID is
// the consumer's job and only valid per chat.
//
// The JSON field names are the relay's wire contract.
type Message struct {
	// ID is the platform message identifier, unique within the chat.
	ID int `json:"id"`

	// Text is the message body. Empty for media-only messages.
	Text string `json:"text"`

	// Timestamp is the send time in epoch seconds.
	Timestamp int64 `json:"timestamp"`

	// SenderID identifies the sender (a user, chat, or channel ID,
	// flattened). Zero when the platform reports no sender.
	SenderID int64 `json:"senderId,omitempty"`

	// ReplyTo is the ID of the message this one replies to. Zero when
	// the message is not a reply.
	ReplyTo int `json:"replyTo,omitempty"`

	// TopicID is the forum topic the message belongs to, derived from
	// reply-thread metadata. Zero when the message carries no thread
	// root (a root-level message in the general topic).
	TopicID int `json:"topicId,omitempty"`
}

// Topic is a read-only snapshot of one forum topic. Snapshots are
// never cached — every listing reflects the platform state at call
// time.
type Topic struct {
	// ID is the topic identifier (the ID of the topic's root message).
	ID int `json:"id"`

	// Title is the topic name.
	Title string `json:"title"`

	// UnreadCount is the number of unread messages in the topic for
	// the connected account.
	UnreadCount int `json:"unreadCount"`

	// LastMessageID is the ID of the most recent message in the topic.
	// Zero when the platform reports none.
	LastMessageID int `json:"lastMessageId,omitempty"`

	// CreatedAt is the topic creation time in epoch seconds.
	CreatedAt int64 `json:"createdAt"`

	// Closed reports whether the topic is closed for new messages.
	Closed bool `json:"closed"`

	// Pinned reports whether the topic is pinned in the topic list.
	Pinned bool `json:"pinned"`
}
