// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

// Package telegram wraps the gotd MTProto client for forumcast's
// read-and-relay needs.
//
// The package provides one core type. [Client] owns an authorized
// Telegram session (established by the forumcast-login flow and stored
// in a session file) and exposes four read paths over it: [Client.Topics]
// lists a chat's forum topics, [Client.TopicMessages] pages through one
// topic's messages, [Client.ChatMessages] pages through the unscoped
// chat history, and [Client.Subscribe] registers a handler for newly
// arriving messages, filtered to one chat and topic. Subscriptions are
// individually cancellable; [Client.Close] tears down the whole session.
//
// [Client.Connect] is idempotent and retries the transport a fixed
// number of times before failing with [*ConnectionError]. Platform RPC
// rejections surface as [*UpstreamError] carrying the Telegram error
// type string (for example CHANNEL_FORUM_MISSING when a chat has no
// forum capability); [IsUpstreamError] tests for a specific type.
//
// Raw platform messages are normalized into the flat [Message] record:
// heterogeneous peer kinds (user, chat, channel) collapse into one
// sender identifier by exhaustive switch over the peer sum type, and
// the forum topic a message belongs to is derived from its reply
// metadata — the explicit thread top when present, otherwise the
// direct reply target. Messages with no reply metadata belong to the
// general topic (conventionally ID 1). That last rule mirrors observed
// platform behavior for root-level messages and is deliberately not
// generalized further.
//
// Channel access hashes are resolved by scanning the account's dialog
// list and cached per connection. Both bare channel IDs and Bot-API
// style -100… chat identifiers are accepted.
package telegram
