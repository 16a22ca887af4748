// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

// Package topicui implements the terminal viewer for a Telegram forum
// topic: an initial message fetch over the relay's JSON API, then a
// live Server-Sent Events stream rendered as a bounded, newest-first
// message list.
//
// The model keeps the stream healthy on its own: a watchdog forces a
// reconnect when heartbeats stop arriving, reconnects back off
// exponentially, and reconnection is suspended while the terminal
// window is unfocused so an abandoned viewer does not hammer the
// relay.
package topicui
