// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay serves Telegram forum-topic data over HTTP: one-shot
// message and topic fetches as JSON, and a Server-Sent Events stream
// that pushes newly arriving messages with a periodic heartbeat.
//
// The server does not own the Telegram session. main connects exactly
// one client at startup and passes it in; every HTTP request and every
// stream shares that session, and per-stream isolation comes from
// cancellable subscriptions rather than per-connection clients.
package relay
