// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"errors"
	"fmt"

	"github.com/gotd/td/tgerr"
)

// UpstreamError represents a structured RPC rejection from the
// Telegram platform. Callers can use errors.As to extract the
// structured information:
//
//	var upstreamErr *telegram.UpstreamError
//	if errors.As(err, &upstreamErr) {
//	    if upstreamErr.Type == telegram.ErrTypeForumMissing { ... }
//	}
type UpstreamError struct {
	// Type is the Telegram RPC error type (e.g., "CHANNEL_FORUM_MISSING").
	Type string
	// Code is the numeric error code reported by the platform (e.g., 400).
	Code int
	// Message is the human-readable error description.
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("telegram: %s (%d): %s", e.Type, e.Code, e.Message)
}

// Telegram RPC error types the relay cares about.
const (
	// ErrTypeForumMissing is returned when listing forum topics of a
	// chat that does not have forum capability enabled.
	ErrTypeForumMissing = "CHANNEL_FORUM_MISSING"

	ErrTypeChannelInvalid = "CHANNEL_INVALID"
	ErrTypeChannelPrivate = "CHANNEL_PRIVATE"
)

// IsUpstreamError checks whether err is a *UpstreamError with the
// given error type.
func IsUpstreamError(err error, errType string) bool {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Type == errType
	}
	return false
}

// ConnectionError reports transport-level connect failure after retry
// exhaustion. It wraps the last underlying error.
type ConnectionError struct {
	// Attempts is the number of connect attempts made.
	Attempts int
	// Err is the last transport error observed.
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("telegram: connect failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ErrNotConnected is returned by read and subscribe operations invoked
// before Connect (or after Close).
var ErrNotConnected = errors.New("telegram: not connected")

// wrapUpstream converts a gotd RPC error into *UpstreamError so
// callers never depend on the client library's error types. Transport
// and context errors pass through wrapped with the operation name.
func wrapUpstream(operation string, err error) error {
	var rpcErr *tgerr.Error
	if errors.As(err, &rpcErr) {
		return &UpstreamError{
			Type:    rpcErr.Type,
			Code:    rpcErr.Code,
			Message: rpcErr.Message,
		}
	}
	return fmt.Errorf("telegram: %s: %w", operation, err)
}
