// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gotd/td/tg"
)

// dialogPageSize is the page size for the dialog scan used to learn
// channel access hashes.
const dialogPageSize = 100

// resolveChannel maps an external chat identifier to an input channel
// carrying its access hash. MTProto requires the access hash on every
// channel call, and the hash is only learned from the server — here by
// scanning the account's dialog list. Resolutions are cached for the
// lifetime of the connection.
func (c *Client) resolveChannel(ctx context.Context, chatID int64) (*tg.InputChannel, error) {
	bare := bareChannelID(chatID)

	c.mu.Lock()
	if channel, ok := c.channels[bare]; ok {
		c.mu.Unlock()
		return channel, nil
	}
	api := c.api
	c.mu.Unlock()

	if api == nil {
		return nil, ErrNotConnected
	}

	chats, err := api.Dialogs(ctx, dialogPageSize)
	if err != nil {
		return nil, wrapUpstream("listing dialogs", err)
	}

	for _, raw := range chats {
		channel, ok := raw.(*tg.Channel)
		if !ok || channel.ID != bare {
			continue
		}
		input := &tg.InputChannel{
			ChannelID:  channel.ID,
			AccessHash: channel.AccessHash,
		}
		c.mu.Lock()
		if c.channels != nil {
			c.channels[bare] = input
		}
		c.mu.Unlock()

		c.logger.Debug("resolved channel",
			"chat_id", chatID,
			"channel_id", bare,
		)
		return input, nil
	}

	return nil, &UpstreamError{
		Type:    ErrTypeChannelInvalid,
		Code:    http.StatusBadRequest,
		Message: fmt.Sprintf("chat %d not found in the account's dialog list", chatID),
	}
}

// bareChannelID converts a Bot-API style chat identifier
// (-100xxxxxxxxxx) to the bare MTProto channel ID. Bare positive IDs
// pass through unchanged.
func bareChannelID(chatID int64) int64 {
	if chatID <= -1_000_000_000_000 {
		return -chatID - 1_000_000_000_000
	}
	if chatID < 0 {
		return -chatID
	}
	return chatID
}
