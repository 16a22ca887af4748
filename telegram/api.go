// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"
)

// rpc is the slice of the Telegram RPC surface the wrapper uses.
// Production code wires gotdRPC over the connected client's *tg.Client;
// tests substitute an in-memory fake.
type rpc interface {
	// Dialogs returns one page of the account's dialog list (the chats
	// side), used for channel access-hash resolution.
	Dialogs(ctx context.Context, limit int) ([]tg.ChatClass, error)

	// ForumTopics lists a channel's forum topics.
	ForumTopics(ctx context.Context, channel *tg.InputChannel, limit int) (*tg.MessagesForumTopics, error)

	// TopicHistory returns up to limit messages whose thread root is
	// topicID, newest first.
	TopicHistory(ctx context.Context, peer tg.InputPeerClass, topicID, limit int) ([]tg.MessageClass, error)

	// History returns one page of the chat's full history, newest
	// first, starting below offsetID when non-zero.
	History(ctx context.Context, peer tg.InputPeerClass, limit, offsetID int) ([]tg.MessageClass, error)
}

// gotdRPC implements rpc over the raw generated API client.
type gotdRPC struct {
	api *tg.Client
}

func (r *gotdRPC) Dialogs(ctx context.Context, limit int) ([]tg.ChatClass, error) {
	result, err := r.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      limit,
		OffsetPeer: &tg.InputPeerEmpty{},
	})
	if err != nil {
		return nil, err
	}
	modified, ok := result.AsModified()
	if !ok {
		return nil, fmt.Errorf("unexpected dialogs response %T", result)
	}
	return modified.GetChats(), nil
}

func (r *gotdRPC) ForumTopics(ctx context.Context, channel *tg.InputChannel, limit int) (*tg.MessagesForumTopics, error) {
	return r.api.ChannelsGetForumTopics(ctx, &tg.ChannelsGetForumTopicsRequest{
		Channel: channel,
		Limit:   limit,
	})
}

func (r *gotdRPC) TopicHistory(ctx context.Context, peer tg.InputPeerClass, topicID, limit int) ([]tg.MessageClass, error) {
	result, err := r.api.MessagesGetReplies(ctx, &tg.MessagesGetRepliesRequest{
		Peer:  peer,
		MsgID: topicID,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	modified, ok := result.AsModified()
	if !ok {
		return nil, fmt.Errorf("unexpected replies response %T", result)
	}
	return modified.GetMessages(), nil
}

func (r *gotdRPC) History(ctx context.Context, peer tg.InputPeerClass, limit, offsetID int) ([]tg.MessageClass, error) {
	result, err := r.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     peer,
		Limit:    limit,
		OffsetID: offsetID,
	})
	if err != nil {
		return nil, err
	}
	modified, ok := result.AsModified()
	if !ok {
		return nil, fmt.Errorf("unexpected history response %T", result)
	}
	return modified.GetMessages(), nil
}
