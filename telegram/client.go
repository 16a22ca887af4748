// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gotd/contrib/bg"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// connectAttempts is the number of transport connect attempts made
// before Connect fails with *ConnectionError.
const connectAttempts = 5

// topicPageSize is the fixed page size for forum-topic listings.
const topicPageSize = 100

// Config holds configuration for creating a Client.
type Config struct {
	// APIID is the application identifier from my.telegram.org.
	APIID int
	// APIHash is the application hash from my.telegram.org.
	APIHash string
	// SessionFile is the path of the authorized session, as written by
	// the forumcast-login flow.
	SessionFile string
	// GeneralTopicID is the topic that root-level messages implicitly
	// belong to. If zero, 1 is used (the platform convention).
	GeneralTopicID int
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// ClientLog, when non-nil, is handed to the gotd client for its
	// internal logging. gotd logs through zap, not slog; leave nil to
	// keep the library silent.
	ClientLog *zap.Logger
}

// Client owns one Telegram session. The zero value is not usable;
// create with NewClient, establish the session with Connect, release
// it with Close.
//
// Client is safe for concurrent use: the read operations share the
// session, and subscriptions are tracked under their own lock so the
// update goroutine never contends with connect/close.
type Client struct {
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	stop     bg.StopFunc
	api      rpc
	channels map[int64]*tg.InputChannel

	subsMu    sync.Mutex
	subs      map[int]*subscription
	nextSubID int
}

// NewClient creates a new Client. It does not touch the network —
// call Connect to establish the session.
func NewClient(config Config) (*Client, error) {
	if config.APIID == 0 {
		return nil, fmt.Errorf("telegram: APIID is required")
	}
	if config.APIHash == "" {
		return nil, fmt.Errorf("telegram: APIHash is required")
	}
	if config.SessionFile == "" {
		return nil, fmt.Errorf("telegram: SessionFile is required")
	}
	if config.GeneralTopicID == 0 {
		config.GeneralTopicID = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: config,
		logger: logger,
	}, nil
}

// errNotAuthorized marks a connect failure that retrying the transport
// cannot fix: the session file exists but holds no authorization.
var errNotAuthorized = errors.New("session is not authorized: run forumcast-login first")

// Connect establishes the Telegram session. Idempotent — returns nil
// immediately when already connected. The transport is retried up to
// five times; exhaustion fails with *ConnectionError. An unauthorized
// session fails immediately without retry, since no amount of
// reconnecting produces credentials.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &ConnectionError{Attempts: attempt - 1, Err: err}
		}

		stop, api, err := c.connectOnce(ctx)
		if err != nil {
			if errors.Is(err, errNotAuthorized) {
				return fmt.Errorf("telegram: %w", err)
			}
			lastErr = err
			c.logger.Warn("telegram connect failed, retrying",
				"attempt", attempt,
				"max_attempts", connectAttempts,
				"error", err,
			)
			continue
		}

		c.stop = stop
		c.api = api
		c.channels = make(map[int64]*tg.InputChannel)
		c.logger.Info("telegram session established",
			"session_file", c.config.SessionFile,
			"attempt", attempt,
		)
		return nil
	}

	return &ConnectionError{Attempts: connectAttempts, Err: lastErr}
}

// connectOnce makes one connect attempt: builds a fresh gotd client
// wired to the update dispatcher, starts its background run loop, and
// verifies the stored session is authorized.
func (c *Client) connectOnce(ctx context.Context) (bg.StopFunc, rpc, error) {
	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewChannelMessage(func(ctx context.Context, entities tg.Entities, update *tg.UpdateNewChannelMessage) error {
		c.dispatch(update.Message)
		return nil
	})
	dispatcher.OnNewMessage(func(ctx context.Context, entities tg.Entities, update *tg.UpdateNewMessage) error {
		c.dispatch(update.Message)
		return nil
	})

	options := telegram.Options{
		SessionStorage: &session.FileStorage{Path: c.config.SessionFile},
		UpdateHandler:  dispatcher,
	}
	if c.config.ClientLog != nil {
		options.Logger = c.config.ClientLog
	}

	client := telegram.NewClient(c.config.APIID, c.config.APIHash, options)

	stop, err := bg.Connect(client, bg.WithContext(ctx))
	if err != nil {
		return nil, nil, err
	}

	status, err := client.Auth().Status(ctx)
	if err != nil {
		_ = stop()
		return nil, nil, fmt.Errorf("checking authorization: %w", err)
	}
	if !status.Authorized {
		_ = stop()
		return nil, nil, errNotAuthorized
	}

	return stop, &gotdRPC{api: client.API()}, nil
}

// Close releases the session. Safe to call when already disconnected
// (no-op) and safe to call more than once. Active subscriptions stop
// receiving messages; their cancel functions remain safe to call.
func (c *Client) Close() error {
	c.mu.Lock()
	stop := c.stop
	c.stop = nil
	c.api = nil
	c.channels = nil
	c.mu.Unlock()

	if stop == nil {
		return nil
	}
	if err := stop(); err != nil {
		return fmt.Errorf("telegram: closing session: %w", err)
	}
	c.logger.Info("telegram session closed")
	return nil
}

// connection returns the live RPC handle, or ErrNotConnected.
func (c *Client) connection() (rpc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api == nil {
		return nil, ErrNotConnected
	}
	return c.api, nil
}

// Topics lists the chat's forum topics with a fixed page size of 100.
// Deleted-topic variants are filtered out. A chat without forum
// capability fails with *UpstreamError of type CHANNEL_FORUM_MISSING.
func (c *Client) Topics(ctx context.Context, chatID int64) ([]Topic, error) {
	api, err := c.connection()
	if err != nil {
		return nil, err
	}
	channel, err := c.resolveChannel(ctx, chatID)
	if err != nil {
		return nil, err
	}

	result, err := api.ForumTopics(ctx, channel, topicPageSize)
	if err != nil {
		return nil, wrapUpstream("listing forum topics", err)
	}

	topics := make([]Topic, 0, len(result.Topics))
	for _, raw := range result.Topics {
		topic, ok := raw.(*tg.ForumTopic)
		if !ok {
			// The deleted variant carries only an ID.
			continue
		}
		topics = append(topics, Topic{
			ID:            topic.ID,
			Title:         topic.Title,
			UnreadCount:   topic.UnreadCount,
			LastMessageID: topic.TopMessage,
			CreatedAt:     int64(topic.Date),
			Closed:        topic.Closed,
			Pinned:        topic.Pinned,
		})
	}

	c.logger.Debug("listed forum topics",
		"chat_id", chatID,
		"topics", len(topics),
	)
	return topics, nil
}

// TopicMessages retrieves up to limit messages whose thread root is
// topicID, normalized, in platform order (newest first, unreversed).
func (c *Client) TopicMessages(ctx context.Context, chatID int64, topicID, limit int) ([]Message, error) {
	api, err := c.connection()
	if err != nil {
		return nil, err
	}
	channel, err := c.resolveChannel(ctx, chatID)
	if err != nil {
		return nil, err
	}

	raw, err := api.TopicHistory(ctx, inputPeer(channel), topicID, limit)
	if err != nil {
		return nil, wrapUpstream("fetching topic messages", err)
	}
	return normalizeAll(raw), nil
}

// ChatMessages retrieves one page of the chat's full history,
// unscoped to any topic. offsetID of zero starts at the newest
// message; a non-zero offsetID pages backwards from that message.
func (c *Client) ChatMessages(ctx context.Context, chatID int64, limit, offsetID int) ([]Message, error) {
	api, err := c.connection()
	if err != nil {
		return nil, err
	}
	channel, err := c.resolveChannel(ctx, chatID)
	if err != nil {
		return nil, err
	}

	raw, err := api.History(ctx, inputPeer(channel), limit, offsetID)
	if err != nil {
		return nil, wrapUpstream("fetching chat history", err)
	}
	return normalizeAll(raw), nil
}

// inputPeer converts an input channel to the peer form the message
// history calls expect.
func inputPeer(channel *tg.InputChannel) tg.InputPeerClass {
	return &tg.InputPeerChannel{
		ChannelID:  channel.ChannelID,
		AccessHash: channel.AccessHash,
	}
}

func (c *Client) generalTopicID() int {
	return c.config.GeneralTopicID
}
