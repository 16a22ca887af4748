// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"fmt"
	"sync"

	"github.com/gotd/td/tg"
)

// subscription is one registered message handler.
type subscription struct {
	channelID int64
	topicID   int
	handler   func(Message)
}

// Subscribe registers handler for messages newly arriving in the given
// chat and topic. Classification follows the platform's thread
// semantics: when topicID is the configured general topic, messages
// with no reply metadata are accepted alongside explicit general-topic
// replies; for any other topic only an exact thread-root match is
// accepted. Accepted messages are normalized before the handler sees
// them.
//
// The returned cancel function unregisters the handler and is
// idempotent. Handlers run on the connection's update goroutine and
// must not block; hand the message to a channel or goroutine for any
// slow work.
func (c *Client) Subscribe(chatID int64, topicID int, handler func(Message)) (func(), error) {
	if handler == nil {
		return nil, fmt.Errorf("telegram: Subscribe requires a handler")
	}

	c.mu.Lock()
	connected := c.stop != nil
	c.mu.Unlock()
	if !connected {
		return nil, ErrNotConnected
	}

	c.subsMu.Lock()
	if c.subs == nil {
		c.subs = make(map[int]*subscription)
	}
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = &subscription{
		channelID: bareChannelID(chatID),
		topicID:   topicID,
		handler:   handler,
	}
	active := len(c.subs)
	c.subsMu.Unlock()

	c.logger.Info("subscribed to topic",
		"chat_id", chatID,
		"topic_id", topicID,
		"active_subscriptions", active,
	)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			remaining := len(c.subs)
			c.subsMu.Unlock()
			c.logger.Info("unsubscribed from topic",
				"chat_id", chatID,
				"topic_id", topicID,
				"active_subscriptions", remaining,
			)
		})
	}
	return cancel, nil
}

// dispatch fans one raw update message out to matching subscriptions.
// Called from the gotd update dispatcher.
func (c *Client) dispatch(raw tg.MessageClass) {
	message, ok := raw.(*tg.Message)
	if !ok {
		return
	}

	// Forum topics only exist in channels; anything else cannot match
	// a subscription.
	channel, ok := message.PeerID.(*tg.PeerChannel)
	if !ok {
		return
	}

	c.subsMu.Lock()
	subscribers := make([]*subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subscribers = append(subscribers, sub)
	}
	c.subsMu.Unlock()

	for _, sub := range subscribers {
		if channel.ChannelID != sub.channelID {
			continue
		}
		if !c.matchesTopic(message, sub.topicID) {
			continue
		}
		normalized, ok := normalize(message)
		if !ok {
			continue
		}
		// Root-level general-topic messages carry no thread root;
		// stamp the subscription's topic so consumers see a uniform
		// record.
		if normalized.TopicID == 0 {
			normalized.TopicID = sub.topicID
		}
		sub.handler(normalized)
	}
}

// matchesTopic decides whether a raw message belongs to the given
// topic. For the general topic, messages with no reply metadata count
// as belonging to it — root-level messages carry no thread root. For
// every other topic, only an exact thread-root match is accepted.
func (c *Client) matchesTopic(message *tg.Message, topicID int) bool {
	root, ok := threadRoot(message)
	if topicID == c.generalTopicID() {
		return !ok || root == topicID
	}
	return ok && root == topicID
}
