// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package topicui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/forumcast/forumcast/lib/netutil"
	"github.com/forumcast/forumcast/telegram"
)

// maxReconnectDelay caps the exponential reconnect backoff.
const maxReconnectDelay = 30 * time.Second

// baseReconnectDelay is the first reconnect delay; it doubles per
// consecutive failed attempt up to maxReconnectDelay.
const baseReconnectDelay = time.Second

// reconnectDelay returns the backoff before the Nth consecutive
// reconnect attempt (attempt counts from 1).
func reconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := baseReconnectDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	return delay
}

// Client fetches and streams one topic through the relay's HTTP API.
type Client struct {
	// BaseURL is the relay's address, e.g. "http://localhost:8080".
	BaseURL string
	// ChatID and TopicID scope every fetch and stream. Zero values are
	// omitted from requests, deferring to the relay's configured
	// defaults.
	ChatID  int64
	TopicID int
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// query returns the chat/topic query string shared by all endpoints.
func (c *Client) query() string {
	values := url.Values{}
	if c.ChatID != 0 {
		values.Set("chatId", strconv.FormatInt(c.ChatID, 10))
	}
	if c.TopicID != 0 {
		values.Set("topicId", strconv.Itoa(c.TopicID))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// fetchEnvelope mirrors the relay's fetch response wire format.
type fetchEnvelope struct {
	Success  bool               `json:"success"`
	Count    int                `json:"count"`
	Messages []telegram.Message `json:"messages"`
	Error    string             `json:"error"`
	Details  string             `json:"details"`
}

// FetchMessages retrieves the initial message page for the topic.
func (c *Client) FetchMessages(ctx context.Context) ([]telegram.Message, error) {
	target := c.BaseURL + "/api/telegram/messages" + c.query()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("topicui: building fetch request: %w", err)
	}

	response, err := c.httpClient().Do(request)
	if err != nil {
		return nil, fmt.Errorf("topicui: fetching messages: %w", err)
	}
	defer response.Body.Close()

	var envelope fetchEnvelope
	if err := netutil.DecodeResponse(response.Body, &envelope); err != nil {
		return nil, fmt.Errorf("topicui: decoding fetch response: %w", err)
	}
	if !envelope.Success {
		if envelope.Details != "" {
			return nil, fmt.Errorf("topicui: relay: %s: %s", envelope.Error, envelope.Details)
		}
		return nil, fmt.Errorf("topicui: relay: %s", envelope.Error)
	}
	return envelope.Messages, nil
}

// Event is one decoded stream event. Type is "connected", "message",
// "ping", or "error"; Message is populated for message events, Error
// for error events.
type Event struct {
	Type      string
	Timestamp int64
	Error     string
	Message   telegram.Message
}

// Stream is an open Server-Sent Events connection. Read decoded
// events from Events; the channel closes when the connection ends for
// any reason. Close aborts the connection.
type Stream struct {
	// Events delivers decoded stream events.
	Events <-chan Event

	closeOnce sync.Once
	cancel    context.CancelFunc
	body      io.Closer
}

// Close aborts the stream. Idempotent; the Events channel closes
// shortly after.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.body.Close()
	})
}

// OpenStream connects to the relay's SSE endpoint. Malformed event
// payloads are logged and dropped — one bad event never kills the
// stream.
func (c *Client) OpenStream(ctx context.Context) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	target := c.BaseURL + "/api/telegram/stream" + c.query()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("topicui: building stream request: %w", err)
	}

	response, err := c.httpClient().Do(request)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("topicui: opening stream: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		body := netutil.ErrorBody(response.Body)
		response.Body.Close()
		cancel()
		return nil, fmt.Errorf("topicui: stream rejected with status %d: %s", response.StatusCode, body)
	}

	events := make(chan Event)
	stream := &Stream{
		Events: events,
		cancel: cancel,
		body:   response.Body,
	}
	go c.readStream(response.Body, events)
	return stream, nil
}

// readStream parses data-only SSE lines until the connection ends,
// then closes the event channel.
func (c *Client) readStream(body io.Reader, events chan<- Event) {
	defer close(events)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			// Blank keep-alive lines and unknown fields are ignored.
			continue
		}
		event, err := decodeEvent([]byte(payload))
		if err != nil {
			c.logger().Warn("dropping malformed stream event",
				"payload", payload,
				"error", err,
			)
			continue
		}
		events <- event
	}
	if err := scanner.Err(); err != nil {
		c.logger().Debug("stream read ended", "error", err)
	}
}

// decodeEvent parses one event payload. The type discriminator is
// read first; message events carry the normalized message inline.
func decodeEvent(payload []byte) (Event, error) {
	var header struct {
		Type      string `json:"type"`
		Timestamp int64  `json:"timestamp"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(payload, &header); err != nil {
		return Event{}, err
	}
	event := Event{
		Type:      header.Type,
		Timestamp: header.Timestamp,
		Error:     header.Error,
	}
	switch header.Type {
	case "connected", "ping", "error":
	case "message":
		if err := json.Unmarshal(payload, &event.Message); err != nil {
			return Event{}, err
		}
	default:
		return Event{}, fmt.Errorf("unknown event type %q", header.Type)
	}
	return event, nil
}
