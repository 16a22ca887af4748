// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/forumcast/forumcast/telegram"
)

// streamBufferSize is the per-stream event queue. The subscription
// handler runs on the connection's update goroutine and must not
// block, so a stream that cannot keep up drops messages rather than
// stalling every other consumer.
const streamBufferSize = 256

// connectedEvent opens every stream.
type connectedEvent struct {
	Type      string `json:"type"`
	ChatID    int64  `json:"chatId"`
	TopicID   int    `json:"topicId"`
	Timestamp int64  `json:"timestamp"`
}

// messageEvent pushes one accepted message.
type messageEvent struct {
	Type string `json:"type"`
	telegram.Message
}

// pingEvent is the stream heartbeat.
type pingEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// errorEvent reports a setup failure, once, before the stream closes.
type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleStream serves the Server-Sent Events stream: a connected
// event, then one message event per accepted message and a ping every
// heartbeat interval, until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseParams(r)
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported by response writer")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if err := s.writeEvent(w, flusher, connectedEvent{
		Type:      "connected",
		ChatID:    params.chatID,
		TopicID:   params.topicID,
		Timestamp: s.clock.Now().Unix(),
	}); err != nil {
		return
	}

	events := make(chan telegram.Message, streamBufferSize)
	cancel, err := s.backend.Subscribe(params.chatID, params.topicID, func(message telegram.Message) {
		select {
		case events <- message:
		default:
			s.logger.Warn("dropping message, slow stream consumer",
				"chat_id", params.chatID,
				"topic_id", params.topicID,
				"message_id", message.ID,
			)
		}
	})
	if err != nil {
		s.logger.Error("stream subscription failed",
			"chat_id", params.chatID,
			"topic_id", params.topicID,
			"error", err,
		)
		_ = s.writeEvent(w, flusher, errorEvent{
			Type:  "error",
			Error: err.Error(),
		})
		return
	}
	defer cancel()

	s.logger.Info("stream opened",
		"chat_id", params.chatID,
		"topic_id", params.topicID,
		"remote", r.RemoteAddr,
	)

	ticker := s.clock.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("stream closed by client",
				"chat_id", params.chatID,
				"topic_id", params.topicID,
			)
			return
		case message := <-events:
			if err := s.writeEvent(w, flusher, messageEvent{
				Type:    "message",
				Message: message,
			}); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.writeEvent(w, flusher, pingEvent{
				Type:      "ping",
				Timestamp: s.clock.Now().Unix(),
			}); err != nil {
				return
			}
		}
	}
}

// writeEvent marshals v as one data-only SSE event and flushes it. A
// write error means the client is gone; the caller should stop.
func (s *Server) writeEvent(w http.ResponseWriter, flusher http.Flusher, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("relay: encoding event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		s.logger.Debug("client disconnected during stream write", "error", err)
		return err
	}
	flusher.Flush()
	return nil
}
