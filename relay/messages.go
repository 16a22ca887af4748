// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/forumcast/forumcast/telegram"
)

// fetchResponse is the success envelope of /api/telegram/messages.
type fetchResponse struct {
	Success  bool               `json:"success"`
	TopicID  int                `json:"topicId,omitempty"`
	Count    int                `json:"count"`
	Messages []telegram.Message `json:"messages"`
}

// topicsResponse is the success envelope of /api/telegram/topics.
type topicsResponse struct {
	Success bool             `json:"success"`
	Count   int              `json:"count"`
	Topics  []telegram.Topic `json:"topics"`
}

// failureResponse is the envelope of every non-200 answer.
type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// fetchParams are the decoded query parameters shared by the fetch and
// stream endpoints.
type fetchParams struct {
	chatID   int64
	topicID  int
	limit    int
	offsetID int
}

// parseParams decodes chatId, topicId, limit and offsetId, applying
// the server defaults for anything absent. chatId must be known from
// the request or the configuration.
func (s *Server) parseParams(r *http.Request) (fetchParams, error) {
	params := fetchParams{
		chatID:  s.config.DefaultChatID,
		topicID: s.config.DefaultTopicID,
		limit:   s.config.DefaultLimit,
	}
	query := r.URL.Query()

	if raw := query.Get("chatId"); raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return params, fmt.Errorf("invalid chatId %q", raw)
		}
		params.chatID = chatID
	}
	if params.chatID == 0 {
		return params, fmt.Errorf("chatId is required")
	}

	if raw := query.Get("topicId"); raw != "" {
		topicID, err := strconv.Atoi(raw)
		if err != nil || topicID < 0 {
			return params, fmt.Errorf("invalid topicId %q", raw)
		}
		params.topicID = topicID
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return params, fmt.Errorf("invalid limit %q", raw)
		}
		params.limit = limit
	}

	if raw := query.Get("offsetId"); raw != "" {
		offsetID, err := strconv.Atoi(raw)
		if err != nil || offsetID < 0 {
			return params, fmt.Errorf("invalid offsetId %q", raw)
		}
		params.offsetID = offsetID
	}

	return params, nil
}

// handleMessages serves one page of messages. A topicId scopes the
// page to that topic's thread; topicId of zero (or no configured
// default) reads the chat's unscoped history instead.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseParams(r)
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request", err)
		return
	}

	var messages []telegram.Message
	if params.topicID != 0 {
		messages, err = s.backend.TopicMessages(r.Context(), params.chatID, params.topicID, params.limit)
	} else {
		messages, err = s.backend.ChatMessages(r.Context(), params.chatID, params.limit, params.offsetID)
	}
	if err != nil {
		s.writeFailure(w, http.StatusInternalServerError, "failed to fetch messages", err)
		return
	}
	if messages == nil {
		messages = []telegram.Message{}
	}

	s.logger.Debug("served message fetch",
		"chat_id", params.chatID,
		"topic_id", params.topicID,
		"count", len(messages),
	)
	s.writeJSON(w, http.StatusOK, fetchResponse{
		Success:  true,
		TopicID:  params.topicID,
		Count:    len(messages),
		Messages: messages,
	})
}

// handleTopics lists the chat's forum topics.
func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseParams(r)
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, "invalid request", err)
		return
	}

	topics, err := s.backend.Topics(r.Context(), params.chatID)
	if err != nil {
		s.writeFailure(w, http.StatusInternalServerError, "failed to fetch topics", err)
		return
	}
	if topics == nil {
		topics = []telegram.Topic{}
	}

	s.writeJSON(w, http.StatusOK, topicsResponse{
		Success: true,
		Count:   len(topics),
		Topics:  topics,
	})
}

// writeFailure sends the failure envelope. A forum-capability
// rejection gets a message the caller can act on; everything else
// passes the underlying error through as details.
func (s *Server) writeFailure(w http.ResponseWriter, status int, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	if telegram.IsUpstreamError(err, telegram.ErrTypeForumMissing) {
		details = "chat does not have forum topics enabled"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"status", status,
			"error", err,
		)
	}
	s.writeJSON(w, status, failureResponse{
		Success: false,
		Error:   message,
		Details: details,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response failed", "error", err)
	}
}
