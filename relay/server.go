// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/forumcast/forumcast/lib/clock"
	"github.com/forumcast/forumcast/telegram"
)

// defaultMessageLimit is the page size used when the request does not
// specify one.
const defaultMessageLimit = 50

// defaultHeartbeatInterval is the spacing of ping events on an open
// stream.
const defaultHeartbeatInterval = 5 * time.Second

// Backend is the slice of the Telegram client the relay needs.
// *telegram.Client satisfies it; tests substitute an in-memory fake.
type Backend interface {
	Topics(ctx context.Context, chatID int64) ([]telegram.Topic, error)
	TopicMessages(ctx context.Context, chatID int64, topicID, limit int) ([]telegram.Message, error)
	ChatMessages(ctx context.Context, chatID int64, limit, offsetID int) ([]telegram.Message, error)
	Subscribe(chatID int64, topicID int, handler func(telegram.Message)) (func(), error)
}

// Config holds configuration for the relay server.
type Config struct {
	// DefaultChatID is used when a request does not carry chatId.
	// Zero means chatId is required on every request.
	DefaultChatID int64
	// DefaultTopicID is used when a request does not carry topicId.
	// Zero means requests without topicId read unscoped chat history.
	DefaultTopicID int
	// DefaultLimit is the message page size when the request does not
	// carry limit. Defaults to 50.
	DefaultLimit int
	// HeartbeatInterval is the spacing of ping events on open streams.
	// Defaults to 5 seconds.
	HeartbeatInterval time.Duration
	// Clock drives the stream heartbeat. Defaults to the real clock;
	// tests inject a fake.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Server exposes a connected Backend over HTTP.
type Server struct {
	backend Backend
	config  Config
	clock   clock.Clock
	logger  *slog.Logger
}

// NewServer creates a relay server around an already-connected backend.
func NewServer(backend Backend, config Config) *Server {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = defaultMessageLimit
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = defaultHeartbeatInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Server{
		backend: backend,
		config:  config,
		clock:   config.Clock,
		logger:  config.Logger,
	}
}

// Handler returns the HTTP handler for all relay endpoints. The JSON
// fetch endpoints are gzip-compressed when the client accepts it; the
// stream endpoint is never compressed, since buffering would defeat
// the flush-per-event contract.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/telegram/messages", gzhttp.GzipHandler(http.HandlerFunc(s.handleMessages)))
	mux.Handle("/api/telegram/topics", gzhttp.GzipHandler(http.HandlerFunc(s.handleTopics)))
	mux.HandleFunc("/api/telegram/stream", s.handleStream)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
