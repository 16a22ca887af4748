// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

// forumcast-server is the relay daemon: it owns the single Telegram
// session and serves the JSON fetch endpoints and the Server-Sent
// Events stream over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/forumcast/forumcast/lib/config"
	"github.com/forumcast/forumcast/lib/version"
	"github.com/forumcast/forumcast/relay"
	"github.com/forumcast/forumcast/telegram"
)

// shutdownTimeout bounds the graceful drain of open requests and
// streams on SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var listen string
	var chatID int64
	var topicID int
	var logLevel string
	var debugTelegram bool

	flagSet := pflag.NewFlagSet("forumcast-server", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $FORUMCAST_CONFIG)")
	flagSet.StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	flagSet.Int64Var(&chatID, "chat-id", 0, "default chat for requests that omit chatId (overrides config)")
	flagSet.IntVar(&topicID, "topic-id", 0, "default forum topic for requests that omit topicId (overrides config)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolVar(&debugTelegram, "debug-telegram", false, "enable the Telegram client library's internal logging")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("forumcast-server")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("listen") {
		cfg.Server.Listen = listen
	}
	if flagSet.Changed("chat-id") {
		cfg.Server.ChatID = chatID
	}
	if flagSet.Changed("topic-id") {
		cfg.Server.TopicID = topicID
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureSessionDir(); err != nil {
		return err
	}

	var clientLog *zap.Logger
	if debugTelegram {
		clientLog, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("building telegram debug logger: %w", err)
		}
		defer func() { _ = clientLog.Sync() }()
	}

	client, err := telegram.NewClient(telegram.Config{
		APIID:          cfg.Telegram.APIID,
		APIHash:        cfg.Telegram.APIHash,
		SessionFile:    cfg.Telegram.SessionFile,
		GeneralTopicID: cfg.Server.GeneralTopicID,
		Logger:         logger,
		ClientLog:      clientLog,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("closing telegram session", "error", err)
		}
	}()

	server := relay.NewServer(client, relay.Config{
		DefaultChatID:  cfg.Server.ChatID,
		DefaultTopicID: cfg.Server.TopicID,
		DefaultLimit:   cfg.Server.MessageLimit,
		Logger:         logger,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: server.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("relay listening",
			"address", cfg.Server.Listen,
			"default_chat_id", cfg.Server.ChatID,
			"default_topic_id", cfg.Server.TopicID,
		)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func parseLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Forumcast relay server.

Connects one Telegram session (authorized beforehand with
forumcast-login) and serves it over HTTP:

  GET /api/telegram/messages   one page of topic or chat messages
  GET /api/telegram/topics     the chat's forum topics
  GET /api/telegram/stream     Server-Sent Events with live messages
  GET /healthz                 liveness probe

Credentials come from the config file or the environment
(TELEGRAM_API_ID, TELEGRAM_API_HASH).

Usage:
  forumcast-server [flags]

Flags:
%s`, flagSet.FlagUsages())
}
