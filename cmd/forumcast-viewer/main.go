// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

// forumcast-viewer is the terminal viewer for one forum topic: an
// initial fetch through the relay, then a live message stream with
// automatic reconnection while the window is focused.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/forumcast/forumcast/lib/clock"
	"github.com/forumcast/forumcast/lib/config"
	"github.com/forumcast/forumcast/lib/topicui"
	"github.com/forumcast/forumcast/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var serverURL string
	var chatID int64
	var topicID int
	var logOutput string

	flagSet := pflag.NewFlagSet("forumcast-viewer", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $FORUMCAST_CONFIG)")
	flagSet.StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the forumcast relay")
	flagSet.Int64Var(&chatID, "chat-id", 0, "chat to view (default: the relay's configured chat)")
	flagSet.IntVar(&topicID, "topic-id", 0, "forum topic to view (default: the relay's configured topic)")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("forumcast-viewer")
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

	// Chat and topic defaults can come from the same config file the
	// server reads, so a box running both needs them stated only once.
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if chatID == 0 {
		chatID = cfg.Server.ChatID
	}
	if topicID == 0 {
		topicID = cfg.Server.TopicID
	}

	// The TUI owns the terminal; diagnostics go to a file or nowhere.
	var logWriter io.Writer = io.Discard
	if logOutput != "" {
		file, err := os.OpenFile(logOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log output: %w", err)
		}
		defer file.Close()
		logWriter = file
	}
	logger := slog.New(slog.NewJSONHandler(logWriter, nil))

	client := &topicui.Client{
		BaseURL: serverURL,
		ChatID:  chatID,
		TopicID: topicID,
		Logger:  logger,
	}

	model := topicui.NewModel(client, clock.Real(), logger)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running viewer: %w", err)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Forumcast topic viewer — live terminal view of one forum topic.

Fetches recent messages from the relay, then follows the live stream.
The stream reconnects with exponential backoff while the terminal
window is focused, and pauses while it is not.

Keys: j/k or arrows scroll, q or ctrl+c quits.

Usage:
  forumcast-viewer [flags]

Flags:
%s`, flagSet.FlagUsages())
}
