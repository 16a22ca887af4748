// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for forumcast
// components.
//
// Configuration comes from an optional YAML file specified by:
//   - FORUMCAST_CONFIG environment variable, or
//   - --config flag passed to the command
//
// Credentials and chat defaults may also arrive via environment
// variables (TELEGRAM_API_ID, TELEGRAM_API_HASH, TELEGRAM_PHONE,
// FORUMCAST_CHAT_ID, FORUMCAST_TOPIC_ID, FORUMCAST_LISTEN). Environment
// values override file values: the Telegram credentials are secrets
// and deployments commonly inject them through the environment rather
// than writing them to disk.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for forumcast.
type Config struct {
	// Telegram configures the upstream Telegram session.
	Telegram TelegramConfig `yaml:"telegram"`

	// Server configures the HTTP relay.
	Server ServerConfig `yaml:"server"`
}

// TelegramConfig configures the MTProto client.
type TelegramConfig struct {
	// APIID is the application identifier from my.telegram.org.
	APIID int `yaml:"api_id"`

	// APIHash is the application hash from my.telegram.org.
	APIHash string `yaml:"api_hash"`

	// Phone is the account phone number, used only by the interactive
	// login flow.
	Phone string `yaml:"phone"`

	// SessionFile is where the authorized MTProto session is stored.
	// Default: ~/.cache/forumcast/session.json
	SessionFile string `yaml:"session_file"`
}

// ServerConfig configures the HTTP relay.
type ServerConfig struct {
	// Listen is the HTTP listen address. Default: :8080
	Listen string `yaml:"listen"`

	// ChatID is the default chat when a request omits chatId. Accepts
	// both bare channel IDs and Bot-API style -100… identifiers.
	ChatID int64 `yaml:"chat_id"`

	// TopicID is the default forum topic when a request omits topicId.
	TopicID int `yaml:"topic_id"`

	// GeneralTopicID is the topic that root-level messages implicitly
	// belong to. Default: 1 (the Telegram convention).
	GeneralTopicID int `yaml:"general_topic_id"`

	// MessageLimit is the default page size for one-shot fetches.
	// Default: 50.
	MessageLimit int `yaml:"message_limit"`
}

// Default returns the default configuration. These defaults are the
// base before loading the config file and environment overrides.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Telegram: TelegramConfig{
			SessionFile: filepath.Join(homeDir, ".cache", "forumcast", "session.json"),
		},
		Server: ServerConfig{
			Listen:         ":8080",
			GeneralTopicID: 1,
			MessageLimit:   50,
		},
	}
}

// Load loads configuration from the given file path, or from
// FORUMCAST_CONFIG when path is empty. A missing path with no
// FORUMCAST_CONFIG set is not an error — the environment alone can
// carry a complete configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("FORUMCAST_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvironment(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironment overlays environment variables onto the config.
// Environment values win over file values.
func (c *Config) applyEnvironment() error {
	if value := os.Getenv("TELEGRAM_API_ID"); value != "" {
		apiID, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: TELEGRAM_API_ID %q is not an integer: %w", value, err)
		}
		c.Telegram.APIID = apiID
	}
	if value := os.Getenv("TELEGRAM_API_HASH"); value != "" {
		c.Telegram.APIHash = value
	}
	if value := os.Getenv("TELEGRAM_PHONE"); value != "" {
		c.Telegram.Phone = value
	}
	if value := os.Getenv("FORUMCAST_SESSION_FILE"); value != "" {
		c.Telegram.SessionFile = value
	}
	if value := os.Getenv("FORUMCAST_LISTEN"); value != "" {
		c.Server.Listen = value
	}
	if value := os.Getenv("FORUMCAST_CHAT_ID"); value != "" {
		chatID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("config: FORUMCAST_CHAT_ID %q is not an integer: %w", value, err)
		}
		c.Server.ChatID = chatID
	}
	if value := os.Getenv("FORUMCAST_TOPIC_ID"); value != "" {
		topicID, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: FORUMCAST_TOPIC_ID %q is not an integer: %w", value, err)
		}
		c.Server.TopicID = topicID
	}
	return nil
}

// Validate checks the configuration for errors. The Telegram
// credentials are required by every binary; chat defaults are not —
// requests can carry explicit chatId/topicId.
func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.APIID == 0 {
		errs = append(errs, fmt.Errorf("telegram.api_id is required (or TELEGRAM_API_ID)"))
	}
	if c.Telegram.APIHash == "" {
		errs = append(errs, fmt.Errorf("telegram.api_hash is required (or TELEGRAM_API_HASH)"))
	}
	if c.Telegram.SessionFile == "" {
		errs = append(errs, fmt.Errorf("telegram.session_file is required"))
	}
	if c.Server.GeneralTopicID <= 0 {
		errs = append(errs, fmt.Errorf("server.general_topic_id must be positive"))
	}
	if c.Server.MessageLimit <= 0 {
		errs = append(errs, fmt.Errorf("server.message_limit must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsureSessionDir creates the directory holding the session file if
// it does not exist. The session file itself is created by the login
// flow with mode 0600.
func (c *Config) EnsureSessionDir() error {
	dir := filepath.Dir(c.Telegram.SessionFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("config: creating session directory %s: %w", dir, err)
	}
	return nil
}
