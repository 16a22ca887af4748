// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

// forumcast-login performs the one-time interactive Telegram
// authentication and writes the session file the other forumcast
// binaries reuse. Run it once per machine; the session survives
// restarts and re-logins are only needed when Telegram revokes it.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/forumcast/forumcast/lib/config"
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
	var phone string

	flagSet := pflag.NewFlagSet("forumcast-login", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $FORUMCAST_CONFIG)")
	flagSet.StringVar(&phone, "phone", "", "account phone number (overrides config and TELEGRAM_PHONE)")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("forumcast-login")
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

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("phone") {
		cfg.Telegram.Phone = phone
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureSessionDir(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := telegram.NewClient(cfg.Telegram.APIID, cfg.Telegram.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.Telegram.SessionFile},
	})

	flow := auth.NewFlow(&terminalAuth{phone: cfg.Telegram.Phone}, auth.SendCodeOptions{})

	return client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}

		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("fetching own profile: %w", err)
		}
		name := strings.TrimSpace(self.FirstName + " " + self.LastName)
		if self.Username != "" {
			name = "@" + self.Username
		}
		fmt.Printf("logged in as %s (id %d)\n", name, self.ID)
		fmt.Printf("session written to %s\n", cfg.Telegram.SessionFile)
		logger.Debug("login complete", "user_id", self.ID)
		return nil
	})
}

// terminalAuth prompts on the controlling terminal for whatever the
// login flow needs: phone (unless preconfigured), the code Telegram
// sends, and the 2FA password when the account has one.
type terminalAuth struct {
	phone string
}

func (a *terminalAuth) Phone(ctx context.Context) (string, error) {
	if a.phone != "" {
		return a.phone, nil
	}
	return prompt("phone number (international format): ")
}

func (a *terminalAuth) Code(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
	return prompt("login code: ")
}

func (a *terminalAuth) Password(ctx context.Context) (string, error) {
	fmt.Fprint(os.Stderr, "2FA password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

func (a *terminalAuth) AcceptTermsOfService(ctx context.Context, tos tg.HelpTermsOfService) error {
	return nil
}

func (a *terminalAuth) SignUp(ctx context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("this account does not exist; sign up with an official Telegram app first")
}

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Forumcast interactive Telegram login.

Performs the MTProto authentication flow (phone number, login code,
optional 2FA password) and writes the authorized session file that
forumcast-server and forumcast-viewer reuse.

Credentials come from the config file or the environment
(TELEGRAM_API_ID, TELEGRAM_API_HASH, TELEGRAM_PHONE).

Usage:
  forumcast-login [flags]

Flags:
%s`, flagSet.FlagUsages())
}
