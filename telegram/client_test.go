// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// fakeRPC is an in-memory rpc implementation. It records the
// parameters of the last call so tests can assert on them.
type fakeRPC struct {
	chats       []tg.ChatClass
	dialogsErr  error
	dialogCalls int

	forumTopics *tg.MessagesForumTopics
	forumErr    error

	replies      []tg.MessageClass
	repliesErr   error
	lastTopicID  int
	lastLimit    int
	lastOffsetID int

	history    []tg.MessageClass
	historyErr error
}

func (f *fakeRPC) Dialogs(ctx context.Context, limit int) ([]tg.ChatClass, error) {
	f.dialogCalls++
	return f.chats, f.dialogsErr
}

func (f *fakeRPC) ForumTopics(ctx context.Context, channel *tg.InputChannel, limit int) (*tg.MessagesForumTopics, error) {
	f.lastLimit = limit
	return f.forumTopics, f.forumErr
}

func (f *fakeRPC) TopicHistory(ctx context.Context, peer tg.InputPeerClass, topicID, limit int) ([]tg.MessageClass, error) {
	f.lastTopicID = topicID
	f.lastLimit = limit
	return f.replies, f.repliesErr
}

func (f *fakeRPC) History(ctx context.Context, peer tg.InputPeerClass, limit, offsetID int) ([]tg.MessageClass, error) {
	f.lastLimit = limit
	f.lastOffsetID = offsetID
	return f.history, f.historyErr
}

// dialogWithChannel returns a dialog page containing the test channel.
func dialogWithChannel() []tg.ChatClass {
	return []tg.ChatClass{
		&tg.Chat{ID: 77},
		&tg.Channel{ID: 4242, AccessHash: 99, Title: "engineering"},
	}
}

func TestNewClient(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		client, err := NewClient(Config{APIID: 1, APIHash: "hash", SessionFile: "session.json"})
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		if client.generalTopicID() != 1 {
			t.Errorf("default general topic = %d, want 1", client.generalTopicID())
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		if _, err := NewClient(Config{APIHash: "hash", SessionFile: "s"}); err == nil {
			t.Error("expected error for missing APIID")
		}
		if _, err := NewClient(Config{APIID: 1, SessionFile: "s"}); err == nil {
			t.Error("expected error for missing APIHash")
		}
		if _, err := NewClient(Config{APIID: 1, APIHash: "hash"}); err == nil {
			t.Error("expected error for missing SessionFile")
		}
	})
}

func TestTopics(t *testing.T) {
	t.Run("maps topics and filters deleted", func(t *testing.T) {
		general := &tg.ForumTopic{
			ID:          1,
			Date:        1750000000,
			Title:       "General",
			TopMessage:  120,
			UnreadCount: 3,
			Pinned:      true,
		}
		releases := &tg.ForumTopic{
			ID:     7,
			Date:   1750100000,
			Title:  "Releases",
			Closed: true,
		}
		fake := &fakeRPC{
			chats: dialogWithChannel(),
			forumTopics: &tg.MessagesForumTopics{
				Count:  3,
				Topics: []tg.ForumTopicClass{general, &tg.ForumTopicDeleted{ID: 5}, releases},
			},
		}
		client := connectedClient(t, fake)

		topics, err := client.Topics(context.Background(), 4242)
		if err != nil {
			t.Fatalf("Topics: %v", err)
		}
		if len(topics) != 2 {
			t.Fatalf("got %d topics, want 2 (deleted filtered)", len(topics))
		}
		if fake.lastLimit != topicPageSize {
			t.Errorf("page size = %d, want %d", fake.lastLimit, topicPageSize)
		}

		first := topics[0]
		if first.ID != 1 || first.Title != "General" || first.UnreadCount != 3 ||
			first.LastMessageID != 120 || first.CreatedAt != 1750000000 || !first.Pinned || first.Closed {
			t.Errorf("unexpected first topic: %+v", first)
		}
		if !topics[1].Closed {
			t.Error("closed flag not mapped")
		}
	})

	t.Run("forum not enabled", func(t *testing.T) {
		fake := &fakeRPC{
			chats:    dialogWithChannel(),
			forumErr: tgerr.New(400, "CHANNEL_FORUM_MISSING"),
		}
		client := connectedClient(t, fake)

		_, err := client.Topics(context.Background(), 4242)
		if err == nil {
			t.Fatal("expected error for non-forum chat")
		}
		if !IsUpstreamError(err, ErrTypeForumMissing) {
			t.Errorf("expected CHANNEL_FORUM_MISSING upstream error, got: %v", err)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		client, err := NewClient(Config{APIID: 1, APIHash: "h", SessionFile: "s"})
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		if _, err := client.Topics(context.Background(), 4242); !errors.Is(err, ErrNotConnected) {
			t.Fatalf("err = %v, want ErrNotConnected", err)
		}
	})
}

func TestTopicMessages(t *testing.T) {
	fake := &fakeRPC{
		chats: dialogWithChannel(),
		replies: []tg.MessageClass{
			channelMessage(103, "newest", inThread(100, 7)),
			channelMessage(102, "middle", inThread(100, 7)),
			&tg.MessageService{ID: 101},
		},
	}
	client := connectedClient(t, fake)

	messages, err := client.TopicMessages(context.Background(), 4242, 7, 5)
	if err != nil {
		t.Fatalf("TopicMessages: %v", err)
	}
	if fake.lastTopicID != 7 || fake.lastLimit != 5 {
		t.Errorf("call params topicID=%d limit=%d, want 7, 5", fake.lastTopicID, fake.lastLimit)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2 (service dropped)", len(messages))
	}
	if messages[0].ID != 103 || messages[1].ID != 102 {
		t.Errorf("platform order not preserved: %v", messages)
	}
}

func TestChatMessages(t *testing.T) {
	fake := &fakeRPC{
		chats:   dialogWithChannel(),
		history: []tg.MessageClass{channelMessage(200, "page")},
	}
	client := connectedClient(t, fake)

	messages, err := client.ChatMessages(context.Background(), 4242, 50, 199)
	if err != nil {
		t.Fatalf("ChatMessages: %v", err)
	}
	if fake.lastLimit != 50 || fake.lastOffsetID != 199 {
		t.Errorf("call params limit=%d offsetID=%d, want 50, 199", fake.lastLimit, fake.lastOffsetID)
	}
	if len(messages) != 1 || messages[0].ID != 200 {
		t.Errorf("unexpected messages: %v", messages)
	}
}

func TestResolveChannel(t *testing.T) {
	t.Run("caches resolution", func(t *testing.T) {
		fake := &fakeRPC{chats: dialogWithChannel()}
		client := connectedClient(t, fake)

		if _, err := client.ChatMessages(context.Background(), 4242, 10, 0); err != nil {
			t.Fatalf("first call: %v", err)
		}
		if _, err := client.ChatMessages(context.Background(), 4242, 10, 0); err != nil {
			t.Fatalf("second call: %v", err)
		}
		if fake.dialogCalls != 1 {
			t.Errorf("dialog scans = %d, want 1 (cached)", fake.dialogCalls)
		}
	})

	t.Run("accepts Bot-API chat identifier", func(t *testing.T) {
		fake := &fakeRPC{chats: dialogWithChannel()}
		client := connectedClient(t, fake)

		if _, err := client.ChatMessages(context.Background(), -1000000004242, 10, 0); err != nil {
			t.Fatalf("ChatMessages with -100 prefix: %v", err)
		}
	})

	t.Run("unknown chat", func(t *testing.T) {
		fake := &fakeRPC{chats: dialogWithChannel()}
		client := connectedClient(t, fake)

		_, err := client.ChatMessages(context.Background(), 1111, 10, 0)
		if !IsUpstreamError(err, ErrTypeChannelInvalid) {
			t.Fatalf("expected CHANNEL_INVALID, got: %v", err)
		}
	})
}

func TestBareChannelID(t *testing.T) {
	tests := []struct {
		input int64
		want  int64
	}{
		{4242, 4242},
		{-1001234567890, 1234567890},
		{-456, 456},
	}
	for _, test := range tests {
		if got := bareChannelID(test.input); got != test.want {
			t.Errorf("bareChannelID(%d) = %d, want %d", test.input, got, test.want)
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	stopCalls := 0
	client := connectedClient(t, &fakeRPC{})
	client.stop = func() error {
		stopCalls++
		return nil
	}

	if err := client.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if stopCalls != 1 {
		t.Errorf("stop called %d times, want 1", stopCalls)
	}

	if _, err := client.ChatMessages(context.Background(), 4242, 10, 0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("operations after Close: err = %v, want ErrNotConnected", err)
	}
}

func TestUpstreamError(t *testing.T) {
	t.Run("error message format", func(t *testing.T) {
		err := &UpstreamError{Type: ErrTypeForumMissing, Code: 400, Message: "forum required"}
		expected := "telegram: CHANNEL_FORUM_MISSING (400): forum required"
		if err.Error() != expected {
			t.Errorf("unexpected error message: %s", err.Error())
		}
	})

	t.Run("IsUpstreamError on non-upstream error", func(t *testing.T) {
		if IsUpstreamError(context.Canceled, ErrTypeForumMissing) {
			t.Error("IsUpstreamError matched a non-upstream error")
		}
	})

	t.Run("ConnectionError unwraps", func(t *testing.T) {
		inner := errors.New("dial tcp: refused")
		err := &ConnectionError{Attempts: 5, Err: inner}
		if !errors.Is(err, inner) {
			t.Error("ConnectionError does not unwrap to the transport error")
		}
	})
}
