// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package topicui

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/forumcast/forumcast/lib/clock"
	"github.com/forumcast/forumcast/telegram"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testModel(t *testing.T) (Model, *clock.FakeClock) {
	t.Helper()
	fakeClock := clock.Fake(time.Unix(1760000000, 0))
	client := &Client{
		BaseURL: "http://relay.invalid",
		ChatID:  4242,
		TopicID: 7,
		Logger:  quietLogger(),
	}
	return NewModel(client, fakeClock, quietLogger()), fakeClock
}

// fakeStream builds a Stream not backed by any connection.
func fakeStream() *Stream {
	return &Stream{
		Events: make(chan Event),
		cancel: func() {},
		body:   io.NopCloser(strings.NewReader("")),
	}
}

func update(t *testing.T, model Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := model.Update(msg)
	return updated.(Model), cmd
}

// opened puts the model in the connected state on the given stream.
func opened(t *testing.T, model Model, stream *Stream) Model {
	t.Helper()
	model, _ = update(t, model, streamOpenedMsg{stream: stream})
	return model
}

func streamed(t *testing.T, model Model, stream *Stream, message telegram.Message) Model {
	t.Helper()
	model, _ = update(t, model, streamEventMsg{
		stream: stream,
		event:  Event{Type: "message", Message: message},
	})
	return model
}

func messageIDs(model Model) []int {
	ids := make([]int, len(model.messages))
	for i, message := range model.messages {
		ids[i] = message.ID
	}
	return ids
}

func TestMessageList(t *testing.T) {
	t.Run("streamed messages prepend newest first", func(t *testing.T) {
		model, _ := testModel(t)
		stream := fakeStream()
		model = opened(t, model, stream)

		model = streamed(t, model, stream, telegram.Message{ID: 1, Text: "one"})
		model = streamed(t, model, stream, telegram.Message{ID: 2, Text: "two"})

		ids := messageIDs(model)
		if len(ids) != 2 || ids[0] != 2 || ids[1] != 1 {
			t.Errorf("ids = %v, want [2 1]", ids)
		}
	})

	t.Run("duplicate ids kept once", func(t *testing.T) {
		model, _ := testModel(t)
		stream := fakeStream()
		model = opened(t, model, stream)

		model = streamed(t, model, stream, telegram.Message{ID: 1, Text: "first"})
		model = streamed(t, model, stream, telegram.Message{ID: 2})
		model = streamed(t, model, stream, telegram.Message{ID: 1, Text: "again"})

		ids := messageIDs(model)
		if len(ids) != 2 {
			t.Fatalf("ids = %v, want two entries", ids)
		}
		if model.messages[1].Text != "first" {
			t.Error("duplicate replaced the original message")
		}
	})

	t.Run("list bounded at 100", func(t *testing.T) {
		model, _ := testModel(t)
		stream := fakeStream()
		model = opened(t, model, stream)

		for id := 1; id <= 105; id++ {
			model = streamed(t, model, stream, telegram.Message{ID: id})
		}

		ids := messageIDs(model)
		if len(ids) != 100 {
			t.Fatalf("list length = %d, want 100", len(ids))
		}
		if ids[0] != 105 || ids[99] != 6 {
			t.Errorf("ids span %d..%d, want 105..6", ids[0], ids[99])
		}
		// Evicted entries are forgotten, so their ids can return.
		model = streamed(t, model, stream, telegram.Message{ID: 1})
		if messageIDs(model)[0] != 1 {
			t.Error("evicted id could not re-enter the list")
		}
	})

	t.Run("initial fetch merges behind streamed messages", func(t *testing.T) {
		model, _ := testModel(t)
		stream := fakeStream()
		model = opened(t, model, stream)

		// A message races ahead of the fetch response.
		model = streamed(t, model, stream, telegram.Message{ID: 10, Text: "live"})

		model, _ = update(t, model, messagesFetchedMsg{messages: []telegram.Message{
			{ID: 10, Text: "fetched copy"},
			{ID: 9},
			{ID: 8},
		}})

		ids := messageIDs(model)
		if len(ids) != 3 || ids[0] != 10 || ids[1] != 9 || ids[2] != 8 {
			t.Errorf("ids = %v, want [10 9 8]", ids)
		}
		if model.messages[0].Text != "live" {
			t.Error("fetch overwrote the streamed copy")
		}
	})

	t.Run("fetch failure sets status", func(t *testing.T) {
		model, _ := testModel(t)
		model, _ = update(t, model, messagesFetchedMsg{err: fmt.Errorf("relay down")})
		if !strings.Contains(model.status, "relay down") {
			t.Errorf("status = %q", model.status)
		}
	})
}

func TestReconnectDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{7, 30 * time.Second},
		{20, 30 * time.Second},
	}
	for _, test := range tests {
		if got := reconnectDelay(test.attempt); got != test.want {
			t.Errorf("reconnectDelay(%d) = %v, want %v", test.attempt, got, test.want)
		}
	}
}

func TestWatchdog(t *testing.T) {
	t.Run("stale heartbeat forces reconnect", func(t *testing.T) {
		model, fakeClock := testModel(t)
		model = opened(t, model, fakeStream())

		fakeClock.Advance(46 * time.Second)
		model, cmd := update(t, model, watchdogMsg{})

		if model.connected || model.stream != nil {
			t.Error("stream survived a stale heartbeat")
		}
		if cmd == nil {
			t.Error("no command scheduled after watchdog reconnect")
		}
		if model.attempt != 1 {
			t.Errorf("attempt = %d, want 1", model.attempt)
		}
	})

	t.Run("fresh heartbeat keeps the stream", func(t *testing.T) {
		model, fakeClock := testModel(t)
		model = opened(t, model, fakeStream())

		fakeClock.Advance(30 * time.Second)
		model, _ = update(t, model, watchdogMsg{})

		if !model.connected {
			t.Error("stream dropped despite a fresh heartbeat")
		}
	})

	t.Run("ping resets the deadline", func(t *testing.T) {
		model, fakeClock := testModel(t)
		stream := fakeStream()
		model = opened(t, model, stream)

		fakeClock.Advance(40 * time.Second)
		model, _ = update(t, model, streamEventMsg{stream: stream, event: Event{Type: "ping"}})
		fakeClock.Advance(40 * time.Second)
		model, _ = update(t, model, watchdogMsg{})

		if !model.connected {
			t.Error("stream dropped 40 seconds after a ping")
		}
	})

	t.Run("idle when disconnected", func(t *testing.T) {
		model, fakeClock := testModel(t)
		fakeClock.Advance(10 * time.Minute)
		model, cmd := update(t, model, watchdogMsg{})
		if cmd == nil {
			t.Error("watchdog stopped re-arming")
		}
		if model.connected {
			t.Error("connected flipped without a stream")
		}
	})
}

func TestFocus(t *testing.T) {
	t.Run("no reconnect while blurred", func(t *testing.T) {
		model, _ := testModel(t)
		stream := fakeStream()
		model = opened(t, model, stream)
		model, _ = update(t, model, tea.BlurMsg{})

		model, cmd := update(t, model, streamClosedMsg{stream: stream})
		if cmd != nil {
			t.Error("reconnect scheduled while unfocused")
		}
		if model.connected {
			t.Error("connected flag survived stream close")
		}
	})

	t.Run("regaining focus reconnects immediately", func(t *testing.T) {
		model, _ := testModel(t)
		stream := fakeStream()
		model = opened(t, model, stream)
		model, _ = update(t, model, tea.BlurMsg{})
		model, _ = update(t, model, streamClosedMsg{stream: stream})

		_, cmd := update(t, model, tea.FocusMsg{})
		if cmd == nil {
			t.Error("no immediate reconnect on focus regain")
		}
	})

	t.Run("focus regain with open stream does nothing", func(t *testing.T) {
		model, _ := testModel(t)
		model = opened(t, model, fakeStream())
		_, cmd := update(t, model, tea.FocusMsg{})
		if cmd != nil {
			t.Error("spurious reconnect with an open stream")
		}
	})

	t.Run("backoff fires only while focused", func(t *testing.T) {
		model, _ := testModel(t)
		model, _ = update(t, model, tea.BlurMsg{})
		_, cmd := update(t, model, reconnectNowMsg{})
		if cmd != nil {
			t.Error("reconnect attempt while unfocused")
		}
	})
}

func TestStaleStreamEventsIgnored(t *testing.T) {
	model, _ := testModel(t)
	current := fakeStream()
	model = opened(t, model, current)

	replaced := fakeStream()
	model, cmd := update(t, model, streamEventMsg{
		stream: replaced,
		event:  Event{Type: "message", Message: telegram.Message{ID: 99}},
	})
	if len(model.messages) != 0 {
		t.Error("message from a replaced stream entered the list")
	}
	if cmd != nil {
		t.Error("replaced stream reader kept alive")
	}

	model, _ = update(t, model, streamClosedMsg{stream: replaced})
	if !model.connected {
		t.Error("close of a replaced stream disconnected the current one")
	}
}

func TestQuit(t *testing.T) {
	model, _ := testModel(t)
	model = opened(t, model, fakeStream())
	model, _ = update(t, model, tea.BlurMsg{})

	// Teardown runs even while unfocused.
	model, cmd := update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit produced no command")
	}
	if model.stream != nil || model.connected {
		t.Error("stream not torn down on quit")
	}
	if !model.quitting {
		t.Error("quitting flag not set")
	}

	// Pending timers must not resurrect the stream.
	if _, cmd := update(t, model, reconnectNowMsg{}); cmd != nil {
		t.Error("reconnect scheduled after quit")
	}
}
