// Copyright 2026 The Forumcast Authors
// SPDX-License-Identifier: Apache-2.0

package topicui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/forumcast/forumcast/lib/clock"
	"github.com/forumcast/forumcast/telegram"
)

// maxMessages bounds the message list. Older entries fall off the end
// as new ones arrive.
const maxMessages = 100

// watchdogInterval is how often stream liveness is checked.
const watchdogInterval = 10 * time.Second

// pingTimeout is how long the stream may go without a heartbeat
// before the watchdog forces a reconnect.
const pingTimeout = 45 * time.Second

// fetchTimeout bounds the initial message fetch.
const fetchTimeout = 30 * time.Second

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	senderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	statusOKStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	statusErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// messagesFetchedMsg delivers the initial fetch result.
type messagesFetchedMsg struct {
	messages []telegram.Message
	err      error
}

// streamOpenedMsg is sent when a stream connection is established.
type streamOpenedMsg struct {
	stream *Stream
}

// streamFailedMsg is sent when opening a stream fails.
type streamFailedMsg struct {
	err error
}

// streamEventMsg wraps one decoded stream event for the message loop.
type streamEventMsg struct {
	stream *Stream
	event  Event
}

// streamClosedMsg is sent when the stream's event channel closes.
type streamClosedMsg struct {
	stream *Stream
}

// reconnectNowMsg fires after the backoff delay elapses.
type reconnectNowMsg struct{}

// watchdogMsg drives the periodic stream-liveness check.
type watchdogMsg struct{}

// Model is the bubbletea model for the topic viewer.
type Model struct {
	client *Client
	clock  clock.Clock
	logger *slog.Logger

	viewport viewport.Model
	spinner  spinner.Model
	ready    bool
	width    int
	height   int

	messages []telegram.Message
	seen     map[int]struct{}

	stream    *Stream
	connected bool
	focused   bool
	quitting  bool
	attempt   int
	lastPing  time.Time
	status    string
}

// NewModel creates the viewer model. The clock is injected for
// deterministic watchdog and backoff tests; pass clock.Real() in
// production.
func NewModel(client *Client, clk clock.Clock, logger *slog.Logger) Model {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	indicator := spinner.New(spinner.WithSpinner(spinner.Dot))
	return Model{
		client:  client,
		clock:   clk,
		logger:  logger,
		spinner: indicator,
		seen:    make(map[int]struct{}),
		focused: true,
	}
}

// Init starts the initial fetch, the first stream attempt, and the
// liveness watchdog.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCmd(), m.openStreamCmd(), m.watchdogCmd())
}

func (m Model) fetchCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		messages, err := client.FetchMessages(ctx)
		return messagesFetchedMsg{messages: messages, err: err}
	}
}

func (m Model) openStreamCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		stream, err := client.OpenStream(context.Background())
		if err != nil {
			return streamFailedMsg{err: err}
		}
		return streamOpenedMsg{stream: stream}
	}
}

// eventCmd waits for the next event on the given stream. A closed
// channel turns into streamClosedMsg.
func (m Model) eventCmd(stream *Stream) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-stream.Events
		if !ok {
			return streamClosedMsg{stream: stream}
		}
		return streamEventMsg{stream: stream, event: event}
	}
}

func (m Model) watchdogCmd() tea.Cmd {
	wait := m.clock.After(watchdogInterval)
	return func() tea.Msg {
		<-wait
		return watchdogMsg{}
	}
}

func (m Model) reconnectCmd() tea.Cmd {
	wait := m.clock.After(reconnectDelay(m.attempt))
	return func() tea.Msg {
		<-wait
		return reconnectNowMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m.teardown()
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentHeight := msg.Height - 3
		if contentHeight < 1 {
			contentHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, contentHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = contentHeight
		}
		m.viewport.SetContent(m.renderMessages())
		return m, nil

	case tea.FocusMsg:
		m.focused = true
		if !m.quitting && m.stream == nil {
			return m, m.openStreamCmd()
		}
		return m, nil

	case tea.BlurMsg:
		m.focused = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case messagesFetchedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("fetch failed: %v", msg.err)
			m.logger.Warn("initial fetch failed", "error", msg.err)
			return m, nil
		}
		m.seedMessages(msg.messages)
		m.refreshContent()
		return m, nil

	case streamOpenedMsg:
		m.stream = msg.stream
		m.connected = true
		m.attempt = 0
		m.lastPing = m.clock.Now()
		m.status = ""
		return m, m.eventCmd(msg.stream)

	case streamFailedMsg:
		m.attempt++
		m.status = fmt.Sprintf("stream failed: %v", msg.err)
		m.logger.Warn("stream connect failed",
			"attempt", m.attempt,
			"error", msg.err,
		)
		return m.scheduleReconnect()

	case streamEventMsg:
		if msg.stream != m.stream {
			// A reader from a stream that was already replaced.
			return m, nil
		}
		switch msg.event.Type {
		case "connected", "ping":
			m.lastPing = m.clock.Now()
		case "message":
			m.insertMessage(msg.event.Message)
			m.refreshContent()
		case "error":
			m.status = msg.event.Error
		}
		return m, m.eventCmd(msg.stream)

	case streamClosedMsg:
		if msg.stream != m.stream {
			return m, nil
		}
		m.stream = nil
		m.connected = false
		m.attempt++
		return m.scheduleReconnect()

	case reconnectNowMsg:
		if m.stream == nil && m.focused && !m.quitting {
			return m, m.openStreamCmd()
		}
		return m, nil

	case watchdogMsg:
		if m.quitting {
			return m, nil
		}
		if m.connected && m.clock.Now().Sub(m.lastPing) > pingTimeout {
			m.logger.Warn("stream heartbeat lost, forcing reconnect",
				"last_ping", m.lastPing,
			)
			if m.stream != nil {
				m.stream.Close()
			}
			m.stream = nil
			m.connected = false
			m.attempt++
			m.status = "stream stalled, reconnecting"
			updated, reconnect := m.scheduleReconnect()
			model := updated.(Model)
			return model, tea.Batch(model.watchdogCmd(), reconnect)
		}
		return m, m.watchdogCmd()
	}

	return m, nil
}

// teardown closes the stream and quits. Runs unconditionally, focused
// or not.
func (m Model) teardown() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
	m.connected = false
	return m, tea.Quit
}

// scheduleReconnect arms the backoff timer for the next attempt.
// Reconnection is suspended while the window is unfocused; regaining
// focus triggers an immediate attempt instead.
func (m Model) scheduleReconnect() (tea.Model, tea.Cmd) {
	if !m.focused || m.quitting {
		return m, nil
	}
	return m, m.reconnectCmd()
}

// seedMessages appends the initial fetch results. Streamed messages
// that raced ahead of the fetch stay in front; fetched history is
// older by construction.
func (m *Model) seedMessages(fetched []telegram.Message) {
	for _, message := range fetched {
		if _, dup := m.seen[message.ID]; dup {
			continue
		}
		m.seen[message.ID] = struct{}{}
		m.messages = append(m.messages, message)
	}
	m.truncate()
}

// insertMessage prepends one newly streamed message, keeping the list
// newest-first, deduplicated, and bounded.
func (m *Model) insertMessage(message telegram.Message) {
	if _, dup := m.seen[message.ID]; dup {
		return
	}
	m.seen[message.ID] = struct{}{}
	m.messages = append([]telegram.Message{message}, m.messages...)
	m.truncate()
}

func (m *Model) truncate() {
	if len(m.messages) <= maxMessages {
		return
	}
	for _, evicted := range m.messages[maxMessages:] {
		delete(m.seen, evicted.ID)
	}
	m.messages = m.messages[:maxMessages]
}

func (m *Model) refreshContent() {
	if m.ready {
		m.viewport.SetContent(m.renderMessages())
	}
}

// renderMessages formats the list newest-first.
func (m Model) renderMessages() string {
	if len(m.messages) == 0 {
		return timestampStyle.Render("no messages yet")
	}
	var b strings.Builder
	for _, message := range m.messages {
		stamp := time.Unix(message.Timestamp, 0).Format("15:04:05")
		b.WriteString(timestampStyle.Render(stamp))
		if message.SenderID != 0 {
			b.WriteString(" ")
			b.WriteString(senderStyle.Render(fmt.Sprintf("[%d]", message.SenderID)))
		}
		b.WriteString(" ")
		if message.Text == "" {
			b.WriteString(timestampStyle.Render("(media)"))
		} else {
			b.WriteString(message.Text)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	title := titleStyle.Render(fmt.Sprintf("forumcast — chat %d topic %d", m.client.ChatID, m.client.TopicID))

	var status string
	switch {
	case m.status != "":
		status = statusErrStyle.Render(m.status)
	case m.connected:
		status = statusOKStyle.Render("● live")
	case !m.focused:
		status = timestampStyle.Render("○ paused (unfocused)")
	default:
		status = m.spinner.View() + timestampStyle.Render(" connecting")
	}

	return title + "\n" + m.viewport.View() + "\n" + status
}
