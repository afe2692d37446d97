// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/parley-chat/parley/timeline"
)

// refreshInterval is how often the model re-reads the source snapshot.
// Streaming deltas arrive far more often than this; the transcript
// coalesces them into one redraw per tick.
const refreshInterval = 250 * time.Millisecond

// noticeFadeDelay is how long a send or reload error stays in the
// status bar.
const noticeFadeDelay = 4 * time.Second

// sendTimeout bounds the network call behind one enter keypress.
const sendTimeout = 10 * time.Second

// FocusRegion identifies which pane has keyboard focus.
type FocusRegion int

const (
	// FocusInput means keystrokes go to the input line.
	FocusInput FocusRegion = iota
	// FocusTranscript means navigation keys scroll the transcript.
	FocusTranscript
)

// refreshMsg drives the periodic snapshot re-read.
type refreshMsg struct{}

// sendResultMsg reports the outcome of an asynchronous send.
type sendResultMsg struct {
	err error
}

// resetResultMsg reports the outcome of an asynchronous reload.
type resetResultMsg struct {
	err error
}

// noticeFadeMsg clears the status bar notice after a delay.
type noticeFadeMsg struct{}

// renderer forces the ANSI 256-color profile so output is stable
// across terminals that misreport their capabilities.
var renderer = lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))

// styles holds the precomputed lipgloss styles derived from a Theme.
type styles struct {
	header    lipgloss.Style
	userName  lipgloss.Style
	agentName lipgloss.Style
	body      lipgloss.Style
	faint     lipgloss.Style
	streaming lipgloss.Style
	thinking  lipgloss.Style
	narration lipgloss.Style
	live      lipgloss.Style
	polling   lipgloss.Style
	offline   lipgloss.Style
	help      lipgloss.Style
	errorText lipgloss.Style
	inputLine lipgloss.Style
}

func newStyles(theme Theme) styles {
	return styles{
		header:    renderer.NewStyle().Foreground(theme.HeaderForeground).Bold(true),
		userName:  renderer.NewStyle().Foreground(theme.UserName).Bold(true),
		agentName: renderer.NewStyle().Foreground(theme.AgentName).Bold(true),
		body:      renderer.NewStyle().Foreground(theme.NormalText),
		faint:     renderer.NewStyle().Foreground(theme.FaintText),
		streaming: renderer.NewStyle().Foreground(theme.StreamingText),
		thinking:  renderer.NewStyle().Foreground(theme.ThinkingText).Italic(true),
		narration: renderer.NewStyle().Foreground(theme.NarrationText).Italic(true),
		live:      renderer.NewStyle().Foreground(theme.StatusLive),
		polling:   renderer.NewStyle().Foreground(theme.StatusPolling),
		offline:   renderer.NewStyle().Foreground(theme.StatusOffline).Bold(true),
		help:      renderer.NewStyle().Foreground(theme.HelpText),
		errorText: renderer.NewStyle().Foreground(theme.ErrorText),
		inputLine: renderer.NewStyle().Foreground(theme.NormalText),
	}
}

// Model is the bubbletea model for the chat viewer.
type Model struct {
	source      Source
	displayName string
	keys        KeyMap
	styles      styles

	transcript viewport.Model
	input      textinput.Model
	spinner    spinner.Model

	focus  FocusRegion
	width  int
	height int
	ready  bool

	// followTail keeps the transcript pinned to the newest message
	// until the user scrolls up.
	followTail bool

	notice string
}

// NewModel creates the chat viewer model for a synchronized room.
// displayName is attached to outgoing messages as the participant
// name.
func NewModel(source Source, displayName string) Model {
	input := textinput.New()
	input.Placeholder = "Type a message"
	input.Prompt = "> "
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	return Model{
		source:      source,
		displayName: displayName,
		keys:        DefaultKeyMap,
		styles:      newStyles(DefaultTheme),
		input:       input,
		spinner:     spin,
		focus:       FocusInput,
		followTail:  true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(scheduleRefresh(), m.spinner.Tick, textinput.Blink)
}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshTranscript()
		m.ready = true
		return m, nil

	case tea.FocusMsg:
		m.source.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.source.SetVisible(false)
		return m, nil

	case refreshMsg:
		m.refreshTranscript()
		return m, scheduleRefresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sendResultMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("send failed: %v", msg.err)
			return m, fadeNotice()
		}
		return m, nil

	case resetResultMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("reload failed: %v", msg.err)
		} else {
			m.notice = "reloaded"
		}
		m.refreshTranscript()
		return m, fadeNotice()

	case noticeFadeMsg:
		m.notice = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func fadeNotice() tea.Cmd {
	return tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg {
		return noticeFadeMsg{}
	})
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.FocusToggle):
		if m.focus == FocusInput {
			m.focus = FocusTranscript
			m.input.Blur()
		} else {
			m.focus = FocusInput
			m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.resetCmd()
	}

	if m.focus == FocusInput {
		if key.Matches(msg, m.keys.Send) {
			return m.submit()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.transcript.LineUp(1)
	case key.Matches(msg, m.keys.Down):
		m.transcript.LineDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.transcript.HalfViewUp()
	case key.Matches(msg, m.keys.PageDown):
		m.transcript.HalfViewDown()
	case key.Matches(msg, m.keys.Home):
		m.transcript.GotoTop()
	case key.Matches(msg, m.keys.End):
		m.transcript.GotoBottom()
	}
	m.followTail = m.transcript.AtBottom()
	return m, nil
}

// submit sends the input line's content and clears it. Empty input is
// a no-op.
func (m Model) submit() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}
	m.input.Reset()
	m.followTail = true

	source := m.source
	request := timeline.SendMessageRequest{
		Content:         content,
		Role:            "user",
		ParticipantName: m.displayName,
	}
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		return sendResultMsg{err: source.Send(ctx, request)}
	}
}

func (m Model) resetCmd() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		return resetResultMsg{err: source.Reset(ctx)}
	}
}

// layout sizes the panes from the current window dimensions. One line
// each for the header, the input line, and the status bar.
func (m *Model) layout() {
	transcriptHeight := m.height - 3
	if transcriptHeight < 1 {
		transcriptHeight = 1
	}
	m.transcript.Width = m.width
	m.transcript.Height = transcriptHeight
	m.input.Width = m.width - len(m.input.Prompt) - 1
}

// refreshTranscript re-renders the transcript from a fresh source
// snapshot, preserving scroll position unless the view is pinned to
// the tail.
func (m *Model) refreshTranscript() {
	m.transcript.SetContent(m.renderMessages(m.source.Messages()))
	if m.followTail {
		m.transcript.GotoBottom()
	}
}

// renderMessages formats the composed timeline for display. Persisted
// messages show a speaker label and wrapped content; placeholders show
// the live partial text with a spinner, plus thinking and narration
// lines when present.
func (m *Model) renderMessages(messages []timeline.Message) string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	for i, message := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		if message.IsChatting {
			m.renderPlaceholder(&b, message, width)
			continue
		}

		label := message.AgentName
		labelStyle := m.styles.agentName
		if message.AgentID == 0 {
			labelStyle = m.styles.userName
			if label == "" {
				label = message.Role
			}
		}
		b.WriteString(labelStyle.Render(label))
		if !message.Timestamp.IsZero() {
			b.WriteString(m.styles.faint.Render("  " + message.Timestamp.Local().Format("15:04")))
		}
		b.WriteString("\n")
		b.WriteString(m.styles.body.Render(ansi.Wrap(message.Content, width, " ,.;-+|")))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderPlaceholder(b *strings.Builder, message timeline.Message, width int) {
	b.WriteString(m.styles.agentName.Render(message.AgentName))
	b.WriteString(" ")
	b.WriteString(m.styles.streaming.Render(m.spinner.View()))
	b.WriteString("\n")

	if message.Thinking != "" {
		b.WriteString(m.styles.thinking.Render(ansi.Wrap(message.Thinking, width, " ,.;-+|")))
		b.WriteString("\n")
	}
	if message.Content != "" {
		style := m.styles.streaming
		if !message.IsStreaming {
			// Status-poll placeholder text is a periodic snapshot,
			// not a live stream.
			style = m.styles.narration
		}
		b.WriteString(style.Render(ansi.Wrap(message.Content, width, " ,.;-+|")))
		b.WriteString("\n")
	}
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := m.styles.header.Render(fmt.Sprintf("Parley — room %d", m.source.RoomID()))
	status := m.statusBar()

	return header + "\n" +
		m.transcript.View() + "\n" +
		m.styles.inputLine.Render(m.input.View()) + "\n" +
		status
}

// statusBar composes the connection indicator, any transient notice,
// and the key help line.
func (m Model) statusBar() string {
	var indicator string
	switch {
	case m.source.PushConnected():
		indicator = m.styles.live.Render("● live")
	case m.source.Connected():
		indicator = m.styles.polling.Render("● polling")
	default:
		indicator = m.styles.offline.Render("● offline")
	}

	parts := []string{indicator}
	if m.notice != "" {
		parts = append(parts, m.styles.errorText.Render(m.notice))
	}
	parts = append(parts, m.styles.help.Render("tab: focus · C-r: reload · C-c: quit"))
	return strings.Join(parts, m.styles.faint.Render("  │  "))
}
