// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/parley-chat/parley/timeline"
)

// fakeSource is an in-memory Source whose snapshot the test mutates
// directly.
type fakeSource struct {
	mu            sync.Mutex
	messages      []timeline.Message
	pushConnected bool
	connected     bool
	visible       []bool
	sent          []timeline.SendMessageRequest
	resets        int
}

func (f *fakeSource) RoomID() int64 { return 7 }

func (f *fakeSource) Messages() []timeline.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]timeline.Message(nil), f.messages...)
}

func (f *fakeSource) PushConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushConnected
}

func (f *fakeSource) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSource) Send(_ context.Context, request timeline.SendMessageRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, request)
	return nil
}

func (f *fakeSource) SetVisible(visible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = append(f.visible, visible)
}

func (f *fakeSource) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func testModel(source Source) Model {
	model := NewModel(source, "ben")
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model)
}

func TestModelRendersTranscript(t *testing.T) {
	source := &fakeSource{
		messages: []timeline.Message{
			{ID: 1, Content: "hello there", Role: "user"},
			{ID: 2, Content: "greetings", Role: "assistant", AgentID: 5, AgentName: "scribe"},
		},
		pushConnected: true,
		connected:     true,
	}
	model := testModel(source)

	view := ansi.Strip(model.View())
	for _, want := range []string{"room 7", "hello there", "scribe", "greetings", "live"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModelRendersStreamingPlaceholder(t *testing.T) {
	source := &fakeSource{
		messages: []timeline.Message{
			{ID: 1, Content: "question", Role: "user"},
			{
				IsChatting:  true,
				IsStreaming: true,
				AgentID:     5,
				AgentName:   "scribe",
				Content:     "partial answ",
				Thinking:    "considering",
			},
		},
		pushConnected: true,
		connected:     true,
	}
	model := testModel(source)

	view := ansi.Strip(model.View())
	for _, want := range []string{"partial answ", "considering"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModelStatusIndicator(t *testing.T) {
	source := &fakeSource{connected: true}
	model := testModel(source)

	if view := ansi.Strip(model.View()); !strings.Contains(view, "polling") {
		t.Errorf("want polling indicator:\n%s", view)
	}

	source.mu.Lock()
	source.pushConnected = true
	source.mu.Unlock()
	if view := ansi.Strip(model.View()); !strings.Contains(view, "live") {
		t.Errorf("want live indicator:\n%s", view)
	}

	source.mu.Lock()
	source.pushConnected = false
	source.connected = false
	source.mu.Unlock()
	if view := ansi.Strip(model.View()); !strings.Contains(view, "offline") {
		t.Errorf("want offline indicator:\n%s", view)
	}
}

func TestModelSendClearsInput(t *testing.T) {
	source := &fakeSource{}
	model := testModel(source)

	for _, r := range "hi there" {
		updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		model = updated.(Model)
	}
	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)

	if model.input.Value() != "" {
		t.Errorf("input not cleared: %q", model.input.Value())
	}
	if cmd == nil {
		t.Fatal("enter produced no send command")
	}
	if msg, ok := cmd().(sendResultMsg); !ok || msg.err != nil {
		t.Fatalf("send command result = %+v", msg)
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	if len(source.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(source.sent))
	}
	request := source.sent[0]
	if request.Content != "hi there" || request.Role != "user" || request.ParticipantName != "ben" {
		t.Errorf("request = %+v", request)
	}
}

func TestModelEmptySendIsNoop(t *testing.T) {
	source := &fakeSource{}
	model := testModel(source)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("empty input produced a send command")
	}
}

func TestModelFocusForwarding(t *testing.T) {
	source := &fakeSource{}
	model := testModel(source)

	updated, _ := model.Update(tea.BlurMsg{})
	model = updated.(Model)
	updated, _ = model.Update(tea.FocusMsg{})
	model = updated.(Model)
	_ = model

	source.mu.Lock()
	defer source.mu.Unlock()
	if len(source.visible) != 2 || source.visible[0] || !source.visible[1] {
		t.Fatalf("visibility transitions = %v, want [false true]", source.visible)
	}
}

func TestModelFocusToggleRoutesKeys(t *testing.T) {
	source := &fakeSource{}
	model := testModel(source)

	// Tab moves focus to the transcript; typed runes must no longer
	// reach the input line.
	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = updated.(Model)
	if model.focus != FocusTranscript {
		t.Fatalf("focus = %v, want FocusTranscript", model.focus)
	}
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	model = updated.(Model)
	if model.input.Value() != "" {
		t.Errorf("transcript-focused keystroke reached the input: %q", model.input.Value())
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = updated.(Model)
	if model.focus != FocusInput {
		t.Fatalf("focus = %v, want FocusInput", model.focus)
	}
}

func TestModelReloadKey(t *testing.T) {
	source := &fakeSource{}
	model := testModel(source)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	if cmd == nil {
		t.Fatal("ctrl+r produced no command")
	}
	if msg, ok := cmd().(resetResultMsg); !ok || msg.err != nil {
		t.Fatalf("reload command result = %+v", msg)
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	if source.resets != 1 {
		t.Fatalf("resets = %d, want 1", source.resets)
	}
}
