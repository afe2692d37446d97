// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/parley-chat/parley/lib/clock"
)

// SessionConfig holds the collaborators shared by every room session.
type SessionConfig struct {
	// Client performs all network operations. Required.
	Client *Client
	// Clock drives every timer. If nil, clock.Real() is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// Poll overrides poll scheduling parameters; zero fields use
	// defaults.
	Poll PollerConfig
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// RoomSession is one room-activation epoch: the store, push channel
// manager, and poller for a single room, created together and
// destroyed together. Switching rooms never mutates a session — the
// old epoch is closed as a unit and a fresh one opened, so a stale
// timer or goroutine can never touch a superseded epoch's state.
type RoomSession struct {
	roomID int64
	store  *Store
	stream *StreamManager
	poller *Poller
	cancel context.CancelFunc

	closeOnce sync.Once
}

// OpenRoom creates the session for a room and activates both delivery
// channels: the push channel starts connecting in the background and
// the poller performs its initial full load before OpenRoom returns.
// An initial-load error is returned alongside a usable session — the
// poll loops are already running and will recover when the server
// does.
//
// ctx bounds the session's background work; cancelling it is
// equivalent to Close.
func OpenRoom(ctx context.Context, config SessionConfig, roomID int64) (*RoomSession, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("timeline: SessionConfig.Client is required")
	}
	config = config.withDefaults()

	ctx, cancel := context.WithCancel(ctx)

	store := NewStore()
	stream := newStreamManager(config.Client, roomID, config.Clock, config.Logger, func(message Message) {
		store.AddFinal(message)
	})
	poller := newPoller(config.Client, roomID, config.Clock, config.Logger, store, stream, config.Poll)

	session := &RoomSession{
		roomID: roomID,
		store:  store,
		stream: stream,
		poller: poller,
		cancel: cancel,
	}

	stream.Start(ctx)
	err := poller.Start(ctx)
	return session, err
}

// Close tears the session down: both managers stop, pending timers
// are cancelled, and the push connection is closed. Idempotent.
func (s *RoomSession) Close() {
	s.closeOnce.Do(func() {
		s.poller.Close()
		s.stream.Close()
		s.cancel()
	})
}

// RoomID returns the room this session synchronizes.
func (s *RoomSession) RoomID() int64 {
	return s.roomID
}

// Messages returns the current composed timeline: the reconciled
// message list, with placeholders derived from the live streaming
// states while the push channel is connected (superseding any
// status-poll placeholders), or the status-poll placeholders
// otherwise. The returned slice is a snapshot copy.
func (s *RoomSession) Messages() []Message {
	messages := s.store.Messages()
	if !s.stream.Connected() {
		return messages
	}

	composed := messages[:0]
	for _, message := range messages {
		if !message.IsChatting {
			composed = append(composed, message)
		}
	}

	states := s.stream.States()
	agentIDs := make([]int64, 0, len(states))
	for agentID := range states {
		agentIDs = append(agentIDs, agentID)
	}
	sort.Slice(agentIDs, func(i, j int) bool { return agentIDs[i] < agentIDs[j] })

	for _, agentID := range agentIDs {
		state := states[agentID]
		content := state.Response
		if content == "" && state.HasNarrated {
			content = state.Narration
		}
		composed = append(composed, Message{
			Role:        "assistant",
			AgentID:     state.AgentID,
			AgentName:   state.AgentName,
			Content:     content,
			Thinking:    state.Thinking,
			IsChatting:  true,
			IsStreaming: true,
		})
	}
	return composed
}

// StreamStates returns a snapshot of the per-agent streaming states.
func (s *RoomSession) StreamStates() map[int64]StreamState {
	return s.stream.States()
}

// PushConnected reports whether the push channel is live.
func (s *RoomSession) PushConnected() bool {
	return s.stream.Connected()
}

// Connected reports whether either delivery channel is healthy.
func (s *RoomSession) Connected() bool {
	return s.stream.Connected() || s.poller.Connected()
}

// LastMessage exposes the push channel's most recent finalized
// message and its sequence counter.
func (s *RoomSession) LastMessage() (Message, uint64) {
	return s.stream.LastMessage()
}

// Send submits an outgoing message through the poller, which arms the
// debounced follow-up poll on success.
func (s *RoomSession) Send(ctx context.Context, request SendMessageRequest) error {
	return s.poller.Send(ctx, request)
}

// SetVisible forwards the hosting surface's visibility to the poller.
func (s *RoomSession) SetVisible(visible bool) {
	s.poller.SetVisible(visible)
}

// Reset clears and refetches the timeline within the same session.
func (s *RoomSession) Reset(ctx context.Context) error {
	return s.poller.Reset(ctx)
}

// Timeline tracks the single active room session. Exactly one room is
// synchronized at a time: switching tears the previous session down
// completely before the next room's initial load begins.
type Timeline struct {
	config SessionConfig

	mu      sync.Mutex
	current *RoomSession
}

// NewTimeline creates a Timeline with no active room.
func NewTimeline(config SessionConfig) *Timeline {
	return &Timeline{config: config}
}

// SwitchRoom closes the active session, if any, and opens a session
// for the given room. The teardown completes — timers cancelled, push
// connection closed, state discarded — before the new room's initial
// load begins.
func (t *Timeline) SwitchRoom(ctx context.Context, roomID int64) (*RoomSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.current.Close()
		t.current = nil
	}

	session, err := OpenRoom(ctx, t.config, roomID)
	if session != nil {
		t.current = session
	}
	return session, err
}

// Current returns the active session, or nil when no room is
// selected.
func (t *Timeline) Current() *RoomSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Close tears down the active session, if any.
func (t *Timeline) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.Close()
		t.current = nil
	}
}
