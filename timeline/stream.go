// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-chat/parley/lib/clock"
)

// StreamPhase is the push channel's connection state.
type StreamPhase int

const (
	// PhaseIdle is the state before Start.
	PhaseIdle StreamPhase = iota
	// PhaseConnecting covers ticket acquisition and the transport open.
	PhaseConnecting
	// PhaseConnected means events are flowing.
	PhaseConnected
	// PhaseReconnecting means a backoff timer is armed after an error.
	PhaseReconnecting
	// PhaseClosed is terminal: the manager is inert and never
	// reconnects.
	PhaseClosed
)

// reconnectDelays is the backoff table for reconnection attempts.
// Attempt k (0-indexed) waits reconnectDelays[min(k, 4)]; the attempt
// counter resets to zero on every successful open.
var reconnectDelays = [...]time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

// StreamManager owns the room's push channel: at most one live event
// stream connection, the per-agent StreamState accumulators, and the
// temp-ID → agent-ID mapping some delta events require. It runs the
// reconnection state machine Idle → Connecting → Connected → Error →
// Reconnecting(delay) → Connecting.
//
// The streaming map deliberately survives a lost connection: visible
// partial text is not blanked mid-reconnect. Entries are removed only
// by a stream_end event.
//
// Consumers read snapshots via Connected, States, and LastMessage;
// OnMessage (set at construction) fires exactly once per finalized
// message event.
type StreamManager struct {
	client    *Client
	roomID    int64
	clock     clock.Clock
	logger    *slog.Logger
	onMessage func(Message)

	// ctx spans the owning session's lifetime. Cancelling it aborts
	// the in-flight ticket request or stream read.
	ctx context.Context

	mu             sync.Mutex
	phase          StreamPhase
	attempt        int
	states         map[int64]*StreamState
	tempIDs        map[string]int64
	lastMessage    Message
	sequence       uint64
	reconnectTimer *clock.Timer
	body           io.ReadCloser
}

func newStreamManager(client *Client, roomID int64, clk clock.Clock, logger *slog.Logger, onMessage func(Message)) *StreamManager {
	return &StreamManager{
		client:    client,
		roomID:    roomID,
		clock:     clk,
		logger:    logger,
		onMessage: onMessage,
		states:    make(map[int64]*StreamState),
		tempIDs:   make(map[string]int64),
	}
}

// Start begins connecting in the background. ctx bounds every network
// operation the manager performs; cancelling it (or calling Close)
// makes the manager inert.
func (m *StreamManager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.phase != PhaseIdle {
		m.mu.Unlock()
		return
	}
	m.ctx = ctx
	m.phase = PhaseConnecting
	m.mu.Unlock()

	go m.connect()
}

// Close tears the push channel down: the live connection is closed,
// any armed reconnect timer is cancelled, and no further attempts
// occur. Idempotent.
func (m *StreamManager) Close() {
	m.mu.Lock()
	if m.phase == PhaseClosed {
		m.mu.Unlock()
		return
	}
	m.phase = PhaseClosed
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	body := m.body
	m.body = nil
	m.mu.Unlock()

	if body != nil {
		body.Close()
	}
}

// Connected reports whether the push channel is currently delivering
// events. The poller reads this snapshot at every tick to pick its
// interval, so flapping is absorbed without loop restarts.
func (m *StreamManager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == PhaseConnected
}

// Phase returns the current connection state.
func (m *StreamManager) Phase() StreamPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// States returns a snapshot copy of the per-agent streaming states.
func (m *StreamManager) States() map[int64]StreamState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]StreamState, len(m.states))
	for agentID, state := range m.states {
		out[agentID] = *state
	}
	return out
}

// LastMessage returns the most recently delivered finalized message
// and a strictly increasing sequence counter. Consumers that saw
// sequence n can react to exactly the finalized messages numbered
// n+1.. without missing or double-processing one.
func (m *StreamManager) LastMessage() (Message, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMessage, m.sequence
}

// connect acquires a ticket, opens the stream, and reads events until
// the connection drops. Runs in its own goroutine; on failure it arms
// the reconnect timer and returns.
func (m *StreamManager) connect() {
	m.mu.Lock()
	if m.phase == PhaseClosed {
		m.mu.Unlock()
		return
	}
	m.phase = PhaseConnecting
	m.mu.Unlock()

	ticket, err := m.client.StreamTicket(m.ctx, m.roomID)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		m.logger.Warn("stream ticket request failed",
			"room_id", m.roomID,
			"error", err,
		)
		m.scheduleReconnect()
		return
	}

	body, err := m.client.OpenStream(m.ctx, m.roomID, ticket)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		m.logger.Warn("stream open failed",
			"room_id", m.roomID,
			"error", err,
		)
		m.scheduleReconnect()
		return
	}

	m.mu.Lock()
	if m.phase == PhaseClosed {
		m.mu.Unlock()
		body.Close()
		return
	}
	m.phase = PhaseConnected
	m.attempt = 0
	m.body = body
	m.mu.Unlock()

	m.logger.Info("stream connected", "room_id", m.roomID)

	reader := NewEventReader(body)
	for {
		event, err := reader.Read()
		if err != nil {
			break
		}
		m.dispatch(event)
	}
	body.Close()

	m.mu.Lock()
	closed := m.phase == PhaseClosed
	m.body = nil
	m.mu.Unlock()
	if closed || m.ctx.Err() != nil {
		return
	}

	m.logger.Warn("stream disconnected", "room_id", m.roomID)
	// A dropped stream often leaves a poisoned pooled connection
	// behind; force the reconnect to open a fresh socket.
	m.client.CloseIdleConnections()
	m.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer for the next connection
// attempt. No-op once the manager is closed.
func (m *StreamManager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseClosed {
		return
	}
	m.phase = PhaseReconnecting

	index := m.attempt
	if index >= len(reconnectDelays) {
		index = len(reconnectDelays) - 1
	}
	delay := reconnectDelays[index]
	m.attempt++

	m.logger.Info("stream reconnect scheduled",
		"room_id", m.roomID,
		"attempt", m.attempt,
		"delay", delay,
	)
	m.reconnectTimer = m.clock.AfterFunc(delay, func() {
		go m.connect()
	})
}

// dispatch routes one wire event to its handler. Every handler
// silently drops malformed payloads: a bad event must not affect
// connectivity or existing state.
func (m *StreamManager) dispatch(event WireEvent) {
	switch event.Name {
	case "catch_up":
		m.handleCatchUp(event.Data)
	case "stream_start":
		m.handleStreamStart(event.Data)
	case "content_delta", "thinking_delta", "narration_delta":
		m.handleDelta(event.Name, event.Data)
	case "stream_end":
		m.handleStreamEnd(event.Data)
	case "new_message":
		m.handleNewMessage(event.Data)
	default:
		// Keepalives and unknown event types need no handling.
	}
}

// handleCatchUp seeds a StreamState for an agent already mid-response
// at connect time. First writer wins per agent: a state created by an
// earlier stream_start (or an earlier catch_up) is never clobbered.
func (m *StreamManager) handleCatchUp(data string) {
	var payload catchUpPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil || payload.AgentID == 0 {
		m.dropEvent("catch_up", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.states[payload.AgentID]; exists {
		return
	}
	m.states[payload.AgentID] = &StreamState{
		AgentID:     payload.AgentID,
		AgentName:   payload.AgentName,
		Thinking:    payload.ThinkingText,
		Response:    payload.ResponseText,
		Narration:   payload.NarrationText,
		HasNarrated: payload.NarrationText != "",
	}
}

// handleStreamStart registers the temp-ID mapping and creates a fresh
// zeroed StreamState. The mapping is always registered — delta events
// may arrive with only the temp ID — but an existing state (seeded by
// catch_up) is not clobbered.
func (m *StreamManager) handleStreamStart(data string) {
	var payload streamStartPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil || payload.AgentID == 0 || payload.TempID == "" {
		m.dropEvent("stream_start", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tempIDs[payload.TempID] = payload.AgentID
	if state, exists := m.states[payload.AgentID]; exists {
		state.TempID = payload.TempID
		return
	}
	m.states[payload.AgentID] = &StreamState{
		AgentID:   payload.AgentID,
		AgentName: payload.AgentName,
		TempID:    payload.TempID,
	}
}

// handleDelta appends an incremental text fragment to the target
// agent's accumulator. The agent resolves from the explicit agent ID
// or, when absent, the temp-ID map. A delta cannot create state: with
// no StreamState for the agent, the event is dropped.
func (m *StreamManager) handleDelta(name, data string) {
	var payload deltaPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		m.dropEvent(name, err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	agentID := m.resolveAgentLocked(payload.AgentID, payload.TempID)
	if agentID == 0 {
		return
	}
	state, exists := m.states[agentID]
	if !exists {
		return
	}

	switch name {
	case "content_delta":
		state.Response += payload.Delta
	case "thinking_delta":
		state.Thinking += payload.Delta
	case "narration_delta":
		state.Narration += payload.Delta
		state.HasNarrated = true
	}
}

// handleStreamEnd removes the agent's StreamState and temp-ID mapping.
// This is the only removal path for either.
func (m *StreamManager) handleStreamEnd(data string) {
	var payload streamEndPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		m.dropEvent("stream_end", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	agentID := m.resolveAgentLocked(payload.AgentID, payload.TempID)
	if agentID == 0 {
		return
	}
	if state, exists := m.states[agentID]; exists && state.TempID != "" {
		delete(m.tempIDs, state.TempID)
	}
	if payload.TempID != "" {
		delete(m.tempIDs, payload.TempID)
	}
	delete(m.states, agentID)
}

// handleNewMessage stores a finalized message and bumps the sequence
// counter exactly once, then notifies the consumer callback.
func (m *StreamManager) handleNewMessage(data string) {
	var payload newMessagePayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil || payload.Message.ID == 0 {
		m.dropEvent("new_message", err)
		return
	}

	m.mu.Lock()
	m.lastMessage = payload.Message
	m.sequence++
	callback := m.onMessage
	m.mu.Unlock()

	if callback != nil {
		callback(payload.Message)
	}
}

// resolveAgentLocked resolves an event's target agent from the
// explicit ID or the temp-ID map. Returns 0 when neither resolves.
func (m *StreamManager) resolveAgentLocked(agentID int64, tempID string) int64 {
	if agentID != 0 {
		return agentID
	}
	if tempID == "" {
		return 0
	}
	return m.tempIDs[tempID]
}

func (m *StreamManager) dropEvent(name string, err error) {
	m.logger.Debug("dropping malformed stream event",
		"room_id", m.roomID,
		"event", name,
		"error", err,
	)
}
