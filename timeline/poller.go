// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-chat/parley/lib/clock"
)

// PollerConfig holds poll scheduling parameters. The zero value is
// usable: Defaults are applied to unset fields.
type PollerConfig struct {
	// ActiveInterval is the message poll interval while the push
	// channel is down and polling is the primary delivery path.
	ActiveInterval time.Duration

	// SafetyInterval is the message poll interval while the push
	// channel is healthy. Polling then only backstops events the
	// stream might have missed.
	SafetyInterval time.Duration

	// StatusInterval is the fixed interval of the chatting-agents
	// status poll. The status poll never fires while the push channel
	// is connected.
	StatusInterval time.Duration

	// SendDebounce is the delay between a successful send and the
	// immediate follow-up poll that picks up the persisted message.
	SendDebounce time.Duration
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.ActiveInterval <= 0 {
		c.ActiveInterval = 3 * time.Second
	}
	if c.SafetyInterval <= 0 {
		c.SafetyInterval = 30 * time.Second
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = 2 * time.Second
	}
	if c.SendDebounce <= 0 {
		c.SendDebounce = 300 * time.Millisecond
	}
	return c
}

// pushChannel is the poller's read-only view of the push channel: a
// connectivity snapshot consulted at each tick.
type pushChannel interface {
	Connected() bool
}

// Poller maintains the authoritative message list by pulling from the
// server on two independent schedules: a message poll (interval
// chosen per tick from the push channel's connectivity) and a status
// poll (fixed interval, suppressed entirely while the push channel is
// connected). It owns the last-seen watermark, which only ever
// advances.
//
// Each tick schedules the next only after it completes, so requests
// never overlap. While the consumer reports itself hidden, ticks are
// re-armed without touching the network; becoming visible triggers
// one immediate out-of-band fetch.
type Poller struct {
	client *Client
	roomID int64
	clock  clock.Clock
	logger *slog.Logger
	store  *Store
	stream pushChannel
	config PollerConfig

	// ctx spans the owning session's lifetime and bounds background
	// ticks. Send and Reset use caller contexts instead.
	ctx context.Context

	mu            sync.Mutex
	watermark     int64
	connected     bool
	visible       bool
	closed        bool
	pollTimer     *clock.Timer
	statusTimer   *clock.Timer
	debounceTimer *clock.Timer
}

func newPoller(client *Client, roomID int64, clk clock.Clock, logger *slog.Logger, store *Store, stream pushChannel, config PollerConfig) *Poller {
	return &Poller{
		client:  client,
		roomID:  roomID,
		clock:   clk,
		logger:  logger,
		store:   store,
		stream:  stream,
		config:  config.withDefaults(),
		visible: true,
	}
}

// Start performs the initial full load and arms both poll loops. The
// loops are armed even when the initial load fails — the message poll
// retries from an empty watermark, so a transient outage at startup
// only degrades freshness. The load error is returned for the caller
// to surface.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("timeline: poller for room %d is closed", p.roomID)
	}
	p.ctx = ctx
	p.mu.Unlock()

	err := p.initialLoad(ctx)
	p.armMessagePoll()
	p.armStatusPoll()
	return err
}

// Close stops all scheduled work. Already-armed timers become no-ops.
// Idempotent.
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, timer := range []*clock.Timer{p.pollTimer, p.statusTimer, p.debounceTimer} {
		if timer != nil {
			timer.Stop()
		}
	}
	p.pollTimer, p.statusTimer, p.debounceTimer = nil, nil, nil
}

// Connected reports the poll channel's health: true after a
// successful load or message poll, false after a message poll
// failure. Status and send failures do not affect it.
func (p *Poller) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Watermark returns the highest message ID incorporated so far.
func (p *Poller) Watermark() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}

// SetVisible tells the poller whether the hosting surface is visible.
// While hidden, poll ticks skip their network calls. On the
// hidden → visible transition, one immediate message poll fires (plus
// one status poll when the push channel is down) before the regular
// schedule resumes.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	if p.closed || p.visible == visible {
		p.mu.Unlock()
		return
	}
	p.visible = visible
	p.mu.Unlock()

	if !visible {
		return
	}
	go func() {
		p.pollOnce()
		if !p.stream.Connected() {
			p.statusOnce()
		}
	}()
}

// Send submits an outgoing message. Role defaults to "user". On
// success a single-slot debounced poll is armed so the persisted
// message appears without waiting a full interval; a previously
// pending debounce is cancelled first. A send failure is isolated —
// it is logged and returned, and does not mark the channel
// disconnected.
func (p *Poller) Send(ctx context.Context, request SendMessageRequest) error {
	if request.Role == "" {
		request.Role = "user"
	}

	if _, err := p.client.SendMessage(ctx, p.roomID, request); err != nil {
		p.logger.Warn("message send failed",
			"room_id", p.roomID,
			"error", err,
		)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if p.debounceTimer != nil {
		p.debounceTimer.Stop()
	}
	p.debounceTimer = p.clock.AfterFunc(p.config.SendDebounce, func() {
		go p.pollOnce()
	})
	return nil
}

// Reset clears the message list and watermark, cancels any pending
// debounced poll, and performs one fresh full fetch before returning.
func (p *Poller) Reset(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("timeline: poller for room %d is closed", p.roomID)
	}
	if p.debounceTimer != nil {
		p.debounceTimer.Stop()
		p.debounceTimer = nil
	}
	p.watermark = 0
	p.mu.Unlock()

	p.store.Reset()
	return p.initialLoad(ctx)
}

// initialLoad fetches the full message list, seeds the watermark from
// the last entry, and marks the channel connected. A failure leaves
// existing state untouched.
func (p *Poller) initialLoad(ctx context.Context) error {
	messages, err := p.client.Messages(ctx, p.roomID)
	if err != nil {
		p.logger.Warn("initial message load failed",
			"room_id", p.roomID,
			"error", err,
		)
		p.mu.Lock()
		p.connected = false
		p.mu.Unlock()
		return err
	}

	p.store.ReplaceAll(messages)

	p.mu.Lock()
	p.connected = true
	for _, message := range messages {
		if message.ID > p.watermark {
			p.watermark = message.ID
		}
	}
	watermark := p.watermark
	p.mu.Unlock()

	p.logger.Info("initial message load complete",
		"room_id", p.roomID,
		"messages", len(messages),
		"watermark", watermark,
	)
	return nil
}

// armMessagePoll schedules the next message tick. The interval is
// chosen here, at arm time, from a live read of the push channel's
// connectivity — a flapping stream changes the cadence without any
// loop restart.
func (p *Poller) armMessagePoll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	interval := p.config.ActiveInterval
	if p.stream.Connected() {
		interval = p.config.SafetyInterval
	}
	p.pollTimer = p.clock.AfterFunc(interval, func() {
		go p.messageTick()
	})
}

func (p *Poller) messageTick() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	visible := p.visible
	p.mu.Unlock()

	if visible {
		p.pollOnce()
	}
	p.armMessagePoll()
}

// pollOnce performs one message poll from the current watermark and
// merges the result. Never rewinds the watermark, even when the
// server returns lower IDs than already seen.
func (p *Poller) pollOnce() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	since := p.watermark
	p.mu.Unlock()

	messages, err := p.client.PollMessages(p.ctx, p.roomID, since)
	if err != nil {
		if p.ctx.Err() != nil {
			return
		}
		p.logger.Warn("message poll failed",
			"room_id", p.roomID,
			"since_id", since,
			"error", err,
		)
		p.mu.Lock()
		p.connected = false
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.connected = true
	for _, message := range messages {
		if message.ID > p.watermark {
			p.watermark = message.ID
		}
	}
	p.mu.Unlock()

	if len(messages) > 0 {
		p.store.MergeNew(messages)
	}
}

// armStatusPoll schedules the next status tick at the fixed interval.
func (p *Poller) armStatusPoll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.statusTimer = p.clock.AfterFunc(p.config.StatusInterval, func() {
		go p.statusTick()
	})
}

func (p *Poller) statusTick() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	visible := p.visible
	p.mu.Unlock()

	// The push channel's per-agent streaming state supersedes the
	// status endpoint; while it is connected the tick is a complete
	// no-op.
	if visible && !p.stream.Connected() {
		p.statusOnce()
	}
	p.armStatusPoll()
}

// statusOnce fetches the chatting-agents snapshot and replaces the
// store's placeholder set. Failures are logged and isolated: they do
// not mark the channel disconnected or disturb existing placeholders.
func (p *Poller) statusOnce() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	agents, err := p.client.ChattingAgents(p.ctx, p.roomID)
	if err != nil {
		if p.ctx.Err() != nil {
			return
		}
		p.logger.Warn("status poll failed",
			"room_id", p.roomID,
			"error", err,
		)
		return
	}

	placeholders := make([]Message, 0, len(agents))
	for _, agent := range agents {
		placeholders = append(placeholders, Message{
			Role:       "assistant",
			AgentID:    agent.ID,
			AgentName:  agent.Name,
			ProfilePic: agent.ProfilePic,
			Content:    agent.ResponseText,
			Thinking:   agent.ThinkingText,
			IsChatting: true,
		})
	}
	p.store.SetChatting(placeholders)
}
