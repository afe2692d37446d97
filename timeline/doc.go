// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package timeline keeps a chat room's message list consistent on the
// client while agents generate responses incrementally.
//
// Two independent delivery channels feed one reconciled view. The
// push channel ([StreamManager]) is a server-sent event stream opened
// with a single-use ticket; it carries per-agent streaming deltas and
// finalized messages, and owns a reconnection state machine with a
// fixed backoff table. The pull channel ([Poller]) polls for new
// messages above a monotonic watermark — seconds-scale while the push
// channel is down, a tens-of-seconds safety net while it is up — and
// separately polls the "who is currently responding" status whenever
// the stream cannot supply it. Both merge into the [Store], whose
// operations are idempotent and deduplicate by message identity, so
// the at-least-once, unordered delivery across channels collapses to
// exactly one visible entry per message.
//
// A [RoomSession] is one room-activation epoch: store, stream
// manager, and poller created and destroyed as a unit. [Timeline]
// holds the single active session and switches rooms by full
// teardown-then-setup. Consumers read snapshots
// ([RoomSession.Messages], [StreamManager.States]) and never mutate
// shared state directly.
//
// All timers go through lib/clock, so reconnection backoff, poll
// cadence, visibility suspension, and send debouncing are tested
// against a deterministic fake clock.
package timeline
