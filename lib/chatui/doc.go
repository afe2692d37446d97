// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui implements the terminal UI for a Parley room: a
// scrollable message transcript, live streaming placeholders for
// agents that are mid-response, and an input line for sending
// messages.
//
// The model reads immutable snapshots from a Source (in practice a
// timeline.RoomSession) on a short refresh tick instead of holding
// references into the synchronization layer's internals. Terminal
// focus changes are forwarded to the source so background polling
// pauses while the window is hidden.
package chatui
