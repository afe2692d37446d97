// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"

	"github.com/parley-chat/parley/timeline"
)

// Source provides the model's view of a synchronized room. The model
// reads snapshot copies on every refresh tick and never retains
// references between ticks, so the source's internals stay free to
// mutate concurrently.
//
// timeline.RoomSession satisfies this interface.
type Source interface {
	// RoomID identifies the room being displayed.
	RoomID() int64

	// Messages returns the composed timeline snapshot: persisted
	// messages plus placeholders for agents that are mid-response.
	Messages() []timeline.Message

	// PushConnected reports whether the live push channel is up.
	PushConnected() bool

	// Connected reports whether any delivery channel is healthy.
	Connected() bool

	// Send submits an outgoing message.
	Send(ctx context.Context, request timeline.SendMessageRequest) error

	// SetVisible pauses or resumes background polling as the hosting
	// terminal loses or regains focus.
	SetVisible(visible bool)

	// Reset clears and refetches the room's history.
	Reset(ctx context.Context) error
}
