// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import "sync"

// Store is the reconciliation point for the visible message list. It
// merges push-delivered messages, poll-delivered messages, and
// synthetic "agent is responding" placeholders into one list,
// deduplicating by identity. Every merge operation is idempotent, so
// the order in which the two delivery channels report the same
// message does not matter.
//
// Store is safe for concurrent use. Callers read snapshots via
// Messages; the returned slice is a copy.
type Store struct {
	mu       sync.Mutex
	messages []Message
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Messages returns a snapshot copy of the current message list.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the current number of entries, placeholders included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Reset clears the message list. Used on room switch and before a
// full refetch.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// ReplaceAll replaces the entire list with a freshly fetched history.
func (s *Store) ReplaceAll(messages []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]Message, len(messages))
	copy(s.messages, messages)
}

// AddFinal merges one finalized message delivered by the push
// channel. If a message with the same ID already exists (the poll
// channel won the race) the message is dropped. The agent's
// placeholder, if present, is removed either way: a finalized message
// and a placeholder for the same agent never coexist after the merge.
// Returns true when the message was appended.
func (s *Store) AddFinal(message Message) bool {
	if message.IsChatting {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removePlaceholderLocked(message.AgentID)
	if s.hasIDLocked(message.ID) {
		return false
	}
	s.messages = append(s.messages, message)
	return true
}

// MergeNew merges a batch of poll-delivered messages. Messages whose
// IDs already exist are excluded before appending; placeholders for
// agents with newly finalized messages are removed. Returns the
// number of messages appended.
func (s *Store) MergeNew(messages []Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	appended := 0
	for _, message := range messages {
		if message.IsChatting || s.hasIDLocked(message.ID) {
			continue
		}
		s.removePlaceholderLocked(message.AgentID)
		s.messages = append(s.messages, message)
		appended++
	}
	return appended
}

// SetChatting replaces the placeholder set atomically. The previous
// set is kept untouched when the new set is identical (same agents,
// same thinking text, same content), suppressing redundant churn for
// consumers that diff snapshots. Returns true when the list changed.
func (s *Store) SetChatting(placeholders []Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make([]Message, 0, len(placeholders))
	kept := make([]Message, 0, len(s.messages))
	for _, message := range s.messages {
		if message.IsChatting {
			current = append(current, message)
		} else {
			kept = append(kept, message)
		}
	}

	if placeholderSetsEqual(current, placeholders) {
		return false
	}

	for _, placeholder := range placeholders {
		placeholder.IsChatting = true
		kept = append(kept, placeholder)
	}
	s.messages = kept
	return true
}

// RemovePlaceholder removes the placeholder for an agent, if any.
// Returns true when an entry was removed.
func (s *Store) RemovePlaceholder(agentID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.messages)
	s.removePlaceholderLocked(agentID)
	return len(s.messages) != before
}

func (s *Store) hasIDLocked(id int64) bool {
	if id == 0 {
		return false
	}
	for _, message := range s.messages {
		if !message.IsChatting && message.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) removePlaceholderLocked(agentID int64) {
	if agentID == 0 {
		return
	}
	kept := s.messages[:0]
	for _, message := range s.messages {
		if message.IsChatting && message.AgentID == agentID {
			continue
		}
		kept = append(kept, message)
	}
	s.messages = kept
}

// placeholderSetsEqual compares placeholder sets by agent ID,
// thinking text, and content — the fields that affect rendering.
// Order-insensitive: the status poll does not guarantee a stable
// agent order.
func placeholderSetsEqual(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	byAgent := make(map[int64]Message, len(a))
	for _, message := range a {
		byAgent[message.AgentID] = message
	}
	for _, message := range b {
		existing, ok := byAgent[message.AgentID]
		if !ok {
			return false
		}
		if existing.Thinking != message.Thinking || existing.Content != message.Content {
			return false
		}
	}
	return true
}
