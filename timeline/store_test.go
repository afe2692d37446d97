// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import "testing"

func TestStoreAddFinalDeduplicates(t *testing.T) {
	t.Parallel()

	store := NewStore()
	message := Message{ID: 3, Content: "hello", Role: "assistant", AgentID: 5}

	if !store.AddFinal(message) {
		t.Fatal("first AddFinal returned false")
	}
	if store.AddFinal(message) {
		t.Fatal("second AddFinal returned true for a duplicate ID")
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}

func TestStoreMergeOrderIndependent(t *testing.T) {
	t.Parallel()

	// The same finalized message arriving via push then poll, or poll
	// then push, yields exactly one entry.
	for name, pushFirst := range map[string]bool{"push then poll": true, "poll then push": false} {
		t.Run(name, func(t *testing.T) {
			store := NewStore()
			message := Message{ID: 3, Content: "hi", AgentID: 5}

			if pushFirst {
				store.AddFinal(message)
				store.MergeNew([]Message{message})
			} else {
				store.MergeNew([]Message{message})
				store.AddFinal(message)
			}

			if store.Len() != 1 {
				t.Fatalf("Len = %d, want 1", store.Len())
			}
		})
	}
}

func TestStoreMergeNewExcludesExisting(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.ReplaceAll([]Message{{ID: 1}, {ID: 2}})

	appended := store.MergeNew([]Message{{ID: 2}, {ID: 3}, {ID: 4}})
	if appended != 2 {
		t.Fatalf("MergeNew appended %d, want 2", appended)
	}
	if store.Len() != 4 {
		t.Fatalf("Len = %d, want 4", store.Len())
	}
}

func TestStoreFinalRemovesPlaceholder(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.SetChatting([]Message{{AgentID: 5, AgentName: "scribe", Content: "Hel"}})
	if store.Len() != 1 {
		t.Fatalf("Len after SetChatting = %d, want 1", store.Len())
	}

	store.AddFinal(Message{ID: 9, AgentID: 5, Content: "Hello"})

	messages := store.Messages()
	if len(messages) != 1 {
		t.Fatalf("Len = %d, want 1", len(messages))
	}
	if messages[0].IsChatting {
		t.Fatal("placeholder survived the finalized message merge")
	}

	// The duplicate arriving later via poll must still not resurrect
	// anything.
	store.MergeNew([]Message{{ID: 9, AgentID: 5, Content: "Hello"}})
	if store.Len() != 1 {
		t.Fatalf("Len after duplicate poll = %d, want 1", store.Len())
	}
}

func TestStoreMergeNewRemovesPlaceholder(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.SetChatting([]Message{{AgentID: 5, Content: "partial"}})

	store.MergeNew([]Message{{ID: 4, AgentID: 5, Content: "done"}})

	for _, message := range store.Messages() {
		if message.IsChatting {
			t.Fatal("placeholder coexists with finalized message for the same agent")
		}
	}
}

func TestStoreSetChattingDiffAware(t *testing.T) {
	t.Parallel()

	store := NewStore()
	set := []Message{
		{AgentID: 5, AgentName: "scribe", Content: "Hel", Thinking: "hm"},
		{AgentID: 7, AgentName: "bard", Content: ""},
	}

	if !store.SetChatting(set) {
		t.Fatal("first SetChatting reported no change")
	}
	// Identical set (different order) — suppressed.
	if store.SetChatting([]Message{set[1], set[0]}) {
		t.Fatal("identical placeholder set reported a change")
	}
	// Content changed for one agent — applied.
	if !store.SetChatting([]Message{
		{AgentID: 5, AgentName: "scribe", Content: "Hello", Thinking: "hm"},
		{AgentID: 7, AgentName: "bard", Content: ""},
	}) {
		t.Fatal("changed placeholder content reported no change")
	}
	// Empty set clears them.
	if !store.SetChatting(nil) {
		t.Fatal("clearing placeholders reported no change")
	}
	if store.Len() != 0 {
		t.Fatalf("Len = %d, want 0", store.Len())
	}
}

func TestStoreSetChattingPreservesFinalized(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.ReplaceAll([]Message{{ID: 1, Content: "first"}})
	store.SetChatting([]Message{{AgentID: 5, Content: "typing"}})
	store.SetChatting([]Message{{AgentID: 6, Content: "typing"}})

	messages := store.Messages()
	if len(messages) != 2 {
		t.Fatalf("Len = %d, want 2", len(messages))
	}
	if messages[0].ID != 1 {
		t.Fatalf("finalized message displaced: %+v", messages[0])
	}
	if !messages[1].IsChatting || messages[1].AgentID != 6 {
		t.Fatalf("placeholder set not replaced: %+v", messages[1])
	}
}

func TestStoreAtMostOnePlaceholderPerAgent(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.SetChatting([]Message{{AgentID: 5, Content: "a"}})
	store.SetChatting([]Message{{AgentID: 5, Content: "ab"}})

	count := 0
	for _, message := range store.Messages() {
		if message.IsChatting && message.AgentID == 5 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("agent 5 has %d placeholders, want 1", count)
	}
}

func TestStoreReset(t *testing.T) {
	t.Parallel()

	store := NewStore()
	store.ReplaceAll([]Message{{ID: 1}, {ID: 2}})
	store.Reset()
	if store.Len() != 0 {
		t.Fatalf("Len after Reset = %d, want 0", store.Len())
	}
}
