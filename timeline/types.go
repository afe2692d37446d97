// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"strconv"
	"time"
)

// Message is one entry in a room's conversation history.
//
// A persisted message carries a permanent numeric ID assigned by the
// server. A placeholder message (IsChatting) is synthesized locally
// while an agent is mid-response and carries no permanent ID; its
// identity is derived from the agent ID instead. The store never
// holds more than one persisted message per ID, nor more than one
// placeholder per agent.
type Message struct {
	ID         int64     `json:"id,omitempty"`
	Content    string    `json:"content"`
	Role       string    `json:"role"`
	AgentID    int64     `json:"agent_id,omitempty"` // zero for user/system messages
	AgentName  string    `json:"agent_name,omitempty"`
	ProfilePic string    `json:"agent_profile_pic,omitempty"`
	Thinking   string    `json:"thinking,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`

	// IsChatting marks a synthesized "agent is responding" entry
	// that has not been persisted by the server.
	IsChatting bool `json:"is_chatting,omitempty"`

	// IsStreaming marks a placeholder whose text is being fed by the
	// live push channel rather than the status poll.
	IsStreaming bool `json:"is_streaming,omitempty"`
}

// Key returns the identity used for deduplication: the permanent ID
// for persisted messages, "chatting_<agentID>" for placeholders.
func (m Message) Key() string {
	if m.IsChatting {
		return "chatting_" + strconv.FormatInt(m.AgentID, 10)
	}
	return strconv.FormatInt(m.ID, 10)
}

// ChattingAgent is one entry of the status poll snapshot: an agent
// the server reports as currently generating a response.
type ChattingAgent struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ProfilePic   string `json:"profile_pic,omitempty"`
	ResponseText string `json:"response_text,omitempty"`
	ThinkingText string `json:"thinking_text,omitempty"`
}

// StreamState accumulates an agent's in-flight response as delta
// events arrive on the push channel. States are owned by the
// StreamManager; callers receive copies via StreamManager.States.
type StreamState struct {
	AgentID   int64
	AgentName string

	// TempID is the transport-assigned identifier for this response.
	// Delta events may carry only the temp ID, so the manager keeps a
	// temp-ID → agent-ID mapping for the lifetime of the response.
	TempID string

	Thinking  string
	Response  string
	Narration string

	HasNarrated bool
}

// SendMessageRequest is the body for submitting an outgoing message.
type SendMessageRequest struct {
	Content           string   `json:"content"`
	Role              string   `json:"role"`
	ParticipantType   string   `json:"participant_type,omitempty"`
	ParticipantName   string   `json:"participant_name,omitempty"`
	Images            []string `json:"images,omitempty"`
	MentionedAgentIDs []int64  `json:"mentioned_agent_ids,omitempty"`
}

// Wire payloads for the named push events. Absent numeric fields
// decode to zero; agent IDs are always positive, so zero means "not
// present" throughout the event handlers.

type catchUpPayload struct {
	AgentID       int64  `json:"agent_id"`
	AgentName     string `json:"agent_name"`
	ThinkingText  string `json:"thinking_text"`
	ResponseText  string `json:"response_text"`
	NarrationText string `json:"narration_text"`
}

type streamStartPayload struct {
	AgentID   int64  `json:"agent_id"`
	TempID    string `json:"temp_id"`
	AgentName string `json:"agent_name"`
}

type deltaPayload struct {
	AgentID int64  `json:"agent_id"`
	TempID  string `json:"temp_id"`
	Delta   string `json:"delta"`
}

type streamEndPayload struct {
	AgentID int64  `json:"agent_id"`
	TempID  string `json:"temp_id"`
}

type newMessagePayload struct {
	Message Message `json:"message"`
}

type ticketResponse struct {
	Ticket string `json:"ticket"`
}
