package session

import (
	"encoding/json"

	"github.com/parley-ai/parley/pkg/types"
)

// EventType tags one lifecycle event emitted while streaming a turn.
type EventType string

const (
	EventSessionCreated          EventType = "session-created"
	EventAssistantMessageCreated EventType = "assistant-message-created"

	EventTextStart EventType = "text-start"
	EventTextDelta EventType = "text-delta"
	EventTextEnd   EventType = "text-end"

	EventReasoningStart EventType = "reasoning-start"
	EventReasoningDelta EventType = "reasoning-delta"
	EventReasoningEnd   EventType = "reasoning-end"

	EventToolCall   EventType = "tool-call"
	EventToolResult EventType = "tool-result"
	EventToolError  EventType = "tool-error"

	EventTitleStart    EventType = "title-start"
	EventTitleDelta    EventType = "title-delta"
	EventTitleComplete EventType = "title-complete"

	EventComplete EventType = "complete"
	EventError    EventType = "error"
	EventAbort    EventType = "abort"
)

// Event is one ordered lifecycle event for a streaming turn. Exactly one of
// complete, error, or abort terminates the stream; the channel is closed
// after the terminal event.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`

	// Session rides on session-created.
	Session *types.Session `json:"session,omitempty"`

	// Delta carries text, reasoning, and title increments.
	Delta string `json:"delta,omitempty"`

	// Tool call and result fields.
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolInput  json.RawMessage `json:"toolInput,omitempty"`
	ToolOutput string          `json:"toolOutput,omitempty"`

	// Title rides on title-complete.
	Title string `json:"title,omitempty"`

	// Terminal fields.
	Usage        *types.Usage `json:"usage,omitempty"`
	FinishReason string       `json:"finishReason,omitempty"`
	Error        string       `json:"error,omitempty"`
}
