package types

import (
	"encoding/json"
	"fmt"
)

// Part represents a typed content block of a message.
type Part interface {
	PartType() string
	PartID() string
}

// Part type tags.
const (
	PartTypeText       = "text"
	PartTypeReasoning  = "reasoning"
	PartTypeToolCall   = "tool-call"
	PartTypeToolResult = "tool-result"
	PartTypeError      = "error"
)

// TextPart is plain assistant or user text.
type TextPart struct {
	ID   string `json:"id"`
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

func (p *TextPart) PartType() string { return PartTypeText }
func (p *TextPart) PartID() string   { return p.ID }

// ReasoningPart holds extended-thinking content.
type ReasoningPart struct {
	ID   string `json:"id"`
	Type string `json:"type"` // always "reasoning"
	Text string `json:"text"`
}

func (p *ReasoningPart) PartType() string { return PartTypeReasoning }
func (p *ReasoningPart) PartID() string   { return p.ID }

// ToolCallPart records a tool invocation requested by the model.
type ToolCallPart struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"` // always "tool-call"
	CallID string          `json:"callID"`
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input,omitempty"`
}

func (p *ToolCallPart) PartType() string { return PartTypeToolCall }
func (p *ToolCallPart) PartID() string   { return p.ID }

// ToolResultPart records the outcome of a tool invocation.
type ToolResultPart struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // always "tool-result"
	CallID  string `json:"callID"`
	Name    string `json:"name"`
	Output  string `json:"output"`
	IsError bool   `json:"isError,omitempty"`
}

func (p *ToolResultPart) PartType() string { return PartTypeToolResult }
func (p *ToolResultPart) PartID() string   { return p.ID }

// ErrorPart records a stream-level failure inline with the message content.
type ErrorPart struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // always "error"
	Message string `json:"message"`
}

func (p *ErrorPart) PartType() string { return PartTypeError }
func (p *ErrorPart) PartID() string   { return p.ID }

// UnmarshalPart decodes a JSON part into its concrete type by the "type" tag.
func UnmarshalPart(data []byte) (Part, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}

	switch tag.Type {
	case PartTypeText:
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case PartTypeReasoning:
		var p ReasoningPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case PartTypeToolCall:
		var p ToolCallPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case PartTypeToolResult:
		var p ToolResultPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case PartTypeError:
		var p ErrorPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown part type: %q", tag.Type)
	}
}
