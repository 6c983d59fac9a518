package session

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/parley-ai/parley/pkg/types"
)

const (
	abortedMarker = "\n\n[Previous response was aborted by the user before completion.]"
	erroredMarker = "\n\n[Previous response was interrupted by an error before completion.]"
)

// buildProviderMessages replays the persisted conversation as the
// provider-facing message list. User messages get their telemetry and todo
// snapshots injected as context blocks ahead of the user's own text;
// assistant messages are reconstructed with tool calls, and tool results are
// replayed as separate tool-role messages.
func buildProviderMessages(sess *types.Session) []*schema.Message {
	var out []*schema.Message

	for _, msg := range sess.Messages {
		switch msg.Role {
		case types.RoleUser:
			out = append(out, buildUserMessage(msg))
		case types.RoleAssistant:
			assistant, toolResults := buildAssistantMessages(msg)
			out = append(out, assistant)
			out = append(out, toolResults...)
		}
	}

	return out
}

func buildUserMessage(msg *types.Message) *schema.Message {
	var b strings.Builder

	if block := telemetryBlock(msg.Metadata); block != "" {
		b.WriteString(block)
	}
	if block := todoBlock(msg.TodoSnapshot); block != "" {
		b.WriteString(block)
	}

	for _, part := range msg.Parts {
		if p, ok := part.(*types.TextPart); ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(p.Text)
		}
	}

	return &schema.Message{Role: schema.User, Content: b.String()}
}

// buildAssistantMessages reconstructs one assistant turn: the assistant
// message itself plus a tool-role message per recorded tool result.
func buildAssistantMessages(msg *types.Message) (*schema.Message, []*schema.Message) {
	var content, reasoning strings.Builder
	var toolCalls []schema.ToolCall
	var toolResults []*schema.Message

	for _, part := range msg.Parts {
		switch p := part.(type) {
		case *types.TextPart:
			content.WriteString(p.Text)
		case *types.ReasoningPart:
			reasoning.WriteString(p.Text)
		case *types.ToolCallPart:
			toolCalls = append(toolCalls, schema.ToolCall{
				ID: p.CallID,
				Function: schema.FunctionCall{
					Name:      p.Name,
					Arguments: string(p.Input),
				},
			})
		case *types.ToolResultPart:
			output := p.Output
			if p.IsError {
				output = "Error: " + output
			}
			toolResults = append(toolResults, &schema.Message{
				Role:       schema.Tool,
				ToolCallID: p.CallID,
				Content:    output,
			})
		}
	}

	switch msg.Status {
	case types.StatusAbort:
		content.WriteString(abortedMarker)
	case types.StatusError:
		content.WriteString(erroredMarker)
	}

	assistant := &schema.Message{
		Role:             schema.Assistant,
		Content:          content.String(),
		ReasoningContent: reasoning.String(),
		ToolCalls:        toolCalls,
	}
	return assistant, toolResults
}

func telemetryBlock(t *types.Telemetry) string {
	if t == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("<environment>\n")
	if t.Hostname != "" {
		fmt.Fprintf(&b, "hostname: %s\n", t.Hostname)
	}
	fmt.Fprintf(&b, "platform: %s/%s\n", t.Platform, t.Arch)
	if t.WorkingDir != "" {
		fmt.Fprintf(&b, "working directory: %s\n", t.WorkingDir)
	}
	b.WriteString("</environment>\n")
	return b.String()
}

func todoBlock(todos []types.Todo) string {
	if len(todos) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<todos>\n")
	for _, todo := range todos {
		fmt.Fprintf(&b, "- [%s] %s\n", todo.Status, todo.Content)
	}
	b.WriteString("</todos>\n")
	return b.String()
}
