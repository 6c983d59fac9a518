package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/parley-ai/parley/internal/event"
	"github.com/parley-ai/parley/internal/logging"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/store"
	"github.com/parley-ai/parley/pkg/types"
)

// TurnRequest describes one user-message-in, assistant-message-out cycle.
// An empty SessionID creates a fresh session, which then requires ProviderID
// and ModelID; for an existing session they act as overrides.
type TurnRequest struct {
	SessionID   string
	ProviderID  string
	ModelID     string
	UserMessage string
	Attachments []string
	Tools       []provider.ToolInfo
	MaxTokens   int
	Temperature float64
}

const eventBuffer = 64

// StreamTurn runs a turn and returns its ordered lifecycle event stream.
// Exactly one terminal event (complete, error, or abort) is emitted before
// the channel closes. Cancelling ctx mid-stream aborts the turn; partial
// output is still persisted.
//
// Turns for one session are serial by caller contract: a new turn must not
// be started until the previous terminal event was observed.
func (s *Service) StreamTurn(ctx context.Context, req TurnRequest) <-chan Event {
	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)
		s.runTurn(ctx, req, out)
	}()
	return out
}

func (s *Service) runTurn(callerCtx context.Context, req TurnRequest, out chan<- Event) {
	// emit delivers one event, giving up once the consumer is gone.
	emit := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-callerCtx.Done():
			return false
		}
	}
	fail := func(sessionID, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		logging.Error().Str("sessionID", sessionID).Msg(msg)
		emit(Event{Type: EventError, SessionID: sessionID, Error: msg})
	}

	// Resolve or create the session.
	var sess *types.Session
	newSession := false
	if req.SessionID == "" {
		if req.ProviderID == "" || req.ModelID == "" {
			fail("", "provider and model are required to create a session")
			return
		}
		if _, err := s.providers.Get(req.ProviderID); err != nil {
			fail("", "provider not configured: %s", req.ProviderID)
			return
		}
		created, err := s.Create(callerCtx, req.ProviderID, req.ModelID)
		if err != nil {
			fail("", "failed to create session: %v", err)
			return
		}
		sess = created
		newSession = true
		if !emit(Event{Type: EventSessionCreated, SessionID: sess.ID, Session: sess}) {
			return
		}
	} else {
		loaded, err := s.store.GetSessionByID(callerCtx, req.SessionID)
		if err != nil {
			fail(req.SessionID, "session not found: %s", req.SessionID)
			return
		}
		sess = loaded
	}

	providerID, modelID := sess.ProviderID, sess.ModelID
	if req.ProviderID != "" {
		providerID = req.ProviderID
	}
	if req.ModelID != "" {
		modelID = req.ModelID
	}

	prov, err := s.providers.Get(providerID)
	if err != nil {
		fail(sess.ID, "provider not configured: %s", providerID)
		return
	}

	// The abort signal cancels turnCtx only; emits and post-abort
	// persistence keep working.
	turnCtx, cancel := context.WithCancel(callerCtx)
	defer cancel()
	s.registerTurn(sess.ID, cancel)
	defer s.unregisterTurn(sess.ID)

	// Persist the user turn with its telemetry and todo snapshots.
	telemetry := captureTelemetry()
	todos, err := s.store.GetTodos(turnCtx, sess.ID)
	if err != nil {
		logging.Warn().Err(err).Str("sessionID", sess.ID).Msg("todo snapshot failed")
		todos = nil
	}

	parts := []types.Part{&types.TextPart{
		ID:   generateID(),
		Type: types.PartTypeText,
		Text: req.UserMessage,
	}}
	attachments := loadAttachments(req.Attachments, &parts)

	userMsgID, err := s.store.AddMessage(turnCtx, store.AddMessageParams{
		SessionID:    sess.ID,
		Role:         types.RoleUser,
		Status:       types.StatusCompleted,
		Metadata:     telemetry,
		Parts:        parts,
		Attachments:  attachments,
		TodoSnapshot: todos,
	})
	if err != nil {
		fail(sess.ID, "failed to persist user message: %v", err)
		return
	}
	s.bus.Publish(event.Event{
		Type: event.MessageAdded,
		Data: event.MessageAddedData{SessionID: sess.ID, MessageID: userMsgID, Role: types.RoleUser},
	})

	// Reload so the replayed history includes the turn just added.
	reloaded, err := s.store.GetSessionByID(turnCtx, sess.ID)
	if err != nil {
		fail(sess.ID, "failed to reload session: %v", err)
		return
	}
	sess = reloaded

	messages := buildProviderMessages(sess)

	// Create the assistant row before any token arrives so observers can
	// render a placeholder.
	assistantID, err := s.store.AddMessage(turnCtx, store.AddMessageParams{
		SessionID: sess.ID,
		Role:      types.RoleAssistant,
		Status:    types.StatusActive,
	})
	if err != nil {
		fail(sess.ID, "failed to create assistant message: %v", err)
		return
	}
	s.bus.Publish(event.Event{
		Type: event.MessageAdded,
		Data: event.MessageAddedData{SessionID: sess.ID, MessageID: assistantID, Role: types.RoleAssistant},
	})
	if !emit(Event{Type: EventAssistantMessageCreated, SessionID: sess.ID, MessageID: assistantID}) {
		return
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		if m, err := s.providers.GetModel(providerID, modelID); err == nil {
			maxTokens = m.MaxOutputTokens
		} else {
			maxTokens = 8192
		}
	}

	stream, err := prov.CreateCompletion(turnCtx, &provider.CompletionRequest{
		Model:       modelID,
		Messages:    messages,
		Tools:       provider.ConvertToEinoTools(req.Tools),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		s.finalizeAssistant(callerCtx, sess.ID, assistantID, &turnState{}, types.StatusError, "")
		fail(sess.ID, "failed to open completion stream: %v", err)
		return
	}

	st := newTurnState(sess.ID, assistantID)
	aborted, streamErr := s.consumeStream(turnCtx, stream, st, emit)
	stream.Close()

	if aborted {
		// Terminal abort goes out first; persistence of partial output
		// still runs below.
		emit(Event{Type: EventAbort, SessionID: sess.ID, MessageID: assistantID})
	} else if streamErr == nil {
		// Close any part still open on a clean end of stream.
		if st.reasonPart != nil {
			emit(Event{Type: EventReasoningEnd, SessionID: sess.ID, MessageID: assistantID})
			st.reasonPart = nil
		}
		if st.textPart != nil {
			emit(Event{Type: EventTextEnd, SessionID: sess.ID, MessageID: assistantID})
			st.textPart = nil
		}
	}

	st.finalize()

	status := types.StatusCompleted
	switch {
	case aborted:
		status = types.StatusAbort
	case streamErr != nil:
		status = types.StatusError
	case st.usage == nil:
		status = types.StatusError
	}

	s.finalizeAssistant(callerCtx, sess.ID, assistantID, st, status, st.finishReason)

	if aborted {
		return
	}
	if streamErr != nil {
		fail(sess.ID, "provider stream failed: %v", streamErr)
		return
	}
	if st.usage == nil {
		fail(sess.ID, "provider stream ended without usage")
		return
	}

	if newSession && isDefaultTitle(sess.Title) {
		s.generateTitle(turnCtx, sess.ID, prov, modelID, req.UserMessage, emit)
	}

	emit(Event{
		Type:         EventComplete,
		SessionID:    sess.ID,
		MessageID:    assistantID,
		Usage:        st.usage,
		FinishReason: st.finishReason,
	})
}

// turnState accumulates the assistant message while the stream runs.
type turnState struct {
	sessionID    string
	messageID    string
	parts        []types.Part
	textPart     *types.TextPart
	reasonPart   *types.ReasoningPart
	toolCalls    map[string]*types.ToolCallPart
	toolInputs   map[string]*strings.Builder
	usage        *types.Usage
	finishReason string
}

func newTurnState(sessionID, messageID string) *turnState {
	return &turnState{
		sessionID:  sessionID,
		messageID:  messageID,
		toolCalls:  make(map[string]*types.ToolCallPart),
		toolInputs: make(map[string]*strings.Builder),
	}
}

// consumeStream drives the provider stream, re-emitting each chunk as
// lifecycle events and buffering parts. It returns the abort flag and any
// stream error; abort wins when both apply.
func (s *Service) consumeStream(
	ctx context.Context,
	stream *provider.CompletionStream,
	st *turnState,
	emit func(Event) bool,
) (aborted bool, streamErr error) {
	for {
		select {
		case <-ctx.Done():
			return true, nil
		default:
		}

		msg, err := stream.Recv()
		if ctx.Err() != nil {
			return true, nil
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		if !s.handleChunk(msg, st, emit) {
			return true, nil
		}
	}
}

// handleChunk folds one stream chunk into the turn state and emits the
// matching events. Chunk content fields are deltas. Returns false once the
// consumer is gone.
func (s *Service) handleChunk(msg *schema.Message, st *turnState, emit func(Event) bool) bool {
	if msg.Role == schema.Tool {
		return s.handleToolResult(msg, st, emit)
	}

	if msg.ReasoningContent != "" {
		if st.reasonPart == nil {
			st.reasonPart = &types.ReasoningPart{
				ID:   generateID(),
				Type: types.PartTypeReasoning,
			}
			st.parts = append(st.parts, st.reasonPart)
			if !emit(Event{Type: EventReasoningStart, SessionID: st.sessionID, MessageID: st.messageID}) {
				return false
			}
		}
		st.reasonPart.Text += msg.ReasoningContent
		if !emit(Event{Type: EventReasoningDelta, SessionID: st.sessionID, MessageID: st.messageID, Delta: msg.ReasoningContent}) {
			return false
		}
	}

	if msg.Content != "" {
		if st.reasonPart != nil {
			if !emit(Event{Type: EventReasoningEnd, SessionID: st.sessionID, MessageID: st.messageID}) {
				return false
			}
			st.reasonPart = nil
		}
		if st.textPart == nil {
			st.textPart = &types.TextPart{
				ID:   generateID(),
				Type: types.PartTypeText,
			}
			st.parts = append(st.parts, st.textPart)
			if !emit(Event{Type: EventTextStart, SessionID: st.sessionID, MessageID: st.messageID}) {
				return false
			}
		}
		st.textPart.Text += msg.Content
		if !emit(Event{Type: EventTextDelta, SessionID: st.sessionID, MessageID: st.messageID, Delta: msg.Content}) {
			return false
		}
	}

	for _, tc := range msg.ToolCalls {
		if tc.ID != "" && st.toolCalls[tc.ID] == nil {
			part := &types.ToolCallPart{
				ID:     generateID(),
				Type:   types.PartTypeToolCall,
				CallID: tc.ID,
				Name:   tc.Function.Name,
			}
			st.toolCalls[tc.ID] = part
			st.toolInputs[tc.ID] = &strings.Builder{}
			st.parts = append(st.parts, part)
			if !emit(Event{
				Type:       EventToolCall,
				SessionID:  st.sessionID,
				MessageID:  st.messageID,
				ToolCallID: tc.ID,
				ToolName:   tc.Function.Name,
			}) {
				return false
			}
		}
		if tc.ID != "" && tc.Function.Arguments != "" {
			st.toolInputs[tc.ID].WriteString(tc.Function.Arguments)
		}
	}

	if msg.ResponseMeta != nil {
		if msg.ResponseMeta.Usage != nil {
			st.usage = &types.Usage{
				PromptTokens:     msg.ResponseMeta.Usage.PromptTokens,
				CompletionTokens: msg.ResponseMeta.Usage.CompletionTokens,
				TotalTokens:      msg.ResponseMeta.Usage.TotalTokens,
			}
		}
		if msg.ResponseMeta.FinishReason != "" {
			st.finishReason = msg.ResponseMeta.FinishReason
		}
	}

	return true
}

// handleToolResult records a tool outcome replayed through the stream. A
// content prefixed "Error:" marks a failed invocation.
func (s *Service) handleToolResult(msg *schema.Message, st *turnState, emit func(Event) bool) bool {
	isError := strings.HasPrefix(msg.Content, "Error:")

	name := ""
	if part, ok := st.toolCalls[msg.ToolCallID]; ok {
		name = part.Name
	}

	st.parts = append(st.parts, &types.ToolResultPart{
		ID:      generateID(),
		Type:    types.PartTypeToolResult,
		CallID:  msg.ToolCallID,
		Name:    name,
		Output:  msg.Content,
		IsError: isError,
	})

	evType := EventToolResult
	if isError {
		evType = EventToolError
	}
	return emit(Event{
		Type:       evType,
		SessionID:  st.sessionID,
		MessageID:  st.messageID,
		ToolCallID: msg.ToolCallID,
		ToolName:   name,
		ToolOutput: msg.Content,
	})
}

// finalize closes accumulated tool inputs into their parts.
func (st *turnState) finalize() {
	for id, part := range st.toolCalls {
		if b, ok := st.toolInputs[id]; ok && b.Len() > 0 {
			raw := b.String()
			if json.Valid([]byte(raw)) {
				part.Input = json.RawMessage(raw)
			}
		}
	}
}

// finalizeAssistant flushes buffered parts wholesale, sets terminal status,
// and persists usage. It runs detached from the abort signal so partial
// output survives cancellation.
func (s *Service) finalizeAssistant(
	callerCtx context.Context,
	sessionID, messageID string,
	st *turnState,
	status, finishReason string,
) {
	ctx := context.WithoutCancel(callerCtx)

	if err := s.store.UpdateMessageParts(ctx, messageID, st.parts); err != nil {
		logging.Error().Err(err).Str("messageID", messageID).Msg("failed to persist assistant parts")
	} else {
		s.bus.Publish(event.Event{
			Type: event.MessagePartsUpdated,
			Data: event.MessagePartsUpdatedData{SessionID: sessionID, MessageID: messageID, Parts: st.parts},
		})
	}

	var reason *string
	if finishReason != "" {
		reason = &finishReason
	}
	if err := s.store.UpdateMessageStatus(ctx, messageID, status, reason); err != nil {
		logging.Error().Err(err).Str("messageID", messageID).Msg("failed to set assistant status")
	} else {
		s.bus.Publish(event.Event{
			Type: event.MessageStatusUpdated,
			Data: event.MessageStatusUpdatedData{SessionID: sessionID, MessageID: messageID, Status: status},
		})
	}

	if st.usage != nil {
		if err := s.store.UpdateMessageUsage(ctx, messageID, *st.usage); err != nil {
			logging.Error().Err(err).Str("messageID", messageID).Msg("failed to persist usage")
		} else {
			s.bus.Publish(event.Event{
				Type: event.MessageUsageUpdated,
				Data: event.MessageUsageUpdatedData{SessionID: sessionID, MessageID: messageID, Usage: *st.usage},
			})
		}
	}
}

// loadAttachments reads attachment files, recording metadata and inlining
// content as extra text blocks. A failed read is logged and skipped.
func loadAttachments(paths []string, parts *[]types.Part) []types.Attachment {
	var attachments []types.Attachment
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("skipping unreadable attachment")
			continue
		}

		attachments = append(attachments, types.Attachment{
			ID:           generateID(),
			Path:         path,
			RelativePath: filepath.Base(path),
			Size:         int64(len(data)),
		})
		*parts = append(*parts, &types.TextPart{
			ID:   generateID(),
			Type: types.PartTypeText,
			Text: fmt.Sprintf("<attachment path=%q>\n%s\n</attachment>", path, data),
		})
	}
	return attachments
}
