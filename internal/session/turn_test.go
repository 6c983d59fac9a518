package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/parley-ai/parley/internal/event"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/store"
	"github.com/parley-ai/parley/pkg/types"
)

// scriptedProvider replays canned stream scripts, one per CreateCompletion
// call; the last script repeats for any extra calls.
type scriptedProvider struct {
	id      string
	scripts []func(w *schema.StreamWriter[*schema.Message])

	mu   sync.Mutex
	call int
}

func (p *scriptedProvider) ID() string   { return p.id }
func (p *scriptedProvider) Name() string { return p.id }
func (p *scriptedProvider) Models() []provider.Model {
	return []provider.Model{{ID: "m", Name: "m", ProviderID: p.id, MaxOutputTokens: 1024}}
}
func (p *scriptedProvider) ChatModel() model.ToolCallingChatModel { return nil }

func (p *scriptedProvider) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	p.mu.Lock()
	idx := p.call
	if idx >= len(p.scripts) {
		idx = len(p.scripts) - 1
	}
	script := p.scripts[idx]
	p.call++
	p.mu.Unlock()

	reader, writer := schema.Pipe[*schema.Message](8)
	go func() {
		defer writer.Close()
		script(writer)
	}()
	return provider.NewCompletionStream(reader), nil
}

func textChunk(text string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: text}
}

func usageChunk(prompt, completion, total int, finishReason string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: finishReason,
			Usage: &schema.TokenUsage{
				PromptTokens:     prompt,
				CompletionTokens: completion,
				TotalTokens:      total,
			},
		},
	}
}

func newTestService(t *testing.T, prov *scriptedProvider) (*Service, *store.Store) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "parley.db"))
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	registry := provider.NewRegistry(nil)
	registry.Register(prov)

	return NewService(st, registry, bus, nil), st
}

// collect drains the event channel into a slice, guarding against a stream
// that never terminates.
func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()

	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("event stream did not terminate; got %d events", len(events))
		}
	}
}

func countType(events []Event, typ EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func TestStreamTurn_HappyPath(t *testing.T) {
	prov := &scriptedProvider{
		id: "p",
		scripts: []func(w *schema.StreamWriter[*schema.Message]){
			func(w *schema.StreamWriter[*schema.Message]) {
				w.Send(textChunk("Hi"), nil)
				w.Send(textChunk(" there"), nil)
				w.Send(usageChunk(5, 2, 7, "stop"), nil)
			},
		},
	}
	svc, st := newTestService(t, prov)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "p", "m")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	events := collect(t, svc.StreamTurn(ctx, TurnRequest{
		SessionID:   sess.ID,
		UserMessage: "hello",
	}))

	if got := countType(events, EventAssistantMessageCreated); got != 1 {
		t.Errorf("Expected 1 assistant-message-created, got %d", got)
	}
	if got := countType(events, EventTextDelta); got != 2 {
		t.Errorf("Expected 2 text-delta events, got %d", got)
	}
	if got := countType(events, EventTextEnd); got != 1 {
		t.Errorf("Expected 1 text-end, got %d", got)
	}
	if got := countType(events, EventComplete); got != 1 {
		t.Errorf("Expected 1 complete, got %d", got)
	}

	last := events[len(events)-1]
	if last.Type != EventComplete {
		t.Fatalf("Expected complete as terminal event, got %s", last.Type)
	}
	if last.Usage == nil || last.Usage.PromptTokens != 5 || last.Usage.CompletionTokens != 2 || last.Usage.TotalTokens != 7 {
		t.Errorf("Unexpected usage on complete: %+v", last.Usage)
	}
	if last.FinishReason != "stop" {
		t.Errorf("Expected finish reason stop, got %q", last.FinishReason)
	}

	// Stored assistant message reflects the full streamed text.
	loaded, err := st.GetSessionByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSessionByID failed: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(loaded.Messages))
	}
	assistant := loaded.Messages[1]
	if assistant.Status != types.StatusCompleted {
		t.Errorf("Expected completed status, got %s", assistant.Status)
	}
	if len(assistant.Parts) != 1 {
		t.Fatalf("Expected 1 part, got %d", len(assistant.Parts))
	}
	text, ok := assistant.Parts[0].(*types.TextPart)
	if !ok || text.Text != "Hi there" {
		t.Errorf("Expected text part 'Hi there', got %#v", assistant.Parts[0])
	}
	if assistant.Usage == nil || assistant.Usage.TotalTokens != 7 {
		t.Errorf("Expected stored usage total 7, got %+v", assistant.Usage)
	}
}

func TestStreamTurn_AbortMidStream(t *testing.T) {
	abortDone := make(chan struct{})
	prov := &scriptedProvider{
		id: "p",
		scripts: []func(w *schema.StreamWriter[*schema.Message]){
			func(w *schema.StreamWriter[*schema.Message]) {
				w.Send(textChunk("Hi"), nil)
				// Hold the stream open until the abort has landed.
				<-abortDone
			},
		},
	}
	svc, st := newTestService(t, prov)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "p", "m")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ch := svc.StreamTurn(ctx, TurnRequest{SessionID: sess.ID, UserMessage: "hello"})

	var events []Event
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-ch:
			if !ok {
				done = true
				break
			}
			events = append(events, ev)
			if ev.Type == EventTextDelta && ev.Delta == "Hi" {
				svc.Abort(sess.ID)
				close(abortDone)
			}
		case <-timeout:
			t.Fatal("event stream did not terminate after abort")
		}
	}

	if got := countType(events, EventAbort); got != 1 {
		t.Errorf("Expected 1 abort event, got %d", got)
	}
	if got := countType(events, EventComplete); got != 0 {
		t.Errorf("Expected no complete event after abort, got %d", got)
	}

	loaded, err := st.GetSessionByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSessionByID failed: %v", err)
	}
	assistant := loaded.Messages[len(loaded.Messages)-1]
	if assistant.Status != types.StatusAbort {
		t.Errorf("Expected abort status, got %s", assistant.Status)
	}
	if len(assistant.Parts) != 1 {
		t.Fatalf("Expected 1 partial part, got %d", len(assistant.Parts))
	}
	if text, ok := assistant.Parts[0].(*types.TextPart); !ok || text.Text != "Hi" {
		t.Errorf("Expected partial text 'Hi', got %#v", assistant.Parts[0])
	}
}

func TestStreamTurn_NewSessionWithTitle(t *testing.T) {
	prov := &scriptedProvider{
		id: "p",
		scripts: []func(w *schema.StreamWriter[*schema.Message]){
			func(w *schema.StreamWriter[*schema.Message]) {
				w.Send(textChunk("Hello!"), nil)
				w.Send(usageChunk(3, 1, 4, "stop"), nil)
			},
			func(w *schema.StreamWriter[*schema.Message]) {
				w.Send(textChunk("Greeting user"), nil)
			},
		},
	}
	svc, st := newTestService(t, prov)
	ctx := context.Background()

	events := collect(t, svc.StreamTurn(ctx, TurnRequest{
		ProviderID:  "p",
		ModelID:     "m",
		UserMessage: "hello",
	}))

	if events[0].Type != EventSessionCreated {
		t.Fatalf("Expected session-created first, got %s", events[0].Type)
	}
	sessionID := events[0].SessionID
	if sessionID == "" || events[0].Session == nil {
		t.Fatal("session-created missing session payload")
	}

	if got := countType(events, EventTitleStart); got != 1 {
		t.Errorf("Expected 1 title-start, got %d", got)
	}
	if got := countType(events, EventTitleComplete); got != 1 {
		t.Errorf("Expected 1 title-complete, got %d", got)
	}
	if last := events[len(events)-1]; last.Type != EventComplete {
		t.Errorf("Expected complete terminal, got %s", last.Type)
	}

	loaded, err := st.GetSessionByID(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSessionByID failed: %v", err)
	}
	if loaded.Title != "Greeting user" {
		t.Errorf("Expected generated title, got %q", loaded.Title)
	}
}

func TestStreamTurn_ProviderNotConfigured(t *testing.T) {
	svc, _ := newTestService(t, &scriptedProvider{id: "p", scripts: []func(w *schema.StreamWriter[*schema.Message]){func(w *schema.StreamWriter[*schema.Message]) {}}})

	events := collect(t, svc.StreamTurn(context.Background(), TurnRequest{
		ProviderID:  "nope",
		ModelID:     "m",
		UserMessage: "hello",
	}))

	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("Expected single error event, got %+v", events)
	}
}

func TestStreamTurn_MissingModelForNewSession(t *testing.T) {
	svc, _ := newTestService(t, &scriptedProvider{id: "p", scripts: []func(w *schema.StreamWriter[*schema.Message]){func(w *schema.StreamWriter[*schema.Message]) {}}})

	events := collect(t, svc.StreamTurn(context.Background(), TurnRequest{
		ProviderID:  "p",
		UserMessage: "hello",
	}))

	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("Expected single error event, got %+v", events)
	}
}

func TestStreamTurn_StreamErrorPersistsPartialOutput(t *testing.T) {
	prov := &scriptedProvider{
		id: "p",
		scripts: []func(w *schema.StreamWriter[*schema.Message]){
			func(w *schema.StreamWriter[*schema.Message]) {
				w.Send(textChunk("Hi"), nil)
				w.Send(nil, errors.New("connection reset"))
			},
		},
	}
	svc, st := newTestService(t, prov)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "p", "m")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	events := collect(t, svc.StreamTurn(ctx, TurnRequest{SessionID: sess.ID, UserMessage: "hello"}))

	last := events[len(events)-1]
	if last.Type != EventError {
		t.Fatalf("Expected error terminal event, got %s", last.Type)
	}

	loaded, err := st.GetSessionByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSessionByID failed: %v", err)
	}
	assistant := loaded.Messages[len(loaded.Messages)-1]
	if assistant.Status != types.StatusError {
		t.Errorf("Expected error status, got %s", assistant.Status)
	}
	if len(assistant.Parts) != 1 {
		t.Fatalf("Expected partial part persisted, got %d parts", len(assistant.Parts))
	}
}

func TestStreamTurn_ToolCallEvents(t *testing.T) {
	prov := &scriptedProvider{
		id: "p",
		scripts: []func(w *schema.StreamWriter[*schema.Message]){
			func(w *schema.StreamWriter[*schema.Message]) {
				w.Send(&schema.Message{
					Role: schema.Assistant,
					ToolCalls: []schema.ToolCall{{
						ID:       "call-1",
						Function: schema.FunctionCall{Name: "ask", Arguments: `{"prompt":"ok?"}`},
					}},
				}, nil)
				w.Send(&schema.Message{Role: schema.Tool, ToolCallID: "call-1", Content: "yes"}, nil)
				w.Send(usageChunk(2, 1, 3, "tool_use"), nil)
			},
		},
	}
	svc, st := newTestService(t, prov)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "p", "m")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	events := collect(t, svc.StreamTurn(ctx, TurnRequest{SessionID: sess.ID, UserMessage: "hello"}))

	if got := countType(events, EventToolCall); got != 1 {
		t.Errorf("Expected 1 tool-call event, got %d", got)
	}
	if got := countType(events, EventToolResult); got != 1 {
		t.Errorf("Expected 1 tool-result event, got %d", got)
	}

	loaded, err := st.GetSessionByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSessionByID failed: %v", err)
	}
	assistant := loaded.Messages[len(loaded.Messages)-1]
	if len(assistant.Parts) != 2 {
		t.Fatalf("Expected tool call and result parts, got %d", len(assistant.Parts))
	}
	call, ok := assistant.Parts[0].(*types.ToolCallPart)
	if !ok || call.CallID != "call-1" || call.Name != "ask" {
		t.Errorf("Unexpected tool call part: %#v", assistant.Parts[0])
	}
	if string(call.Input) != `{"prompt":"ok?"}` {
		t.Errorf("Unexpected tool input: %s", call.Input)
	}
	result, ok := assistant.Parts[1].(*types.ToolResultPart)
	if !ok || result.Output != "yes" || result.IsError {
		t.Errorf("Unexpected tool result part: %#v", assistant.Parts[1])
	}
}
