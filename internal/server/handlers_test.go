package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/parley-ai/parley/internal/ask"
	"github.com/parley-ai/parley/internal/event"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/session"
	"github.com/parley-ai/parley/internal/store"
	"github.com/parley-ai/parley/pkg/types"
)

type stubProvider struct{}

func (stubProvider) ID() string   { return "p" }
func (stubProvider) Name() string { return "p" }
func (stubProvider) Models() []provider.Model {
	return []provider.Model{{ID: "m", Name: "m", ProviderID: "p"}}
}
func (stubProvider) ChatModel() model.ToolCallingChatModel { return nil }
func (stubProvider) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	reader, writer := schema.Pipe[*schema.Message](1)
	writer.Close()
	return provider.NewCompletionStream(reader), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "parley.db"))
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	broker := ask.NewBroker()
	t.Cleanup(broker.Close)

	asks := ask.NewService()
	asks.SetHandler(ask.NewBrokerHandler(broker))

	registry := provider.NewRegistry(nil)
	registry.Register(stubProvider{})

	appConfig := &types.Config{
		Provider: map[string]types.ProviderConfig{},
		RateLimit: types.RateLimitConfig{
			MaxRequests:       100,
			WindowMs:          60_000,
			StrictMaxRequests: 2,
			MaxStreams:        2,
		},
	}

	srv := New(DefaultConfig(), appConfig, session.NewService(st, registry, bus, asks), registry, bus, broker)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/session", map[string]string{
		"provider": "p", "model": "m",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var sess types.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.ID == "" || sess.ProviderID != "p" {
		t.Fatalf("Unexpected session: %+v", sess)
	}

	rec = doJSON(t, srv, http.MethodGet, "/session/"+sess.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 on get, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/session/"+sess.ID, map[string]string{"title": "Renamed"})
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 on rename, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodDelete, "/session/"+sess.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 on delete, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/session/"+sess.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/session", map[string]string{"provider": "p"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing model, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/session", map[string]string{
		"provider": "missing", "model": "m",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown provider, got %d", rec.Code)
	}
}

func TestDeleteRateLimited(t *testing.T) {
	srv := newTestServer(t)

	// Strict class allows 2 per window; the 3rd delete is refused even
	// though the sessions do not exist.
	for i := 0; i < 2; i++ {
		rec := doJSON(t, srv, http.MethodDelete, "/session/nope", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", rec.Code)
		}
	}

	rec := doJSON(t, srv, http.MethodDelete, "/session/nope", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("Expected remaining 0 header, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("Expected reset header")
	}
}

func TestResolveUnknownAsk(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/ask/nope/resolve", map[string]any{
		"answers": []string{"yes"},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown question, got %d", rec.Code)
	}
}

func TestResolvePendingAsk(t *testing.T) {
	srv := newTestServer(t)

	p := srv.broker.Create("s1", ask.Question{Prompt: "Proceed?"})

	rec := doJSON(t, srv, http.MethodGet, "/session/s1/ask", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var pending []pendingAskView
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != p.ID {
		t.Fatalf("Unexpected pending list: %+v", pending)
	}

	rec = doJSON(t, srv, http.MethodPost, "/ask/"+p.ID+"/resolve", map[string]any{
		"answers": []string{"yes"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on resolve, got %d", rec.Code)
	}

	answer, err := p.Wait(context.Background())
	if err != nil || answer != "yes" {
		t.Errorf("Expected answer yes, got %q (%v)", answer, err)
	}
}

func TestAskQuestionRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	// The asking side suspends until a remote caller resolves the question.
	type result struct {
		code   int
		answer string
	}
	done := make(chan result, 1)
	go func() {
		rec := doJSON(t, srv, http.MethodPost, "/session/s1/ask", map[string]any{
			"prompt": "Proceed with the plan?",
		})
		var body map[string]string
		json.Unmarshal(rec.Body.Bytes(), &body)
		done <- result{rec.Code, body["answer"]}
	}()

	var pending []pendingAskView
	deadline := time.After(3 * time.Second)
	for len(pending) == 0 {
		select {
		case <-deadline:
			t.Fatal("Question never became pending")
		case <-time.After(5 * time.Millisecond):
			rec := doJSON(t, srv, http.MethodGet, "/session/s1/ask", nil)
			if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
				t.Fatalf("decode pending: %v", err)
			}
		}
	}

	rec := doJSON(t, srv, http.MethodPost, "/ask/"+pending[0].ID+"/resolve", map[string]any{
		"answers": []string{"yes"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on resolve, got %d", rec.Code)
	}

	select {
	case res := <-done:
		if res.code != http.StatusOK {
			t.Fatalf("Expected 200 from ask, got %d", res.code)
		}
		if res.answer != "yes" {
			t.Errorf("Expected answer 'yes', got %q", res.answer)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Ask request did not return after resolution")
	}
}

func TestAskQuestionRequiresPrompt(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/session/s1/ask", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing prompt, got %d", rec.Code)
	}
}

func TestTodosRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/session", map[string]string{
		"provider": "p", "model": "m",
	})
	var sess types.Session
	json.Unmarshal(rec.Body.Bytes(), &sess)

	rec = doJSON(t, srv, http.MethodPut, "/session/"+sess.ID+"/todo", map[string]any{
		"todos": []types.Todo{
			{ID: 1, Content: "ship it", ActiveForm: "Shipping it", Status: types.TodoPending, Ordering: 0},
		},
		"nextTodoId": 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on replace, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/session/"+sess.ID+"/todo", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var todos []types.Todo
	if err := json.Unmarshal(rec.Body.Bytes(), &todos); err != nil {
		t.Fatalf("decode todos: %v", err)
	}
	if len(todos) != 1 || todos[0].Content != "ship it" {
		t.Errorf("Unexpected todos: %+v", todos)
	}
}

func TestConfigRedactsSecrets(t *testing.T) {
	srv := newTestServer(t)
	srv.appConfig.Provider["anthropic"] = types.ProviderConfig{APIKey: "sk-secret"}

	rec := doJSON(t, srv, http.MethodGet, "/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var cfg types.Config
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.Provider["anthropic"].APIKey != "***" {
		t.Errorf("Expected redacted key, got %q", cfg.Provider["anthropic"].APIKey)
	}
}
