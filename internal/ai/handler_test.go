package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/vnmchuo/noteswise/config"
	"github.com/vnmchuo/noteswise/internal/auth"
	"github.com/vnmchuo/noteswise/internal/provider"
	"github.com/vnmchuo/noteswise/internal/usage"
)

type mockUsageStore struct {
	mu       sync.Mutex
	logs     []*usage.Log
	counts   []usage.OperationCount
	queryErr error
}

func (m *mockUsageStore) LogUsage(_ context.Context, log *usage.Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockUsageStore) GetUsageByUser(_ context.Context, userID string, from, to time.Time) ([]*usage.Log, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*usage.Log
	for _, l := range m.logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockUsageStore) CountByOperation(context.Context, string, time.Time, time.Time) ([]usage.OperationCount, error) {
	return m.counts, m.queryErr
}

type handlerFixture struct {
	router   http.Handler
	recorder *usage.Recorder
	store    *mockUsageStore
}

// flush drains the recorder into the store.
func (f *handlerFixture) flush() []*usage.Log {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.recorder.Process(ctx)
	return f.store.logs
}

func setupHandler(svc *Service) *handlerFixture {
	store := &mockUsageStore{}
	recorder := usage.NewRecorder(store, 16, zap.NewNop())
	h := NewHandler(svc, recorder, store, noop.NewTracerProvider().Tracer("test"), zap.NewNop())
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.Routes(r, nil)
	})
	return &handlerFixture{router: r, recorder: recorder, store: store}
}

func serve(t *testing.T, h http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandler_Unauthorized(t *testing.T) {
	f := setupHandler(mockService(&MockProvider{name: "openai"}, nil))

	for _, path := range []string{"/api/ai/generate-summary", "/api/ai/generate-text", "/api/ai/generate-flashcards", "/api/ai/generate-audio", "/api/ai/test-summary"} {
		w := serve(t, f.router, http.MethodPost, path, "", `{}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	for _, path := range []string{"/api/ai/providers", "/api/ai/health", "/api/ai/usage"} {
		w := serve(t, f.router, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestHandler_InvalidInput(t *testing.T) {
	f := setupHandler(mockService(&MockProvider{name: "openai"}, nil))

	w := serve(t, f.router, http.MethodPost, "/api/ai/generate-summary", "u", `{invalid json}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", decode(t, w)["error"])

	w = serve(t, f.router, http.MethodPost, "/api/ai/generate-summary", "u", `{"content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, f.router, http.MethodPost, "/api/ai/generate-text", "u", `{"content":"not a prompt"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, f.router, http.MethodPost, "/api/ai/generate-audio", "u", `{"voice":"burt"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GenerateSummary(t *testing.T) {
	m := &MockProvider{name: "openai", result: provider.Succeeded("openai", "gpt-4o-mini", "Short.")}
	f := setupHandler(mockService(m, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/ai/generate-summary", bytes.NewBufferString(`{"content":"long text"}`))
	ctx := auth.WithRequestID(auth.WithUserID(req.Context(), "user-1"), "req-1")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Short.", decode(t, w)["summary"])

	logs := f.flush()
	require.Len(t, logs, 1)
	assert.Equal(t, "user-1", logs[0].UserID)
	assert.Equal(t, "req-1", logs[0].RequestID)
	assert.Equal(t, "openai", logs[0].Provider)
	assert.Equal(t, OperationSummary, logs[0].Operation)
	assert.True(t, logs[0].Success)
}

func TestHandler_GenerateSummary_Failure(t *testing.T) {
	m := &MockProvider{name: "openai", result: provider.Failed("openai", "API Error: 500 Internal Server Error")}
	f := setupHandler(mockService(m, nil))

	w := serve(t, f.router, http.MethodPost, "/api/ai/generate-summary", "u", `{"content":"text"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", decode(t, w)["summary"])

	logs := f.flush()
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	assert.NotEmpty(t, logs[0].RequestID)
}

func TestHandler_GenerateText(t *testing.T) {
	m := &MockProvider{name: "openai", result: provider.Succeeded("openai", "gpt-4o-mini", "a poem")}
	f := setupHandler(mockService(m, nil))

	w := serve(t, f.router, http.MethodPost, "/api/ai/generate-text", "u", `{"prompt":"write a poem"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a poem", decode(t, w)["text"])
}

func TestHandler_GenerateFlashcards(t *testing.T) {
	content := `[{"question":"What is the mitochondria?","answer":"The powerhouse of the cell."}]`
	m := &MockProvider{name: "openai", result: provider.Succeeded("openai", "gpt-4o-mini", content)}
	f := setupHandler(mockService(m, nil))

	w := serve(t, f.router, http.MethodPost, "/api/ai/generate-flashcards", "u", `{"content":"The mitochondria is the powerhouse of the cell."}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Flashcards []provider.Flashcard `json:"flashcards"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Flashcards, 1)
	assert.Equal(t, "What is the mitochondria?", resp.Flashcards[0].Question)
}

func TestHandler_GenerateFlashcards_FailureIsEmptyList(t *testing.T) {
	m := &MockProvider{name: "openai", result: provider.Failed("openai", "boom")}
	f := setupHandler(mockService(m, nil))

	w := serve(t, f.router, http.MethodPost, "/api/ai/generate-flashcards", "u", `{"content":"x"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"flashcards":[]}`, w.Body.String())
}

func TestHandler_GenerateAudio(t *testing.T) {
	synth := &fakeSynthesizer{fail: map[string]error{"broken": errors.New("tts down")}}
	f := setupHandler(mockService(&MockProvider{name: "openai"}, synth))

	w := serve(t, f.router, http.MethodPost, "/api/ai/generate-audio", "u", `{"text":"hello","voice":"burt"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio:hello:burt", decode(t, w)["audioContent"])

	w = serve(t, f.router, http.MethodPost, "/api/ai/generate-audio", "u", `{"text":"broken"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", decode(t, w)["audioContent"])

	logs := f.flush()
	require.Len(t, logs, 2)
	assert.Equal(t, OperationAudio, logs[0].Operation)
	assert.True(t, logs[0].Success)
	assert.False(t, logs[1].Success)
}

func TestHandler_TestSummary(t *testing.T) {
	m := &MockProvider{name: "openai", result: provider.Succeeded("openai", "gpt-4o-mini", "ok")}
	f := setupHandler(mockService(m, nil))

	w := serve(t, f.router, http.MethodPost, "/api/ai/test-summary", "u", `{"content":"x"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["summary"])
	assert.Equal(t, "default", body["provider"])
	assert.Equal(t, true, body["isSuccess"])

	w = serve(t, f.router, http.MethodPost, "/api/ai/test-summary", "u", `{"content":"x","provider":"gemini"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "gemini", body["provider"])
	assert.Equal(t, false, body["isSuccess"])
}

func TestHandler_Providers(t *testing.T) {
	cfg := testConfig("openai",
		config.ProviderConfig{Name: "openai", Enabled: true},
		config.ProviderConfig{Name: "anthropic", Enabled: false},
		config.ProviderConfig{Name: "gemini", Enabled: true},
	)
	f := setupHandler(newTestService(cfg, nil, nil))

	w := serve(t, f.router, http.MethodGet, "/api/ai/providers", "u", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"providers":["openai","gemini"]}`, w.Body.String())
}

func TestHandler_Health(t *testing.T) {
	up := &MockProvider{name: "openai", healthy: true}
	down := &MockProvider{name: "gemini", healthy: false}
	cfg := testConfig("openai",
		config.ProviderConfig{Name: "openai", Enabled: true},
		config.ProviderConfig{Name: "gemini", Enabled: true},
	)
	svc := newTestService(cfg, map[string]Constructor{"openai": constructorFor(up), "gemini": constructorFor(down)}, nil)
	f := setupHandler(svc)

	w := serve(t, f.router, http.MethodGet, "/api/ai/health", "u", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"Healthy","providers":{"openai":true,"gemini":false}}`, w.Body.String())

	up.healthy = false
	w = serve(t, f.router, http.MethodGet, "/api/ai/health", "u", "")
	assert.JSONEq(t, `{"status":"Unhealthy","providers":{"openai":false,"gemini":false}}`, w.Body.String())
}

func TestHandler_Usage(t *testing.T) {
	f := setupHandler(mockService(&MockProvider{name: "openai"}, nil))
	f.store.logs = []*usage.Log{{UserID: "u", Operation: OperationSummary}, {UserID: "other", Operation: OperationText}}
	f.store.counts = []usage.OperationCount{{Operation: OperationSummary, Total: 1}}

	w := serve(t, f.router, http.MethodGet, "/api/ai/usage", "u", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["total_requests"])
	assert.Len(t, body["operations"], 1)

	w = serve(t, f.router, http.MethodGet, "/api/ai/usage?from=yesterday", "u", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.store.queryErr = errors.New("db down")
	w = serve(t, f.router, http.MethodGet, "/api/ai/usage", "u", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandler_UsageWithoutHistory(t *testing.T) {
	h := NewHandler(mockService(&MockProvider{name: "openai"}, nil), nil, nil, noop.NewTracerProvider().Tracer("test"), nil)
	r := chi.NewRouter()
	h.Routes(r, nil)

	w := serve(t, r, http.MethodGet, "/ai/usage", "u", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(t, r, http.MethodPost, "/ai/generate-text", "u", `{"prompt":"hi"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
