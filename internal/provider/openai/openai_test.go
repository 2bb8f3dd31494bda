package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/vnmchuo/noteswise/config"
	"github.com/vnmchuo/noteswise/internal/provider"
)

func newTestProvider(serverURL string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:       "test-key",
		baseURL:      serverURL,
		defaultModel: "gpt-4o-mini",
		client:       provider.NewHTTPClient(0, nil),
		logger:       zap.NewNop(),
	}
}

func respondWith(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := openAIResponse{
			ID: "test-id",
			Choices: []openAIChoice{
				{Message: openAIMessage{Role: "assistant", Content: content}},
			},
			Model: "gpt-4o-mini",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestGenerateSummary_Mock(t *testing.T) {
	var captured openAIRequest
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		authHeader = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		respondWith("A short summary.")(w, r)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	res := p.GenerateSummary(context.Background(), &provider.Request{Content: "long text"})

	if !res.Success {
		t.Fatalf("GenerateSummary failed: %s", res.Error)
	}
	if res.Content != "A short summary." {
		t.Errorf("Expected 'A short summary.', got %s", res.Content)
	}
	if res.Provider != "openai" || res.Model != "gpt-4o-mini" {
		t.Errorf("Unexpected provider/model: %s/%s", res.Provider, res.Model)
	}
	if authHeader != "Bearer test-key" {
		t.Errorf("Expected bearer auth, got %q", authHeader)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Fatalf("Expected system+user messages, got %+v", captured.Messages)
	}
	if captured.MaxTokens != provider.SummaryMaxTokens {
		t.Errorf("Expected max_tokens %d, got %d", provider.SummaryMaxTokens, captured.MaxTokens)
	}
	if captured.Temperature != provider.SummaryTemperature {
		t.Errorf("Expected temperature %v, got %v", provider.SummaryTemperature, captured.Temperature)
	}
}

func TestGenerateText_VerbatimWithOverrides(t *testing.T) {
	var captured openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		respondWith("free text")(w, r)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	res := p.GenerateText(context.Background(), &provider.Request{
		Content:    "write a poem",
		Model:      "gpt-4o",
		Parameters: map[string]any{"max_tokens": 64, "temperature": 0.1},
	})
	if !res.Success {
		t.Fatalf("GenerateText failed: %s", res.Error)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Content != "write a poem" {
		t.Errorf("Expected verbatim single user message, got %+v", captured.Messages)
	}
	if captured.Model != "gpt-4o" || captured.MaxTokens != 64 || captured.Temperature != 0.1 {
		t.Errorf("Overrides not applied: %+v", captured)
	}
}

func TestOperations_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	ctx := context.Background()
	req := &provider.Request{Content: "hi"}
	for name, res := range map[string]provider.Result{
		"summary":    p.GenerateSummary(ctx, req),
		"text":       p.GenerateText(ctx, req),
		"flashcards": p.GenerateFlashcards(ctx, req),
	} {
		if res.Success {
			t.Errorf("%s: expected failure on 429", name)
		}
		if res.Error != "API Error: 429 Too Many Requests" {
			t.Errorf("%s: unexpected error %q", name, res.Error)
		}
	}
}

func TestOperations_MissingContentPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"x","object":"chat.completion"}`)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	ctx := context.Background()
	req := &provider.Request{Content: "hi"}
	for name, res := range map[string]provider.Result{
		"summary":    p.GenerateSummary(ctx, req),
		"text":       p.GenerateText(ctx, req),
		"flashcards": p.GenerateFlashcards(ctx, req),
	} {
		if res.Success || res.Error != "Empty response from OpenAI" {
			t.Errorf("%s: expected empty response failure, got %+v", name, res)
		}
	}
}

func TestGenerateSummary_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices": [`)
	}))
	defer server.Close()

	res := newTestProvider(server.URL).GenerateSummary(context.Background(), &provider.Request{Content: "hi"})
	if res.Success || res.Error != "Failed to parse OpenAI response" {
		t.Errorf("Expected parse failure, got %+v", res)
	}
}

func TestGenerateSummary_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	res := newTestProvider(url).GenerateSummary(context.Background(), &provider.Request{Content: "hi"})
	if res.Success || res.Error != "Network error calling OpenAI API" {
		t.Errorf("Expected network failure, got %+v", res)
	}
}

func TestGenerateFlashcards_Fenced(t *testing.T) {
	var captured openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		respondWith("```json\n[{\"question\":\"What is the mitochondria?\",\"answer\":\"The powerhouse of the cell.\"}]\n```")(w, r)
	}))
	defer server.Close()

	res := newTestProvider(server.URL).GenerateFlashcards(context.Background(), &provider.Request{
		Content: "The mitochondria is the powerhouse of the cell.",
	})
	if !res.Success {
		t.Fatalf("GenerateFlashcards failed: %s", res.Error)
	}
	var cards []provider.Flashcard
	if err := json.Unmarshal([]byte(res.Content), &cards); err != nil {
		t.Fatalf("Content is not canonical JSON: %v", err)
	}
	if len(cards) != 1 || cards[0].Question != "What is the mitochondria?" || cards[0].Answer != "The powerhouse of the cell." {
		t.Errorf("Unexpected cards: %+v", cards)
	}
	if captured.Temperature != provider.FlashcardTemperature {
		t.Errorf("Expected temperature %v, got %v", provider.FlashcardTemperature, captured.Temperature)
	}
}

func TestGenerateFlashcards_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(respondWith(`[{"question": "unterminated"`))
	defer server.Close()

	res := newTestProvider(server.URL).GenerateFlashcards(context.Background(), &provider.Request{Content: "x"})
	if res.Success {
		t.Fatal("Expected failure for invalid flashcard JSON")
	}
	if res.Error != "Failed to parse generated flashcards" {
		t.Errorf("Unexpected error %q", res.Error)
	}
}

func TestIsHealthy_Idempotent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respondWith("ok")(w, r)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	first := p.IsHealthy(context.Background())
	second := p.IsHealthy(context.Background())
	if !first || first != second {
		t.Errorf("Expected stable healthy result, got %v then %v", first, second)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 backend calls, got %d", calls.Load())
	}
}

func TestIsHealthy_Down(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if newTestProvider(server.URL).IsHealthy(context.Background()) {
		t.Error("Expected unhealthy provider")
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(config.ProviderConfig{Name: "openai", APIKey: "k"}, nil, nil)
	op, ok := p.(*OpenAIProvider)
	if !ok {
		t.Fatalf("Expected *OpenAIProvider, got %T", p)
	}
	if op.Name() != "openai" {
		t.Errorf("Expected 'openai', got %s", op.Name())
	}
	if op.baseURL != DefaultBaseURL || op.defaultModel != DefaultModel {
		t.Errorf("Defaults not applied: %s %s", op.baseURL, op.defaultModel)
	}
}
