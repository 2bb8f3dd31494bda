package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSucceeded_EmptyContentIsFailure(t *testing.T) {
	res := Succeeded("gemini", "gemini-1.5-flash", "")
	assert.False(t, res.Success)
	assert.Equal(t, "Empty response from Gemini", res.Error)
	assert.Empty(t, res.Content)
}

func TestResultInvariant(t *testing.T) {
	ok := Succeeded("openai", "gpt-4o-mini", "summary")
	assert.True(t, ok.Success)
	assert.NotEmpty(t, ok.Content)
	assert.Empty(t, ok.Error)

	failed := Failed("openai", "")
	assert.False(t, failed.Success)
	assert.NotEmpty(t, failed.Error)
	assert.Empty(t, failed.Content)
}

func TestParseFlashcards(t *testing.T) {
	bare := `[{"question":"What is the mitochondria?","answer":"The powerhouse of the cell."}]`

	tests := []struct {
		name string
		raw  string
	}{
		{"bare", bare},
		{"fenced json", "```json\n" + bare + "\n```"},
		{"fenced plain", "```\n" + bare + "\n```"},
		{"fenced single line", "```json " + bare + "```"},
		{"surrounding prose", "Here are your flashcards:\n" + bare + "\nGood luck!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards, err := ParseFlashcards(tt.raw)
			require.NoError(t, err)
			require.Len(t, cards, 1)
			assert.Equal(t, "What is the mitochondria?", cards[0].Question)
			assert.Equal(t, "The powerhouse of the cell.", cards[0].Answer)
		})
	}
}

func TestParseFlashcards_Invalid(t *testing.T) {
	for _, raw := range []string{
		`[{"question": "missing brace"`,
		"not json at all",
		"[]",
		`[{"question":"Q only"}]`,
	} {
		_, err := ParseFlashcards(raw)
		assert.ErrorIs(t, err, ErrInvalidFlashcards, raw)
	}
}

func TestFlashcardResult(t *testing.T) {
	res := FlashcardResult(Succeeded("openai", "gpt-4o-mini", "```json\n[{\"question\":\"Q\",\"answer\":\"A\"}]\n```"))
	require.True(t, res.Success)
	var cards []Flashcard
	require.NoError(t, json.Unmarshal([]byte(res.Content), &cards))
	assert.Equal(t, []Flashcard{{Question: "Q", Answer: "A"}}, cards)

	bad := FlashcardResult(Succeeded("openai", "gpt-4o-mini", "{oops"))
	assert.False(t, bad.Success)
	assert.Equal(t, ErrMsgFlashcardParse, bad.Error)
	assert.Equal(t, "openai", bad.Provider)
}

func TestParams_Precedence(t *testing.T) {
	p := NewParams(
		map[string]any{"max_tokens": "42"},
		map[string]any{"max_tokens": 500, "temperature": 0.2},
	)
	assert.Equal(t, 42, p.Int(ParamMaxTokens, SummaryMaxTokens))
	assert.InDelta(t, 0.2, p.Float(ParamTemperature, SummaryTemperature), 1e-9)

	empty := NewParams(nil, nil)
	assert.Equal(t, SummaryMaxTokens, empty.Int(ParamMaxTokens, SummaryMaxTokens))
	assert.InDelta(t, SummaryTemperature, empty.Float(ParamTemperature, SummaryTemperature), 1e-9)

	garbage := NewParams(map[string]any{"max_tokens": "lots"}, nil)
	assert.Equal(t, TextMaxTokens, garbage.Int(ParamMaxTokens, TextMaxTokens))
}

func TestModel(t *testing.T) {
	assert.Equal(t, "default", Model(&Request{}, "default"))
	assert.Equal(t, "override", Model(&Request{Model: "override"}, "default"))
}

func TestNewHTTPClient_DefaultHeaders(t *testing.T) {
	var gotUA, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
	}))
	defer server.Close()

	client := NewHTTPClient(0, map[string]string{"X-Custom": "yes"})
	assert.Equal(t, DefaultTimeout, client.Timeout)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, "yes", gotCustom)
}

type panickyProvider struct{}

func (panickyProvider) Name() string { return "panicky" }
func (panickyProvider) GenerateSummary(context.Context, *Request) Result {
	panic("boom")
}
func (panickyProvider) GenerateText(context.Context, *Request) Result       { return Result{} }
func (panickyProvider) GenerateFlashcards(context.Context, *Request) Result { return Result{} }
func (panickyProvider) IsHealthy(context.Context) bool                      { return false }

func TestHealthCheck_RecoversPanic(t *testing.T) {
	assert.False(t, HealthCheck(context.Background(), panickyProvider{}))
}
