package provider

import (
	"context"
	"fmt"
)

// Request is a single generation call. Parameters override the provider
// defaults (max_tokens, temperature, ...) for this call only.
type Request struct {
	Content    string
	Model      string
	Parameters map[string]any
}

// Result is the uniform outcome of every adapter operation. Use Succeeded
// and Failed to build one so that Success and Error never disagree.
type Result struct {
	Content  string
	Success  bool
	Error    string
	Provider string
	Model    string
}

type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Provider is implemented by every text generation backend. Operations never
// return Go errors: transport, status and decoding problems all surface as a
// failed Result.
type Provider interface {
	Name() string
	GenerateSummary(ctx context.Context, req *Request) Result
	GenerateText(ctx context.Context, req *Request) Result
	GenerateFlashcards(ctx context.Context, req *Request) Result
	IsHealthy(ctx context.Context) bool
}

// Succeeded returns a successful Result, or an "Empty response" failure when
// content is empty.
func Succeeded(providerName, model, content string) Result {
	if content == "" {
		return Failed(providerName, fmt.Sprintf("Empty response from %s", DisplayName(providerName)))
	}
	return Result{
		Content:  content,
		Success:  true,
		Provider: providerName,
		Model:    model,
	}
}

func Failed(providerName, errMsg string) Result {
	if errMsg == "" {
		errMsg = "Unexpected error occurred"
	}
	return Result{
		Success:  false,
		Error:    errMsg,
		Provider: providerName,
	}
}

// DisplayName is the human form of a provider name used in error messages.
func DisplayName(name string) string {
	switch name {
	case "openai":
		return "OpenAI"
	case "anthropic":
		return "Anthropic"
	case "gemini":
		return "Gemini"
	case "elevenlabs":
		return "ElevenLabs"
	}
	return name
}

// HealthCheck runs the minimal summary call used by every adapter's IsHealthy.
func HealthCheck(ctx context.Context, p Provider) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			healthy = false
		}
	}()
	return p.GenerateSummary(ctx, &Request{Content: "test"}).Success
}

// Recover converts a panic inside an adapter operation into a failed Result.
// Use it as: defer provider.Recover(name, &res).
func Recover(providerName string, res *Result) {
	if r := recover(); r != nil {
		*res = Failed(providerName, fmt.Sprintf("Unexpected error occurred: %v", r))
	}
}
