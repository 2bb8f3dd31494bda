package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/vnmchuo/noteswise/config"
	"github.com/vnmchuo/noteswise/internal/provider"
)

const (
	Name           = "anthropic"
	DefaultBaseURL = "https://api.anthropic.com/v1"
	DefaultModel   = "claude-3-5-haiku-latest"
	APIVersion     = "2023-06-01"
)

type AnthropicProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	defaults     map[string]any
	client       *http.Client
	logger       *zap.Logger
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Content []anthropicContent `json:"content"`
	Model   string             `json:"model"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func New(cfg config.ProviderConfig, client *http.Client, logger *zap.Logger) provider.Provider {
	if client == nil {
		client = provider.NewHTTPClient(provider.DefaultTimeout, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = DefaultModel
	}
	return &AnthropicProvider{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		defaultModel: model,
		defaults:     cfg.DefaultParameters,
		client:       client,
		logger:       logger.With(zap.String("provider", Name)),
	}
}

func (p *AnthropicProvider) Name() string {
	return Name
}

func (p *AnthropicProvider) GenerateSummary(ctx context.Context, req *provider.Request) (res provider.Result) {
	defer provider.Recover(Name, &res)
	return p.send(ctx, p.mapRequest(req, provider.SummarySystemPrompt, provider.SummaryPrompt(req.Content),
		provider.SummaryMaxTokens, provider.SummaryTemperature))
}

func (p *AnthropicProvider) GenerateText(ctx context.Context, req *provider.Request) (res provider.Result) {
	defer provider.Recover(Name, &res)
	return p.send(ctx, p.mapRequest(req, "", req.Content,
		provider.TextMaxTokens, provider.TextTemperature))
}

func (p *AnthropicProvider) GenerateFlashcards(ctx context.Context, req *provider.Request) (res provider.Result) {
	defer provider.Recover(Name, &res)

	res = p.send(ctx, p.mapRequest(req, "", provider.FlashcardPrompt(req.Content),
		provider.FlashcardMaxTokens, provider.FlashcardTemperature))
	parsed := provider.FlashcardResult(res)
	if res.Success && !parsed.Success {
		p.logger.Error("failed to parse flashcards", zap.String("content", res.Content))
	}
	return parsed
}

func (p *AnthropicProvider) IsHealthy(ctx context.Context) bool {
	return provider.HealthCheck(ctx, p)
}

// mapRequest builds a single-turn request; system is omitted when empty.
func (p *AnthropicProvider) mapRequest(req *provider.Request, system, user string, maxTokens int, temperature float64) anthropicRequest {
	params := provider.NewParams(req.Parameters, p.defaults)
	return anthropicRequest{
		Model:       provider.Model(req, p.defaultModel),
		MaxTokens:   params.Int(provider.ParamMaxTokens, maxTokens),
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
		Temperature: params.Float(provider.ParamTemperature, temperature),
	}
}

func (p *AnthropicProvider) send(ctx context.Context, anthropicReq anthropicRequest) provider.Result {
	body, err := json.Marshal(anthropicReq)
	if err != nil {
		return provider.Failed(Name, "Failed to build Anthropic request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewBuffer(body))
	if err != nil {
		return provider.Failed(Name, "Failed to build Anthropic request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Error("http error calling anthropic api", zap.Error(err))
		return provider.Failed(Name, "Network error calling Anthropic API")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.Error("anthropic api error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)))
		return provider.Failed(Name, fmt.Sprintf("API Error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	var anthropicResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		p.logger.Error("error deserializing anthropic response", zap.Error(err))
		return provider.Failed(Name, "Failed to parse Anthropic response")
	}

	model := anthropicResp.Model
	if model == "" {
		model = anthropicReq.Model
	}

	var content string
	for _, block := range anthropicResp.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}
	return provider.Succeeded(Name, model, content)
}
