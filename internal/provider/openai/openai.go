package openai

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
	Name           = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

type OpenAIProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	defaults     map[string]any
	client       *http.Client
	logger       *zap.Logger
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Choices []openAIChoice `json:"choices"`
	Model   string         `json:"model"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
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
	return &OpenAIProvider{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		defaultModel: model,
		defaults:     cfg.DefaultParameters,
		client:       client,
		logger:       logger.With(zap.String("provider", Name)),
	}
}

func (p *OpenAIProvider) Name() string {
	return Name
}

func (p *OpenAIProvider) GenerateSummary(ctx context.Context, req *provider.Request) (res provider.Result) {
	defer provider.Recover(Name, &res)

	params := provider.NewParams(req.Parameters, p.defaults)
	return p.complete(ctx, openAIRequest{
		Model: provider.Model(req, p.defaultModel),
		Messages: []openAIMessage{
			{Role: "system", Content: provider.SummarySystemPrompt},
			{Role: "user", Content: provider.SummaryPrompt(req.Content)},
		},
		MaxTokens:   params.Int(provider.ParamMaxTokens, provider.SummaryMaxTokens),
		Temperature: params.Float(provider.ParamTemperature, provider.SummaryTemperature),
	})
}

func (p *OpenAIProvider) GenerateText(ctx context.Context, req *provider.Request) (res provider.Result) {
	defer provider.Recover(Name, &res)

	params := provider.NewParams(req.Parameters, p.defaults)
	return p.complete(ctx, openAIRequest{
		Model: provider.Model(req, p.defaultModel),
		Messages: []openAIMessage{
			{Role: "user", Content: req.Content},
		},
		MaxTokens:   params.Int(provider.ParamMaxTokens, provider.TextMaxTokens),
		Temperature: params.Float(provider.ParamTemperature, provider.TextTemperature),
	})
}

func (p *OpenAIProvider) GenerateFlashcards(ctx context.Context, req *provider.Request) (res provider.Result) {
	defer provider.Recover(Name, &res)

	params := provider.NewParams(req.Parameters, p.defaults)
	res = p.complete(ctx, openAIRequest{
		Model: provider.Model(req, p.defaultModel),
		Messages: []openAIMessage{
			{Role: "user", Content: provider.FlashcardPrompt(req.Content)},
		},
		MaxTokens:   params.Int(provider.ParamMaxTokens, provider.FlashcardMaxTokens),
		Temperature: params.Float(provider.ParamTemperature, provider.FlashcardTemperature),
	})
	parsed := provider.FlashcardResult(res)
	if res.Success && !parsed.Success {
		p.logger.Error("failed to parse flashcards", zap.String("content", res.Content))
	}
	return parsed
}

func (p *OpenAIProvider) IsHealthy(ctx context.Context) bool {
	return provider.HealthCheck(ctx, p)
}

func (p *OpenAIProvider) complete(ctx context.Context, openAIReq openAIRequest) provider.Result {
	body, err := json.Marshal(openAIReq)
	if err != nil {
		return provider.Failed(Name, "Failed to build OpenAI request")
	}

	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return provider.Failed(Name, "Failed to build OpenAI request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Error("http error calling openai api", zap.Error(err))
		return provider.Failed(Name, "Network error calling OpenAI API")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.Error("openai api error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)))
		return provider.Failed(Name, fmt.Sprintf("API Error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	var openAIResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&openAIResp); err != nil {
		p.logger.Error("error deserializing openai response", zap.Error(err))
		return provider.Failed(Name, "Failed to parse OpenAI response")
	}

	model := openAIResp.Model
	if model == "" {
		model = openAIReq.Model
	}

	var content string
	if len(openAIResp.Choices) > 0 {
		content = openAIResp.Choices[0].Message.Content
	}
	if content == "" {
		p.logger.Warn("empty content received from openai")
	}
	return provider.Succeeded(Name, model, content)
}
