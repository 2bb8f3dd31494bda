package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/vnmchuo/noteswise/config"
	"github.com/vnmchuo/noteswise/internal/provider"
)

const (
	Name           = "gemini"
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash"

	TopP = 0.8
	TopK = 10
)

type GeminiProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	defaults     map[string]any
	client       *http.Client
	logger       *zap.Logger
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

// geminiResponse uses pointers so that any missing hop on the
// candidates[0].content.parts[0].text path reads as empty content.
type geminiResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return ""
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == nil {
		return ""
	}
	return *parts[0].Text
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
	return &GeminiProvider{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		defaultModel: model,
		defaults:     cfg.DefaultParameters,
		client:       client,
		logger:       logger.With(zap.String("provider", Name)),
	}
}

func (p *GeminiProvider) Name() string {
	return Name
}

func (p *GeminiProvider) GenerateSummary(ctx context.Context, req *provider.Request) (res provider.Result) {
	defer provider.Recover(Name, &res)

	prompt := provider.SummarySystemPrompt + "\n\n" + provider.SummaryPrompt(req.Content)
	model, body := p.mapRequest(req, prompt, provider.SummaryMaxTokens, provider.SummaryTemperature)
	return p.generate(ctx, model, body)
}

func (p *GeminiProvider) GenerateText(ctx context.Context, req *provider.Request) (res provider.Result) {
	defer provider.Recover(Name, &res)

	model, body := p.mapRequest(req, req.Content, provider.TextMaxTokens, provider.TextTemperature)
	return p.generate(ctx, model, body)
}

func (p *GeminiProvider) GenerateFlashcards(ctx context.Context, req *provider.Request) (res provider.Result) {
	defer provider.Recover(Name, &res)

	model, body := p.mapRequest(req, provider.FlashcardPrompt(req.Content), provider.FlashcardMaxTokens, provider.FlashcardTemperature)
	res = p.generate(ctx, model, body)
	parsed := provider.FlashcardResult(res)
	if res.Success && !parsed.Success {
		p.logger.Error("failed to parse flashcards", zap.String("content", res.Content))
	}
	return parsed
}

func (p *GeminiProvider) IsHealthy(ctx context.Context) bool {
	return provider.HealthCheck(ctx, p)
}

func (p *GeminiProvider) mapRequest(req *provider.Request, prompt string, maxTokens int, temperature float64) (string, geminiRequest) {
	params := provider.NewParams(req.Parameters, p.defaults)
	return provider.Model(req, p.defaultModel), geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     params.Float(provider.ParamTemperature, temperature),
			MaxOutputTokens: params.Int(provider.ParamMaxTokens, maxTokens),
			TopP:            params.Float("top_p", TopP),
			TopK:            params.Int("top_k", TopK),
		},
	}
}

func (p *GeminiProvider) generate(ctx context.Context, model string, geminiReq geminiRequest) provider.Result {
	body, err := json.Marshal(geminiReq)
	if err != nil {
		return provider.Failed(Name, "Failed to build Gemini request")
	}

	endpoint := fmt.Sprintf("%s/v1/models/%s:generateContent?key=%s", p.baseURL, url.PathEscape(model), url.QueryEscape(p.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return provider.Failed(Name, "Failed to build Gemini request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		// the request URL carries the key, so the error is not logged verbatim
		p.logger.Error("http error calling gemini api", zap.String("model", model))
		return provider.Failed(Name, "Network error calling Gemini API")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.Error("gemini api error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)))
		return provider.Failed(Name, fmt.Sprintf("API Error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		p.logger.Error("error deserializing gemini response", zap.Error(err))
		return provider.Failed(Name, "Failed to parse Gemini response")
	}
	return provider.Succeeded(Name, model, geminiResp.text())
}
