// Package elevenlabs is the text-to-speech backend. It is deliberately not a
// provider.Provider: it returns audio bytes (base64 encoded) and reports
// failures as errors.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vnmchuo/noteswise/internal/provider"
)

const (
	Name           = "elevenlabs"
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoice   = "burt"
	ModelID        = "eleven_multilingual_v2"
)

var ErrMissingAPIKey = errors.New("elevenlabs: api key is required")

// Voices maps friendly voice names to ElevenLabs voice ids.
var Voices = map[string]string{
	"burt": "4YYIPFl9wE5c4L2eu2Gb",
}

// APIError is returned for a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elevenlabs api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func New(apiKey, baseURL string, client *http.Client, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = provider.NewHTTPClient(provider.DefaultTimeout, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.With(zap.String("provider", Name)),
	}, nil
}

// VoiceID resolves a voice name; unknown names fall back to DefaultVoice.
func VoiceID(voice string) string {
	if id, ok := Voices[strings.ToLower(voice)]; ok {
		return id
	}
	return Voices[DefaultVoice]
}

// Synthesize converts text to speech and returns the audio as base64.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (string, error) {
	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: ModelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal tts request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, VoiceID(voice))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("build tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call elevenlabs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("elevenlabs api error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)))
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	return base64.StdEncoding.EncodeToString(audio), nil
}
