package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vnmchuo/noteswise/internal/provider"
	"github.com/vnmchuo/noteswise/internal/provider/elevenlabs"
	"github.com/vnmchuo/noteswise/internal/telemetry"
)

const (
	OperationSummary    = "summary"
	OperationText       = "text"
	OperationFlashcards = "flashcards"
	OperationAudio      = "audio"
)

var ErrInvalidAudioMode = errors.New("invalid audio mode")

// AudioMode selects which halves of a flashcard are synthesized.
type AudioMode string

const (
	AudioQuestion AudioMode = "question"
	AudioAnswer   AudioMode = "answer"
	AudioBoth     AudioMode = "both"
)

// ParseAudioMode accepts question, answer or both (case-insensitive); an
// empty string means both.
func ParseAudioMode(s string) (AudioMode, error) {
	switch AudioMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", AudioBoth:
		return AudioBoth, nil
	case AudioQuestion:
		return AudioQuestion, nil
	case AudioAnswer:
		return AudioAnswer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAudioMode, s)
}

// FlashcardAudio holds base64 audio per half; nil means not requested or failed.
type FlashcardAudio struct {
	QuestionAudio *string `json:"questionAudioContent,omitempty"`
	AnswerAudio   *string `json:"answerAudioContent,omitempty"`
}

// Complete reports whether every half requested by mode was synthesized.
func (a FlashcardAudio) Complete(mode AudioMode) bool {
	switch mode {
	case AudioQuestion:
		return a.QuestionAudio != nil
	case AudioAnswer:
		return a.AnswerAudio != nil
	}
	return a.QuestionAudio != nil && a.AnswerAudio != nil
}

type AudioSetResult struct {
	Audio     []FlashcardAudio
	Generated int
	Failed    int
}

// Synthesizer is implemented by *elevenlabs.Client.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (string, error)
}

var _ Synthesizer = (*elevenlabs.Client)(nil)

// Service is the entry point used by HTTP handlers and the CLI. Generation
// failures never surface as errors: they degrade to empty values and are logged.
type Service struct {
	factory *Factory
	audio   Synthesizer
	metrics *telemetry.Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
}

func NewService(factory *Factory, audio Synthesizer, metrics *telemetry.Metrics, tracer trace.Tracer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		factory: factory,
		audio:   audio,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger,
	}
}

func (s *Service) resolve(name string) (provider.Provider, error) {
	if strings.TrimSpace(name) == "" {
		return s.factory.CreateDefault()
	}
	return s.factory.Create(name)
}

type operation func(p provider.Provider, ctx context.Context, req *provider.Request) provider.Result

func (s *Service) generate(ctx context.Context, op, providerName, content string, fn operation) (res provider.Result) {
	ctx, span := s.tracer.Start(ctx, "ai."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("ai.operation", op),
		attribute.String("ai.provider.requested", providerName),
	)

	start := time.Now()
	label := providerName
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("provider panicked",
				zap.String("operation", op),
				zap.String("provider", label),
				zap.Any("panic", r))
			res = provider.Failed(label, fmt.Sprintf("Unexpected error occurred: %v", r))
			s.record(label, op, telemetry.OutcomeFailure, time.Since(start))
		}
		if !res.Success {
			span.SetStatus(codes.Error, res.Error)
		}
	}()

	p, err := s.resolve(providerName)
	if err != nil {
		s.logger.Warn("provider unavailable",
			zap.String("operation", op),
			zap.String("provider", providerName),
			zap.Error(err))
		s.record(providerName, op, telemetry.OutcomeUnavailable, 0)
		return provider.Failed(providerName, err.Error())
	}
	label = p.Name()
	span.SetAttributes(attribute.String("ai.provider", label))

	req := &provider.Request{Content: content}
	res = s.factory.Execute(ctx, p, func() provider.Result {
		return fn(p, ctx, req)
	})

	outcome := telemetry.OutcomeSuccess
	if !res.Success {
		outcome = telemetry.OutcomeFailure
		s.logger.Error("generation failed",
			zap.String("operation", op),
			zap.String("provider", label),
			zap.String("error", res.Error))
	}
	s.record(label, op, outcome, time.Since(start))
	return res
}

func (s *Service) record(providerName, op, outcome string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	if providerName == "" {
		providerName = "default"
	}
	s.metrics.RecordGeneration(providerName, op, outcome, elapsed)
}

// SummaryResult exposes the raw outcome of a summary call, including which
// provider served it.
func (s *Service) SummaryResult(ctx context.Context, content, providerName string) provider.Result {
	return s.generate(ctx, OperationSummary, providerName, content, provider.Provider.GenerateSummary)
}

// Summarize returns "" when no summary could be produced.
func (s *Service) Summarize(ctx context.Context, content, providerName string) string {
	res := s.SummaryResult(ctx, content, providerName)
	if !res.Success {
		return ""
	}
	return res.Content
}

func (s *Service) GenerateText(ctx context.Context, prompt, providerName string) string {
	res := s.generate(ctx, OperationText, providerName, prompt, provider.Provider.GenerateText)
	if !res.Success {
		return ""
	}
	return res.Content
}

// GenerateFlashcards returns an empty, non-nil slice on failure.
func (s *Service) GenerateFlashcards(ctx context.Context, content, providerName string) []provider.Flashcard {
	res := s.generate(ctx, OperationFlashcards, providerName, content, provider.Provider.GenerateFlashcards)
	if !res.Success {
		return []provider.Flashcard{}
	}
	cards, err := provider.ParseFlashcards(res.Content)
	if err != nil {
		s.logger.Error("flashcard content rejected", zap.String("provider", res.Provider), zap.Error(err))
		return []provider.Flashcard{}
	}
	return cards
}

// SynthesizeAudio returns base64 audio, or "" on failure.
func (s *Service) SynthesizeAudio(ctx context.Context, text, voice string) (audio string) {
	ctx, span := s.tracer.Start(ctx, "ai.audio")
	defer span.End()
	span.SetAttributes(attribute.String("ai.voice", voice), attribute.Int("ai.text_length", len(text)))

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("audio synthesis panicked", zap.Any("panic", r))
			audio = ""
			s.recordAudio(telemetry.OutcomeFailure)
		}
	}()

	if s.audio == nil {
		s.logger.Error("audio synthesis failed: no audio backend configured")
		s.recordAudio(telemetry.OutcomeUnavailable)
		return ""
	}

	audio, err := s.audio.Synthesize(ctx, text, voice)
	if err != nil {
		s.logger.Error("audio synthesis failed: backend returned error", zap.String("voice", voice), zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		s.recordAudio(telemetry.OutcomeFailure)
		return ""
	}
	if audio == "" {
		s.logger.Warn("audio synthesis failed: backend returned empty audio", zap.String("voice", voice))
		span.SetStatus(codes.Error, "empty audio")
		s.recordAudio(telemetry.OutcomeEmpty)
		return ""
	}
	s.recordAudio(telemetry.OutcomeSuccess)
	return audio
}

func (s *Service) recordAudio(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAudio(outcome)
	}
}

// SynthesizeFlashcardAudio synthesizes the requested halves independently:
// a failed half stays nil while the other is still returned.
func (s *Service) SynthesizeFlashcardAudio(ctx context.Context, card provider.Flashcard, voice string, mode AudioMode) (FlashcardAudio, error) {
	var out FlashcardAudio
	switch mode {
	case AudioQuestion, AudioAnswer, AudioBoth:
	default:
		return out, fmt.Errorf("%w: %q", ErrInvalidAudioMode, mode)
	}

	if mode == AudioQuestion || mode == AudioBoth {
		if audio := s.SynthesizeAudio(ctx, card.Question, voice); audio != "" {
			out.QuestionAudio = &audio
		}
	}
	if mode == AudioAnswer || mode == AudioBoth {
		if audio := s.SynthesizeAudio(ctx, card.Answer, voice); audio != "" {
			out.AnswerAudio = &audio
		}
	}
	return out, nil
}

// SynthesizeFlashcardSetAudio processes cards one by one. A card counts as
// failed when any requested half is missing; the loop always continues.
func (s *Service) SynthesizeFlashcardSetAudio(ctx context.Context, cards []provider.Flashcard, voice string, mode AudioMode) (AudioSetResult, error) {
	result := AudioSetResult{Audio: make([]FlashcardAudio, 0, len(cards))}
	for _, card := range cards {
		audio, err := s.SynthesizeFlashcardAudio(ctx, card, voice, mode)
		if err != nil {
			return result, err
		}
		result.Audio = append(result.Audio, audio)
		if audio.Complete(mode) {
			result.Generated++
		} else {
			result.Failed++
		}
	}
	s.logger.Info("flashcard set audio finished",
		zap.Int("generated", result.Generated),
		zap.Int("failed", result.Failed))
	return result, nil
}

// IsProviderHealthy reports false when the provider cannot be resolved or
// its probe fails. The circuit breaker is not consulted.
func (s *Service) IsProviderHealthy(ctx context.Context, name string) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("health check panicked", zap.String("provider", name), zap.Any("panic", r))
			healthy = false
		}
	}()

	p, err := s.resolve(name)
	if err != nil {
		s.logger.Warn("health check: provider unavailable", zap.String("provider", name), zap.Error(err))
		return false
	}
	return p.IsHealthy(ctx)
}

// ProvidersHealth probes every available provider concurrently.
func (s *Service) ProvidersHealth(ctx context.Context) map[string]bool {
	names := s.factory.ListAvailable()
	health := make(map[string]bool, len(names))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			ok := s.IsProviderHealthy(gctx, name)
			mu.Lock()
			health[name] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return health
}

func (s *Service) ListAvailableProviders() []string {
	return s.factory.ListAvailable()
}
