package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/vnmchuo/noteswise/config"
	"github.com/vnmchuo/noteswise/internal/provider"
	"github.com/vnmchuo/noteswise/internal/provider/anthropic"
	"github.com/vnmchuo/noteswise/internal/provider/gemini"
	"github.com/vnmchuo/noteswise/internal/provider/openai"
)

var (
	ErrProviderNotFound    = errors.New("provider not found or disabled")
	ErrProviderUnsupported = errors.New("provider has no adapter implementation")
)

// errCallerGone marks a failure caused by the caller's context ending.
var errCallerGone = errors.New("request context ended")

// Constructor builds an adapter bound to one provider's configuration.
type Constructor func(cfg config.ProviderConfig, client *http.Client, logger *zap.Logger) provider.Provider

// DefaultConstructors returns the adapters shipped with the service.
func DefaultConstructors() map[string]Constructor {
	return map[string]Constructor{
		config.ProviderOpenAI:    openai.New,
		config.ProviderAnthropic: anthropic.New,
		config.ProviderGemini:    gemini.New,
	}
}

// Factory resolves provider names to fresh adapter instances. The only
// state it keeps across calls is one circuit breaker per configured provider.
type Factory struct {
	cfg          config.AIConfig
	constructors map[string]Constructor
	breakers     map[string]*gobreaker.CircuitBreaker
	logger       *zap.Logger
}

func NewFactory(cfg config.AIConfig, constructors map[string]Constructor, logger *zap.Logger) *Factory {
	if constructors == nil {
		constructors = DefaultConstructors()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker)
	for _, p := range cfg.Providers.All() {
		name := p.Name
		settings := gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			Interval:    5 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errCallerGone)
			},
			OnStateChange: func(_ string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("provider", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}
		breakers[name] = gobreaker.NewCircuitBreaker(settings)
	}

	return &Factory{
		cfg:          cfg,
		constructors: constructors,
		breakers:     breakers,
		logger:       logger,
	}
}

// ListAvailable returns the enabled providers in configuration order.
func (f *Factory) ListAvailable() []string {
	names := make([]string, 0, f.cfg.Providers.Len())
	for _, p := range f.cfg.Providers.All() {
		if p.Enabled {
			names = append(names, p.Name)
		}
	}
	return names
}

func (f *Factory) DefaultProvider() string {
	return f.cfg.DefaultProvider
}

// Create builds a new adapter for name. Lookup is case-insensitive.
func (f *Factory) Create(name string) (provider.Provider, error) {
	cfg, ok := f.cfg.Providers.Get(name)
	if !ok || !cfg.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	constructor, ok := f.constructors[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnsupported, cfg.Name)
	}
	client := provider.NewHTTPClient(provider.DefaultTimeout, map[string]string{
		"Accept": "application/json",
	})
	return constructor(cfg, client, f.logger), nil
}

func (f *Factory) CreateDefault() (provider.Provider, error) {
	return f.Create(f.cfg.DefaultProvider)
}

// Execute runs op through the provider's circuit breaker. A failed Result
// counts as a breaker failure unless it only reflects unusable model output
// or ctx ended before the provider answered. An already ended ctx bypasses
// the breaker.
func (f *Factory) Execute(ctx context.Context, p provider.Provider, op func() provider.Result) provider.Result {
	cb, ok := f.breakers[p.Name()]
	if !ok || ctx.Err() != nil {
		return op()
	}

	var res provider.Result
	_, err := cb.Execute(func() (interface{}, error) {
		res = op()
		switch {
		case res.Success, res.Error == provider.ErrMsgFlashcardParse:
			return nil, nil
		case ctx.Err() != nil:
			return nil, errCallerGone
		}
		return nil, errors.New(res.Error)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return provider.Failed(p.Name(), fmt.Sprintf("circuit breaker is open for provider: %s", p.Name()))
	}
	return res
}
