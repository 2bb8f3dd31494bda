package ai

import (
	"context"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vnmchuo/noteswise/config"
	"github.com/vnmchuo/noteswise/internal/provider"
)

type MockProvider struct {
	name    string
	result  provider.Result
	panics  bool
	healthy bool
	calls   atomic.Int32
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) respond() provider.Result {
	m.calls.Add(1)
	if m.panics {
		panic("adapter exploded")
	}
	return m.result
}

func (m *MockProvider) GenerateSummary(context.Context, *provider.Request) provider.Result {
	return m.respond()
}

func (m *MockProvider) GenerateText(context.Context, *provider.Request) provider.Result {
	return m.respond()
}

func (m *MockProvider) GenerateFlashcards(context.Context, *provider.Request) provider.Result {
	return provider.FlashcardResult(m.respond())
}

func (m *MockProvider) IsHealthy(context.Context) bool {
	if m.panics {
		panic("adapter exploded")
	}
	return m.healthy
}

// constructorFor always hands out the same mock so tests can inspect calls.
func constructorFor(m *MockProvider) Constructor {
	return func(config.ProviderConfig, *http.Client, *zap.Logger) provider.Provider {
		return m
	}
}

func testConfig(defaultProvider string, providers ...config.ProviderConfig) config.AIConfig {
	return config.AIConfig{
		DefaultProvider: defaultProvider,
		Providers:       config.NewProviderTable(providers...),
	}
}
