package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type ProviderConfig struct {
	Name              string         `yaml:"-"`
	APIKey            string         `yaml:"api_key"`
	BaseURL           string         `yaml:"base_url"`
	DefaultModel      string         `yaml:"default_model"`
	DefaultParameters map[string]any `yaml:"default_parameters"`
	Enabled           bool           `yaml:"enabled"`
}

// ProviderTable is an ordered set of provider configurations keyed by
// lower-cased name. Iteration follows declaration order.
type ProviderTable struct {
	entries []ProviderConfig
}

func NewProviderTable(providers ...ProviderConfig) ProviderTable {
	var t ProviderTable
	for _, p := range providers {
		t.Set(p)
	}
	return t
}

// Get looks a provider up case-insensitively.
func (t ProviderTable) Get(name string) (ProviderConfig, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, p := range t.entries {
		if p.Name == key {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// Set replaces an existing entry in place or appends a new one.
func (t *ProviderTable) Set(p ProviderConfig) {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	for i := range t.entries {
		if t.entries[i].Name == p.Name {
			t.entries[i] = p
			return
		}
	}
	t.entries = append(t.entries, p)
}

func (t ProviderTable) All() []ProviderConfig {
	out := make([]ProviderConfig, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t ProviderTable) Len() int {
	return len(t.entries)
}

func (t *ProviderTable) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("providers: expected a mapping, got %s", value.Tag)
	}
	t.entries = nil
	for i := 0; i+1 < len(value.Content); i += 2 {
		// enabled defaults to true when the key is omitted
		p := ProviderConfig{Enabled: true}
		if err := value.Content[i+1].Decode(&p); err != nil {
			return fmt.Errorf("provider %q: %w", value.Content[i].Value, err)
		}
		p.Name = value.Content[i].Value
		if _, dup := t.Get(p.Name); dup {
			return fmt.Errorf("provider %q declared twice", p.Name)
		}
		t.Set(p)
	}
	return nil
}

type AIConfig struct {
	DefaultProvider string        `yaml:"default_provider"`
	Providers       ProviderTable `yaml:"providers"`
}

// DefaultAIConfig is used when no provider file exists: the three text
// providers with their public endpoints, enabled when their key is set.
func DefaultAIConfig(openAIKey, anthropicKey, geminiKey string) AIConfig {
	cfg := AIConfig{
		Providers: NewProviderTable(
			ProviderConfig{Name: ProviderOpenAI, APIKey: openAIKey, BaseURL: "https://api.openai.com/v1", DefaultModel: "gpt-4o-mini", Enabled: openAIKey != ""},
			ProviderConfig{Name: ProviderAnthropic, APIKey: anthropicKey, BaseURL: "https://api.anthropic.com/v1", DefaultModel: "claude-3-5-haiku-latest", Enabled: anthropicKey != ""},
			ProviderConfig{Name: ProviderGemini, APIKey: geminiKey, BaseURL: "https://generativelanguage.googleapis.com", DefaultModel: "gemini-1.5-flash", Enabled: geminiKey != ""},
		),
	}
	cfg.fillDefaultProvider()
	return cfg
}

// fillDefaultProvider picks the first enabled provider, or openai, when no
// default is configured.
func (c *AIConfig) fillDefaultProvider() {
	c.DefaultProvider = strings.ToLower(strings.TrimSpace(c.DefaultProvider))
	if c.DefaultProvider != "" {
		return
	}
	c.DefaultProvider = ProviderOpenAI
	for _, p := range c.Providers.All() {
		if p.Enabled {
			c.DefaultProvider = p.Name
			return
		}
	}
}

// LoadAIConfig reads the provider file at path. ok is false when the file
// does not exist.
func LoadAIConfig(path string) (cfg AIConfig, ok bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return AIConfig{}, false, nil
	}
	if err != nil {
		return AIConfig{}, false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AIConfig{}, false, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.fillDefaultProvider()
	return cfg, true, nil
}

// overrideKey replaces the key of a configured provider with a non-empty env value.
func (c *AIConfig) overrideKey(name, key string) {
	if key == "" {
		return
	}
	if p, ok := c.Providers.Get(name); ok {
		p.APIKey = key
		c.Providers.Set(p)
	}
}
