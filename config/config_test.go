package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleYAML = `
default_provider: Gemini
providers:
  openai:
    api_key: yaml-key
    default_model: gpt-4o-mini
    enabled: true
    default_parameters:
      max_tokens: 300
  anthropic:
    enabled: false
  gemini:
    enabled: true
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ai.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func setBaseEnv(t *testing.T, aiPath string) {
	t.Setenv("AI_CONFIG_PATH", aiPath)
	t.Setenv("ELEVENLABS_API_KEY", "el-key")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/noteswise")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("AI_DEFAULT_PROVIDER", "")
	t.Setenv("OTEL_SAMPLE_RATIO", "")
}

func TestProviderTable_PreservesOrder(t *testing.T) {
	var cfg AIConfig
	require.NoError(t, yaml.Unmarshal([]byte(sampleYAML), &cfg))

	var names []string
	for _, p := range cfg.Providers.All() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"openai", "anthropic", "gemini"}, names)

	openai, ok := cfg.Providers.Get("OpenAI")
	require.True(t, ok)
	assert.Equal(t, "yaml-key", openai.APIKey)
	assert.Equal(t, 300, openai.DefaultParameters["max_tokens"])

	_, ok = cfg.Providers.Get("mistral")
	assert.False(t, ok)
}

func TestProviderTable_Duplicate(t *testing.T) {
	var cfg AIConfig
	err := yaml.Unmarshal([]byte("providers:\n  openai: {}\n  OpenAI: {}\n"), &cfg)
	assert.Error(t, err)
}

func TestLoad_FromFileWithEnvOverride(t *testing.T) {
	setBaseEnv(t, writeFile(t, sampleYAML))
	t.Setenv("OPENAI_API_KEY", "env-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.AI.DefaultProvider)
	openai, _ := cfg.AI.Providers.Get("openai")
	assert.Equal(t, "env-key", openai.APIKey)
	assert.Equal(t, int64(60), cfg.DefaultRateLimitRPM)
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	setBaseEnv(t, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.AI.Providers.Len())
	assert.Equal(t, "anthropic", cfg.AI.DefaultProvider)
	openai, _ := cfg.AI.Providers.Get("openai")
	assert.False(t, openai.Enabled)
}

func TestLoad_FileWithoutDefaultProvider(t *testing.T) {
	setBaseEnv(t, writeFile(t, `
providers:
  anthropic:
    enabled: false
  openai:
    default_model: gpt-4o-mini
  gemini:
    enabled: true
`))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.AI.DefaultProvider)
	openai, ok := cfg.AI.Providers.Get("openai")
	require.True(t, ok)
	assert.True(t, openai.Enabled)
	anthropic, _ := cfg.AI.Providers.Get("anthropic")
	assert.False(t, anthropic.Enabled)
}

func TestLoad_FileWithoutEnabledProviders(t *testing.T) {
	setBaseEnv(t, writeFile(t, "providers:\n  gemini:\n    enabled: false\n"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.AI.DefaultProvider)
}

func TestLoad_DefaultProviderEnv(t *testing.T) {
	setBaseEnv(t, writeFile(t, sampleYAML))
	t.Setenv("AI_DEFAULT_PROVIDER", "OpenAI")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.AI.DefaultProvider)
}

func TestLoad_MissingElevenLabsKey(t *testing.T) {
	setBaseEnv(t, writeFile(t, sampleYAML))
	t.Setenv("ELEVENLABS_API_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "ELEVENLABS_API_KEY")
}

func TestLoad_ServerRequirements(t *testing.T) {
	setBaseEnv(t, writeFile(t, sampleYAML))
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoad_InvalidYAML(t *testing.T) {
	setBaseEnv(t, writeFile(t, "providers: [1, 2"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_SampleRatio(t *testing.T) {
	setBaseEnv(t, writeFile(t, sampleYAML))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.OTELSampleRatio)

	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.OTELSampleRatio)

	for _, bad := range []string{"abc", "-0.1", "1.5"} {
		t.Setenv("OTEL_SAMPLE_RATIO", bad)
		_, err = Load()
		assert.ErrorContains(t, err, "OTEL_SAMPLE_RATIO", bad)
	}
}
