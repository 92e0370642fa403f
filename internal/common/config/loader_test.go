package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: nlq-test
workers:
  nlp-analyze-query:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "nlq-test", cfg.App.Name)
	assert.Equal(t, "none", cfg.LLM.Provider)
	assert.Equal(t, "memory", cfg.Knowledge.Backend)
	assert.Equal(t, 0.1, cfg.Knowledge.LearningRate)
	assert.Equal(t, 0.5, cfg.Knowledge.InitialConfidence)
	assert.Equal(t, 3, cfg.Pipeline.MaxIterations)
	assert.Equal(t, 2.0, cfg.Pipeline.PatternWeight)
	assert.Equal(t, 0.01, cfg.Pipeline.LocationDiscount)
	assert.Equal(t, 0.6, cfg.Pipeline.ClarificationThreshold)

	w := cfg.Workers["nlp-analyze-query"]
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("NLQ_TEST_GENAI_URL", "http://genai.local:9000")
	path := writeConfig(t, `
llm:
  provider: genai
  base_url: ${NLQ_TEST_GENAI_URL}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://genai.local:9000", cfg.LLM.BaseURL)
}

func TestLoadFromFile_Validation(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "camunda enabled without broker",
			body:    "camunda:\n  enabled: true\n",
			wantErr: "camunda.broker_address",
		},
		{
			name:    "postgres backend without host",
			body:    "knowledge:\n  backend: postgres\n",
			wantErr: "database.postgres.host",
		},
		{
			name:    "unknown backend",
			body:    "knowledge:\n  backend: mongo\n",
			wantErr: "not supported",
		},
		{
			name:    "anthropic without key",
			body:    "llm:\n  provider: anthropic\n",
			wantErr: "llm.api_key",
		},
		{
			name:    "learning rate out of range",
			body:    "knowledge:\n  learning_rate: 0.9\n",
			wantErr: "learning_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOverrideEmptyConfig_ProviderKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := &Config{LLM: LLMConfig{Provider: "openai"}}
	overrideEmptyConfig(cfg)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestPipelineWithDefaults_KeepsExplicitValues(t *testing.T) {
	p := PipelineConfig{PatternWeight: 3.0, MaxIterations: 5}.WithDefaults()
	assert.Equal(t, 3.0, p.PatternWeight)
	assert.Equal(t, 5, p.MaxIterations)
	assert.Equal(t, 1.0, p.KeywordWeight)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))

	cfg := &Config{Workers: map[string]WorkerConfig{"off": {Enabled: false}}}
	assert.False(t, IsWorkerEnabled(cfg, "off"))
	assert.True(t, IsWorkerEnabled(cfg, "unknown"))
	assert.Equal(t, 3, GetWorkerConfig(cfg, "unknown").MaxRetries)
}

func TestLoadFromFile_ShippedConfig(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "frete-nlq", cfg.App.Name)
	assert.Equal(t, (PipelineConfig{}).WithDefaults(), cfg.Pipeline)
	for _, taskType := range []string{"nlp-analyze-query", "nlp-orchestrate-query", "nlp-record-feedback"} {
		assert.True(t, IsWorkerEnabled(cfg, taskType), taskType)
	}
	assert.Equal(t, 60000, cfg.Workers["nlp-orchestrate-query"].Timeout)
}
