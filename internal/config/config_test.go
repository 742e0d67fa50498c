package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromYAML(t *testing.T) {
	yamlContent := `
hybrid:
  vector_weight: 0.6
  keyword_weight: 0.4
rerank:
  enabled: true
  retrieval_top_k: 25
conversation:
  max_history: 8
model_qpm_limits:
  qwen-max: 900
  qwen-turbo: 1800
`
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 0.6, cfg.Hybrid.VectorWeight)
	assert.Equal(t, 0.4, cfg.Hybrid.KeywordWeight)
	assert.True(t, cfg.Rerank.Enabled)
	assert.Equal(t, 25, cfg.Rerank.RetrievalTopK)
	assert.Equal(t, 8, cfg.Conversation.MaxHistory)
	assert.Equal(t, map[string]int{"qwen-max": 900, "qwen-turbo": 1800}, cfg.ModelQPMLimits)

	// Defaults still apply to fields absent from the YAML.
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 1024, cfg.Embedding.Dimensions)
}

func TestLoadConfigDefaultsHybridWeights(t *testing.T) {
	yamlContent := `
server:
  address: ":9090"
`
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Hybrid.VectorWeight)
	assert.Equal(t, 0.3, cfg.Hybrid.KeywordWeight)
	assert.Equal(t, ":9090", cfg.Server.Address)
}

func TestLoadConfigMissingFileFallsBackUnderTest(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 10, cfg.Conversation.MaxHistory)
}

func TestQPMForFallsBackWhenUnconfigured(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, 1200, cfg.QPMFor("qwen-max", 999))
	assert.Equal(t, 777, cfg.QPMFor("unknown-model", 777))
}
