package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLMEndpoint = "http://localhost:9000/v1/chat/completions"
	cfg.LLMAPIKeys = []string{"key-1"}
	require.NoError(t, Validate(cfg))
}

func TestValidateRejectsBadVideoMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLMEndpoint = "http://x"
	cfg.LLMAPIKeys = []string{"k"}
	cfg.VideoMode = "weird"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "video_mode")
}

func TestInitializeMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenepipe.yaml")
	err := os.WriteFile(path, []byte(`
max_parallel_api: 4
llm_endpoint: "http://example.test/v1/chat/completions"
llm_api_keys: ["k1", "k2"]
video_mode: "full"
`), 0o644)
	require.NoError(t, err)

	cfg, err := Initialize(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxParallelAPI)
	assert.Equal(t, VideoModeFull, cfg.VideoMode)
	assert.Equal(t, 15, cfg.LLMRetryMax, "unset fields keep built-in default")
	assert.Equal(t, []string{"k1", "k2"}, cfg.LLMAPIKeys)
}

func TestInitializeMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LLM_ENDPOINT", "http://example.test")
	t.Setenv("LLM_API_KEYS", "only-key")

	cfg, err := Initialize(filepath.Join(dir, "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxParallelAPI)
	assert.Equal(t, []string{"only-key"}, cfg.LLMAPIKeys)
}

func TestApplyEnvOverridesSplitsKeys(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("LLM_API_KEYS", "a, b ,c")
	applyEnvOverrides(cfg)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.LLMAPIKeys)
}
