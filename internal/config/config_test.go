package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func writeTestConfig(t *testing.T, path string, cfg *Config) {
	t.Helper()
	require.NoError(t, Save(path, cfg))
}

func TestLoad_WritesDefaults(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, 60, cfg.Rerank.K)
	assert.Equal(t, 4, cfg.Scrape.Workers)
	assert.Equal(t, 0, cfg.LLM.MaxContextTokens)

	_, err = os.Stat(path)
	require.NoError(t, err, "defaults should be written on first load")
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("OPENAI_BASE_URL", "http://ollama:11434/v1")
	t.Setenv("BRAVE_API_KEY", "brave-env")
	t.Setenv("GOOGLE_CX", "cx-env")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://ollama:11434/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "brave-env", cfg.Brave.APIKey)
	assert.Equal(t, "cx-env", cfg.Google.CX)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := tempConfigPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level":"debug","search":{"provider":"google"}}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "google", cfg.Search.Provider)
	assert.Equal(t, 10, cfg.Search.MaxResults)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := tempConfigPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"rerank":{"scorers":["magic"]}}`), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := Default()
	original.DataDir = "/tmp/test-data"
	original.LogLevel = "debug"
	original.MaxConcurrent = 8
	original.LLM.Model = "qwen2.5"
	original.Rerank.Scorers = []string{"lexical", "embedding"}
	writeTestConfig(t, path, original)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original.DataDir, loaded.DataDir)
	assert.Equal(t, original.MaxConcurrent, loaded.MaxConcurrent)
	assert.Equal(t, original.LLM.Model, loaded.LLM.Model)
	assert.Equal(t, original.Rerank.Scorers, loaded.Rerank.Scorers)
}

func TestSave_AtomicWrite(t *testing.T) {
	path := tempConfigPath(t)
	writeTestConfig(t, path, &Config{LogLevel: "info"})

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not exist after successful save")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	assert.NoError(t, json.Unmarshal(data, &m))
}

func TestToMap(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/test", LogLevel: "debug"}
	cfg.LLM.Model = "llama3.2"
	cfg.LLM.MaxTokens = 2000

	m, err := ToMap(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test", m["data_dir"])

	llm, ok := m["llm"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "llama3.2", llm["model"])
	// JSON numbers are float64
	assert.Equal(t, float64(2000), llm["max_tokens"])
}

func TestListValues(t *testing.T) {
	cfg := &Config{LogLevel: "info"}
	cfg.LLM.APIKey = "sk-secret-key-1234"
	cfg.Brave.APIKey = "brave-key-5678"
	cfg.Telegram.Token = "bot-token-abcd"

	flat, err := ListValues(cfg, false)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-key-1234", flat["llm.api_key"])
	assert.Equal(t, "info", flat["log_level"])

	flat, err = ListValues(cfg, true)
	require.NoError(t, err)
	assert.Equal(t, "***1234", flat["llm.api_key"])
	assert.Equal(t, "***5678", flat["brave.api_key"])
	assert.Equal(t, "***abcd", flat["telegram.token"])
	assert.Equal(t, "info", flat["log_level"])
}

func TestGetValue(t *testing.T) {
	path := tempConfigPath(t)
	cfg := &Config{LogLevel: "warn", MaxConcurrent: 8}
	cfg.LLM.Model = "llama3.2"
	writeTestConfig(t, path, cfg)

	v, err := GetValue(path, "log_level")
	require.NoError(t, err)
	assert.Equal(t, "warn", v)

	v, err = GetValue(path, "llm.model")
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", v)

	v, err = GetValue(path, "max_concurrent")
	require.NoError(t, err)
	assert.Equal(t, float64(8), v)

	_, err = GetValue(path, "nonexistent.key")
	require.EqualError(t, err, "unknown config key: nonexistent.key")
}

func TestSetValue(t *testing.T) {
	path := tempConfigPath(t)
	cfg := &Config{LogLevel: "info", MaxConcurrent: 2}
	cfg.LLM.Provider = "openai"
	cfg.LLM.Temperature = 0.7
	writeTestConfig(t, path, cfg)

	tests := []struct {
		key, raw string
		want     any
	}{
		{"log_level", "debug", "debug"},
		{"max_concurrent", "16", float64(16)},
		{"llm.temperature", "0.3", 0.3},
		{"some_flag", "true", true},
		{"custom.setting", "value", "value"},
		{"rerank.scorers", `["lexical","crossencoder"]`, []any{"lexical", "crossencoder"}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.NoError(t, SetValue(path, tt.key, tt.raw))
			v, err := GetValue(path, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}

	v, err := GetValue(path, "llm.provider")
	require.NoError(t, err)
	assert.Equal(t, "openai", v, "unrelated values are preserved")
}

func TestSetValue_NonexistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", "config.json")
	assert.Error(t, SetValue(path, "log_level", "debug"))
}
