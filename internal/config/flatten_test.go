package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatten_Nested(t *testing.T) {
	m := map[string]any{
		"search": map[string]any{
			"provider":    "brave",
			"max_results": 10.0,
		},
		"rerank": map[string]any{
			"scorers": []any{"lexical", "overlap"},
		},
		"log_level": "info",
	}
	got := Flatten(m)
	assert.Equal(t, "brave", got["search.provider"])
	assert.Equal(t, 10.0, got["search.max_results"])
	assert.Equal(t, []any{"lexical", "overlap"}, got["rerank.scorers"])
	assert.Equal(t, "info", got["log_level"])
	assert.Len(t, got, 4)
}

func TestFlatten_DeeplyNested(t *testing.T) {
	got := Flatten(map[string]any{"a": map[string]any{"b": map[string]any{"c": "deep"}}})
	assert.Equal(t, map[string]any{"a.b.c": "deep"}, got)
}

func TestFlatten_Empty(t *testing.T) {
	assert.Empty(t, Flatten(map[string]any{}))
	assert.Empty(t, Flatten(map[string]any{"a": map[string]any{}}))
}

func TestUnflatten_Nested(t *testing.T) {
	got := Unflatten(map[string]any{
		"google.api_key": "k",
		"google.cx":      "cx",
		"log_level":      "debug",
	})
	assert.Equal(t, map[string]any{
		"google":    map[string]any{"api_key": "k", "cx": "cx"},
		"log_level": "debug",
	}, got)
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	original := map[string]any{
		"data_dir": "/tmp",
		"llm": map[string]any{
			"model":       "llama3.2",
			"temperature": 0.1,
		},
		"scrape": map[string]any{
			"workers": 4.0,
		},
	}
	assert.Equal(t, original, Unflatten(Flatten(original)))
}

func TestMaskSecrets(t *testing.T) {
	flat := map[string]any{
		"llm.provider":   "openai",
		"llm.api_key":    "sk-test123456",
		"brave.api_key":  "BSA-abcdef1234",
		"google.api_key": "AIza-xyz9876",
		"telegram.token": "123456:ABCdefGHIjkl",
		"redis.url":      "redis://:pw@localhost:6379/0",
		"log_level":      "info",
	}
	got := MaskSecrets(flat)

	assert.Equal(t, "openai", got["llm.provider"])
	assert.Equal(t, "info", got["log_level"])
	assert.Equal(t, "***3456", got["llm.api_key"])
	assert.Equal(t, "***1234", got["brave.api_key"])
	assert.Equal(t, "***9876", got["google.api_key"])
	assert.Equal(t, "***Ijkl", got["telegram.token"])
	assert.Equal(t, "***79/0", got["redis.url"])
}

func TestMaskSecrets_ShortValues(t *testing.T) {
	assert.Equal(t, "", MaskSecrets(map[string]any{"llm.api_key": ""})["llm.api_key"])
	assert.Equal(t, "***ab", MaskSecrets(map[string]any{"llm.api_key": "ab"})["llm.api_key"])
	assert.Equal(t, "***abcd", MaskSecrets(map[string]any{"llm.api_key": "abcd"})["llm.api_key"])
}

func TestIsSecretKey(t *testing.T) {
	assert.True(t, IsSecretKey("telegram.token"))
	assert.True(t, IsSecretKey("google.api_key"))
	assert.True(t, IsSecretKey("redis.url"))
	assert.False(t, IsSecretKey("llm.model"))
	assert.False(t, IsSecretKey("llm.max_tokens"))
	assert.False(t, IsSecretKey("llm.base_url"))
}
