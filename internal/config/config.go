package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	DataDir       string `json:"data_dir" validate:"required"`
	LogLevel      string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
	MaxConcurrent int    `json:"max_concurrent" validate:"gte=1"`
	LLM           struct {
		Provider         string  `json:"provider"`
		BaseURL          string  `json:"base_url" validate:"required,url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model" validate:"required"`
		EmbeddingModel   string  `json:"embedding_model"`
		MaxTokens        int     `json:"max_tokens" validate:"gte=0"`
		Temperature      float32 `json:"temperature" validate:"gte=0,lte=2"`
		MaxContextTokens int     `json:"max_context_tokens" validate:"gte=0"`
		OutputReserve    int     `json:"output_reserve" validate:"gte=0"`
	} `json:"llm"`
	Search struct {
		Provider   string `json:"provider" validate:"oneof=brave google"`
		MaxResults int    `json:"max_results" validate:"gte=1,lte=50"`
	} `json:"search"`
	Brave struct {
		APIKey string `json:"api_key"`
	} `json:"brave"`
	Google struct {
		APIKey string `json:"api_key"`
		CX     string `json:"cx"`
	} `json:"google"`
	Scrape struct {
		Workers        int    `json:"workers" validate:"gte=1"`
		TimeoutSeconds int    `json:"timeout_seconds" validate:"gte=1"`
		MaxBodyBytes   int64  `json:"max_body_bytes" validate:"gte=1024"`
		UserAgent      string `json:"user_agent"`
	} `json:"scrape"`
	Rerank struct {
		K               int      `json:"k" validate:"gte=1"`
		Scorers         []string `json:"scorers" validate:"min=1,dive,oneof=lexical overlap embedding crossencoder"`
		CrossEncoderURL string   `json:"cross_encoder_url" validate:"omitempty,url"`
	} `json:"rerank"`
	Pipeline struct {
		SummaryWorkers int `json:"summary_workers" validate:"gte=1"`
		MaxDocTokens   int `json:"max_doc_tokens" validate:"gte=0"`
	} `json:"pipeline"`
	Storage struct {
		Driver string `json:"driver" validate:"oneof=file sqlite"`
	} `json:"storage"`
	HTTP struct {
		Addr string `json:"addr" validate:"required"`
	} `json:"http"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	Redis struct {
		URL        string `json:"url"`
		TTLSeconds int    `json:"ttl_seconds" validate:"gte=0"`
	} `json:"redis"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".gophersearch"),
		MaxConcurrent: 4,
	}
	cfg.LogLevel = "info"
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "http://localhost:11434/v1"
	cfg.LLM.Model = "llama3.2"
	cfg.LLM.EmbeddingModel = "nomic-embed-text"
	cfg.LLM.OutputReserve = 4096
	cfg.Search.Provider = "brave"
	cfg.Search.MaxResults = 10
	cfg.Scrape.Workers = 4
	cfg.Scrape.TimeoutSeconds = 10
	cfg.Scrape.MaxBodyBytes = 2 << 20
	cfg.Scrape.UserAgent = "Mozilla/5.0 (compatible; gophersearch/1.0)"
	cfg.Rerank.K = 60
	cfg.Rerank.Scorers = []string{"lexical", "overlap"}
	cfg.Pipeline.SummaryWorkers = 4
	cfg.Pipeline.MaxDocTokens = 6000
	cfg.Storage.Driver = "sqlite"
	cfg.HTTP.Addr = ":8000"
	cfg.Redis.TTLSeconds = 3600
	return cfg
}

func Load(path string) (*Config, error) {
	cfg := Default()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values from the environment (highest precedence).
func applyEnv(cfg *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if braveKey := os.Getenv("BRAVE_API_KEY"); braveKey != "" {
		cfg.Brave.APIKey = braveKey
	}
	if googleKey := os.Getenv("GOOGLE_API_KEY"); googleKey != "" {
		cfg.Google.APIKey = googleKey
	}
	if cx := os.Getenv("GOOGLE_CX"); cx != "" {
		cfg.Google.CX = cx
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
}

var validate = validator.New()

// Validate checks field constraints declared in the struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return Save(path, cfg)
}
