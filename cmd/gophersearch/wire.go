package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/gophersearch/internal/config"
	ctxengine "github.com/user/gophersearch/internal/context"
	"github.com/user/gophersearch/internal/metrics"
	"github.com/user/gophersearch/internal/query"
	"github.com/user/gophersearch/internal/rerank"
	"github.com/user/gophersearch/internal/retrieval"
	"github.com/user/gophersearch/internal/runtime"
	"github.com/user/gophersearch/internal/scrape"
	"github.com/user/gophersearch/internal/search"
	"github.com/user/gophersearch/internal/state"
	"github.com/user/gophersearch/internal/state/sqlite"
	"github.com/user/gophersearch/internal/summary"
	"github.com/user/gophersearch/internal/types"
	"github.com/user/gophersearch/pkg/llm"
	"github.com/user/gophersearch/pkg/llm/openai"
)

// app is the assembled research pipeline shared by serve and ask.
type app struct {
	store   types.ConversationStore
	orch    *runtime.Orchestrator
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func openStore(cfg *config.Config) (types.ConversationStore, func() error, error) {
	switch cfg.Storage.Driver {
	case "file":
		return state.NewFileStore(cfg.DataDir), func() error { return nil }, nil
	case "sqlite":
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func searchProvider(cfg *config.Config) (search.Provider, error) {
	switch cfg.Search.Provider {
	case "brave":
		if cfg.Brave.APIKey == "" {
			return nil, errors.New("brave search needs brave.api_key (or BRAVE_API_KEY)")
		}
		return search.NewBrave(cfg.Brave.APIKey, cfg.Search.MaxResults), nil
	case "google":
		if cfg.Google.APIKey == "" || cfg.Google.CX == "" {
			return nil, errors.New("google search needs google.api_key and google.cx")
		}
		return search.NewGoogle(cfg.Google.APIKey, cfg.Google.CX, cfg.Search.MaxResults), nil
	}
	return nil, fmt.Errorf("unknown search provider %q", cfg.Search.Provider)
}

func scorers(cfg *config.Config, engine *ctxengine.Engine, embedder llm.Embedder) ([]rerank.Scorer, error) {
	var out []rerank.Scorer
	for _, name := range cfg.Rerank.Scorers {
		switch name {
		case "lexical":
			out = append(out, rerank.Lexical{})
		case "overlap":
			out = append(out, rerank.NewOverlap(engine))
		case "embedding":
			out = append(out, rerank.NewEmbedding(embedder))
		case "crossencoder":
			if cfg.Rerank.CrossEncoderURL == "" {
				return nil, errors.New("crossencoder scorer needs rerank.cross_encoder_url")
			}
			out = append(out, rerank.NewCrossEncoder(cfg.Rerank.CrossEncoderURL))
		default:
			return nil, fmt.Errorf("unknown rerank scorer %q", name)
		}
	}
	return out, nil
}

func buildApp(cfg *config.Config, m *metrics.Metrics) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	provider := openai.New(&llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
	})

	engine, err := ctxengine.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fail(fmt.Errorf("create context engine: %w", err))
	}

	sp, err := searchProvider(cfg)
	if err != nil {
		return fail(err)
	}

	var fetcher scrape.Fetcher = scrape.NewHTTPFetcher(
		time.Duration(cfg.Scrape.TimeoutSeconds)*time.Second,
		cfg.Scrape.MaxBodyBytes,
		cfg.Scrape.UserAgent,
	)
	if cfg.Redis.URL != "" {
		client, err := scrape.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			return fail(fmt.Errorf("redis: %w", err))
		}
		a.closers = append(a.closers, client.Close)
		fetcher = scrape.NewCachedFetcher(fetcher, client, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
		slog.Info("page cache enabled", "ttl_seconds", cfg.Redis.TTLSeconds)
	}

	sc, err := scorers(cfg, engine, provider)
	if err != nil {
		return fail(err)
	}

	opts := []summary.Option{summary.WithWorkers(cfg.Pipeline.SummaryWorkers)}
	if cfg.Pipeline.MaxDocTokens > 0 {
		opts = append(opts, summary.WithTruncation(engine, cfg.Pipeline.MaxDocTokens))
	}

	a.orch = runtime.New(runtime.Config{
		Provider:    provider,
		Engine:      engine,
		Store:       store,
		Expander:    query.NewExpander(provider),
		Retriever:   retrieval.New(sp, fetcher, cfg.Scrape.Workers),
		Reranker:    rerank.New(cfg.Rerank.K, sc...),
		Summarizer:  summary.NewSummarizer(provider, opts...),
		Synthesizer: summary.NewSynthesizer(provider),
		Metrics:     m,
	})
	return a, nil
}
