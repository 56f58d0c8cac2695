package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pragasv/sola-labs-demo/internal/agent"
	"github.com/pragasv/sola-labs-demo/internal/config"
	"github.com/pragasv/sola-labs-demo/internal/creative"
	"github.com/pragasv/sola-labs-demo/internal/email"
	"github.com/pragasv/sola-labs-demo/internal/embeddings"
	"github.com/pragasv/sola-labs-demo/internal/llm"
	"github.com/pragasv/sola-labs-demo/internal/memory"
	"github.com/pragasv/sola-labs-demo/internal/metrics"
	"github.com/pragasv/sola-labs-demo/internal/retrieval"
	"github.com/pragasv/sola-labs-demo/internal/router"
	"github.com/pragasv/sola-labs-demo/internal/tools"
)

// components holds everything a command needs, plus the resources to
// release when it finishes.
type components struct {
	service      *agent.Service
	metricsStore *metrics.SQLiteSink
	closers      []io.Closer
}

// Close releases resources in reverse order of acquisition.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i].Close()
	}
}

// buildComponents wires the configured providers, stores and sinks into
// an agent.Service.
func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	llmClient := createLLMClient(cfg, logger)

	embedder, err := createEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	searcher, err := c.createSearcher(cfg, embedder)
	if err != nil {
		return nil, err
	}

	mem, err := c.createMemoryStore(cfg)
	if err != nil {
		return nil, err
	}

	sink, err := c.createMetricsSink(cfg)
	if err != nil {
		return nil, err
	}

	var mailer tools.Mailer
	if cfg.Email.Configured() {
		mailer = email.NewSender(cfg.Email, logger)
		logger.Info("email notifications enabled", "host", cfg.Email.SMTP.Host)
	} else {
		logger.Info("email notifications disabled (not configured)")
	}
	registry := tools.NewRegistry(logger, mailer, tools.NewHTTPCaller(cfg.APICall.Timeout, logger))

	orch := agent.NewOrchestrator(agent.Options{
		Logger: logger,
		LLM:    llmClient,
		Models: agent.Models{
			Router:    cfg.Models.Router,
			Tools:     cfg.Models.Tools,
			Synthesis: cfg.Models.Synthesis,
		},
		Audit:        router.NewAudit(router.DefaultMaxAuditLog),
		Retrieval:    retrieval.NewManager(searcher, cfg.Retrieval.TopK, logger),
		Tools:        registry,
		Memory:       mem,
		Metrics:      sink,
		RecentMemory: cfg.Memory.Recent,
	})
	reactor := creative.NewReactor(logger, llmClient, cfg.Models.Creative)
	c.service = agent.NewService(logger, orch, reactor, cfg.Memory.ShouldClear())
	return c, nil
}

// createLLMClient builds a multi-provider client. Each model listed in
// models.providers goes to its provider; everything else goes to
// models.default_provider.
func createLLMClient(cfg *config.Config, logger *slog.Logger) llm.Client {
	multi := llm.NewMultiClient(cfg.Models.DefaultProvider)
	multi.AddProvider("ollama", llm.NewOllamaClient(cfg.Ollama.URL, logger))

	if cfg.OpenAI.Configured() {
		multi.AddProvider("openai", llm.NewOpenAIClient(llm.OpenAIOptions{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKey:     cfg.OpenAI.APIKey,
			AuthHeader: cfg.OpenAI.AuthHeader,
		}, logger))
		logger.Info("OpenAI provider configured", "base_url", cfg.OpenAI.BaseURL)
	}
	if cfg.Anthropic.APIKey != "" {
		multi.AddProvider("anthropic", llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger))
		logger.Info("Anthropic provider configured")
	}

	for model, provider := range cfg.Models.Providers {
		multi.AddModel(model, provider)
	}
	logger.Info("LLM client initialized",
		"router_model", cfg.Models.Router,
		"tools_model", cfg.Models.Tools,
		"default_provider", cfg.Models.DefaultProvider,
	)
	return multi
}

// createEmbedder returns the configured query embedder, or nil when
// embeddings are disabled.
func createEmbedder(ctx context.Context, cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.Embeddings.Provider {
	case "ollama":
		return embeddings.NewOllamaClient(cfg.Embeddings.URL, cfg.Embeddings.Model), nil
	case "genai":
		client, err := embeddings.NewGenAIClient(ctx, cfg.Embeddings.APIKey, cfg.Embeddings.Model, cfg.Embeddings.TaskType)
		if err != nil {
			return nil, fmt.Errorf("create genai embedder: %w", err)
		}
		return client, nil
	}
	return nil, nil
}

func (c *components) createSearcher(cfg *config.Config, embedder embeddings.Embedder) (retrieval.Searcher, error) {
	switch cfg.Retrieval.Backend {
	case "azure":
		az := cfg.Retrieval.Azure
		return retrieval.NewAzureSearch(retrieval.AzureConfig{
			Endpoint:    az.Endpoint,
			Index:       az.Index,
			APIKey:      az.APIKey,
			APIVersion:  az.APIVersion,
			VectorField: az.VectorField,
		}, embedder), nil
	case "none":
		return retrieval.NoneSearcher{}, nil
	}
	idx, err := openIndex(cfg, embedder)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, idx)
	return idx, nil
}

func openIndex(cfg *config.Config, embedder embeddings.Embedder) (*retrieval.SQLiteIndex, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Retrieval.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	idx, err := retrieval.OpenSQLiteIndex(cfg.Retrieval.SQLitePath, embedder)
	if err != nil {
		return nil, fmt.Errorf("open passage index: %w", err)
	}
	return idx, nil
}

func (c *components) createMemoryStore(cfg *config.Config) (memory.Store, error) {
	switch cfg.Memory.Backend {
	case "memory":
		return memory.NewInMemoryStore(), nil
	case "sqlite":
		store, err := memory.OpenSQLiteStore(cfg.Memory.Path)
		if err != nil {
			return nil, fmt.Errorf("open memory store: %w", err)
		}
		c.closers = append(c.closers, store)
		return store, nil
	}
	return memory.NewFileStore(cfg.Memory.Path), nil
}

func (c *components) createMetricsSink(cfg *config.Config) (metrics.Sink, error) {
	var sinks metrics.MultiSink
	if cfg.Metrics.CSVPath != "" {
		sinks = append(sinks, metrics.NewCSVSink(cfg.Metrics.CSVPath))
	}
	if cfg.Metrics.SQLitePath != "" {
		store, err := metrics.OpenSQLiteSink(cfg.Metrics.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open metrics store: %w", err)
		}
		c.closers = append(c.closers, store)
		c.metricsStore = store
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

// mimeFromExt guesses an image type from a file name.
func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return creative.DefaultMIMEType
}
