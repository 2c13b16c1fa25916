// Agentd is a daemon that routes natural-language coding prompts through
// an agent workflow (routing, documentation search, code generation,
// validation) behind a two-tier cache.
//
// Configuration is loaded from a YAML file and environment variables.
// See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	agentd serve
//
//	# Start with an explicit config file
//	agentd serve --config /etc/agentd/config.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/agents"
	"github.com/fyrsmithlabs/agentd/internal/cache"
	"github.com/fyrsmithlabs/agentd/internal/config"
	"github.com/fyrsmithlabs/agentd/internal/embeddings"
	agentdhttp "github.com/fyrsmithlabs/agentd/internal/http"
	"github.com/fyrsmithlabs/agentd/internal/ingest"
	"github.com/fyrsmithlabs/agentd/internal/kvstore"
	"github.com/fyrsmithlabs/agentd/internal/llm"
	"github.com/fyrsmithlabs/agentd/internal/logging"
	"github.com/fyrsmithlabs/agentd/internal/reranker"
	"github.com/fyrsmithlabs/agentd/internal/service"
	"github.com/fyrsmithlabs/agentd/internal/syntax"
	"github.com/fyrsmithlabs/agentd/internal/telemetry"
	"github.com/fyrsmithlabs/agentd/internal/vectorstore"
	"github.com/fyrsmithlabs/agentd/internal/workflow"
)

// Version information (set via ldflags during build)
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:     "agentd",
	Short:   "Agent daemon for routed, cached code generation",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agentd HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/agentd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "agentd: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until the context is cancelled.
//
//  1. Load and validate configuration
//  2. Initialize logger and telemetry
//  3. Create embedding provider, vector store, and key-value store
//  4. Build caches, agent steps, orchestrator, and the service
//  5. Start the HTTP server; shut down gracefully on SIGINT/SIGTERM
func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	base := logger.Underlying()

	base.Info("starting agentd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
	)

	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.Observability.EnableTelemetry,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			base.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		APIKey:   os.Getenv("OPENAI_API_KEY"),
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		return fmt.Errorf("creating embedding provider: %w", err)
	}
	defer embedder.Close()

	store, err := newVectorStore(cfg, base.Named("vectorstore"))
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx, cfg.VectorStore.DocsCollection, cfg.VectorStore.VectorSize); err != nil {
		return fmt.Errorf("ensuring docs collection: %w", err)
	}
	if err := store.EnsureCollection(ctx, cfg.VectorStore.CacheCollection, cfg.VectorStore.VectorSize); err != nil {
		return fmt.Errorf("ensuring cache collection: %w", err)
	}

	kvPath, err := config.ExpandPath(cfg.Cache.KVPath)
	if err != nil {
		return fmt.Errorf("resolving kv store path: %w", err)
	}
	kv, err := kvstore.NewSQLiteStore(kvPath, base.Named("kvstore"))
	if err != nil {
		return fmt.Errorf("opening kv store: %w", err)
	}
	defer kv.Close()

	cacheMetrics := cache.NewMetrics(base.Named("cache"))
	toolCache := cache.NewToolCache(kv, cfg.Cache.ToolTTL, base.Named("toolcache"), cacheMetrics)
	semanticCache, err := cache.NewSemanticCache(store, cache.SemanticCacheConfig{
		Collection: cfg.VectorStore.CacheCollection,
		Threshold:  float32(cfg.Cache.SemanticThreshold),
		TTL:        cfg.Cache.SemanticTTL,
		VectorSize: cfg.VectorStore.VectorSize,
	}, base.Named("semanticcache"), cacheMetrics)
	if err != nil {
		return fmt.Errorf("creating semantic cache: %w", err)
	}

	llmClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		Model:       cfg.LLM.Model,
		APIKey:      firstNonEmpty(cfg.LLM.APIKey, os.Getenv("OPENAI_API_KEY")),
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, base.Named("llm"))
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	supervisor := agents.NewSupervisor(llmClient, base.Named("supervisor"))
	searchStep := agents.NewDocumentationSearchStep(
		embedder,
		store,
		reranker.NewLexicalReranker(),
		toolCache,
		agents.SearchConfig{
			Collection:  cfg.VectorStore.DocsCollection,
			DefaultTopK: cfg.Search.TopK,
			MinScore:    float32(cfg.Search.MinScore),
			CacheTTL:    cfg.Cache.ToolTTL,
		},
		base.Named("docsearch"),
	)
	codegenStep := agents.NewCodeGenerationStep(llmClient, syntax.NewValidator(), cfg.CodeGen.MaxRetries, base.Named("codegen"))

	orchestrator := workflow.NewOrchestrator(
		supervisor,
		searchStep,
		codegenStep,
		workflow.Config{
			MaxIterations: cfg.Workflow.MaxIterations,
			SearchTopK:    cfg.Search.TopK,
		},
		base.Named("workflow"),
		workflow.NewMetrics(base.Named("workflow")),
	)

	svc := service.New(embedder, semanticCache, orchestrator, base.Named("service"))
	ingester := ingest.New(embedder, store, ingest.Config{
		Collection: cfg.VectorStore.DocsCollection,
	}, base.Named("ingest"))

	server, err := agentdhttp.NewServer(svc, ingester, base.Named("http"), &agentdhttp.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Workflow.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	base.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// newVectorStore creates the configured vector store backend.
func newVectorStore(cfg *config.Config, logger *zap.Logger) (vectorstore.Store, error) {
	switch cfg.VectorStore.Provider {
	case "qdrant":
		return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:       cfg.VectorStore.Host,
			Port:       cfg.VectorStore.Port,
			VectorSize: cfg.VectorStore.VectorSize,
		}, logger)
	default:
		path, err := config.ExpandPath(cfg.VectorStore.Path)
		if err != nil {
			return nil, fmt.Errorf("resolving vector store path: %w", err)
		}
		return vectorstore.NewChromemStore(vectorstore.ChromemConfig{
			Path:       path,
			VectorSize: cfg.VectorStore.VectorSize,
		}, logger)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
