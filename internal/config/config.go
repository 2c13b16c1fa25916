// Package config provides configuration loading for agentd.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. Every section carries defaults so a zero config file is a
// working configuration.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates a configuration value that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete agentd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
	LLM           LLMConfig           `koanf:"llm"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	VectorStore   VectorStoreConfig   `koanf:"vectorstore"`
	Cache         CacheConfig         `koanf:"cache"`
	Workflow      WorkflowConfig      `koanf:"workflow"`
	Search        SearchConfig        `koanf:"search"`
	CodeGen       CodeGenConfig       `koanf:"codegen"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// LLMConfig holds the generation/routing model configuration.
type LLMConfig struct {
	// Model is the chat model used for routing and code generation.
	Model string `koanf:"model"`
	// APIKey is the provider API key. Falls back to OPENAI_API_KEY.
	APIKey string `koanf:"api_key"`
	// BaseURL overrides the provider endpoint (for proxies and local servers).
	BaseURL string `koanf:"base_url"`
	// MaxTokens caps completion length per call.
	MaxTokens int `koanf:"max_tokens"`
	// Temperature controls sampling. Kept low for deterministic code output.
	Temperature float64 `koanf:"temperature"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	// Provider is "fastembed" (local ONNX) or "openai" (langchaingo-backed API).
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	CacheDir string `koanf:"cache_dir"`
}

// VectorStoreConfig holds vector store configuration.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider string `koanf:"provider"`
	// Path is the chromem persistence directory.
	Path string `koanf:"path"`
	// DocsCollection holds framework documentation chunks.
	DocsCollection string `koanf:"docs_collection"`
	// CacheCollection holds semantic cache entries.
	CacheCollection string `koanf:"cache_collection"`
	// VectorSize must match the embedder's output dimension.
	VectorSize int `koanf:"vector_size"`
	// Host and Port locate the Qdrant gRPC endpoint (qdrant provider only).
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// CacheConfig holds the two-tier cache configuration.
type CacheConfig struct {
	// SemanticThreshold is the minimum cosine similarity for a semantic
	// cache hit. Closed lower bound: similarity >= threshold hits.
	SemanticThreshold float64 `koanf:"semantic_threshold"`
	// SemanticTTL bounds the lifetime of semantic cache entries.
	SemanticTTL time.Duration `koanf:"semantic_ttl"`
	// ToolTTL bounds the lifetime of tool-result cache entries.
	ToolTTL time.Duration `koanf:"tool_ttl"`
	// KVPath is the SQLite file backing the tool cache.
	KVPath string `koanf:"kv_path"`
}

// WorkflowConfig holds orchestrator configuration.
type WorkflowConfig struct {
	// MaxIterations caps the search→generate→validate retry cycle.
	MaxIterations int `koanf:"max_iterations"`
	// RequestTimeout is the overall per-request deadline.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// SearchConfig holds documentation search configuration.
type SearchConfig struct {
	TopK int `koanf:"top_k"`
	// MinScore is the confidence threshold below which one round of
	// query refinement runs.
	MinScore float64 `koanf:"min_score"`
}

// CodeGenConfig holds code generation configuration.
type CodeGenConfig struct {
	// MaxRetries is the number of regeneration attempts after a failed
	// syntax validation (total attempts = MaxRetries + 1).
	MaxRetries int `koanf:"max_retries"`
}

// ApplyDefaults fills unset fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 9090
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "agentd"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2000
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.2
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "fastembed"
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if c.VectorStore.Provider == "" {
		c.VectorStore.Provider = "chromem"
	}
	if c.VectorStore.Path == "" {
		c.VectorStore.Path = "~/.config/agentd/vectorstore"
	}
	if c.VectorStore.DocsCollection == "" {
		c.VectorStore.DocsCollection = "framework_docs"
	}
	if c.VectorStore.CacheCollection == "" {
		c.VectorStore.CacheCollection = "semantic_cache"
	}
	if c.VectorStore.VectorSize == 0 {
		c.VectorStore.VectorSize = 384
	}
	if c.VectorStore.Host == "" {
		c.VectorStore.Host = "localhost"
	}
	if c.VectorStore.Port == 0 {
		c.VectorStore.Port = 6334
	}
	if c.Cache.SemanticThreshold == 0 {
		c.Cache.SemanticThreshold = 0.95
	}
	if c.Cache.SemanticTTL == 0 {
		c.Cache.SemanticTTL = time.Hour
	}
	if c.Cache.ToolTTL == 0 {
		c.Cache.ToolTTL = 5 * time.Minute
	}
	if c.Cache.KVPath == "" {
		c.Cache.KVPath = "~/.config/agentd/toolcache.db"
	}
	if c.Workflow.MaxIterations == 0 {
		c.Workflow.MaxIterations = 3
	}
	if c.Workflow.RequestTimeout == 0 {
		c.Workflow.RequestTimeout = 2 * time.Minute
	}
	if c.Search.TopK == 0 {
		c.Search.TopK = 10
	}
	if c.Search.MinScore == 0 {
		c.Search.MinScore = 0.7
	}
	if c.CodeGen.MaxRetries == 0 {
		c.CodeGen.MaxRetries = 2
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("%w: unknown vector store provider %q", ErrInvalidConfig, c.VectorStore.Provider)
	}
	switch c.Embeddings.Provider {
	case "fastembed", "openai":
	default:
		return fmt.Errorf("%w: unknown embeddings provider %q", ErrInvalidConfig, c.Embeddings.Provider)
	}
	if c.Cache.SemanticThreshold <= 0 || c.Cache.SemanticThreshold > 1 {
		return fmt.Errorf("%w: semantic threshold %v must be in (0, 1]", ErrInvalidConfig, c.Cache.SemanticThreshold)
	}
	if c.Workflow.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations must be >= 1", ErrInvalidConfig)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("%w: search top_k must be positive", ErrInvalidConfig)
	}
	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return fmt.Errorf("%w: search min_score %v must be in [0, 1]", ErrInvalidConfig, c.Search.MinScore)
	}
	if c.CodeGen.MaxRetries < 0 {
		return fmt.Errorf("%w: codegen max_retries must be >= 0", ErrInvalidConfig)
	}
	if c.VectorStore.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}
