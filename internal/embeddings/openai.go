package embeddings

import (
	"context"
	"fmt"
	"strings"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// OpenAIConfig holds configuration for the OpenAI-compatible provider.
// The same client covers TEI servers, which expose the OpenAI embedding API.
type OpenAIConfig struct {
	// Model is the embedding model.
	// For OpenAI: text-embedding-3-small, text-embedding-3-large.
	// For TEI: BAAI/bge-small-en-v1.5, Alibaba-NLP/gte-base-en-v1.5.
	Model string

	// BaseURL is the API endpoint. Defaults to the OpenAI API.
	BaseURL string

	// APIKey is the API key. Optional for TEI.
	APIKey string
}

// OpenAIProvider generates embeddings through an OpenAI-compatible API.
type OpenAIProvider struct {
	embedder  *lcembeddings.EmbedderImpl
	modelName string
	dimension int
}

// NewOpenAIProvider creates an embedding provider backed by langchaingo's
// OpenAI client.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}

	// langchaingo requires a token even for TEI servers.
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	opts := []lcopenai.Option{
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &OpenAIProvider{
		embedder:  embedder,
		modelName: cfg.Model,
		dimension: detectDimensionFromModel(cfg.Model),
	}, nil
}

// detectDimensionFromModel maps well-known model names to their output
// dimensions. Unknown models default to 384 (bge-small family).
func detectDimensionFromModel(model string) int {
	switch {
	case strings.Contains(model, "text-embedding-3-large"):
		return 3072
	case strings.Contains(model, "text-embedding-3-small"),
		strings.Contains(model, "text-embedding-ada"):
		return 1536
	case strings.Contains(model, "bge-base"),
		strings.Contains(model, "gte-base"):
		return 768
	case strings.Contains(model, "bge-large"),
		strings.Contains(model, "gte-large"):
		return 1024
	default:
		return 384
	}
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	embedding, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return embedding, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	embeddings, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return embeddings, nil
}

// Dimension returns the embedding dimension for the current model.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op; the API client holds no local resources.
func (p *OpenAIProvider) Close() error {
	return nil
}
