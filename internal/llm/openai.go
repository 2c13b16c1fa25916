package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// llmTracer for OpenTelemetry instrumentation.
var llmTracer = otel.Tracer("agentd.llm")

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	// Model is the chat model, e.g. gpt-4.
	Model string

	// APIKey authenticates against the API.
	APIKey string

	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string

	// MaxTokens is the default completion budget.
	MaxTokens int

	// Temperature is the default sampling temperature. Kept low so
	// routing decisions and generated code stay deterministic-ish.
	Temperature float64
}

// Validate validates the configuration.
func (c *OpenAIConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if c.APIKey == "" && c.BaseURL == "" {
		return fmt.Errorf("%w: api key is required", ErrInvalidConfig)
	}
	return nil
}

// OpenAIClient implements Client on the official OpenAI Go SDK.
type OpenAIClient struct {
	client openai.Client
	config OpenAIConfig
	logger *zap.Logger
}

// NewOpenAIClient creates a chat completion client.
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		config: cfg,
		logger: logger,
	}, nil
}

// Complete sends a chat completion request and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, span := llmTracer.Start(ctx, "OpenAIClient.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("model", c.config.Model))

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}
	temperature := c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Response{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		span.SetStatus(codes.Error, "empty response")
		return Response{}, ErrEmptyResponse
	}

	resp := Response{
		Content:    completion.Choices[0].Message.Content,
		TokensUsed: int(completion.Usage.TotalTokens),
	}
	c.logger.Debug("completion finished",
		zap.String("model", c.config.Model),
		zap.Int("tokens_used", resp.TokensUsed),
	)
	return resp, nil
}
