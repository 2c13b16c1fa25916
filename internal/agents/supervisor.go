// Package agents implements the workflow steps: routing classification,
// documentation search with self-correction, and code generation with
// bounded retry.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/llm"
)

// RoutingStrategy is the supervisor's decision about which steps run for
// a request. It is decided exactly once per request.
type RoutingStrategy string

const (
	// StrategySearchOnly answers documentation questions without
	// generating code.
	StrategySearchOnly RoutingStrategy = "SEARCH_ONLY"

	// StrategyCodeOnly generates code without documentation context.
	StrategyCodeOnly RoutingStrategy = "CODE_ONLY"

	// StrategySearchThenCode retrieves documentation first and feeds it
	// into code generation.
	StrategySearchThenCode RoutingStrategy = "SEARCH_THEN_CODE"
)

// ErrRouting indicates the routing decision could not be made. The
// request cannot proceed without a strategy, so this is fatal for the
// request (but surfaced as a structured error, never a panic).
var ErrRouting = errors.New("routing decision failed")

var supervisorTracer = otel.Tracer("agentd.agents.supervisor")

const routingSystemPrompt = `You are a routing classifier for an AI agent system. Your job is to analyze user prompts and determine the appropriate routing strategy.

Available routing strategies:
1. SEARCH_ONLY: User is asking questions about documentation, seeking information, or wants to learn about a framework/concept
2. CODE_ONLY: User explicitly wants code generation without needing documentation context (e.g., simple code tasks, refactoring)
3. SEARCH_THEN_CODE: User wants code generation that requires framework documentation context (e.g., framework-specific implementations)

Guidelines:
- If the prompt contains questions like "how to", "what is", "explain", "documentation" -> SEARCH_ONLY
- If the prompt explicitly asks for code generation with framework-specific requirements -> SEARCH_THEN_CODE
- If the prompt asks for simple code without framework context -> CODE_ONLY
- When in doubt between CODE_ONLY and SEARCH_THEN_CODE, prefer SEARCH_THEN_CODE for better results

Respond with ONLY one of these exact values: SEARCH_ONLY, CODE_ONLY, or SEARCH_THEN_CODE`

// Supervisor classifies prompts into routing strategies using the LLM.
type Supervisor struct {
	llm    llm.Client
	logger *zap.Logger
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(client llm.Client, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{llm: client, logger: logger}
}

// Route classifies the prompt. An unparseable classification falls back
// to SEARCH_THEN_CODE (the strategy providing the most context); an LLM
// failure returns ErrRouting. Also returns the tokens consumed.
func (s *Supervisor) Route(ctx context.Context, prompt string) (RoutingStrategy, int, error) {
	ctx, span := supervisorTracer.Start(ctx, "Supervisor.Route")
	defer span.End()

	if strings.TrimSpace(prompt) == "" {
		return "", 0, fmt.Errorf("%w: prompt cannot be empty", ErrRouting)
	}

	// Zero temperature keeps the classification deterministic.
	temp := 0.0
	resp, err := s.llm.Complete(ctx, llm.Request{
		System:      routingSystemPrompt,
		User:        fmt.Sprintf("Analyze this prompt and determine the routing strategy:\n\nPrompt: %s\n\nRouting strategy:", prompt),
		MaxTokens:   50,
		Temperature: &temp,
	})
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrRouting, err)
	}

	strategy := parseStrategy(resp.Content)
	if strategy == "" {
		s.logger.Warn("routing classification unparseable, falling back",
			zap.String("classification", resp.Content),
			zap.String("fallback", string(StrategySearchThenCode)),
		)
		strategy = StrategySearchThenCode
	}

	span.SetAttributes(
		attribute.String("strategy", string(strategy)),
		attribute.Int("tokens_used", resp.TokensUsed),
	)
	s.logger.Info("routing strategy determined",
		zap.String("strategy", string(strategy)),
		zap.Int("tokens_used", resp.TokensUsed),
	)
	return strategy, resp.TokensUsed, nil
}

// parseStrategy extracts a strategy from the model output, tolerating
// prose around the token and spaces in place of underscores. The
// combined strategy is matched first.
func parseStrategy(classification string) RoutingStrategy {
	c := strings.ToUpper(strings.TrimSpace(classification))
	c = strings.ReplaceAll(c, " ", "_")
	switch {
	case strings.Contains(c, string(StrategySearchThenCode)):
		return StrategySearchThenCode
	case strings.Contains(c, string(StrategySearchOnly)):
		return StrategySearchOnly
	case strings.Contains(c, string(StrategyCodeOnly)):
		return StrategyCodeOnly
	default:
		return ""
	}
}
