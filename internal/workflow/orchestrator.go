package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/agents"
)

var tracer = otel.Tracer("agentd.workflow")

// Router decides the execution strategy for a prompt.
type Router interface {
	Route(ctx context.Context, prompt string) (agents.RoutingStrategy, int, error)
}

// Searcher retrieves documentation relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string, frameworks []string, topK int) ([]agents.DocumentationResult, bool, error)
}

// Generator produces and syntax-validates code for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, docContext []agents.DocumentationResult, framework string) agents.CodeGenerationResult
}

// Config holds orchestrator tuning knobs.
type Config struct {
	// MaxIterations bounds the search-generate-validate cycle per run.
	MaxIterations int

	// SearchTopK is passed to the search step; zero means the step's
	// default.
	SearchTopK int
}

// Orchestrator runs the agent workflow state machine. Routing happens
// exactly once per request; a routing failure is the only step failure
// that aborts the run. Every other step failure is recorded on the
// state and the run still reaches DONE.
type Orchestrator struct {
	router    Router
	searcher  Searcher
	generator Generator
	config    Config
	logger    *zap.Logger
	metrics   *Metrics
}

// NewOrchestrator wires the workflow collaborators.
func NewOrchestrator(router Router, searcher Searcher, generator Generator, cfg Config, logger *zap.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Orchestrator{
		router:    router,
		searcher:  searcher,
		generator: generator,
		config:    cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes one request through the workflow. maxIterations below
// one falls back to the configured bound. Context cancellation aborts
// before the next collaborator call and returns a structured error;
// partial results are discarded.
func (o *Orchestrator) Run(ctx context.Context, prompt, traceID, framework string, maxIterations int) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.Run")
	defer span.End()

	start := time.Now()

	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}
	if maxIterations < 1 {
		maxIterations = o.config.MaxIterations
	}
	if framework == "" {
		framework = agents.DetectFramework(prompt)
	}

	state := NewWorkflowState(prompt, traceID, framework, maxIterations)
	logger := o.logger.With(zap.String("trace_id", traceID))

	strategy, tokens, err := o.router.Route(ctx, prompt)
	state.Steps = append(state.Steps, "route")
	state.TokensUsed += tokens
	if err != nil {
		o.metrics.RecordRun(ctx, "", "routing_error")
		return nil, fmt.Errorf("routing: %w", err)
	}
	state.Strategy = strategy
	span.SetAttributes(attribute.String("strategy", string(strategy)))
	logger.Info("request routed",
		zap.String("strategy", string(strategy)),
		zap.String("framework", framework),
	)

	switch strategy {
	case agents.StrategySearchOnly:
		state.State = StateSearching
		if err := o.aborted(ctx); err != nil {
			return nil, err
		}
		o.search(ctx, state, logger)

	case agents.StrategyCodeOnly:
		state.State = StateGenerating
		if err := o.aborted(ctx); err != nil {
			return nil, err
		}
		o.generate(ctx, state, logger)

	default: // SEARCH_THEN_CODE
		if err := o.cycle(ctx, state, logger); err != nil {
			return nil, err
		}
	}

	state.State = StateDone
	o.metrics.RecordRun(ctx, strategy, outcome(state))
	o.metrics.RecordIterations(ctx, strategy, state.IterationCount)

	result := &Result{
		TraceID:        state.TraceID,
		Strategy:       state.Strategy,
		DocResults:     state.DocResults,
		Code:           state.GeneratedCode,
		IterationCount: state.IterationCount,
		TokensUsed:     state.TokensUsed,
		Steps:          state.Steps,
		Errors:         state.Errors,
		Elapsed:        time.Since(start),
	}
	logger.Info("workflow completed",
		zap.String("strategy", string(strategy)),
		zap.Int("iterations", state.IterationCount),
		zap.Int("tokens_used", state.TokensUsed),
		zap.Bool("valid", result.Valid()),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// cycle runs the bounded search-generate-validate loop. Every invalid
// validation counts as one iteration; when the count reaches the bound
// the best-effort code and accumulated errors are kept, so the loop
// body runs at most MaxIterations times.
func (o *Orchestrator) cycle(ctx context.Context, state *WorkflowState, logger *zap.Logger) error {
	for {
		state.State = StateSearching
		if err := o.aborted(ctx); err != nil {
			return err
		}
		o.search(ctx, state, logger)

		state.State = StateGenerating
		if err := o.aborted(ctx); err != nil {
			return err
		}
		o.generate(ctx, state, logger)

		state.State = StateValidating
		if state.GeneratedCode != nil && state.GeneratedCode.Valid {
			return nil
		}
		state.IterationCount++
		if state.IterationCount >= state.MaxIterations {
			logger.Warn("iteration bound reached, returning best-effort code",
				zap.Int("iterations", state.IterationCount),
				zap.Strings("errors", state.Errors),
			)
			return nil
		}
		logger.Info("validation failed, cycling back to search",
			zap.Int("iteration", state.IterationCount),
		)
	}
}

// search runs the documentation search step. Failures are recorded and
// the workflow continues with whatever results it already has.
func (o *Orchestrator) search(ctx context.Context, state *WorkflowState, logger *zap.Logger) {
	var frameworks []string
	if state.Framework != "" {
		frameworks = []string{state.Framework}
	}

	results, refined, err := o.searcher.Search(ctx, state.Prompt, frameworks, o.config.SearchTopK)
	state.Steps = append(state.Steps, "search")
	if err != nil {
		state.Errors = append(state.Errors, fmt.Sprintf("documentation search failed: %v", err))
		logger.Warn("documentation search failed", zap.Error(err))
		return
	}
	state.DocResults = results
	logger.Debug("documentation search completed",
		zap.Int("results", len(results)),
		zap.Bool("refined", refined),
	)
}

// generate runs code generation plus syntax validation and folds the
// outcome into the state.
func (o *Orchestrator) generate(ctx context.Context, state *WorkflowState, logger *zap.Logger) {
	result := o.generator.Generate(ctx, state.Prompt, state.DocResults, state.Framework)
	state.GeneratedCode = &result
	state.TokensUsed += result.TokensUsed
	state.Steps = append(state.Steps, "generate", "validate")
	if !result.Valid {
		state.Errors = append(state.Errors, result.Errors...)
		logger.Warn("generated code failed validation",
			zap.Int("attempts", result.Attempts),
			zap.Strings("errors", result.Errors),
		)
	}
}

// aborted turns context cancellation into the structured abort error.
// Cancellation is only observed between collaborator calls.
func (o *Orchestrator) aborted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("workflow aborted: %w", err)
	}
	return nil
}

func outcome(state *WorkflowState) string {
	if state.GeneratedCode != nil {
		if state.GeneratedCode.Valid {
			return "valid"
		}
		return "exhausted"
	}
	if len(state.Errors) > 0 {
		return "degraded"
	}
	return "completed"
}
