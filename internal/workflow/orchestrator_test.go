package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentd/internal/agents"
)

type fakeRouter struct {
	strategy agents.RoutingStrategy
	tokens   int
	err      error
	calls    int
}

func (f *fakeRouter) Route(context.Context, string) (agents.RoutingStrategy, int, error) {
	f.calls++
	return f.strategy, f.tokens, f.err
}

type fakeSearcher struct {
	results    []agents.DocumentationResult
	err        error
	calls      int
	frameworks [][]string
}

func (f *fakeSearcher) Search(_ context.Context, _ string, frameworks []string, _ int) ([]agents.DocumentationResult, bool, error) {
	f.calls++
	f.frameworks = append(f.frameworks, frameworks)
	if f.err != nil {
		return nil, false, f.err
	}
	return f.results, false, nil
}

// fakeGenerator returns scripted results in order, then repeats the last.
type fakeGenerator struct {
	results []agents.CodeGenerationResult
	calls   int
}

func (f *fakeGenerator) Generate(context.Context, string, []agents.DocumentationResult, string) agents.CodeGenerationResult {
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i]
}

func validCode() agents.CodeGenerationResult {
	return agents.CodeGenerationResult{Code: "func ok() {}", Language: "Go", Valid: true, TokensUsed: 100, Attempts: 1}
}

func invalidCode() agents.CodeGenerationResult {
	return agents.CodeGenerationResult{Code: "func broken(", Language: "Go", Errors: []string{"unclosed parenthesis"}, TokensUsed: 50, Attempts: 3}
}

func newOrchestrator(r Router, s Searcher, g Generator) *Orchestrator {
	return NewOrchestrator(r, s, g, Config{}, nil, NewMetrics(nil))
}

func TestRunSearchOnly(t *testing.T) {
	router := &fakeRouter{strategy: agents.StrategySearchOnly, tokens: 10}
	searcher := &fakeSearcher{results: []agents.DocumentationResult{{Content: "hooks guide", Score: 0.9}}}
	generator := &fakeGenerator{results: []agents.CodeGenerationResult{validCode()}}

	result, err := newOrchestrator(router, searcher, generator).Run(context.Background(), "how do react hooks work", "t-1", "", 0)
	require.NoError(t, err)
	assert.Equal(t, agents.StrategySearchOnly, result.Strategy)
	assert.Equal(t, []string{"route", "search"}, result.Steps)
	assert.Equal(t, 0, generator.calls)
	assert.Nil(t, result.Code)
	assert.Len(t, result.DocResults, 1)
	assert.Equal(t, 0, result.IterationCount)
	assert.True(t, result.Valid())
	assert.Equal(t, 10, result.TokensUsed)
}

func TestRunCodeOnly(t *testing.T) {
	router := &fakeRouter{strategy: agents.StrategyCodeOnly, tokens: 10}
	searcher := &fakeSearcher{}
	generator := &fakeGenerator{results: []agents.CodeGenerationResult{validCode()}}

	result, err := newOrchestrator(router, searcher, generator).Run(context.Background(), "write a sort function", "t-2", "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"route", "generate", "validate"}, result.Steps)
	assert.Equal(t, 0, searcher.calls)
	require.NotNil(t, result.Code)
	assert.True(t, result.Valid())
	assert.Equal(t, 110, result.TokensUsed)
}

func TestRunSearchThenCodeValidFirstPass(t *testing.T) {
	router := &fakeRouter{strategy: agents.StrategySearchThenCode}
	searcher := &fakeSearcher{results: []agents.DocumentationResult{{Content: "controller docs"}}}
	generator := &fakeGenerator{results: []agents.CodeGenerationResult{validCode()}}

	result, err := newOrchestrator(router, searcher, generator).Run(context.Background(), "create a users endpoint", "t-3", "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"route", "search", "generate", "validate"}, result.Steps)
	assert.Equal(t, 0, result.IterationCount)
	assert.True(t, result.Valid())
}

func TestRunIterationBound(t *testing.T) {
	// Never-valid code: every failed validation counts as one iteration,
	// so the cycle runs exactly maxIterations generation passes before
	// stopping with best-effort output.
	router := &fakeRouter{strategy: agents.StrategySearchThenCode}
	searcher := &fakeSearcher{}
	generator := &fakeGenerator{results: []agents.CodeGenerationResult{invalidCode()}}

	result, err := newOrchestrator(router, searcher, generator).Run(context.Background(), "create a users endpoint", "t-4", "", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, result.IterationCount)
	assert.Equal(t, 3, searcher.calls)
	assert.Equal(t, 3, generator.calls)
	assert.False(t, result.Valid())

	// Best-effort code and accumulated errors survive exhaustion.
	require.NotNil(t, result.Code)
	assert.NotEmpty(t, result.Code.Code)
	assert.Len(t, result.Errors, 3)
}

func TestRunRecoversOnLaterIteration(t *testing.T) {
	router := &fakeRouter{strategy: agents.StrategySearchThenCode}
	searcher := &fakeSearcher{}
	generator := &fakeGenerator{results: []agents.CodeGenerationResult{invalidCode(), invalidCode(), validCode()}}

	result, err := newOrchestrator(router, searcher, generator).Run(context.Background(), "create a users endpoint", "t-5", "", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, result.IterationCount)
	assert.True(t, result.Valid())
	assert.Equal(t, 3, searcher.calls)
}

func TestRunRoutingFailureIsFatal(t *testing.T) {
	router := &fakeRouter{err: agents.ErrRouting}
	searcher := &fakeSearcher{}
	generator := &fakeGenerator{results: []agents.CodeGenerationResult{validCode()}}

	result, err := newOrchestrator(router, searcher, generator).Run(context.Background(), "prompt", "t-6", "", 0)
	require.ErrorIs(t, err, agents.ErrRouting)
	assert.Nil(t, result)
	assert.Equal(t, 0, searcher.calls)
	assert.Equal(t, 0, generator.calls)
}

func TestRunSearchFailureDoesNotAbort(t *testing.T) {
	router := &fakeRouter{strategy: agents.StrategySearchThenCode}
	searcher := &fakeSearcher{err: errors.New("vector store down")}
	generator := &fakeGenerator{results: []agents.CodeGenerationResult{validCode()}}

	result, err := newOrchestrator(router, searcher, generator).Run(context.Background(), "create a users endpoint", "t-7", "", 0)
	require.NoError(t, err)
	assert.True(t, result.Valid())
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "documentation search failed")
	assert.Empty(t, result.DocResults)
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	router := &fakeRouter{strategy: agents.StrategySearchThenCode}
	searcher := &fakeSearcher{}
	generator := &fakeGenerator{results: []agents.CodeGenerationResult{validCode()}}

	result, err := newOrchestrator(router, searcher, generator).Run(ctx, "prompt", "t-8", "", 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
	assert.Equal(t, 0, searcher.calls)
}

func TestRunEmptyPrompt(t *testing.T) {
	router := &fakeRouter{strategy: agents.StrategyCodeOnly}
	_, err := newOrchestrator(router, &fakeSearcher{}, &fakeGenerator{results: []agents.CodeGenerationResult{validCode()}}).
		Run(context.Background(), "  ", "t-9", "", 0)
	require.Error(t, err)
	assert.Equal(t, 0, router.calls)
}

func TestRunDetectsFrameworkFilter(t *testing.T) {
	router := &fakeRouter{strategy: agents.StrategySearchOnly}
	searcher := &fakeSearcher{}
	generator := &fakeGenerator{results: []agents.CodeGenerationResult{validCode()}}

	_, err := newOrchestrator(router, searcher, generator).Run(context.Background(), "create a nestjs controller", "t-10", "", 0)
	require.NoError(t, err)
	require.Len(t, searcher.frameworks, 1)
	assert.Equal(t, []string{"NestJS"}, searcher.frameworks[0])
}

func TestRunDefaultMaxIterations(t *testing.T) {
	router := &fakeRouter{strategy: agents.StrategySearchThenCode}
	generator := &fakeGenerator{results: []agents.CodeGenerationResult{invalidCode()}}

	result, err := newOrchestrator(router, &fakeSearcher{}, generator).Run(context.Background(), "create a users endpoint", "t-11", "", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, result.IterationCount)
}
