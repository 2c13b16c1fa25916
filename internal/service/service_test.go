package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentd/internal/agents"
	"github.com/fyrsmithlabs/agentd/internal/cache"
	"github.com/fyrsmithlabs/agentd/internal/workflow"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeCache struct {
	hit         *cache.CachedResponse
	lookupCalls int
	storeCalls  int
	storedText  string
}

func (f *fakeCache) Lookup(context.Context, []float32) (*cache.CachedResponse, bool) {
	f.lookupCalls++
	if f.hit != nil {
		return f.hit, true
	}
	return nil, false
}

func (f *fakeCache) Store(_ context.Context, _ string, _ []float32, response, _ string) {
	f.storeCalls++
	f.storedText = response
}

type fakeRunner struct {
	result *workflow.Result
	err    error
	calls  int
}

func (f *fakeRunner) Run(context.Context, string, string, string, int) (*workflow.Result, error) {
	f.calls++
	return f.result, f.err
}

func codeResult(valid bool) *workflow.Result {
	return &workflow.Result{
		Strategy:   agents.StrategySearchThenCode,
		Code:       &agents.CodeGenerationResult{Code: "func ok() {}", Valid: valid},
		TokensUsed: 120,
		Steps:      []string{"route", "search", "generate", "validate"},
	}
}

func TestExecuteCacheHitSkipsWorkflow(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	cached := &fakeCache{hit: &cache.CachedResponse{Response: "cached answer", Similarity: 0.97}}
	runner := &fakeRunner{result: codeResult(true)}
	svc := New(embedder, cached, runner, nil)

	resp, err := svc.Execute(context.Background(), ExecuteRequest{Prompt: "create a users endpoint"})
	require.NoError(t, err)
	assert.True(t, resp.CacheHit)
	assert.Equal(t, "cached answer", resp.Result)
	assert.Equal(t, 0, runner.calls)
	assert.Equal(t, 0, cached.storeCalls)
}

func TestExecuteMissRunsAndStores(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	cached := &fakeCache{}
	runner := &fakeRunner{result: codeResult(true)}
	svc := New(embedder, cached, runner, nil)

	resp, err := svc.Execute(context.Background(), ExecuteRequest{Prompt: "create a users endpoint"})
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, "func ok() {}", resp.Result)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, 1, cached.storeCalls)
	assert.Equal(t, "func ok() {}", cached.storedText)
	assert.Equal(t, 120, resp.TokensUsed)
}

func TestExecuteExhaustedRunIsStillCached(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	cached := &fakeCache{}
	runner := &fakeRunner{result: codeResult(false)}
	svc := New(embedder, cached, runner, nil)

	_, err := svc.Execute(context.Background(), ExecuteRequest{Prompt: "create a users endpoint"})
	require.NoError(t, err)
	assert.Equal(t, 1, cached.storeCalls)
}

func TestExecuteWorkflowErrorNotCached(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	cached := &fakeCache{}
	runner := &fakeRunner{err: errors.New("routing: provider down")}
	svc := New(embedder, cached, runner, nil)

	_, err := svc.Execute(context.Background(), ExecuteRequest{Prompt: "prompt"})
	require.Error(t, err)
	assert.Equal(t, 0, cached.storeCalls)
}

func TestExecuteTimedOutRunNotCached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	cached := &fakeCache{}

	// The runner observes the cancellation mid-run and returns the
	// structured abort error.
	runner := &fakeRunner{err: context.Canceled}
	cancel()
	svc := New(embedder, cached, runner, nil)

	_, err := svc.Execute(ctx, ExecuteRequest{Prompt: "prompt"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, cached.storeCalls)
}

func TestExecuteEmbeddingFailureBypassesCache(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("embedding backend down")}
	cached := &fakeCache{}
	runner := &fakeRunner{result: codeResult(true)}
	svc := New(embedder, cached, runner, nil)

	resp, err := svc.Execute(context.Background(), ExecuteRequest{Prompt: "create a users endpoint"})
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 0, cached.lookupCalls)
	assert.Equal(t, 0, cached.storeCalls)
	assert.Equal(t, 1, runner.calls)

	// Degraded execution is indistinguishable from running without a
	// cache at all.
	bare, err := New(nil, nil, &fakeRunner{result: codeResult(true)}, nil).
		Execute(context.Background(), ExecuteRequest{Prompt: "create a users endpoint", TraceID: resp.TraceID})
	require.NoError(t, err)
	assert.Equal(t, resp.Result, bare.Result)
	assert.Equal(t, resp.CacheHit, bare.CacheHit)
	assert.Equal(t, resp.TokensUsed, bare.TokensUsed)
}

func TestExecuteDegradedRunNotCached(t *testing.T) {
	// A search-only run whose vector store was down completes with an
	// empty result and a recorded step error. Caching it would serve the
	// empty answer to every similar prompt.
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	cached := &fakeCache{}
	runner := &fakeRunner{result: &workflow.Result{
		Strategy: agents.StrategySearchOnly,
		Errors:   []string{"documentation search failed: vector store down"},
	}}
	svc := New(embedder, cached, runner, nil)

	resp, err := svc.Execute(context.Background(), ExecuteRequest{Prompt: "how do react hooks work"})
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Empty(t, resp.Result)
	assert.Equal(t, 0, cached.storeCalls)
}

func TestExecuteSearchOnlySuccessIsCached(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	cached := &fakeCache{}
	runner := &fakeRunner{result: &workflow.Result{
		Strategy: agents.StrategySearchOnly,
		DocResults: []agents.DocumentationResult{
			{Content: "hooks run after render", Framework: "React"},
		},
	}}
	svc := New(embedder, cached, runner, nil)

	_, err := svc.Execute(context.Background(), ExecuteRequest{Prompt: "how do react hooks work"})
	require.NoError(t, err)
	assert.Equal(t, 1, cached.storeCalls)
	assert.Contains(t, cached.storedText, "hooks run after render")
}

func TestExecuteSearchOnlyResultText(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	runner := &fakeRunner{result: &workflow.Result{
		Strategy: agents.StrategySearchOnly,
		DocResults: []agents.DocumentationResult{
			{Content: "hooks run after render", Framework: "React", Source: "https://react.dev/reference"},
		},
	}}
	svc := New(embedder, &fakeCache{}, runner, nil)

	resp, err := svc.Execute(context.Background(), ExecuteRequest{Prompt: "how do react hooks work"})
	require.NoError(t, err)
	assert.Contains(t, resp.Result, "[React] hooks run after render")
	assert.Contains(t, resp.Result, "https://react.dev/reference")
}

func TestExecuteEmptyPrompt(t *testing.T) {
	svc := New(nil, nil, &fakeRunner{}, nil)
	_, err := svc.Execute(context.Background(), ExecuteRequest{Prompt: "   "})
	require.Error(t, err)
}

func TestExecuteGeneratesTraceID(t *testing.T) {
	svc := New(nil, nil, &fakeRunner{result: codeResult(true)}, nil)
	resp, err := svc.Execute(context.Background(), ExecuteRequest{Prompt: "prompt"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.TraceID)
}
