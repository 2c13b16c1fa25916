package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentd/internal/cache"
	"github.com/fyrsmithlabs/agentd/internal/kvstore"
	"github.com/fyrsmithlabs/agentd/internal/reranker"
	"github.com/fyrsmithlabs/agentd/internal/vectorstore"
)

// fakeEmbedder returns a fixed vector and records calls.
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

// countingStore wraps scripted query results and counts Query calls.
// When err is set it fails every call, or only the errOnCall-th one
// (1-based) when that is non-zero.
type countingStore struct {
	results    [][]vectorstore.SearchResult
	queryCalls int
	topKs      []int
	err        error
	errOnCall  int
}

func (s *countingStore) EnsureCollection(context.Context, string, int) error { return nil }
func (s *countingStore) AddDocuments(context.Context, string, []vectorstore.Document) error {
	return nil
}
func (s *countingStore) Query(_ context.Context, _ string, _ []float32, topK int, _ map[string]string) ([]vectorstore.SearchResult, error) {
	i := s.queryCalls
	s.queryCalls++
	s.topKs = append(s.topKs, topK)
	if s.err != nil && (s.errOnCall == 0 || s.queryCalls == s.errOnCall) {
		return nil, s.err
	}
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i], nil
}
func (s *countingStore) DeleteDocuments(context.Context, string, []string) error { return nil }
func (s *countingStore) Close() error                                            { return nil }

func newSearchStep(t *testing.T, store vectorstore.Store, cfg SearchConfig) *DocumentationSearchStep {
	t.Helper()
	toolCache := cache.NewToolCache(kvstore.NewMemoryStore(), time.Minute, nil, cache.NewMetrics(nil))
	return NewDocumentationSearchStep(
		&fakeEmbedder{vector: []float32{1, 0, 0, 0}},
		store,
		reranker.NewLexicalReranker(),
		toolCache,
		cfg,
		nil,
	)
}

func docHit(id, content, framework string, score float32) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		ID:      id,
		Content: content,
		Score:   score,
		Metadata: map[string]string{
			"framework": framework,
			"source":    "https://docs.example.com/" + id,
		},
	}
}

func TestSearchHighConfidenceNoRefinement(t *testing.T) {
	store := &countingStore{results: [][]vectorstore.SearchResult{{
		docHit("a", "nestjs controller decorators routing", "NestJS", 0.9),
		docHit("b", "nestjs providers", "NestJS", 0.8),
	}}}
	step := newSearchStep(t, store, SearchConfig{})

	results, refined, err := step.Search(context.Background(), "nestjs controller routing", nil, 5)
	require.NoError(t, err)
	assert.False(t, refined)
	assert.Equal(t, 1, store.queryCalls)
	require.NotEmpty(t, results)
	assert.Equal(t, "NestJS", results[0].Framework)
	assert.NotEmpty(t, results[0].Source)
}

func TestSearchLowConfidenceRefinesOnce(t *testing.T) {
	store := &countingStore{results: [][]vectorstore.SearchResult{
		{docHit("weak", "unrelated content entirely", "React", 0.3)},
		{docHit("better", "react hooks useEffect guide", "React", 0.8)},
	}}
	step := newSearchStep(t, store, SearchConfig{MinScore: 0.7})

	results, refined, err := step.Search(context.Background(), "react hooks useEffect", nil, 5)
	require.NoError(t, err)
	assert.True(t, refined)

	// Self-correction single-shot: the vector store is queried at most
	// twice per invocation.
	assert.Equal(t, 2, store.queryCalls)
	require.NotEmpty(t, results)
	// The refined set won on score.
	assert.Equal(t, "react hooks useEffect guide", results[0].Content)
}

func TestSearchRefinementFailureKeepsOriginal(t *testing.T) {
	// The refinement re-query fails; the attempt is still reported and
	// the original results survive.
	store := &countingStore{
		results:   [][]vectorstore.SearchResult{{docHit("weak", "unrelated content entirely", "React", 0.3)}},
		err:       errors.New("store down"),
		errOnCall: 2,
	}
	step := newSearchStep(t, store, SearchConfig{MinScore: 0.7})

	results, refined, err := step.Search(context.Background(), "react hooks useEffect", nil, 5)
	require.NoError(t, err)
	assert.True(t, refined)
	assert.Equal(t, 2, store.queryCalls)
	require.NotEmpty(t, results)
	assert.Equal(t, "unrelated content entirely", results[0].Content)
}

func TestSearchRefinementKeepsOriginalWhenWorse(t *testing.T) {
	store := &countingStore{results: [][]vectorstore.SearchResult{
		{docHit("orig", "somewhat related doc", "React", 0.5)},
		{docHit("worse", "even less related", "React", 0.2)},
	}}
	step := newSearchStep(t, store, SearchConfig{MinScore: 0.9})

	results, refined, err := step.Search(context.Background(), "zzz qqq xxx", nil, 5)
	require.NoError(t, err)
	assert.True(t, refined)
	assert.Equal(t, 2, store.queryCalls)
	require.NotEmpty(t, results)
	assert.Equal(t, "somewhat related doc", results[0].Content)
}

func TestSearchCacheHitSkipsStore(t *testing.T) {
	store := &countingStore{results: [][]vectorstore.SearchResult{{
		docHit("a", "nestjs controller decorators", "NestJS", 0.9),
	}}}
	step := newSearchStep(t, store, SearchConfig{})

	_, _, err := step.Search(context.Background(), "nestjs controller", nil, 5)
	require.NoError(t, err)
	require.Equal(t, 1, store.queryCalls)

	// Second identical call is served from the tool cache.
	results, refined, err := step.Search(context.Background(), "nestjs controller", nil, 5)
	require.NoError(t, err)
	assert.False(t, refined)
	assert.Equal(t, 1, store.queryCalls)
	assert.NotEmpty(t, results)
}

func TestSearchEmptyResultsAreCached(t *testing.T) {
	store := &countingStore{results: [][]vectorstore.SearchResult{{}, {}}}
	step := newSearchStep(t, store, SearchConfig{})

	results, _, err := step.Search(context.Background(), "no matches anywhere", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	firstCalls := store.queryCalls

	// Empty result set is valid and cached: no further store queries.
	results, refined, err := step.Search(context.Background(), "no matches anywhere", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, refined)
	assert.Equal(t, firstCalls, store.queryCalls)
}

func TestSearchRejectsNegativeTopK(t *testing.T) {
	step := newSearchStep(t, &countingStore{results: [][]vectorstore.SearchResult{{}}}, SearchConfig{})
	_, _, err := step.Search(context.Background(), "query", nil, -1)
	require.ErrorIs(t, err, ErrInvalidTopK)
}

func TestSearchZeroTopKUsesDefault(t *testing.T) {
	store := &countingStore{results: [][]vectorstore.SearchResult{{
		docHit("a", "nestjs controller decorators routing", "NestJS", 0.9),
	}}}
	step := newSearchStep(t, store, SearchConfig{DefaultTopK: 7})

	_, _, err := step.Search(context.Background(), "nestjs controller", nil, 0)
	require.NoError(t, err)
	// The store is asked for twice the effective topK so the reranker
	// has candidates to reorder.
	require.Len(t, store.topKs, 1)
	assert.Equal(t, 14, store.topKs[0])
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	step := newSearchStep(t, &countingStore{results: [][]vectorstore.SearchResult{{}}}, SearchConfig{})
	_, _, err := step.Search(context.Background(), "  ", nil, 5)
	require.Error(t, err)
}

func TestSearchMultiFrameworkFilter(t *testing.T) {
	store := &countingStore{results: [][]vectorstore.SearchResult{{
		docHit("r", "react hooks guide", "React", 0.9),
		docHit("d", "django orm guide", "Django", 0.85),
		docHit("n", "nestjs controllers", "NestJS", 0.8),
	}}}
	step := newSearchStep(t, store, SearchConfig{MinScore: 0.1})

	results, _, err := step.Search(context.Background(), "guide", []string{"React", "Django"}, 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.Contains(t, []string{"React", "Django"}, r.Framework)
	}
	require.Len(t, results, 2)
}

func TestSearchVectorStoreFailure(t *testing.T) {
	store := &countingStore{err: errors.New("store down")}
	step := newSearchStep(t, store, SearchConfig{})

	_, _, err := step.Search(context.Background(), "query", nil, 5)
	require.Error(t, err)
}
