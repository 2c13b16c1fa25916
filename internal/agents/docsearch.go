package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/cache"
	"github.com/fyrsmithlabs/agentd/internal/reranker"
	"github.com/fyrsmithlabs/agentd/internal/vectorstore"
)

var searchTracer = otel.Tracer("agentd.agents.docsearch")

// docSearchTool is the tool name used for cache key derivation.
const docSearchTool = "doc_search"

// ErrInvalidTopK is returned when topK is negative.
var ErrInvalidTopK = fmt.Errorf("topK cannot be negative")

// Embedder is the embedding collaborator the search step needs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DocumentationResult is one retrieved documentation chunk.
type DocumentationResult struct {
	Content   string  `json:"content"`
	Score     float32 `json:"score"`
	Framework string  `json:"framework"`
	Source    string  `json:"source"`
}

// SearchConfig holds configuration for the documentation search step.
type SearchConfig struct {
	// Collection is the vector store collection holding documentation.
	Collection string

	// DefaultTopK is used when the caller passes no explicit topK.
	DefaultTopK int

	// MinScore is the relevance bar below which one refined re-query is
	// attempted. Defaults to 0.7.
	MinScore float32

	// CacheTTL is the tool cache TTL for search results.
	CacheTTL time.Duration
}

// DocumentationSearchStep retrieves documentation chunks by vector
// similarity, re-ranks them, and self-corrects once on low confidence.
//
// The vector store is queried at most twice per invocation: the initial
// search plus at most one refinement.
type DocumentationSearchStep struct {
	embedder  Embedder
	store     vectorstore.Store
	reranker  reranker.Reranker
	toolCache *cache.ToolCache
	config    SearchConfig
	logger    *zap.Logger
}

// NewDocumentationSearchStep wires the search step.
func NewDocumentationSearchStep(
	embedder Embedder,
	store vectorstore.Store,
	rr reranker.Reranker,
	toolCache *cache.ToolCache,
	cfg SearchConfig,
	logger *zap.Logger,
) *DocumentationSearchStep {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = "framework_docs"
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 10
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = 0.7
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &DocumentationSearchStep{
		embedder:  embedder,
		store:     store,
		reranker:  rr,
		toolCache: toolCache,
		config:    cfg,
		logger:    logger,
	}
}

// Search returns the topK most relevant documentation chunks for the
// query, optionally restricted to the given frameworks. A topK of zero
// selects the configured default; only negative values are rejected.
// The refined return value reports whether a low-confidence refinement
// was attempted, even when the re-query itself failed and the original
// results were kept.
//
// An empty result set is valid and is cached like any other, so repeated
// queries with no matches stay cheap within the TTL window.
func (s *DocumentationSearchStep) Search(ctx context.Context, query string, frameworks []string, topK int) ([]DocumentationResult, bool, error) {
	ctx, span := searchTracer.Start(ctx, "DocumentationSearchStep.Search")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, false, fmt.Errorf("query cannot be empty")
	}
	if topK == 0 {
		topK = s.config.DefaultTopK
	}
	if topK < 0 {
		return nil, false, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	span.SetAttributes(
		attribute.Int("top_k", topK),
		attribute.StringSlice("frameworks", frameworks),
	)

	cacheParams := map[string]any{
		"query":      query,
		"frameworks": frameworks,
		"top_k":      topK,
	}
	if raw, ok := s.toolCache.Get(ctx, docSearchTool, cacheParams); ok {
		var cached []DocumentationResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return cached, false, nil
		}
		s.logger.Warn("discarding undecodable tool cache entry", zap.String("tool", docSearchTool))
	}

	results, err := s.queryAndRerank(ctx, query, frameworks, topK)
	if err != nil {
		return nil, false, err
	}

	refined := false
	if maxScore(results) < s.config.MinScore {
		refined = true
		refinedQuery := s.refineQuery(query, results)
		s.logger.Info("low confidence, refining query",
			zap.Float32("max_score", maxScore(results)),
			zap.Float32("min_score", s.config.MinScore),
			zap.String("refined_query", refinedQuery),
		)

		refinedResults, rerr := s.queryAndRerank(ctx, refinedQuery, frameworks, topK)
		if rerr != nil {
			// The original results are still usable; keep them.
			s.logger.Warn("refined query failed, keeping original results", zap.Error(rerr))
		} else if maxScore(refinedResults) > maxScore(results) {
			results = refinedResults
		}
	}

	s.toolCache.Set(ctx, docSearchTool, cacheParams, results)

	span.SetAttributes(
		attribute.Int("result_count", len(results)),
		attribute.Bool("refined", refined),
	)
	return results, refined, nil
}

// queryAndRerank is one embed + vector query + rerank pass. It fetches
// twice topK candidates so the reranker has room to reorder.
func (s *DocumentationSearchStep) queryAndRerank(ctx context.Context, query string, frameworks []string, topK int) ([]DocumentationResult, error) {
	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// A single framework can be pushed down as a store filter. Multiple
	// frameworks are filtered here, since the store filter contract is
	// exact-match per key.
	var filters map[string]string
	if len(frameworks) == 1 {
		filters = map[string]string{"framework": frameworks[0]}
	}

	hits, err := s.store.Query(ctx, s.config.Collection, embedding, topK*2, filters)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	if len(frameworks) > 1 {
		allowed := make(map[string]struct{}, len(frameworks))
		for _, f := range frameworks {
			allowed[f] = struct{}{}
		}
		kept := hits[:0]
		for _, h := range hits {
			if _, ok := allowed[h.Metadata["framework"]]; ok {
				kept = append(kept, h)
			}
		}
		hits = kept
	}

	candidates := make([]reranker.Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = reranker.Candidate{
			ID:       h.ID,
			Content:  h.Content,
			Score:    h.Score,
			Metadata: h.Metadata,
		}
	}

	ranked, err := s.reranker.Rerank(ctx, query, candidates, topK)
	if err != nil {
		return nil, fmt.Errorf("reranking: %w", err)
	}

	results := make([]DocumentationResult, len(ranked))
	for i, r := range ranked {
		results[i] = DocumentationResult{
			Content:   r.Content,
			Score:     r.Relevance,
			Framework: r.Metadata["framework"],
			Source:    r.Metadata["source"],
		}
	}
	return results, nil
}

// refineQuery expands the query with framework names seen in the top
// results, or with generic documentation terms when there is nothing to
// anchor on.
func (s *DocumentationSearchStep) refineQuery(query string, results []DocumentationResult) string {
	seen := make(map[string]struct{})
	var frameworks []string
	for i, r := range results {
		if i >= 3 {
			break
		}
		if r.Framework == "" {
			continue
		}
		if _, dup := seen[r.Framework]; dup {
			continue
		}
		seen[r.Framework] = struct{}{}
		frameworks = append(frameworks, r.Framework)
	}

	if len(frameworks) > 0 {
		return query + " " + strings.Join(frameworks, " ")
	}
	return query + " example code documentation"
}

func maxScore(results []DocumentationResult) float32 {
	var max float32
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}
	return max
}
