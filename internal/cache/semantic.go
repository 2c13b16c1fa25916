package cache

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/vectorstore"
)

// semanticTracer for OpenTelemetry instrumentation.
var semanticTracer = otel.Tracer("agentd.cache.semantic")

// lookupCandidates is how many nearest neighbors are fetched per lookup.
// Only those at or above the threshold count as hits; fetching a few
// candidates lets the recency tie-break see all equally-scored entries.
const lookupCandidates = 5

// metadata keys for semantic cache entries.
const (
	metaResponse  = "response"
	metaCachedAt  = "cached_at"
	metaExpiresAt = "expires_at"
	metaTraceID   = "trace_id"
)

// ErrInvalidThreshold indicates a similarity threshold outside (0, 1].
var ErrInvalidThreshold = fmt.Errorf("similarity threshold must be in (0, 1]")

// CachedResponse is a semantic cache hit.
type CachedResponse struct {
	// Response is the previously generated answer.
	Response string

	// Query is the original query text the response was cached under.
	Query string

	// Similarity is the cosine similarity between the incoming query and
	// the cached one, in [0, 1].
	Similarity float32

	// CachedAt is when the entry was stored.
	CachedAt time.Time
}

// SemanticCacheConfig holds configuration for the semantic cache.
type SemanticCacheConfig struct {
	// Collection is the vector store collection holding cache entries.
	Collection string

	// Threshold is the minimum cosine similarity for a hit. The bound is
	// closed: a score exactly at the threshold is a hit. Defaults to 0.95,
	// high enough that only near-duplicate phrasings match.
	Threshold float32

	// TTL is how long entries stay valid. Zero means no expiry.
	TTL time.Duration

	// VectorSize is the embedding dimension.
	VectorSize int
}

// SemanticCache caches full workflow responses keyed by query embedding.
//
// All errors from the backing store are absorbed: Lookup reports a miss
// and Store becomes a no-op. The cache must never take down a request
// that would have succeeded without it.
type SemanticCache struct {
	store   vectorstore.Store
	config  SemanticCacheConfig
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewSemanticCache creates a semantic cache on top of a vector store.
func NewSemanticCache(store vectorstore.Store, cfg SemanticCacheConfig, logger *zap.Logger, metrics *Metrics) (*SemanticCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = "semantic_cache"
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.95
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, cfg.Threshold)
	}
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("vector size must be positive, got %d", cfg.VectorSize)
	}

	return &SemanticCache{
		store:   store,
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// EnsureCollection creates the cache collection if missing.
func (c *SemanticCache) EnsureCollection(ctx context.Context) error {
	return c.store.EnsureCollection(ctx, c.config.Collection, c.config.VectorSize)
}

// Lookup returns the cached response for a semantically equivalent query,
// or (nil, false) on a miss. Store failures are logged and reported as
// misses.
func (c *SemanticCache) Lookup(ctx context.Context, embedding []float32) (*CachedResponse, bool) {
	ctx, span := semanticTracer.Start(ctx, "SemanticCache.Lookup")
	defer span.End()

	results, err := c.store.Query(ctx, c.config.Collection, embedding, lookupCandidates, nil)
	if err != nil {
		c.logger.Warn("semantic cache lookup failed, treating as miss", zap.Error(err))
		c.metrics.RecordError(ctx, "semantic", "lookup")
		c.metrics.RecordMiss(ctx, "semantic")
		return nil, false
	}

	now := c.now()
	var expired []string
	candidates := make([]vectorstore.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score < c.config.Threshold {
			continue
		}
		if exp, ok := parseTime(r.Metadata[metaExpiresAt]); ok && !exp.After(now) {
			expired = append(expired, r.ID)
			continue
		}
		candidates = append(candidates, r)
	}

	// Opportunistically drop expired entries. Failure is harmless; they
	// stay filtered on every lookup.
	if len(expired) > 0 {
		if err := c.store.DeleteDocuments(ctx, c.config.Collection, expired); err != nil {
			c.logger.Debug("failed to evict expired cache entries", zap.Error(err))
		}
	}

	if len(candidates) == 0 {
		c.metrics.RecordMiss(ctx, "semantic")
		return nil, false
	}

	// Highest similarity wins; among equal scores the most recent entry.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		ti, _ := parseTime(candidates[i].Metadata[metaCachedAt])
		tj, _ := parseTime(candidates[j].Metadata[metaCachedAt])
		return ti.After(tj)
	})
	best := candidates[0]

	cachedAt, _ := parseTime(best.Metadata[metaCachedAt])
	span.SetAttributes(attribute.Float64("similarity", float64(best.Score)))
	c.metrics.RecordHit(ctx, "semantic")
	c.logger.Debug("semantic cache hit",
		zap.Float32("similarity", best.Score),
		zap.String("cached_query", best.Content),
	)

	return &CachedResponse{
		Response:   best.Metadata[metaResponse],
		Query:      best.Content,
		Similarity: best.Score,
		CachedAt:   cachedAt,
	}, true
}

// Store caches a response under the query's embedding, recording the
// trace id of the request that produced it. Failures are logged and
// swallowed.
func (c *SemanticCache) Store(ctx context.Context, query string, embedding []float32, response, traceID string) {
	ctx, span := semanticTracer.Start(ctx, "SemanticCache.Store")
	defer span.End()

	now := c.now()
	metadata := map[string]string{
		metaResponse: response,
		metaCachedAt: now.UTC().Format(time.RFC3339Nano),
	}
	if traceID != "" {
		metadata[metaTraceID] = traceID
	}
	if c.config.TTL > 0 {
		metadata[metaExpiresAt] = now.Add(c.config.TTL).UTC().Format(time.RFC3339Nano)
	}

	doc := vectorstore.Document{
		ID:        uuid.NewString(),
		Content:   query,
		Embedding: embedding,
		Metadata:  metadata,
	}
	if err := c.store.AddDocuments(ctx, c.config.Collection, []vectorstore.Document{doc}); err != nil {
		c.logger.Warn("semantic cache store failed, skipping", zap.Error(err))
		c.metrics.RecordError(ctx, "semantic", "store")
	}
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
