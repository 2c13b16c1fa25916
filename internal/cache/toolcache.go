package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/kvstore"
)

// toolTracer for OpenTelemetry instrumentation.
var toolTracer = otel.Tracer("agentd.cache.tool")

// toolKeyPrefix namespaces tool cache keys in the shared key-value store.
const toolKeyPrefix = "tool_cache"

// toolHashLength is the number of hex characters kept from the parameter
// hash. 64 bits of the digest is plenty for a per-tool namespace.
const toolHashLength = 16

// ToolCache memoizes tool invocations by tool name and exact parameters.
//
// Two calls produce the same key iff they have the same tool name and
// semantically equal parameters, regardless of map iteration order. Like
// SemanticCache, backing store failures degrade to misses and skipped
// writes.
type ToolCache struct {
	store   kvstore.Store
	ttl     time.Duration
	logger  *zap.Logger
	metrics *Metrics
}

// NewToolCache creates a tool cache with the given default TTL.
// A zero TTL stores entries without expiry.
func NewToolCache(store kvstore.Store, ttl time.Duration, logger *zap.Logger, metrics *Metrics) *ToolCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolCache{
		store:   store,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// Key derives the deterministic cache key for a tool invocation.
//
// Parameters are serialized to canonical JSON (object keys sorted at
// every nesting level, which encoding/json guarantees for maps), hashed
// with SHA-256, and truncated.
func Key(toolName string, params map[string]any) (string, error) {
	canonical, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("serializing tool parameters: %w", err)
	}
	digest := sha256.Sum256(canonical)
	hash := hex.EncodeToString(digest[:])[:toolHashLength]
	return fmt.Sprintf("%s:%s:%s", toolKeyPrefix, toolName, hash), nil
}

// Get returns the cached result for a tool invocation, or (nil, false)
// on a miss.
func (c *ToolCache) Get(ctx context.Context, toolName string, params map[string]any) (json.RawMessage, bool) {
	ctx, span := toolTracer.Start(ctx, "ToolCache.Get")
	defer span.End()

	key, err := Key(toolName, params)
	if err != nil {
		c.logger.Warn("tool cache key derivation failed", zap.String("tool", toolName), zap.Error(err))
		c.metrics.RecordError(ctx, "tool", "key")
		return nil, false
	}

	value, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			c.logger.Warn("tool cache lookup failed, treating as miss", zap.Error(err))
			c.metrics.RecordError(ctx, "tool", "lookup")
		}
		c.metrics.RecordMiss(ctx, "tool")
		return nil, false
	}

	c.metrics.RecordHit(ctx, "tool")
	c.logger.Debug("tool cache hit", zap.String("tool", toolName), zap.String("key", key))
	return json.RawMessage(value), true
}

// Set caches a tool result. The result must be JSON-serializable.
// Failures are logged and swallowed.
func (c *ToolCache) Set(ctx context.Context, toolName string, params map[string]any, result any) {
	ctx, span := toolTracer.Start(ctx, "ToolCache.Set")
	defer span.End()

	key, err := Key(toolName, params)
	if err != nil {
		c.logger.Warn("tool cache key derivation failed", zap.String("tool", toolName), zap.Error(err))
		c.metrics.RecordError(ctx, "tool", "key")
		return
	}

	value, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("tool cache result not serializable, skipping", zap.String("tool", toolName), zap.Error(err))
		c.metrics.RecordError(ctx, "tool", "store")
		return
	}

	if err := c.store.Put(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("tool cache store failed, skipping", zap.Error(err))
		c.metrics.RecordError(ctx, "tool", "store")
	}
}

// Invalidate removes a cached tool result.
func (c *ToolCache) Invalidate(ctx context.Context, toolName string, params map[string]any) {
	key, err := Key(toolName, params)
	if err != nil {
		return
	}
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Debug("tool cache invalidation failed", zap.Error(err))
	}
}
