package cache

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const cacheInstrumentationName = "github.com/fyrsmithlabs/agentd/internal/cache"

// Metrics holds cache hit/miss counters, labeled by cache layer.
type Metrics struct {
	meter  metric.Meter
	logger *zap.Logger
	hits   metric.Int64Counter
	misses metric.Int64Counter
	errors metric.Int64Counter
}

// NewMetrics creates a Metrics instance for the cache layers.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(cacheInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.hits, err = m.meter.Int64Counter(
		"agentd.cache.hits_total",
		metric.WithDescription("Total cache hits by layer (semantic, tool)"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		m.logger.Warn("failed to create hits counter", zap.Error(err))
	}

	m.misses, err = m.meter.Int64Counter(
		"agentd.cache.misses_total",
		metric.WithDescription("Total cache misses by layer (semantic, tool)"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		m.logger.Warn("failed to create misses counter", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"agentd.cache.errors_total",
		metric.WithDescription("Total backing store errors by layer and operation. These surface as misses or skipped writes, never as request failures."),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordHit increments the hit counter for a cache layer.
func (m *Metrics) RecordHit(ctx context.Context, layer string) {
	if m == nil || m.hits == nil {
		return
	}
	m.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}

// RecordMiss increments the miss counter for a cache layer.
func (m *Metrics) RecordMiss(ctx context.Context, layer string) {
	if m == nil || m.misses == nil {
		return
	}
	m.misses.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}

// RecordError increments the error counter for a cache layer and operation.
func (m *Metrics) RecordError(ctx context.Context, layer, operation string) {
	if m == nil || m.errors == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("layer", layer),
		attribute.String("operation", operation),
	))
}
