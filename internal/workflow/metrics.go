package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/agents"
)

const workflowInstrumentationName = "github.com/fyrsmithlabs/agentd/internal/workflow"

// Metrics holds workflow run and iteration counters.
type Metrics struct {
	meter      metric.Meter
	logger     *zap.Logger
	runs       metric.Int64Counter
	iterations metric.Int64Counter
}

// NewMetrics creates a Metrics instance for the workflow orchestrator.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(workflowInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.runs, err = m.meter.Int64Counter(
		"agentd.workflow.runs_total",
		metric.WithDescription("Total workflow runs by strategy and outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		m.logger.Warn("failed to create runs counter", zap.Error(err))
	}

	m.iterations, err = m.meter.Int64Counter(
		"agentd.workflow.iterations_total",
		metric.WithDescription("Total correction-cycle iterations by strategy"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		m.logger.Warn("failed to create iterations counter", zap.Error(err))
	}
}

// RecordRun increments the run counter for a strategy and outcome.
func (m *Metrics) RecordRun(ctx context.Context, strategy agents.RoutingStrategy, outcome string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", string(strategy)),
		attribute.String("outcome", outcome),
	))
}

// RecordIterations adds the correction cycles a run consumed.
func (m *Metrics) RecordIterations(ctx context.Context, strategy agents.RoutingStrategy, count int) {
	if m == nil || m.iterations == nil || count == 0 {
		return
	}
	m.iterations.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("strategy", string(strategy)),
	))
}
