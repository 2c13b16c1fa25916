// Package service is the request entry point: it fronts the workflow
// orchestrator with the semantic response cache.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/agents"
	"github.com/fyrsmithlabs/agentd/internal/cache"
	"github.com/fyrsmithlabs/agentd/internal/workflow"
)

var tracer = otel.Tracer("agentd.service")

// Embedder produces the prompt embedding used for semantic cache keys.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ResponseCache is the semantic cache surface the service needs.
type ResponseCache interface {
	Lookup(ctx context.Context, embedding []float32) (*cache.CachedResponse, bool)
	Store(ctx context.Context, query string, embedding []float32, response, traceID string)
}

// Runner executes the agent workflow for one request.
type Runner interface {
	Run(ctx context.Context, prompt, traceID, framework string, maxIterations int) (*workflow.Result, error)
}

// ExecuteRequest is one agent invocation.
type ExecuteRequest struct {
	Prompt        string `json:"prompt"`
	TraceID       string `json:"trace_id,omitempty"`
	Framework     string `json:"framework,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// Response is the assembled agent answer.
type Response struct {
	TraceID        string                       `json:"trace_id"`
	Result         string                       `json:"result"`
	CacheHit       bool                         `json:"cache_hit"`
	Strategy       agents.RoutingStrategy       `json:"strategy,omitempty"`
	Code           *agents.CodeGenerationResult `json:"code,omitempty"`
	DocResults     []agents.DocumentationResult `json:"doc_results,omitempty"`
	Errors         []string                     `json:"errors,omitempty"`
	IterationCount int                          `json:"iteration_count"`
	TokensUsed     int                          `json:"tokens_used"`
	Steps          []string                     `json:"steps,omitempty"`
	Elapsed        time.Duration                `json:"elapsed"`
}

// Service executes agent requests behind the semantic cache. A nil
// responseCache disables semantic caching entirely; every cache failure
// degrades the same way, to a compute-through request.
type Service struct {
	embedder Embedder
	cache    ResponseCache
	runner   Runner
	logger   *zap.Logger
}

// New wires the service. embedder may be nil only when responseCache is
// nil too.
func New(embedder Embedder, responseCache ResponseCache, runner Runner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder: embedder,
		cache:    responseCache,
		runner:   runner,
		logger:   logger,
	}
}

// Execute answers one prompt. The semantic cache is consulted first; a
// hit skips the workflow entirely. Completed runs, valid or
// iteration-exhausted, are written back to the cache. Runs that fail
// with a structured error (routing failure, timeout) and runs degraded
// by step failures are never cached.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (*Response, error) {
	ctx, span := tracer.Start(ctx, "Service.Execute")
	defer span.End()

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty")
	}
	if req.TraceID == "" {
		req.TraceID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("trace_id", req.TraceID))
	logger := s.logger.With(zap.String("trace_id", req.TraceID))
	start := time.Now()

	// Embedding failure degrades to compute-through: the request still
	// runs, it just bypasses the cache on both sides.
	var embedding []float32
	if s.cache != nil && s.embedder != nil {
		emb, err := s.embedder.EmbedQuery(ctx, req.Prompt)
		if err != nil {
			logger.Warn("prompt embedding failed, bypassing semantic cache", zap.Error(err))
		} else {
			embedding = emb
			if hit, ok := s.cache.Lookup(ctx, embedding); ok {
				logger.Info("semantic cache hit",
					zap.Float32("similarity", hit.Similarity),
					zap.Time("cached_at", hit.CachedAt),
				)
				return &Response{
					TraceID:  req.TraceID,
					Result:   hit.Response,
					CacheHit: true,
					Elapsed:  time.Since(start),
				}, nil
			}
		}
	}

	result, err := s.runner.Run(ctx, req.Prompt, req.TraceID, req.Framework, req.MaxIterations)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		TraceID:        req.TraceID,
		Result:         resultText(result),
		Strategy:       result.Strategy,
		Code:           result.Code,
		DocResults:     result.DocResults,
		Errors:         result.Errors,
		IterationCount: result.IterationCount,
		TokensUsed:     result.TokensUsed,
		Steps:          result.Steps,
	}

	if embedding != nil && ctx.Err() == nil && cacheable(result) {
		s.cache.Store(ctx, req.Prompt, embedding, resp.Result, req.TraceID)
	}

	resp.Elapsed = time.Since(start)
	return resp, nil
}

// cacheable reports whether a run produced an answer worth writing back.
// Runs that reached generation always are, even iteration-exhausted ones;
// search-only runs only when they retrieved documentation without step
// errors. A degraded run (vector store down, empty result text) must not
// poison the cache with an empty answer.
func cacheable(result *workflow.Result) bool {
	if result.Code != nil {
		return true
	}
	return len(result.Errors) == 0 && len(result.DocResults) > 0
}

// resultText flattens a workflow result into the cacheable answer text:
// the generated code when there is one, otherwise the retrieved
// documentation.
func resultText(result *workflow.Result) string {
	if result.Code != nil {
		return result.Code.Code
	}
	if len(result.DocResults) == 0 {
		return ""
	}
	var b strings.Builder
	for i, doc := range result.DocResults {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if doc.Framework != "" {
			fmt.Fprintf(&b, "[%s] ", doc.Framework)
		}
		b.WriteString(doc.Content)
		if doc.Source != "" {
			fmt.Fprintf(&b, "\n(source: %s)", doc.Source)
		}
	}
	return b.String()
}
