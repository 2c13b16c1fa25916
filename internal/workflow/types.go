// Package workflow drives one agent request through routing,
// documentation search, code generation, and syntax validation, with a
// bounded correction loop between validation and search.
package workflow

import (
	"time"

	"github.com/fyrsmithlabs/agentd/internal/agents"
)

// State names the phase a workflow is currently in.
type State string

const (
	StateRouting    State = "ROUTING"
	StateSearching  State = "SEARCHING"
	StateGenerating State = "GENERATING"
	StateValidating State = "VALIDATING"
	StateDone       State = "DONE"
)

// DefaultMaxIterations bounds the search-generate-validate cycle.
const DefaultMaxIterations = 3

// WorkflowState is the per-request state threaded through the phases.
// One instance per request, never shared across requests.
type WorkflowState struct {
	Prompt        string
	TraceID       string
	Framework     string
	State         State
	Strategy      agents.RoutingStrategy
	DocResults    []agents.DocumentationResult
	GeneratedCode *agents.CodeGenerationResult

	// IterationCount is how many correction cycles have run. It never
	// exceeds MaxIterations.
	IterationCount int
	MaxIterations  int

	Errors     []string
	Steps      []string
	TokensUsed int
}

// NewWorkflowState creates the state for one request. maxIterations
// values below one fall back to DefaultMaxIterations.
func NewWorkflowState(prompt, traceID, framework string, maxIterations int) *WorkflowState {
	if maxIterations < 1 {
		maxIterations = DefaultMaxIterations
	}
	return &WorkflowState{
		Prompt:        prompt,
		TraceID:       traceID,
		Framework:     framework,
		State:         StateRouting,
		MaxIterations: maxIterations,
	}
}

// Result is the assembled outcome of a completed workflow run.
type Result struct {
	TraceID        string                       `json:"trace_id"`
	Strategy       agents.RoutingStrategy       `json:"strategy"`
	DocResults     []agents.DocumentationResult `json:"doc_results,omitempty"`
	Code           *agents.CodeGenerationResult `json:"code,omitempty"`
	IterationCount int                          `json:"iteration_count"`
	TokensUsed     int                          `json:"tokens_used"`
	Steps          []string                     `json:"steps"`
	Errors         []string                     `json:"errors,omitempty"`
	Elapsed        time.Duration                `json:"elapsed"`
}

// Valid reports whether the run produced syntactically valid code, or,
// for search-only runs, completed without step errors.
func (r *Result) Valid() bool {
	if r.Code != nil {
		return r.Code.Valid
	}
	return len(r.Errors) == 0
}
