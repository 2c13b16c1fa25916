package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentd/internal/llm"
)

// scriptedLLM returns canned responses in order, then repeats the last.
type scriptedLLM struct {
	responses []llm.Response
	errs      []error
	calls     int
	requests  []llm.Request
}

func (f *scriptedLLM) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	f.requests = append(f.requests, req)
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return llm.Response{}, err
	}
	return f.responses[i], nil
}

func TestSupervisorRoute(t *testing.T) {
	tests := []struct {
		name           string
		classification string
		want           RoutingStrategy
	}{
		{"search only", "SEARCH_ONLY", StrategySearchOnly},
		{"code only", "CODE_ONLY", StrategyCodeOnly},
		{"search then code", "SEARCH_THEN_CODE", StrategySearchThenCode},
		{"spaces instead of underscores", "search then code", StrategySearchThenCode},
		{"embedded in prose", "The strategy is SEARCH_ONLY.", StrategySearchOnly},
		{"unparseable falls back", "I cannot decide", StrategySearchThenCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedLLM{responses: []llm.Response{{Content: tt.classification, TokensUsed: 12}}}
			s := NewSupervisor(client, nil)

			strategy, tokens, err := s.Route(context.Background(), "Create a NestJS controller")
			require.NoError(t, err)
			assert.Equal(t, tt.want, strategy)
			assert.Equal(t, 12, tokens)
		})
	}
}

func TestSupervisorRouteEmptyPrompt(t *testing.T) {
	s := NewSupervisor(&scriptedLLM{}, nil)
	_, _, err := s.Route(context.Background(), "   ")
	require.ErrorIs(t, err, ErrRouting)
}

func TestSupervisorRouteLLMFailure(t *testing.T) {
	client := &scriptedLLM{
		responses: []llm.Response{{}},
		errs:      []error{errors.New("rate limited")},
	}
	s := NewSupervisor(client, nil)

	_, _, err := s.Route(context.Background(), "prompt")
	require.ErrorIs(t, err, ErrRouting)
}

func TestSupervisorUsesZeroTemperature(t *testing.T) {
	client := &scriptedLLM{responses: []llm.Response{{Content: "CODE_ONLY"}}}
	s := NewSupervisor(client, nil)

	_, _, err := s.Route(context.Background(), "prompt")
	require.NoError(t, err)
	require.Len(t, client.requests, 1)
	require.NotNil(t, client.requests[0].Temperature)
	assert.Equal(t, 0.0, *client.requests[0].Temperature)
	assert.Equal(t, 50, client.requests[0].MaxTokens)
}
