package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OpenAIConfig
		wantErr bool
	}{
		{"valid", OpenAIConfig{Model: "gpt-4", APIKey: "sk-test"}, false},
		{"missing model", OpenAIConfig{APIKey: "sk-test"}, true},
		{"missing key", OpenAIConfig{Model: "gpt-4"}, true},
		{"local server without key", OpenAIConfig{Model: "llama3", BaseURL: "http://localhost:8000/v1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNewOpenAIClientDefaults(t *testing.T) {
	c, err := NewOpenAIClient(OpenAIConfig{Model: "gpt-4", APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2000, c.config.MaxTokens)
}

func TestNewOpenAIClientRejectsInvalid(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{}, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
