package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "agentd", cfg.Observability.ServiceName)
	assert.Equal(t, "gpt-4", cfg.LLM.Model)
	assert.Equal(t, 0.95, cfg.Cache.SemanticThreshold)
	assert.Equal(t, time.Hour, cfg.Cache.SemanticTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.ToolTTL)
	assert.Equal(t, 3, cfg.Workflow.MaxIterations)
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, 0.7, cfg.Search.MinScore)
	assert.Equal(t, 2, cfg.CodeGen.MaxRetries)
	assert.Equal(t, 384, cfg.VectorStore.VectorSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
		{
			name:    "unknown vector store provider",
			mutate:  func(c *Config) { c.VectorStore.Provider = "pinecone" },
			wantErr: true,
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.Cache.SemanticThreshold = 1.5 },
			wantErr: true,
		},
		{
			name:    "zero iterations",
			mutate:  func(c *Config) { c.Workflow.MaxIterations = 0 },
			wantErr: true,
		},
		{
			name:    "negative top_k",
			mutate:  func(c *Config) { c.Search.TopK = -1 },
			wantErr: true,
		},
		{
			name:    "negative codegen retries",
			mutate:  func(c *Config) { c.CodeGen.MaxRetries = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 8080
cache:
  semantic_threshold: 0.9
  tool_ttl: 10m
workflow:
  max_iterations: 5
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.9, cfg.Cache.SemanticThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Cache.ToolTTL)
	assert.Equal(t, 5, cfg.Workflow.MaxIterations)
	// Untouched sections keep defaults.
	assert.Equal(t, "gpt-4", cfg.LLM.Model)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SEARCH_TOP_K", "25")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Search.TopK)
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	big := make([]byte, maxConfigFileSize+1)
	require.NoError(t, os.WriteFile(path, big, 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/data/store")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data", "store"), got)

	got, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}
