package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.2:latest", cfg.LLM.ModelFast)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLM.ModelThinking)
	assert.Equal(t, 0.82, cfg.Guardrail.SemanticThreshold)
	assert.Equal(t, 60, cfg.Memory.RRFConstantK)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath_CreatesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "atlas.yaml")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestLoadFromPath_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "atlas.yaml")

	original := Default()
	original.LLM.Provider = "anthropic"
	original.LLM.ModelStandard = "claude-3-5-haiku-latest"
	original.Guardrail.SemanticThreshold = 0.9
	require.NoError(t, original.SaveToPath(path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", loaded.LLM.Provider)
	assert.Equal(t, 0.9, loaded.Guardrail.SemanticThreshold)
}

func TestLoadFromPath_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "atlas.yaml")

	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("MODEL_FAST", "llama3.3:latest")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "llama3.3:latest", cfg.LLM.ModelFast)
}

func TestValidate_RejectsBadContextBudget(t *testing.T) {
	cfg := Default()
	cfg.Context.Thinking = cfg.Context.Default - 1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangeSemanticThreshold(t *testing.T) {
	cfg := Default()
	cfg.Guardrail.SemanticThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg.Guardrail.SemanticThreshold = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Server.DataDir = dir
	cfg.Memory.DBPath = filepath.Join(dir, "db", "atlas.db")
	cfg.Memory.VectorIndexDir = filepath.Join(dir, "vectors")
	cfg.Logging.File = filepath.Join(dir, "logs", "atlas.log")
	cfg.Guardrail.PatternsPath = filepath.Join(dir, "guardrail", "patterns.yaml")

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, filepath.Join(dir, "db"))
	assert.DirExists(t, filepath.Join(dir, "vectors"))
	assert.DirExists(t, filepath.Join(dir, "logs"))
	assert.DirExists(t, filepath.Join(dir, "guardrail"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "foo"), expandPath("~/foo"))
	assert.Equal(t, "/abs/foo", expandPath("/abs/foo"))
}
