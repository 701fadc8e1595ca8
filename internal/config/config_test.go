package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "GEMINI_API_KEY", "SWARMCAP_MODEL", "SWARMCAP_WORKSPACE", "SWARMCAP_TRACE_EXPORTER"} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "swarmcap" {
		t.Errorf("expected Name=swarmcap, got %s", cfg.Name)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected Provider=openai, got %s", cfg.LLM.Provider)
	}
	if cfg.GetRetryBackoff() != 10*time.Second {
		t.Errorf("expected 10s retry backoff, got %v", cfg.GetRetryBackoff())
	}
	if !cfg.Synthesis.MaintainSession || !cfg.Synthesis.IncludeContext {
		t.Error("expected session continuation and context inclusion on by default")
	}
}

func TestDefaultConfig_AllowListIsCopied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Synthesis.AllowedPackages[0] = "os"
	assert.Equal(t, "strings", DefaultAllowedPackages[0])
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "swarmcap.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "gemini"
	cfg.LLM.APIKey = "g-test"
	cfg.LLM.Model = "gemini-2.5-flash"
	cfg.Batch.Workers = 4

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", loaded.LLM.Provider)
	assert.Equal(t, "g-test", loaded.LLM.APIKey)
	assert.Equal(t, "gemini-2.5-flash", loaded.LLM.Model)
	assert.Equal(t, 4, loaded.Batch.Workers)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().LLM.Model, cfg.LLM.Model)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("OPENAI_API_KEY sets key", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, "openai", cfg.LLM.Provider)
	})

	t.Run("GEMINI_API_KEY fills an empty key", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "g-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "g-key", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})

	t.Run("GEMINI_API_KEY does not displace a configured openai key", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GEMINI_API_KEY", "g-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, "openai", cfg.LLM.Provider)
	})

	t.Run("workspace override moves the ledger", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SWARMCAP_WORKSPACE", "/tmp/ws")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/ws", cfg.Workspace.Root)
		assert.Equal(t, filepath.Join("/tmp/ws", "runs.db"), cfg.Workspace.LedgerPath)
	})

	t.Run("trace exporter", func(t *testing.T) {
		clearEnv(t)
		cfg := DefaultConfig()
		assert.Equal(t, "none", cfg.Tracing.Exporter)

		t.Setenv("SWARMCAP_TRACE_EXPORTER", "stdout")
		cfg.applyEnvOverrides()
		assert.Equal(t, "stdout", cfg.Tracing.Exporter)
	})
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 120*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 10*time.Second, cfg.GetRetryBackoff())
	assert.Equal(t, 30*time.Minute, cfg.GetBatchTimeout())

	cfg.LLM.RetryBackoff = "250ms"
	assert.Equal(t, 250*time.Millisecond, cfg.GetRetryBackoff())
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	// Default has no API key
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing API key")
	}

	cfg.LLM.APIKey = "sk-test"
	require.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "anthropic"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LLM.Provider = "scripted"
	require.NoError(t, cfg.Validate(), "scripted provider needs no key")

	cfg.Workspace.LedgerDriver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LLM.Provider = "scripted"
	cfg.Batch.Workers = 0
	assert.Error(t, cfg.Validate())
}
