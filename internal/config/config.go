package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all swarmcap configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Completion backend
	LLM LLMConfig `yaml:"llm"`

	// Recursive function synthesis
	Synthesis SynthesisConfig `yaml:"synthesis"`

	// Artifact workspace and run ledger
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Batch fan-out
	Batch BatchConfig `yaml:"batch"`

	// Mock world backing the capability bindings
	Simulation SimulationConfig `yaml:"simulation"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// OpenTelemetry span export
	Tracing TracingConfig `yaml:"tracing"`
}

// LLMConfig configures the completion backend.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini, scripted
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	// Temperature for the top-level controller prompt.
	Temperature float64 `yaml:"temperature"`

	// Temperature for helper function synthesis.
	FunctionTemperature float64 `yaml:"function_temperature"`

	// Fixed sleep between retries on rate limit / connectivity errors.
	RetryBackoff string `yaml:"retry_backoff"`

	// Replies served by the scripted provider, in order.
	ScriptedReplies []string `yaml:"scripted_replies,omitempty"`
}

// SynthesisConfig configures the recursive synthesis engine.
type SynthesisConfig struct {
	// Maximum recursion depth (0 = unlimited).
	MaxDepth int `yaml:"max_depth"`

	// Stdlib packages generated code may import.
	AllowedPackages []string `yaml:"allowed_packages"`

	// Feed the accumulated execution history into later prompts.
	MaintainSession bool `yaml:"maintain_session"`

	// Record the caller-supplied context alongside generated code in history.
	IncludeContext bool `yaml:"include_context"`
}

// WorkspaceConfig configures where artifacts and run records are written.
type WorkspaceConfig struct {
	Root         string `yaml:"root"`
	LedgerPath   string `yaml:"ledger_path"`
	LedgerDriver string `yaml:"ledger_driver"` // sqlite (modernc), sqlite3 (cgo)
}

// BatchConfig configures concurrent fan-out of independent runs.
type BatchConfig struct {
	Workers int    `yaml:"workers"`
	Repeat  int    `yaml:"repeat"`
	Timeout string `yaml:"timeout"`
	LogDir  string `yaml:"log_dir"`
}

// SimulationConfig configures the mock world.
type SimulationConfig struct {
	Robots    int     `yaml:"robots"`
	Obstacles int     `yaml:"obstacles"`
	Seed      int64   `yaml:"seed"`
	Extent    float64 `yaml:"extent"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// TracingConfig selects where synthesis spans are exported.
type TracingConfig struct {
	Exporter string `yaml:"exporter"` // none, stdout, otlphttp
	Endpoint string `yaml:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`
}

// DefaultAllowedPackages is the stdlib allow-list for generated code.
var DefaultAllowedPackages = []string{
	"strings",
	"strconv",
	"fmt",
	"math",
	"math/rand",
	"sort",
	"time",
	"errors",
	"bytes",
	"unicode",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "swarmcap",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider:            "openai",
			Model:               "gpt-4o",
			BaseURL:             "https://api.openai.com/v1",
			Timeout:             "120s",
			Temperature:         1.0,
			FunctionTemperature: 0.0,
			RetryBackoff:        "10s",
		},

		Synthesis: SynthesisConfig{
			MaxDepth:        16,
			AllowedPackages: append([]string(nil), DefaultAllowedPackages...),
			MaintainSession: true,
			IncludeContext:  true,
		},

		Workspace: WorkspaceConfig{
			Root:         "workspace",
			LedgerPath:   "workspace/runs.db",
			LedgerDriver: "sqlite",
		},

		Batch: BatchConfig{
			Workers: 30,
			Repeat:  1,
			Timeout: "30m",
			LogDir:  "logs",
		},

		Simulation: SimulationConfig{
			Robots:    6,
			Obstacles: 3,
			Seed:      1,
			Extent:    2.5,
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},

		Tracing: TracingConfig{
			Exporter: "none",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults plus environment when there is no file
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	// Gemini wins when both keys are present only if it is the configured provider
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if c.LLM.Provider == "gemini" || c.LLM.APIKey == "" {
			c.LLM.APIKey = key
			c.LLM.Provider = "gemini"
		}
	}
	if model := os.Getenv("SWARMCAP_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if exp := os.Getenv("SWARMCAP_TRACE_EXPORTER"); exp != "" {
		c.Tracing.Exporter = exp
	}
	if ws := os.Getenv("SWARMCAP_WORKSPACE"); ws != "" {
		c.Workspace.Root = ws
		c.Workspace.LedgerPath = filepath.Join(ws, "runs.db")
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetRetryBackoff returns the transient-error backoff as a duration.
func (c *Config) GetRetryBackoff() time.Duration {
	d, err := time.ParseDuration(c.LLM.RetryBackoff)
	if err != nil || d < 0 {
		return 10 * time.Second
	}
	return d
}

// GetBatchTimeout returns the per-run timeout used by the batch runner.
func (c *Config) GetBatchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Batch.Timeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// ValidProviders lists all supported completion providers.
var ValidProviders = []string{"openai", "gemini", "scripted"}

// ValidLedgerDrivers lists the database/sql drivers the run ledger accepts.
var ValidLedgerDrivers = []string{"sqlite", "sqlite3"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.LLM.Provider != "scripted" && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY or GEMINI_API_KEY)")
	}
	if c.LLM.Model == "" && c.LLM.Provider != "scripted" {
		return fmt.Errorf("LLM model not configured")
	}

	if c.Synthesis.MaxDepth < 0 {
		return fmt.Errorf("synthesis.max_depth must be >= 0, got %d", c.Synthesis.MaxDepth)
	}

	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root must be set")
	}
	if c.Workspace.LedgerPath != "" {
		validDriver := false
		for _, d := range ValidLedgerDrivers {
			if c.Workspace.LedgerDriver == d {
				validDriver = true
				break
			}
		}
		if !validDriver {
			return fmt.Errorf("invalid ledger driver: %s (valid: %v)", c.Workspace.LedgerDriver, ValidLedgerDrivers)
		}
	}

	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be >= 1, got %d", c.Batch.Workers)
	}

	return nil
}
