/*
PURPOSE:
  Defines the configuration structure and loading logic for Canopy Bench.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Allow configuration of target URL, models, prompts, iterations,
    sampling options, timeouts, and output format.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Configuration problems must be rejected before any trial runs.
    Trial and model failures are data; config failures abort the run.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine
  - Dependencies: gopkg.in/yaml.v3 (standard for Go config)

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Missing config file falls back to defaults (not an error).
  - Validate() collects every run-aborting condition.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults match the documented benchmark defaults (5 iterations,
    temperature 0.7, top-p 0.9, 128 max tokens, 120s timeout).
  - Durations are plain seconds/milliseconds integers in YAML.

USAGE:
  cfg, err := config.Load("canopy.yaml")
  if err := cfg.Validate(); err != nil { ... }

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct, DefaultConfig(),
    Validate(), and Snapshot().

RELATED FILES:
  - internal/cli/run.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daryltucker/canopy-bench/internal/model"
)

// Output format names accepted by the --output flag and the `output`
// config key.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Config represents the full configuration for Canopy Bench.
type Config struct {
	BaseURL string   `yaml:"base_url"`
	Models  []string `yaml:"models"`
	Prompts []string `yaml:"prompts"`

	Iterations  int  `yaml:"iterations"`
	Concurrency int  `yaml:"concurrency"`
	Warmup      bool `yaml:"warmup"`
	Stream      bool `yaml:"stream"`

	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	MaxTokens   int     `yaml:"max_tokens"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxRetries     int `yaml:"max_retries"`
	RetryDelayMs   int `yaml:"retry_delay_ms"`

	Output    string `yaml:"output"`
	Export    string `yaml:"export"`
	TrialsOut string `yaml:"trials_out"`
	Quiet     bool   `yaml:"quiet"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "http://localhost:11434",
		Prompts:        []string{"Write a haiku about benchmarking language models."},
		Iterations:     5,
		Concurrency:    1,
		Warmup:         true,
		Stream:         true,
		Temperature:    0.7,
		TopP:           0.9,
		MaxTokens:      128,
		TimeoutSeconds: 120,
		MaxRetries:     2,
		RetryDelayMs:   500,
		Output:         FormatTable,
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		// Search for defaults
		defaults := []string{"canopy.yaml", "canopy_bench.yaml"}
		found := false
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name // record which file we loaded
				found = true
				break
			}
		}
		if !found {
			// No config file found, return default
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects configurations that must abort the run before any
// trial is issued. Limits mirror the documented CLI contract.
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model must be specified")
	}
	for _, m := range c.Models {
		if err := ValidateModelName(m); err != nil {
			return err
		}
	}
	if len(c.Prompts) == 0 {
		return fmt.Errorf("at least one prompt must be specified")
	}
	for _, p := range c.Prompts {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("prompts must not be empty")
		}
	}
	if c.Iterations < 1 || c.Iterations > 1000 {
		return fmt.Errorf("iterations must be between 1 and 1000, got %d", c.Iterations)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0, got %g", c.Temperature)
	}
	if c.TopP < 0.0 || c.TopP > 1.0 {
		return fmt.Errorf("top-p must be between 0.0 and 1.0, got %g", c.TopP)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 4096 {
		return fmt.Errorf("max tokens must be between 1 and 4096, got %d", c.MaxTokens)
	}
	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout must be greater than 0 seconds")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.RetryDelayMs < 0 {
		return fmt.Errorf("retry delay must not be negative, got %d", c.RetryDelayMs)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base URL must start with http:// or https://, got %q", c.BaseURL)
	}
	switch c.Output {
	case FormatTable, FormatJSON, FormatCSV, FormatMarkdown:
	default:
		return fmt.Errorf("unknown output format %q (want table, json, csv, or markdown)", c.Output)
	}
	return nil
}

// ValidateModelName checks the model identifier charset. Ollama names
// look like "llama3.1:8b"; anything outside alphanumerics plus :-_./
// is almost certainly a typo worth rejecting up front.
func ValidateModelName(name string) error {
	if name == "" {
		return fmt.Errorf("model name must not be empty")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == ':' || r == '-' || r == '_' || r == '.' || r == '/':
		default:
			return fmt.Errorf("invalid model name %q (expected format model:tag, e.g. llama3.1:8b)", name)
		}
	}
	return nil
}

// RequestTimeout is the hard per-request deadline.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay is the fixed pause between retry attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// Options bundles the sampling parameters for the generation request.
func (c *Config) Options() model.GenerationOptions {
	return model.GenerationOptions{
		Temperature: c.Temperature,
		TopP:        c.TopP,
		MaxTokens:   c.MaxTokens,
	}
}

// Snapshot captures the run-relevant configuration for embedding into
// a BenchmarkReport.
func (c *Config) Snapshot() model.RunConfig {
	return model.RunConfig{
		BaseURL:     c.BaseURL,
		Models:      append([]string(nil), c.Models...),
		Prompts:     append([]string(nil), c.Prompts...),
		Iterations:  c.Iterations,
		Concurrency: c.Concurrency,
		Warmup:      c.Warmup,
		Stream:      c.Stream,
		Options:     c.Options(),
		TimeoutSecs: c.TimeoutSeconds,
		MaxRetries:  c.MaxRetries,
	}
}
