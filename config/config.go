// Package config provides configuration loading for taskweave hosts.
// Values come from a YAML file overridden by TASKWEAVE_ environment
// variables, on top of hardcoded defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Config is the host configuration for a taskweave pipeline process.
type Config struct {
	Logging  LoggingConfig  `koanf:"logging"`
	Model    ModelConfig    `koanf:"model"`
	Pipeline PipelineConfig `koanf:"pipeline"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or text
}

// ModelConfig selects the inference provider used for selection, termination
// and agent responses.
type ModelConfig struct {
	Provider string `koanf:"provider"` // anthropic, openai or mock
	Name     string `koanf:"name"`     // provider model identifier
}

// PipelineConfig tunes the orchestration core.
type PipelineConfig struct {
	MaxRounds     int           `koanf:"max_rounds"`
	CompactBudget int           `koanf:"compact_budget"`
	PairWindow    int           `koanf:"pair_window"`
	CallTimeout   time.Duration `koanf:"call_timeout"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Model:    ModelConfig{Provider: "mock"},
		Pipeline: PipelineConfig{MaxRounds: 12, CompactBudget: 40, PairWindow: 3, CallTimeout: 60 * time.Second},
	}
}

// Load reads configuration from the given YAML file (if it exists), then
// overrides with TASKWEAVE_ environment variables.
//
// Environment variables use underscore separators and are uppercased after
// the prefix, with the first segment selecting the section:
//
//	TASKWEAVE_LOGGING_LEVEL       -> logging.level
//	TASKWEAVE_MODEL_PROVIDER      -> model.provider
//	TASKWEAVE_PIPELINE_MAX_ROUNDS -> pipeline.max_rounds
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("TASKWEAVE_", ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// transformEnv maps TASKWEAVE_SECTION_FIELD_NAME to section.field_name. The
// first underscore after the prefix separates the section from the field;
// remaining underscores are literal.
func transformEnv(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "TASKWEAVE_"))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "anthropic", "openai", "mock":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Pipeline.MaxRounds <= 0 {
		return fmt.Errorf("pipeline.max_rounds must be positive, got %d", c.Pipeline.MaxRounds)
	}
	if c.Pipeline.CompactBudget <= 0 {
		return fmt.Errorf("pipeline.compact_budget must be positive, got %d", c.Pipeline.CompactBudget)
	}
	return nil
}
