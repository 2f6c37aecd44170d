package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "PAPERFORGE_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	openAIAPIKeyEnv  = "OPENAI_API_KEY"
	openAIModelEnv   = "OPENAI_MODEL"
	openAIBaseURLEnv = "OPENAI_BASE_URL"
	mineruTokenEnv   = "MINERU_API_TOKEN"
	outputDirEnv     = "PAPERFORGE_OUTPUT_DIR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Generation GenerationConfig `yaml:"generation"`
	Converter  ConverterConfig  `yaml:"converter"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the optional Postgres run-history connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// GenerationConfig defines how to contact the language-model service.
type GenerationConfig struct {
	BaseURL     string        `yaml:"baseUrl"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"apiKey"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"maxRetries"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
}

// ConverterConfig wires the remote document-conversion service.
type ConverterConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Token        string        `yaml:"token"`
	PollInterval time.Duration `yaml:"pollInterval"`
	PollCeiling  time.Duration `yaml:"pollCeiling"`
}

// PipelineConfig bounds the orchestrator and the repair loop. All values are
// read once at run start; mid-run changes are not supported.
type PipelineConfig struct {
	MaxRepairAttempts int    `yaml:"maxRepairAttempts"`
	Concurrency       int    `yaml:"concurrency"`
	OutputDir         string `yaml:"outputDir"`
	StructureBudget   int    `yaml:"structureBudget"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyBounds()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.Generation.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.Generation.Model = v
	}

	if v := os.Getenv(openAIBaseURLEnv); v != "" {
		c.Generation.BaseURL = v
	}

	if v := os.Getenv(mineruTokenEnv); v != "" {
		c.Converter.Token = v
	}

	if v := os.Getenv(outputDirEnv); v != "" {
		c.Pipeline.OutputDir = v
	}
}

func (c *Config) applyBounds() {
	if c.Pipeline.MaxRepairAttempts < 1 {
		c.Pipeline.MaxRepairAttempts = defaultConfig().Pipeline.MaxRepairAttempts
	}
	if c.Pipeline.Concurrency < 1 {
		c.Pipeline.Concurrency = 1
	}
	if c.Pipeline.StructureBudget < 1 {
		c.Pipeline.StructureBudget = defaultConfig().Pipeline.StructureBudget
	}
	if c.Generation.MaxRetries < 1 {
		c.Generation.MaxRetries = 1
	}
	if c.Converter.PollInterval <= 0 {
		c.Converter.PollInterval = defaultConfig().Converter.PollInterval
	}
	if c.Converter.PollCeiling <= 0 {
		c.Converter.PollCeiling = defaultConfig().Converter.PollCeiling
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Generation.BaseURL != "" {
		base.Generation.BaseURL = override.Generation.BaseURL
	}
	if override.Generation.Model != "" {
		base.Generation.Model = override.Generation.Model
	}
	if override.Generation.APIKey != "" {
		base.Generation.APIKey = override.Generation.APIKey
	}
	if override.Generation.Timeout > 0 {
		base.Generation.Timeout = override.Generation.Timeout
	}
	if override.Generation.MaxRetries > 0 {
		base.Generation.MaxRetries = override.Generation.MaxRetries
	}
	if override.Generation.Temperature > 0 {
		base.Generation.Temperature = override.Generation.Temperature
	}
	if override.Generation.MaxTokens > 0 {
		base.Generation.MaxTokens = override.Generation.MaxTokens
	}

	if override.Converter.Endpoint != "" {
		base.Converter.Endpoint = override.Converter.Endpoint
	}
	if override.Converter.Token != "" {
		base.Converter.Token = override.Converter.Token
	}
	if override.Converter.PollInterval > 0 {
		base.Converter.PollInterval = override.Converter.PollInterval
	}
	if override.Converter.PollCeiling > 0 {
		base.Converter.PollCeiling = override.Converter.PollCeiling
	}

	if override.Pipeline.MaxRepairAttempts > 0 {
		base.Pipeline.MaxRepairAttempts = override.Pipeline.MaxRepairAttempts
	}
	if override.Pipeline.Concurrency > 0 {
		base.Pipeline.Concurrency = override.Pipeline.Concurrency
	}
	if override.Pipeline.OutputDir != "" {
		base.Pipeline.OutputDir = override.Pipeline.OutputDir
	}
	if override.Pipeline.StructureBudget > 0 {
		base.Pipeline.StructureBudget = override.Pipeline.StructureBudget
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{DSN: ""},
		Generation: GenerationConfig{
			BaseURL:     "",
			Model:       "gpt-4o-mini",
			APIKey:      "",
			Timeout:     5 * time.Minute,
			MaxRetries:  3,
			Temperature: 1,
			MaxTokens:   0,
		},
		Converter: ConverterConfig{
			Endpoint:     "https://mineru.net/api/v4",
			Token:        "",
			PollInterval: 5 * time.Second,
			PollCeiling:  5 * time.Minute,
		},
		Pipeline: PipelineConfig{
			MaxRepairAttempts: 5,
			Concurrency:       4,
			OutputDir:         "output",
			StructureBudget:   15000,
		},
	}
}
