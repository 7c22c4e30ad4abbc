package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the diagram service
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Agent   AgentConfig   `yaml:"agent"`
	Diagram DiagramConfig `yaml:"diagram"`
	History HistoryConfig `yaml:"history"`
}

// LogConfig controls the zerolog setup
type LogConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"console"` // console, json
	Output     string `yaml:"output" default:"stdout"`  // stdout, stderr, file
	FilePath   string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/archdiagram.log"`
	TimeFormat string `yaml:"time_format" envconfig:"TIME_FORMAT" default:"rfc3339"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string        `yaml:"addr" default:":8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"5m"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LLMConfig selects and configures the chat model that drives the tools
type LLMConfig struct {
	Provider    string  `yaml:"provider" default:"openai"` // openai, ark, deepseek, ollama
	Model       string  `yaml:"model" default:"gemini-2.0-flash-lite"`
	APIKey      string  `yaml:"api_key" envconfig:"API_KEY"`
	BaseURL     string  `yaml:"base_url" envconfig:"BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	Temperature float64 `yaml:"temperature" default:"0"`
	MaxTokens   int     `yaml:"max_tokens" envconfig:"MAX_TOKENS" default:"2048"`
}

// AgentConfig bounds the tool-calling loop
type AgentConfig struct {
	MaxStep       int           `yaml:"max_step" envconfig:"MAX_STEP" default:"60"`
	Timeout       time.Duration `yaml:"timeout" default:"3m"`
	MaxConcurrent int64         `yaml:"max_concurrent" envconfig:"MAX_CONCURRENT" default:"4"`
}

// DiagramConfig controls where and how diagrams are rendered
type DiagramConfig struct {
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"` // empty means os.TempDir()
	RankDir   string `yaml:"rank_dir" envconfig:"RANK_DIR" default:"LR"`
	FontName  string `yaml:"font_name" envconfig:"FONT_NAME" default:"Helvetica"`
}

// HistoryConfig selects the generation history backend
type HistoryConfig struct {
	Backend    string        `yaml:"backend" default:"memory"` // memory, redis, sqlite
	Capacity   int           `yaml:"capacity" default:"100"`
	RedisURL   string        `yaml:"redis_url" envconfig:"REDIS_URL"`
	SQLitePath string        `yaml:"sqlite_path" envconfig:"SQLITE_PATH" default:"data/history.db"`
	TTL        time.Duration `yaml:"ttl" default:"24h"`
}

// Load reads .env (when present), the environment and an optional YAML file.
// Values from the YAML file override environment values.
func Load(yamlPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	if yamlPath != "" {
		if err := loadYAML(yamlPath, &config); err != nil {
			return nil, err
		}
	}

	applyFallbacks(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func loadYAML(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("error parsing YAML: %w", err)
	}
	return nil
}

// applyFallbacks fills values from the legacy variable names
func applyFallbacks(config *Config) {
	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if config.History.RedisURL == "" {
		config.History.RedisURL = os.Getenv("REDIS_URL")
	}
}

// Validate checks the values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "ark", "deepseek", "ollama":
	default:
		return fmt.Errorf("unsupported LLM provider %q", c.LLM.Provider)
	}

	switch c.History.Backend {
	case "memory", "sqlite":
	case "redis":
		if c.History.RedisURL == "" {
			return fmt.Errorf("HISTORY_REDIS_URL or REDIS_URL is required for the redis history backend")
		}
	default:
		return fmt.Errorf("unsupported history backend %q", c.History.Backend)
	}

	if c.Agent.MaxStep <= 0 {
		return fmt.Errorf("agent max step must be positive, got %d", c.Agent.MaxStep)
	}
	if c.Agent.MaxConcurrent <= 0 {
		return fmt.Errorf("agent max concurrent must be positive, got %d", c.Agent.MaxConcurrent)
	}
	return nil
}
