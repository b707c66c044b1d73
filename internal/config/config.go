// Package config loads and validates the drover configuration from
// defaults, an optional YAML file and DROVER_* environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// DROVER_LLM_API_KEY maps to llm.api_key.
const EnvPrefix = "DROVER"

// Config is the root configuration object.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
}

// LoggerConfig controls the zap logger and its file rotation.
type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the chromedp session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	// ArtifactsDir receives screenshots, diagnostic snapshots and run
	// reports. "~" expands to the user's home directory.
	ArtifactsDir string `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
}

// AgentConfig controls the orchestration loop.
type AgentConfig struct {
	MaxSteps          int           `mapstructure:"max_steps" yaml:"max_steps"`
	DecisionInterval  time.Duration `mapstructure:"decision_interval" yaml:"decision_interval"`
	StepDelay         time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	StepDelayJitter   bool          `mapstructure:"step_delay_jitter" yaml:"step_delay_jitter"`
	LoopWindow        int           `mapstructure:"loop_window" yaml:"loop_window"`
	HistoryWindow     int           `mapstructure:"history_window" yaml:"history_window"`
	MaxElements       int           `mapstructure:"max_elements" yaml:"max_elements"`
	MaxElementText    int           `mapstructure:"max_element_text" yaml:"max_element_text"`
	MaxTextSample     int           `mapstructure:"max_text_sample" yaml:"max_text_sample"`
	QueryResultLimit  int           `mapstructure:"query_result_limit" yaml:"query_result_limit"`
	DefaultWaitSecs   int           `mapstructure:"default_wait_seconds" yaml:"default_wait_seconds"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	PersistTranscript bool          `mapstructure:"persist_transcript" yaml:"persist_transcript"`
}

// LLMConfig selects and tunes the decision model provider.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.log_file", "drover.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.artifacts_dir", "~/.drover/artifacts")

	// -- Agent --
	v.SetDefault("agent.max_steps", 30)
	v.SetDefault("agent.decision_interval", "15s")
	v.SetDefault("agent.step_delay", "1s")
	v.SetDefault("agent.step_delay_jitter", true)
	v.SetDefault("agent.loop_window", 3)
	v.SetDefault("agent.history_window", 20)
	v.SetDefault("agent.max_elements", 50)
	v.SetDefault("agent.max_element_text", 200)
	v.SetDefault("agent.max_text_sample", 2000)
	v.SetDefault("agent.query_result_limit", 10)
	v.SetDefault("agent.default_wait_seconds", 2)
	v.SetDefault("agent.shutdown_timeout", "10s")
	v.SetDefault("agent.persist_transcript", true)

	// -- LLM --
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 1024)
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults are validated by tests; this cannot fail at runtime.
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// NewConfigFromViper unmarshals and validates a configuration from the
// given viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	expanded, err := homedir.Expand(cfg.Browser.ArtifactsDir)
	if err != nil {
		return nil, fmt.Errorf("resolving artifacts dir: %w", err)
	}
	cfg.Browser.ArtifactsDir = filepath.Clean(expanded)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be a positive integer")
	}
	if c.Agent.LoopWindow < 2 {
		return fmt.Errorf("agent.loop_window must be at least 2")
	}
	if c.Agent.HistoryWindow <= 0 {
		return fmt.Errorf("agent.history_window must be a positive integer")
	}
	if c.Agent.MaxElements <= 0 {
		return fmt.Errorf("agent.max_elements must be a positive integer")
	}
	if c.Agent.MaxElementText <= 0 {
		return fmt.Errorf("agent.max_element_text must be a positive integer")
	}
	if c.Agent.DecisionInterval < 0 {
		return fmt.Errorf("agent.decision_interval must not be negative")
	}
	if c.Browser.NavigationTimeout <= 0 || c.Browser.ActionTimeout <= 0 {
		return fmt.Errorf("browser timeouts must be positive durations")
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider must be one of \"openai\" or \"gemini\", got %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}
	return nil
}
