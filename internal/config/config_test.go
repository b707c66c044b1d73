package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 30, cfg.Agent.MaxSteps)
	assert.Equal(t, 15*time.Second, cfg.Agent.DecisionInterval)
	assert.Equal(t, 3, cfg.Agent.LoopWindow)
	assert.Equal(t, 50, cfg.Agent.MaxElements)
	assert.Equal(t, 200, cfg.Agent.MaxElementText)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.True(t, cfg.Browser.Headless)
	assert.NotContains(t, cfg.Browser.ArtifactsDir, "~", "home dir must be expanded")
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("DROVER_AGENT_MAX_STEPS", "7")
	t.Setenv("DROVER_LLM_API_KEY", "test-key")

	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Agent.MaxSteps)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max steps", func(c *Config) { c.Agent.MaxSteps = 0 }},
		{"loop window too small", func(c *Config) { c.Agent.LoopWindow = 1 }},
		{"zero history window", func(c *Config) { c.Agent.HistoryWindow = 0 }},
		{"zero element cap", func(c *Config) { c.Agent.MaxElements = 0 }},
		{"negative decision interval", func(c *Config) { c.Agent.DecisionInterval = -time.Second }},
		{"zero action timeout", func(c *Config) { c.Browser.ActionTimeout = 0 }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "psychic" }},
		{"empty model", func(c *Config) { c.LLM.Model = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
