package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrohackerx/spl402-OpenRouter/tier"
)

var configEnv = []string{
	"PORT", "LOG_LEVEL", "CORS_ORIGIN", "OPENROUTER_API_KEY", "OPENROUTER_BASE_URL",
	"GATEWAY_TIMEOUT", "SITE_URL", "SITE_NAME", "GATEWAY_RPS", "TIER_POLICY_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.APIKey)
	assert.Zero(t, cfg.RequestsPerSecond)
	assert.Equal(t, "spl402", cfg.SiteName)
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OPENROUTER_API_KEY", " sk-or-v1-abc ")
	t.Setenv("GATEWAY_TIMEOUT", "45")
	t.Setenv("GATEWAY_RPS", "2.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sk-or-v1-abc", cfg.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 2.5, cfg.RequestsPerSecond)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Port: "3000", LogLevel: "info", Timeout: time.Second}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"port not a number", func(c *Config) { c.Port = "http" }, "PORT"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "PORT"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "GATEWAY_TIMEOUT"},
		{"negative rps", func(c *Config) { c.RequestsPerSecond = -1 }, "GATEWAY_RPS"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	level, err := parseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = parseLogLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestTiersCommand(t *testing.T) {
	clearEnv(t)

	policyFile := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(policyFile, []byte("tiers:\n  premium:\n    model: openai/gpt-4.1-mini\n    price: \"0.002\"\n"), 0o600))

	var buf bytes.Buffer
	cmd := NewRootCommand()
	cmd.Writer = &buf
	require.NoError(t, cmd.Run(context.Background(), []string{"spl402", "--policy", policyFile, "tiers"}))

	out := buf.String()
	assert.Contains(t, out, "openai/gpt-4.1-mini")
	assert.Contains(t, out, "0.002")
	assert.Contains(t, out, tier.ModelLlama33Free)
	assert.Contains(t, out, tier.ModelGPT4o)
}

func TestTiersCommandRejectsBadPolicy(t *testing.T) {
	clearEnv(t)

	policyFile := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(policyFile, []byte("tiers:\n  premium:\n    model: x\n    fallback: [y]\n"), 0o600))

	cmd := NewRootCommand()
	cmd.Writer = &bytes.Buffer{}
	err := cmd.Run(context.Background(), []string{"spl402", "--policy", policyFile, "tiers"})
	assert.ErrorContains(t, err, "load tier policy")
}
