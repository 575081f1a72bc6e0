package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/astrohackerx/spl402-OpenRouter/tier"
)

// Config holds the server configuration loaded from environment variables.
type Config struct {
	// Server
	Port       string
	LogLevel   string // debug, info, warn, error
	CORSOrigin string

	// Gateway
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	SiteURL           string
	SiteName          string
	RequestsPerSecond float64

	// Tier policy
	PolicyFile string
}

// LoadConfig loads configuration from environment variables.
// The API key is optional here: its absence is reported by the health
// check and surfaces on the first capability request.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:              getEnvOrDefault("PORT", "3000"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		CORSOrigin:        os.Getenv("CORS_ORIGIN"),
		APIKey:            strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		BaseURL:           os.Getenv("OPENROUTER_BASE_URL"),
		Timeout:           getEnvDurationOrDefault("GATEWAY_TIMEOUT", 30*time.Second),
		SiteURL:           os.Getenv("SITE_URL"),
		SiteName:          getEnvOrDefault("SITE_NAME", "spl402"),
		RequestsPerSecond: getEnvFloatOrDefault("GATEWAY_RPS", 0),
		PolicyFile:        os.Getenv("TIER_POLICY_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive, got %s", c.Timeout)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("GATEWAY_RPS must not be negative, got %g", c.RequestsPerSecond)
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Policy loads the tier policy file, or returns the built-in table.
func (c *Config) Policy() (*tier.Policy, error) {
	if c.PolicyFile == "" {
		return tier.DefaultPolicy(), nil
	}
	return tier.LoadPolicy(c.PolicyFile)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s (must be debug, info, warn, or error)", s)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare numbers are seconds.
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
