// Command spl402 serves the capability endpoints in front of the model
// gateway.
//
// Configuration is via environment variables (a .env file is loaded if
// present) and command line flags:
//
//	OPENROUTER_API_KEY  - Gateway API key (reported by /health when missing)
//	OPENROUTER_BASE_URL - Gateway API root (default: https://openrouter.ai/api/v1)
//	PORT                - Server port (default: 3000)
//	LOG_LEVEL           - debug, info, warn or error (default: info)
//	GATEWAY_TIMEOUT     - Per-attempt gateway timeout (default: 30s)
//	GATEWAY_RPS         - Outbound request rate limit (default: off)
//	TIER_POLICY_FILE    - YAML tier policy overriding the built-in table
//	SITE_URL, SITE_NAME - Gateway attribution headers
//	CORS_ORIGIN         - Allowed CORS origin (default: none)
//
// Usage:
//
//	spl402 serve --port 8080
//	spl402 tiers
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load() // Load .env file if present

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := NewRootCommand()
	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
