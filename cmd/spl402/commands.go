package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/astrohackerx/spl402-OpenRouter/client"
	"github.com/astrohackerx/spl402-OpenRouter/httpapi"
	"github.com/astrohackerx/spl402-OpenRouter/tier"
)

// shutdownTimeout bounds graceful shutdown, including open streams.
const shutdownTimeout = 30 * time.Second

// NewRootCommand returns the top-level CLI command. Without a subcommand it
// serves.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "spl402",
		Usage: "Tiered LLM gateway with per-route pricing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides PORT)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides LOG_LEVEL)",
			},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Path to a YAML tier policy file (overrides TIER_POLICY_FILE)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-attempt gateway timeout (overrides GATEWAY_TIMEOUT)",
			},
			&cli.StringFlag{
				Name:  "cors-origin",
				Usage: "Allowed CORS origin (overrides CORS_ORIGIN)",
			},
		},
		Commands: []*cli.Command{
			NewServeCommand(),
			NewTiersCommand(),
		},
		Action: runServe,
	}
}

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Start the HTTP server",
		Action: runServe,
	}
}

// NewTiersCommand returns the tiers subcommand.
func NewTiersCommand() *cli.Command {
	return &cli.Command{
		Name:  "tiers",
		Usage: "Print the tier policy",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			policy, err := cfg.Policy()
			if err != nil {
				return fmt.Errorf("load tier policy: %w", err)
			}
			return printTiers(output(cmd), policy)
		},
	}
}

// loadConfig reads the environment, then applies flags set on the command
// line.
func loadConfig(cmd *cli.Command) (*Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("port") {
		cfg.Port = cmd.String("port")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("policy") {
		cfg.PolicyFile = cmd.String("policy")
	}
	if cmd.IsSet("timeout") {
		cfg.Timeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("cors-origin") {
		cfg.CORSOrigin = cmd.String("cors-origin")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func printTiers(w io.Writer, policy *tier.Policy) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIER\tPRICE\tMODEL\tFALLBACK")
	for _, t := range tier.All {
		name := string(t)
		chain := strings.Join(policy.FallbackChain(name), ", ")
		if chain == "" {
			chain = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, policy.Price(name), policy.ModelFor(name), chain)
	}
	return tw.Flush()
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	level, _ := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	policy, err := cfg.Policy()
	if err != nil {
		return fmt.Errorf("load tier policy: %w", err)
	}

	c := client.New(client.Config{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		SiteURL:           cfg.SiteURL,
		SiteName:          cfg.SiteName,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Policy:            policy,
		Logger:            logger,
	})
	if !c.Configured() {
		logger.Warn("OPENROUTER_API_KEY is not set, capability requests will fail until it is configured")
	}

	router := httpapi.NewRouter(c,
		httpapi.WithLogger(logger),
		httpapi.WithCORSOrigin(cfg.CORSOrigin),
	)
	srv := httpapi.NewServer(":"+cfg.Port, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("server starting",
		"port", cfg.Port,
		"gateway_configured", c.Configured(),
		"timeout", cfg.Timeout,
		"policy_file", cfg.PolicyFile,
	)
	for _, r := range httpapi.Routes {
		logger.Debug("route registered", "method", r.Method, "path", r.Path, "capability", r.Capability)
	}

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
