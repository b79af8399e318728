package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"lunchtools/internal/cli"
	"lunchtools/internal/config"
	"lunchtools/internal/log"
	"lunchtools/internal/mcpserver"
)

type serveCmd struct {
	envFile   string
	transport string
	port      string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the Lunch Money tools over MCP" }
func (*serveCmd) Usage() string {
	return `lunchtools serve [-env <file>] [-transport stdio|http] [-port <port>]

  Loads reference data, then serves every tool over the Model Context
  Protocol. Configuration comes from the environment; flags override it.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.envFile, "env", ".env", "Optional env file to load before reading the environment.")
	f.StringVar(&c.transport, "transport", "", "Transport override (stdio, http).")
	f.StringVar(&c.port, "port", "", "HTTP port override.")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.transport != "" {
		os.Setenv("TRANSPORT", c.transport)
	}
	if c.port != "" {
		os.Setenv("PORT", c.port)
	}
	cfg, logger, err := setup(c.envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	ctx, cancel := cli.GracefulShutdown(ctx, logger)
	defer cancel()

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed", log.FieldOperation, log.OpStartup, log.FieldError, err.Error())
		return subcommands.ExitFailure
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Shutdown cleanup failed", log.FieldOperation, log.OpShutdown, log.FieldError, err.Error())
		}
	}()
	app.Start(ctx)

	srv := mcpserver.New(app.Registry, app.Refs, version, logger)
	logger.Info("Starting lunchtools",
		"version", version,
		log.FieldBackend, cfg.DataBackend,
		log.FieldTransport, cfg.Transport,
		"reference_ready", app.Refs.Ready(),
		"journal", app.Journal != nil,
		"bus", app.Bus != nil)

	switch cfg.Transport {
	case config.TransportHTTP:
		err = srv.ServeHTTP(ctx, cfg.Addr(), mcpserver.HTTPOptions{
			RateLimitPerMinute: cfg.RateLimitPerMinute,
			TrustedProxies:     cfg.TrustedProxies,
		})
	default:
		err = srv.ServeStdio(ctx, os.Stdin, os.Stdout)
	}
	if err != nil {
		logger.Error("Server error", log.FieldError, err.Error())
		return subcommands.ExitFailure
	}
	logger.Info("Server stopped gracefully")
	return subcommands.ExitSuccess
}

// setup loads the env file and configuration and builds the logger.
func setup(envFile string) (*config.Config, *log.Logger, error) {
	if err := cli.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
