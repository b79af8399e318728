package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"lunchtools/internal/backend"
	"lunchtools/internal/refcache"
)

type checkCmd struct {
	envFile string
}

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "load reference data once and report table sizes" }
func (*checkCmd) Usage() string {
	return `lunchtools check [-env <file>]

  Verifies the configuration and the backend by initializing the
  reference cache. Exits non-zero when any table fails to load.
`
}

func (c *checkCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.envFile, "env", ".env", "Optional env file to load before reading the environment.")
}

func (c *checkCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := setup(c.envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if res.Cleanup != nil {
		defer res.Cleanup()
	}

	refs := refcache.New(res.Backend, logger)
	if err := refs.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Reference data failed to load: %v\n", err)
		return subcommands.ExitFailure
	}
	sizes, err := refs.Sizes()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Backend %s: reference data loaded\n", cfg.DataBackend)
	for _, r := range refcache.AllResources() {
		fmt.Printf("  %-16s %d\n", r, sizes[r])
	}
	return subcommands.ExitSuccess
}
