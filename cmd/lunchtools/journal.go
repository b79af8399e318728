package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"lunchtools/internal/cli"
)

type journalCmd struct {
	envFile string
	limit   int
	prune   time.Duration
}

func (*journalCmd) Name() string     { return "journal" }
func (*journalCmd) Synopsis() string { return "print or prune the change journal" }
func (*journalCmd) Usage() string {
	return `lunchtools journal [-env <file>] [-n <count>] [-prune <age>]

  Prints the most recent changes recorded in JOURNAL_DB_PATH, newest
  first. With -prune, entries older than the given age (e.g. 720h) are
  deleted first.
`
}

func (c *journalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.envFile, "env", ".env", "Optional env file to load before reading the environment.")
	f.IntVar(&c.limit, "n", 20, "Number of entries to print.")
	f.DurationVar(&c.prune, "prune", 0, "Delete entries older than this age before printing.")
}

func (c *journalCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := setup(c.envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if cfg.JournalDBPath == "" {
		fmt.Fprintln(os.Stderr, "JOURNAL_DB_PATH is not set")
		return subcommands.ExitUsageError
	}

	repo, err := cli.InitJournal(ctx, logger, cfg.JournalDBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer repo.Close()

	if c.prune > 0 {
		n, err := repo.Prune(ctx, time.Now().Add(-c.prune))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Pruned %d entries.\n", n)
	}

	entries, err := repo.Recent(ctx, c.limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if len(entries) == 0 {
		fmt.Println("No changes recorded.")
		return subcommands.ExitSuccess
	}
	for _, e := range entries {
		fmt.Printf("#%d %s %s [%s]\n", e.ID, e.CreatedAt.Local().Format(time.DateTime), e.Tool, strings.Join(e.Resources, ", "))
		fmt.Printf("    args: %s\n", e.Arguments)
		fmt.Printf("    %s\n", firstLine(e.Result))
		if e.Warning != "" {
			fmt.Printf("    warning: %s\n", e.Warning)
		}
	}
	return subcommands.ExitSuccess
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
