package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"lunchtools/internal/api/memory"
	"lunchtools/internal/log"
	"lunchtools/internal/refcache"
	"lunchtools/internal/tools"
)

type toolsCmd struct {
	verbose bool
}

func (*toolsCmd) Name() string     { return "tools" }
func (*toolsCmd) Synopsis() string { return "list the tools the server exposes" }
func (*toolsCmd) Usage() string {
	return `lunchtools tools [-v]

  Prints every tool with its description. With -v, parameters are listed
  too. Needs no configuration.
`
}

func (c *toolsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.verbose, "v", false, "List parameters.")
}

func (c *toolsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	// Tool definitions do not depend on the backend; an empty store will do.
	store := memory.New(memory.Seed{})
	reg := tools.New(tools.Deps{
		Backend: store,
		Cache:   refcache.New(store, log.Discard()),
		Logger:  log.Discard(),
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, t := range reg.Tools() {
		kind := "read"
		if t.Writes {
			kind = "write"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, kind, t.Description)
		if !c.verbose {
			continue
		}
		for _, p := range t.Params {
			var notes []string
			if p.Required {
				notes = append(notes, "required")
			}
			if len(p.Enum) > 0 {
				notes = append(notes, "one of "+strings.Join(p.Enum, "|"))
			}
			fmt.Fprintf(w, "  %s\t%s\t%s %s\n", p.Name, p.Type, p.Description, strings.Join(notes, ", "))
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
