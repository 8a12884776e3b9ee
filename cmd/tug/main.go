// Command tug is the CLI front-end for the markdown-plan orchestrator:
// thin flag parsing and JSON-envelope plumbing over the internal/* core
// packages. Subcommand dispatch is a manual os.Args switch rather than a
// framework (the teacher's cortex/chum tools use flag.FlagSet the same
// way for their own single-purpose flags; tug just needs one more level
// of dispatch for its git-style verbs).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/tugtool/tug/internal/cliutil"
	"github.com/tugtool/tug/internal/config"
	"github.com/tugtool/tug/internal/project"
	"github.com/tugtool/tug/internal/state"
)

type runIDKey struct{}

// withRunID attaches a unique per-invocation run ID to ctx, for correlating
// a single tug invocation's log lines (and anything it shells out to) the
// same way an inbound request ID threads through a server's logs.
func withRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// runIDFromContext extracts the run ID set by withRunID, if any.
func runIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// app bundles the dependencies every subcommand needs, resolved once in
// main before dispatch.
type app struct {
	ctx     context.Context
	logger  *slog.Logger
	cfg     *config.Config
	proj    *project.Project
	jsonOut bool
}

func (a *app) openStore() (*state.Store, error) {
	root, err := a.proj.RequireProjectRoot()
	if err != nil {
		return nil, err
	}
	dbPath := a.cfg.General.StateDB
	if !isAbs(dbPath) {
		dbPath = root + string(os.PathSeparator) + dbPath
	}
	return state.Open(dbPath)
}

func isAbs(p string) bool {
	return len(p) > 0 && (p[0] == '/' || p[0] == os.PathSeparator)
}

type subcommand struct {
	name string
	desc string
	run  func(a *app, args []string) int
}

var subcommands []subcommand

func register(name, desc string, run func(a *app, args []string) int) {
	subcommands = append(subcommands, subcommand{name: name, desc: desc, run: run})
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tug <command> [flags]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	for _, c := range subcommands {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", c.name, c.desc)
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return cliutil.ExitGeneric
	}

	name := args[0]
	rest := args[1:]

	for _, c := range subcommands {
		if c.name != name {
			continue
		}

		globals := flag.NewFlagSet(name, flag.ContinueOnError)
		jsonOut := globals.Bool("json", false, "emit a JSON response envelope instead of human-readable text")
		configPath := globals.String("config", "tug.toml", "path to project config file (relative to project root)")
		logLevel := globals.String("log-level", "info", "log level: debug, info, warn, error")
		globals.SetOutput(os.Stderr)

		// Subcommands parse their own positional/flag args after the
		// globals have been split off; we do a permissive pre-scan so
		// `-json` can appear anywhere in the subcommand's arg list.
		passthrough, globalArgs := splitGlobalFlags(rest)
		if err := globals.Parse(globalArgs); err != nil {
			return cliutil.ExitGeneric
		}

		runID := uuid.NewString()
		logger := cliutil.NewLogger(*logLevel, *jsonOut).With("run_id", runID)
		ctx := withRunID(context.Background(), runID)

		cwd, err := os.Getwd()
		if err != nil {
			logger.Error("failed to resolve working directory", "error", err)
			return cliutil.ExitGeneric
		}
		proj, err := project.Locate(cwd)
		if err != nil {
			proj = &project.Project{}
		}

		cfg := config.Default()
		if proj.ProjectRoot != "" {
			if loaded, loadErr := config.Load(proj.ProjectRoot + string(os.PathSeparator) + *configPath); loadErr == nil {
				cfg = loaded
			}
		}

		a := &app{
			ctx:     ctx,
			logger:  logger,
			cfg:     cfg,
			proj:    proj,
			jsonOut: *jsonOut,
		}
		return c.run(a, passthrough)
	}

	fmt.Fprintf(os.Stderr, "tug: unknown command %q\n", name)
	usage()
	return cliutil.ExitGeneric
}

// splitGlobalFlags separates -json/-config/-log-level (and their values)
// from everything else, so subcommands can own the rest of flag parsing.
func splitGlobalFlags(args []string) (passthrough, globalArgs []string) {
	globalWithValue := map[string]bool{"-config": true, "--config": true, "-log-level": true, "--log-level": true}
	globalBool := map[string]bool{"-json": true, "--json": true}

	for i := 0; i < len(args); i++ {
		switch {
		case globalBool[args[i]]:
			globalArgs = append(globalArgs, args[i])
		case globalWithValue[args[i]] && i+1 < len(args):
			globalArgs = append(globalArgs, args[i], args[i+1])
			i++
		default:
			passthrough = append(passthrough, args[i])
		}
	}
	return passthrough, globalArgs
}
