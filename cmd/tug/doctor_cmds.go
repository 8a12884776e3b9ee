package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tugtool/tug/internal/cliutil"
	"github.com/tugtool/tug/internal/health"
)

func init() {
	register("doctor", "check the environment and project setup for common problems", cmdDoctor)
}

func cmdDoctor(a *app, args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.Parse(args)

	cwd, err := os.Getwd()
	if err != nil {
		a.logger.Error("doctor: could not resolve working directory", "error", err)
		return cliutil.ExitGeneric
	}

	checks := health.DefaultChecks(cwd, a.cfg)
	results := health.RunAll(a.ctx, checks)

	exitCode := cliutil.ExitOK
	for _, r := range results {
		if r.Status == health.StatusFail {
			exitCode = cliutil.ExitGeneric
		}
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("doctor", results))
	} else {
		for _, r := range results {
			fmt.Printf("[%s] %s: %s\n", r.Status, r.Name, r.Message)
		}
	}
	return exitCode
}
