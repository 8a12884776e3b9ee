package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tugtool/tug/internal/cliutil"
	"github.com/tugtool/tug/internal/commit"
	"github.com/tugtool/tug/internal/reconcile"
)

func init() {
	register("commit", "run the atomic step-commit pipeline in the current worktree", cmdCommit)
	register("reconcile", "replay git history's step trailers into the state store", cmdReconcile)
}

func cmdCommit(a *app, args []string) int {
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	anchor := fs.String("anchor", "", "step anchor this commit completes")
	planArg := fs.String("plan", "", "plan identifier")
	message := fs.String("message", "", "commit message")
	summary := fs.String("summary", "", "one-line implementation-log summary")
	worktreeID := fs.String("worktree", "", "worktree identifier")
	fs.Parse(args)

	planPath, code := a.resolvePlanPath(*planArg)
	if code != 0 {
		return code
	}

	cwd, err := os.Getwd()
	if err != nil {
		a.logger.Error("commit: could not resolve working directory", "error", err)
		return cliutil.ExitGeneric
	}

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("commit: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	result, err := commit.Run(st, cwd, *anchor, planPath, *message, *summary, *worktreeID)
	if err != nil {
		a.logger.Error("commit failed", "error", err)
		return cliutil.ExitGeneric
	}

	if result.StateError != "" {
		a.logger.Warn("commit succeeded but state update failed", "error", result.StateError)
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("commit", result))
	} else {
		fmt.Printf("committed %s\n", result.CommitHash)
		if result.LogRotated {
			fmt.Printf("implementation log rotated to %s\n", result.ArchivedPath)
		}
	}
	return cliutil.ExitOK
}

func cmdReconcile(a *app, args []string) int {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite stored commit hashes on mismatch")
	fs.Parse(args)

	repoRoot, code := a.requireRepoRoot()
	if code != 0 {
		return code
	}

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("reconcile: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	result, err := reconcile.Run(st, repoRoot, *force)
	if err != nil {
		a.logger.Error("reconcile failed", "error", err)
		return cliutil.ExitGeneric
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("reconcile", result))
	} else {
		fmt.Printf("reconciled=%d skipped=%d\n", result.ReconciledCount, result.SkippedCount)
		for _, m := range result.SkippedMismatches {
			fmt.Printf("  mismatch %s: stored=%s incoming=%s\n", m.Anchor, m.StoredHash, m.IncomingHash)
		}
	}
	return cliutil.ExitOK
}
