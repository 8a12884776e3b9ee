package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tugtool/tug/internal/cliutil"
	"github.com/tugtool/tug/internal/git"
	"github.com/tugtool/tug/internal/worktree"
)

func init() {
	register("worktree-create", "create a worktree for a plan slug", cmdWorktreeCreate)
	register("worktree-list", "list managed worktrees", cmdWorktreeList)
	register("worktree-remove", "remove a worktree and its branch", cmdWorktreeRemove)
	register("worktree-cleanup", "remove worktrees matching a cleanup mode", cmdWorktreeCleanup)
}

func (a *app) requireRepoRoot() (string, int) {
	root, err := a.proj.RequireRepoRoot()
	if err != nil {
		a.logger.Error("not a git repository", "error", err)
		return "", cliutil.ExitNotGitRepo
	}
	return root, 0
}

func cmdWorktreeCreate(a *app, args []string) int {
	fs := flag.NewFlagSet("worktree-create", flag.ContinueOnError)
	base := fs.String("base", "", "base branch; defaults to [git] base_branch from config, else the repo's detected default branch")
	fs.Parse(args)
	slug := worktree.Slugify(fs.Arg(0))
	if slug == "" {
		a.logger.Error("worktree-create: a plan title/slug is required")
		return cliutil.ExitGeneric
	}

	repoRoot, code := a.requireRepoRoot()
	if code != 0 {
		return code
	}

	baseBranch := *base
	if baseBranch == "" {
		baseBranch = a.cfg.Git.BaseBranch
	}
	if baseBranch == "" {
		detected, err := git.DefaultBranch(repoRoot)
		if err != nil {
			a.logger.Error("worktree-create: could not detect base branch", "error", err)
			return cliutil.ExitBaseBranchMissing
		}
		baseBranch = detected
	}

	wt, err := worktree.Create(repoRoot, slug, baseBranch, time.Now())
	if err != nil {
		a.logger.Error("worktree-create failed", "error", err)
		return cliutil.ExitWorktreeExists
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("worktree-create", wt))
	} else {
		fmt.Printf("created %s (branch %s)\n", wt.Path, wt.Branch)
	}
	return cliutil.ExitOK
}

func cmdWorktreeList(a *app, args []string) int {
	repoRoot, code := a.requireRepoRoot()
	if code != 0 {
		return code
	}

	all, err := worktree.List(repoRoot)
	if err != nil {
		a.logger.Error("worktree-list failed", "error", err)
		return cliutil.ExitGeneric
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("worktree-list", all))
	} else {
		for _, w := range all {
			fmt.Printf("%s\t%s\t%s\n", w.Slug, w.Branch, w.Path)
		}
	}
	return cliutil.ExitOK
}

func cmdWorktreeRemove(a *app, args []string) int {
	fs := flag.NewFlagSet("worktree-remove", flag.ContinueOnError)
	force := fs.Bool("force", false, "remove even with uncommitted changes")
	keepBranch := fs.Bool("keep-branch", false, "do not delete the worktree's branch")
	fs.Parse(args)

	repoRoot, code := a.requireRepoRoot()
	if code != 0 {
		return code
	}

	all, err := worktree.List(repoRoot)
	if err != nil {
		a.logger.Error("worktree-remove: list failed", "error", err)
		return cliutil.ExitGeneric
	}
	found, ambiguous, err := worktree.Resolve(fs.Arg(0), all)
	if err != nil {
		a.logger.Error("worktree-remove: resolve failed", "error", err)
		return cliutil.ExitGeneric
	}
	if len(ambiguous) > 0 {
		a.logger.Error("worktree-remove: ambiguous identifier", "candidates", len(ambiguous))
		return cliutil.ExitGeneric
	}
	if found == nil {
		a.logger.Error("worktree-remove: no matching worktree")
		return cliutil.ExitNotFound
	}

	if err := worktree.Remove(repoRoot, found.Path, *force, *keepBranch); err != nil {
		a.logger.Error("worktree-remove failed", "error", err)
		return cliutil.ExitGeneric
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("worktree-remove", found))
	} else {
		fmt.Printf("removed %s\n", found.Path)
	}
	return cliutil.ExitOK
}

func cmdWorktreeCleanup(a *app, args []string) int {
	fs := flag.NewFlagSet("worktree-cleanup", flag.ContinueOnError)
	mode := fs.String("mode", "merged", "cleanup mode: merged, orphaned, stale, all")
	staleAfter := fs.Duration("stale-after", 14*24*time.Hour, "staleness window for -mode=stale")
	dryRun := fs.Bool("dry-run", false, "report candidates without removing anything")
	fs.Parse(args)

	repoRoot, code := a.requireRepoRoot()
	if code != 0 {
		return code
	}

	candidates, err := worktree.Cleanup(repoRoot, worktree.CleanupMode(*mode), *staleAfter, *dryRun)
	if err != nil {
		a.logger.Error("worktree-cleanup failed", "error", err)
		return cliutil.ExitGeneric
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("worktree-cleanup", candidates))
	} else {
		for _, c := range candidates {
			fmt.Printf("%s (%s)\n", c.Worktree.Path, c.Reason)
		}
		fmt.Printf("%d candidate(s), dry_run=%v\n", len(candidates), *dryRun)
	}
	return cliutil.ExitOK
}
