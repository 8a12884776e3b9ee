package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tugtool/tug/internal/cliutil"
	"github.com/tugtool/tug/internal/dash"
)

func init() {
	register("dash-create", "create or reactivate a dash work unit", cmdDashCreate)
	register("dash-commit", "commit a round of work in a dash's worktree", cmdDashCommit)
	register("dash-join", "squash-merge a dash back onto its base branch", cmdDashJoin)
	register("dash-release", "discard a dash without merging", cmdDashRelease)
	register("dash-list", "list dashes", cmdDashList)
	register("dash-show", "show a dash's metadata and rounds", cmdDashShow)
}

func cmdDashCreate(a *app, args []string) int {
	fs := flag.NewFlagSet("dash-create", flag.ContinueOnError)
	description := fs.String("description", "", "short description of the dash's purpose")
	fs.Parse(args)
	name := fs.Arg(0)

	repoRoot, code := a.requireRepoRoot()
	if code != 0 {
		return code
	}
	st, err := a.openStore()
	if err != nil {
		a.logger.Error("dash-create: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	result, err := dash.Create(st, repoRoot, name, *description)
	if err != nil {
		a.logger.Error("dash-create failed", "error", err)
		return cliutil.ExitGeneric
	}
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("dash-create", result))
	} else {
		fmt.Printf("dash %q ready at %s (created=%v)\n", result.Dash.Name, result.Dash.Worktree, result.Created)
	}
	return cliutil.ExitOK
}

func cmdDashCommit(a *app, args []string) int {
	fs := flag.NewFlagSet("dash-commit", flag.ContinueOnError)
	message := fs.String("message", "", "commit message")
	instruction := fs.String("instruction", "", "instruction this round carried out")
	summary := fs.String("summary", "", "summary of what this round did")
	fs.Parse(args)
	name := fs.Arg(0)

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("dash-commit: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	meta := dash.RoundMeta{}
	if *instruction != "" {
		meta.Instruction = instruction
	}
	if *summary != "" {
		meta.Summary = summary
	}

	result, err := dash.Commit(st, name, *message, meta)
	if err != nil {
		a.logger.Error("dash-commit failed", "error", err)
		return cliutil.ExitGeneric
	}
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("dash-commit", result))
	} else {
		fmt.Printf("round %d committed=%v hash=%s\n", result.RoundID, result.Committed, result.CommitHash)
	}
	return cliutil.ExitOK
}

func cmdDashJoin(a *app, args []string) int {
	fs := flag.NewFlagSet("dash-join", flag.ContinueOnError)
	message := fs.String("message", "", "squash-commit message")
	fs.Parse(args)
	name := fs.Arg(0)

	repoRoot, code := a.requireRepoRoot()
	if code != 0 {
		return code
	}
	cwd, err := os.Getwd()
	if err != nil {
		a.logger.Error("dash-join: could not resolve working directory", "error", err)
		return cliutil.ExitGeneric
	}

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("dash-join: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	result, err := dash.Join(st, repoRoot, cwd, name, *message)
	if err != nil {
		a.logger.Error("dash-join failed", "error", err)
		return cliutil.ExitGeneric
	}
	for _, w := range result.Warnings {
		a.logger.Warn("dash-join cleanup warning", "warning", w)
	}
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("dash-join", result))
	} else {
		fmt.Printf("joined %q onto %s at %s\n", result.Name, result.BaseBranch, result.CommitHash)
	}
	return cliutil.ExitOK
}

func cmdDashRelease(a *app, args []string) int {
	fs := flag.NewFlagSet("dash-release", flag.ContinueOnError)
	fs.Parse(args)
	name := fs.Arg(0)

	repoRoot, code := a.requireRepoRoot()
	if code != 0 {
		return code
	}
	st, err := a.openStore()
	if err != nil {
		a.logger.Error("dash-release: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	result, err := dash.Release(st, repoRoot, name)
	if err != nil {
		a.logger.Error("dash-release failed", "error", err)
		return cliutil.ExitGeneric
	}
	for _, w := range result.Warnings {
		a.logger.Warn("dash-release cleanup warning", "warning", w)
	}
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("dash-release", result))
	} else {
		fmt.Printf("released %q\n", result.Name)
	}
	return cliutil.ExitOK
}

func cmdDashList(a *app, args []string) int {
	fs := flag.NewFlagSet("dash-list", flag.ContinueOnError)
	all := fs.Bool("all", false, "include joined/released dashes")
	fs.Parse(args)

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("dash-list: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	items, err := dash.List(st, *all)
	if err != nil {
		a.logger.Error("dash-list failed", "error", err)
		return cliutil.ExitGeneric
	}
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("dash-list", items))
	} else {
		for _, it := range items {
			fmt.Printf("%s\t%s\trounds=%d\texists=%v\n", it.Dash.Name, it.Dash.Status, it.RoundCount, it.WorktreeExists)
		}
	}
	return cliutil.ExitOK
}

func cmdDashShow(a *app, args []string) int {
	fs := flag.NewFlagSet("dash-show", flag.ContinueOnError)
	allRounds := fs.Bool("all-rounds", false, "show rounds across every incarnation")
	fs.Parse(args)
	name := fs.Arg(0)

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("dash-show: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	result, err := dash.Show(st, name, *allRounds)
	if err != nil {
		a.logger.Error("dash-show failed", "error", err)
		return cliutil.ExitNotFound
	}
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("dash-show", result))
	} else {
		fmt.Printf("%s: %s (rounds=%d)\n", result.Dash.Name, result.Dash.Status, len(result.Rounds))
	}
	return cliutil.ExitOK
}
