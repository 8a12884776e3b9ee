package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/tugtool/tug/internal/cliutil"
	"github.com/tugtool/tug/internal/plan"
	"github.com/tugtool/tug/internal/planhash"
	"github.com/tugtool/tug/internal/resolve"
	"github.com/tugtool/tug/internal/state"
	"github.com/tugtool/tug/internal/validate"
)

func init() {
	register("resolve", "resolve a plan identifier to a file path", cmdResolve)
	register("validate", "parse and validate a plan file", cmdValidate)
	register("plan-init", "parse a plan, hash it, and initialise step state", cmdInitPlan)
	register("status", "show a plan's hierarchical completion status", cmdStatus)
	register("claim", "claim the next ready step for a worktree", cmdClaim)
	register("start", "mark a claimed step as in progress", cmdStart)
	register("heartbeat", "renew a claimed step's lease", cmdHeartbeat)
	register("release", "release a claimed step back to pending", cmdRelease)
	register("checklist", "update a step's task/test/checkpoint items", cmdChecklist)
	register("checklist-batch", "apply a stdin-driven batch of checklist updates", cmdChecklistBatch)
}

func (a *app) resolveConfig() resolve.Config {
	return resolve.Config{
		ProjectRoot: a.proj.ProjectRoot,
		PlanDir:     a.cfg.General.PlanDir,
		PlanPrefix:  a.cfg.General.PlanPrefix,
	}
}

// resolvePlanPath resolves input to exactly one plan path, printing a
// caller-facing error (guidance on ambiguity) and returning an exit code
// to use on failure, or ("", 0) on success.
func (a *app) resolvePlanPath(input string) (string, int) {
	found, ambiguous, err := resolve.Resolve(input, a.resolveConfig())
	if err != nil {
		a.logger.Error("resolve failed", "input", input, "error", err)
		return "", cliutil.ExitGeneric
	}
	if ambiguous != nil {
		a.logger.Error("ambiguous plan identifier", "input", input, "stage", ambiguous.Stage, "candidates", ambiguous.Candidates)
		return "", cliutil.ExitGeneric
	}
	if found == nil {
		a.logger.Error("plan not found", "input", input)
		return "", cliutil.ExitPlanNotFound
	}
	return found.Path, 0
}

func loadPlan(path string) (*plan.Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan %s: %w", path, err)
	}
	return plan.Parse(string(raw))
}

func cmdResolve(a *app, args []string) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.Parse(args)
	input := fs.Arg(0)

	found, ambiguous, err := resolve.Resolve(input, a.resolveConfig())
	if err != nil {
		a.logger.Error("resolve failed", "error", err)
		return cliutil.ExitGeneric
	}
	if ambiguous != nil {
		if a.jsonOut {
			cliutil.WriteJSON(os.Stdout, cliutil.Error("resolve", ambiguous, []cliutil.Issue{
				cliutil.ErrIssue("E002", "ambiguous plan identifier"),
			}))
		} else {
			fmt.Fprintf(os.Stderr, "ambiguous plan identifier at stage %s: %v\n", ambiguous.Stage, ambiguous.Candidates)
		}
		return cliutil.ExitGeneric
	}
	if found == nil {
		if a.jsonOut {
			cliutil.WriteJSON(os.Stdout, cliutil.Error("resolve", found, []cliutil.Issue{
				cliutil.ErrIssue("E007", "plan not found"),
			}))
		} else {
			fmt.Fprintln(os.Stderr, "error: plan not found")
		}
		return cliutil.ExitPlanNotFound
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("resolve", found))
	} else {
		fmt.Println(found.Path)
	}
	return cliutil.ExitOK
}

func cmdValidate(a *app, args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	level := fs.String("level", "normal", "validation level: lenient, normal, strict")
	fs.Parse(args)

	path, code := a.resolvePlanPath(fs.Arg(0))
	if code != 0 {
		return code
	}
	p, err := loadPlan(path)
	if err != nil {
		a.logger.Error("validate: parse failed", "path", path, "error", err)
		return cliutil.ExitValidationFailed
	}

	result := validate.Validate(p, validate.Level(*level))
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("validate", result))
	} else {
		for _, issue := range result.Issues {
			fmt.Printf("%s [%s] %s\n", issue.Code, issue.Severity, issue.Message)
		}
		fmt.Printf("valid=%v issues=%d\n", result.Valid, len(result.Issues))
	}
	if !result.Valid {
		return cliutil.ExitValidationFailed
	}
	return cliutil.ExitOK
}

func cmdInitPlan(a *app, args []string) int {
	fs := flag.NewFlagSet("plan-init", flag.ContinueOnError)
	fs.Parse(args)

	path, code := a.resolvePlanPath(fs.Arg(0))
	if code != 0 {
		return code
	}
	p, err := loadPlan(path)
	if err != nil {
		a.logger.Error("init: parse failed", "path", path, "error", err)
		return cliutil.ExitValidationFailed
	}

	result := validate.Validate(p, validate.Normal)
	if !result.Valid {
		a.logger.Error("init: plan failed validation", "path", path, "issues", len(result.Issues))
		return cliutil.ExitValidationFailed
	}

	hash, err := planhash.Sum(path)
	if err != nil {
		a.logger.Error("init: hash failed", "error", err)
		return cliutil.ExitGeneric
	}

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("init: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	initResult, err := st.InitPlan(path, p, hash)
	if err != nil {
		a.logger.Error("init failed", "error", err)
		return cliutil.ExitGeneric
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("init", initResult))
	} else {
		fmt.Printf("initialised %s: already_initialized=%v steps=%d substeps=%d deps=%d checklist=%d\n",
			path, initResult.AlreadyInitialized, initResult.StepCount, initResult.SubstepCount, initResult.DependencyCount, initResult.ChecklistCount)
	}
	return cliutil.ExitOK
}

func cmdStatus(a *app, args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.Parse(args)

	path, code := a.resolvePlanPath(fs.Arg(0))
	if code != 0 {
		return code
	}

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("status: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	view, err := st.ShowPlan(path)
	if err != nil {
		a.logger.Error("status failed", "error", err)
		return cliutil.ExitGeneric
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("status", view))
	} else {
		fmt.Printf("%s (%s): %d/%d steps completed\n", view.PhaseTitle, view.Status, view.Progress.Completed, view.Progress.Total)
	}
	return cliutil.ExitOK
}

func cmdClaim(a *app, args []string) int {
	fs := flag.NewFlagSet("claim", flag.ContinueOnError)
	worktreeID := fs.String("worktree", "", "worktree identifier claiming a step")
	force := fs.Bool("force", false, "bypass plan hash drift detection")
	fs.Parse(args)

	path, code := a.resolvePlanPath(fs.Arg(0))
	if code != 0 {
		return code
	}
	if *worktreeID == "" {
		a.logger.Error("claim: -worktree is required")
		return cliutil.ExitGeneric
	}

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("claim: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	hash, err := planhash.Sum(path)
	if err != nil {
		a.logger.Error("claim: hash failed", "error", err)
		return cliutil.ExitGeneric
	}

	result, err := st.ClaimStep(path, *worktreeID, int64(a.cfg.General.LeaseDuration.Duration.Seconds()), hash, *force)
	if err != nil {
		a.logger.Error("claim failed", "error", err)
		return cliutil.ExitGeneric
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("claim", result))
	} else {
		switch r := result.(type) {
		case state.Claimed:
			fmt.Printf("claimed %s (reclaimed=%v)\n", r.Anchor, r.Reclaimed)
		case state.NoReadySteps:
			fmt.Printf("no ready steps (blocked=%v)\n", r.Blocked)
		case state.AllCompleted:
			fmt.Println("all steps completed")
		}
	}
	return cliutil.ExitOK
}

func cmdStart(a *app, args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	anchor := fs.String("anchor", "", "step anchor")
	worktreeID := fs.String("worktree", "", "worktree identifier")
	fs.Parse(args)

	path, code := a.resolvePlanPath(fs.Arg(0))
	if code != 0 {
		return code
	}

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("start: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	if err := st.StartStep(path, *anchor, *worktreeID); err != nil {
		a.logger.Error("start failed", "error", err)
		return cliutil.ExitGeneric
	}
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("start", map[string]string{"anchor": *anchor}))
	} else {
		fmt.Printf("started %s\n", *anchor)
	}
	return cliutil.ExitOK
}

func cmdHeartbeat(a *app, args []string) int {
	fs := flag.NewFlagSet("heartbeat", flag.ContinueOnError)
	anchor := fs.String("anchor", "", "step anchor")
	worktreeID := fs.String("worktree", "", "worktree identifier")
	fs.Parse(args)

	path, code := a.resolvePlanPath(fs.Arg(0))
	if code != 0 {
		return code
	}

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("heartbeat: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	leaseSeconds := int64(a.cfg.General.LeaseDuration.Duration.Seconds())
	if err := st.HeartbeatStep(path, *anchor, *worktreeID, leaseSeconds); err != nil {
		a.logger.Error("heartbeat failed", "error", err)
		return cliutil.ExitGeneric
	}
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("heartbeat", map[string]string{"anchor": *anchor}))
	} else {
		fmt.Printf("heartbeat renewed for %s\n", *anchor)
	}
	return cliutil.ExitOK
}

func cmdRelease(a *app, args []string) int {
	fs := flag.NewFlagSet("release", flag.ContinueOnError)
	anchor := fs.String("anchor", "", "step anchor")
	worktreeID := fs.String("worktree", "", "worktree identifier")
	force := fs.Bool("force", false, "release even if not the current claimant")
	fs.Parse(args)

	path, code := a.resolvePlanPath(fs.Arg(0))
	if code != 0 {
		return code
	}

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("release: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	if err := st.ReleaseStep(path, *anchor, *worktreeID, *force); err != nil {
		a.logger.Error("release failed", "error", err)
		return cliutil.ExitGeneric
	}
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("release", map[string]string{"anchor": *anchor}))
	} else {
		fmt.Printf("released %s\n", *anchor)
	}
	return cliutil.ExitOK
}

func cmdChecklist(a *app, args []string) int {
	fs := flag.NewFlagSet("checklist", flag.ContinueOnError)
	anchor := fs.String("anchor", "", "step anchor")
	kind := fs.String("kind", "", "checklist kind: task, test, checkpoint")
	ordinal := fs.Int("ordinal", 0, "1-based item ordinal within kind (0 = whole kind/step)")
	all := fs.Bool("all", false, "select every item on the step")
	status := fs.String("status", "completed", "target status: completed or open (deferred requires checklist-batch)")
	allowReopen := fs.Bool("allow-reopen", false, "required to transition status=open, guards against accidental regression")
	fs.Parse(args)

	path, code := a.resolvePlanPath(fs.Arg(0))
	if code != 0 {
		return code
	}

	var sel state.ChecklistSelector
	switch {
	case *all:
		sel = state.AllItems{}
	case *ordinal > 0:
		sel = state.Individual{Kind: *kind, Ordinal: *ordinal}
	default:
		sel = state.BulkByKind{Kind: *kind}
	}

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("checklist: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	n, err := st.UpdateChecklist(path, *anchor, sel, state.ChecklistStatus(*status), "", *allowReopen)
	if err != nil {
		a.logger.Error("checklist update failed", "error", err)
		return cliutil.ExitGeneric
	}
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("checklist", map[string]int{"updated": n}))
	} else {
		fmt.Printf("updated %d item(s)\n", n)
	}
	return cliutil.ExitOK
}

// checklistBatchEntry is the stdin JSON shape for checklist-batch, matching
// the original tool's BatchUpdateEntry (kind, 1-based ordinal, status, an
// optional reason required only when status is deferred).
type checklistBatchEntry struct {
	Kind    string `json:"kind"`
	Ordinal int    `json:"ordinal"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

func cmdChecklistBatch(a *app, args []string) int {
	fs := flag.NewFlagSet("checklist-batch", flag.ContinueOnError)
	anchor := fs.String("anchor", "", "step anchor")
	completeRemaining := fs.Bool("complete-remaining", false, "transition every open item not named in the batch to completed")
	allowReopen := fs.Bool("allow-reopen", false, "required for any entry with status=open, guards against accidental regression")
	fs.Parse(args)

	path, code := a.resolvePlanPath(fs.Arg(0))
	if code != 0 {
		return code
	}

	var wireEntries []checklistBatchEntry
	if err := json.NewDecoder(os.Stdin).Decode(&wireEntries); err != nil {
		a.logger.Error("checklist-batch: invalid JSON on stdin", "error", err)
		return cliutil.ExitGeneric
	}
	if len(wireEntries) == 0 && !*completeRemaining {
		a.logger.Error("checklist-batch: batch array must contain at least one entry")
		return cliutil.ExitGeneric
	}

	entries := make([]state.ChecklistUpdate, len(wireEntries))
	for i, e := range wireEntries {
		entries[i] = state.ChecklistUpdate{Kind: e.Kind, Ordinal: e.Ordinal, Status: state.ChecklistStatus(e.Status), Reason: e.Reason}
	}

	st, err := a.openStore()
	if err != nil {
		a.logger.Error("checklist-batch: open store failed", "error", err)
		return cliutil.ExitNotInitialized
	}
	defer st.Close()

	n, err := st.BatchUpdateChecklist(path, *anchor, entries, *completeRemaining, *allowReopen)
	if err != nil {
		a.logger.Error("checklist-batch update failed", "error", err)
		return cliutil.ExitGeneric
	}
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("checklist-batch", map[string]int{"updated": n}))
	} else {
		fmt.Printf("updated %d item(s)\n", n)
	}
	return cliutil.ExitOK
}
