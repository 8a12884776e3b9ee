package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tugtool/tug/internal/beads"
	"github.com/tugtool/tug/internal/cliutil"
)

func init() {
	register("beads-sync", "sync a plan's step graph into the configured beads project", cmdBeadsSync)
	register("beads-close", "close a bead and run the implementation-log rotation check", cmdBeadsClose)
}

// beadsDir returns the directory bd operates against, or an error if beads
// tracking is disabled in config.
func (a *app) beadsDir() (string, error) {
	if !a.cfg.Beads.Enabled {
		return "", fmt.Errorf("beads tracking is disabled (set [beads] enabled = true in config)")
	}
	root, err := a.proj.RequireProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ".beads"), nil
}

func cmdBeadsSync(a *app, args []string) int {
	fs := flag.NewFlagSet("beads-sync", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "report what would sync without writing to beads")
	enrich := fs.Bool("enrich", false, "push description/design/acceptance text on every sync, not just creation")
	pruneDeps := fs.Bool("prune-deps", false, "remove bead dependency edges no longer present in the plan")
	syncSubsteps := fs.Bool("substeps", false, "give each substep its own child bead")
	fs.Parse(args)

	path, code := a.resolvePlanPath(fs.Arg(0))
	if code != 0 {
		return code
	}
	p, err := loadPlan(path)
	if err != nil {
		a.logger.Error("beads-sync: parse failed", "path", path, "error", err)
		return cliutil.ExitValidationFailed
	}

	dir, err := a.beadsDir()
	if err != nil {
		a.logger.Error("beads-sync: beads not available", "error", err)
		return cliutil.ExitExternalNotInit
	}

	result, err := beads.SyncPlanSteps(a.ctx, dir, p, beads.SyncOptions{
		DryRun:       *dryRun,
		Enrich:       *enrich,
		PruneDeps:    *pruneDeps,
		SyncSubsteps: *syncSubsteps,
	})
	if err != nil {
		a.logger.Error("beads-sync failed", "error", err)
		return cliutil.ExitExternalToolFailed
	}
	for _, w := range result.EnrichErrors {
		a.logger.Warn("beads-sync enrichment warning", "warning", w)
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("beads-sync", result))
	} else {
		fmt.Printf("root=%s steps_synced=%d deps_added=%d\n", result.RootBeadID, result.StepsSynced, result.DepsAdded)
	}
	return cliutil.ExitOK
}

func cmdBeadsClose(a *app, args []string) int {
	fs := flag.NewFlagSet("beads-close", flag.ContinueOnError)
	beadID := fs.String("bead", "", "bead ID to close")
	reason := fs.String("reason", "", "optional close reason")
	fs.Parse(args)

	if *beadID == "" {
		a.logger.Error("beads-close: -bead is required")
		return cliutil.ExitGeneric
	}

	dir, err := a.beadsDir()
	if err != nil {
		a.logger.Error("beads-close: beads not available", "error", err)
		return cliutil.ExitExternalNotInit
	}
	cwd, err := os.Getwd()
	if err != nil {
		a.logger.Error("beads-close: could not resolve working directory", "error", err)
		return cliutil.ExitGeneric
	}

	result, err := beads.CloseBeadAndRotate(a.ctx, dir, cwd, *beadID, *reason)
	if err != nil {
		a.logger.Error("beads-close failed", "error", err)
		return cliutil.ExitExternalToolFailed
	}
	if result.Warning != "" {
		a.logger.Warn("beads-close: log rotation check failed", "warning", result.Warning)
	}

	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("beads-close", result))
	} else {
		fmt.Printf("closed %s\n", result.BeadID)
		if result.Log.Rotated {
			fmt.Printf("implementation log rotated to %s\n", result.Log.ArchivedPath)
		}
	}
	return cliutil.ExitOK
}
