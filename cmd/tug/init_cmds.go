package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tugtool/tug/internal/cliutil"
	"github.com/tugtool/tug/internal/project"
)

func init() {
	register("init", "bootstrap a new tug project in the current directory", cmdInit)
}

const defaultConfigTOML = `[general]
plan_dir = ".tug"
plan_prefix = "plan-"
state_db = ".tugtool/state.db"
lease_duration = "2h"
log_rotate_lines = 500
log_rotate_bytes = 102400

[git]
base_branch = ""
tugtree_dir = ".tugtree"

[beads]
enabled = false
bd_path = "bd"
root_issue_type = "epic"
`

const planSkeletonContent = `# plan-example

## Goal

Describe what this plan accomplishes.

## Step: first-step {#first-step}

- Tasks:
  - [ ] Describe the first task
- Tests:
  - [ ] Describe how this step is verified
`

const implementationLogHeader = `# Tug Implementation Log

This file documents the implementation progress for this project.

Entries are sorted newest-first.

---

`

type initResult struct {
	Path         string   `json:"path"`
	FilesCreated []string `json:"files_created"`
}

type initCheckResult struct {
	Initialized bool   `json:"initialized"`
	Path        string `json:"path"`
}

func cmdInit(a *app, args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	force := fs.Bool("force", false, "remove and recreate .tugtool/ from scratch")
	check := fs.Bool("check", false, "report initialization status without side effects")
	fs.Parse(args)

	cwd, err := os.Getwd()
	if err != nil {
		a.logger.Error("init: could not resolve working directory", "error", err)
		return cliutil.ExitGeneric
	}
	tugDir := filepath.Join(cwd, project.MarkerDir)

	if *check {
		_, statErr := os.Stat(filepath.Join(tugDir, "tugplan-skeleton.md"))
		initialized := statErr == nil
		result := initCheckResult{Initialized: initialized, Path: project.MarkerDir + "/"}
		if a.jsonOut {
			cliutil.WriteJSON(os.Stdout, cliutil.OK("init", result))
		} else {
			fmt.Printf("initialized=%v (%s)\n", initialized, result.Path)
		}
		if !initialized {
			return cliutil.ExitNotInitialized
		}
		return cliutil.ExitOK
	}

	if *force {
		if err := os.RemoveAll(tugDir); err != nil {
			a.logger.Error("init: failed to remove existing .tugtool", "error", err)
			return cliutil.ExitGeneric
		}
	}

	if _, err := project.EnsureMarker(cwd); err != nil {
		a.logger.Error("init failed", "error", err)
		return cliutil.ExitGeneric
	}

	var filesCreated []string
	writeIfMissing := func(name, content string) error {
		path := filepath.Join(tugDir, name)
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		filesCreated = append(filesCreated, name)
		return nil
	}

	if err := writeIfMissing("tugplan-skeleton.md", planSkeletonContent); err != nil {
		a.logger.Error("init failed", "error", err)
		return cliutil.ExitGeneric
	}
	if err := writeIfMissing("config.toml", defaultConfigTOML); err != nil {
		a.logger.Error("init failed", "error", err)
		return cliutil.ExitGeneric
	}
	if err := writeIfMissing("tugplan-implementation-log.md", implementationLogHeader); err != nil {
		a.logger.Error("init failed", "error", err)
		return cliutil.ExitGeneric
	}

	result := initResult{Path: project.MarkerDir + "/", FilesCreated: filesCreated}
	if a.jsonOut {
		cliutil.WriteJSON(os.Stdout, cliutil.OK("init", result))
	} else if len(filesCreated) == 0 {
		fmt.Printf("tug project already initialized in %s/ (nothing to do)\n", project.MarkerDir)
	} else {
		fmt.Printf("tug project in %s/ updated:\n", project.MarkerDir)
		for _, f := range filesCreated {
			fmt.Printf("  created: %s\n", f)
		}
	}
	return cliutil.ExitOK
}
