// Package health declares tug's doctor-style diagnostic contract: a small
// set of environment checks (git present, project initialised, beads CLI
// reachable) a caller can run and report, without the deep periodic
// monitoring the teacher's health package layers on top of the same idea.
package health

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/tugtool/tug/internal/config"
	"github.com/tugtool/tug/internal/project"
)

// CheckStatus classifies a single diagnostic outcome.
type CheckStatus string

const (
	StatusOK   CheckStatus = "ok"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// CheckResult is the outcome of one diagnostic check.
type CheckResult struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
}

// Checker runs a single named diagnostic against the current environment.
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckFunc adapts a plain function to the Checker interface.
type CheckFunc func(ctx context.Context) CheckResult

func (f CheckFunc) Check(ctx context.Context) CheckResult { return f(ctx) }

// DefaultChecks returns tug doctor's standard checks for the project
// rooted at startDir, using cfg for the beads CLI path.
func DefaultChecks(startDir string, cfg *config.Config) []Checker {
	return []Checker{
		CheckFunc(checkGitInstalled),
		CheckFunc(func(ctx context.Context) CheckResult { return checkProjectRoot(startDir) }),
		CheckFunc(func(ctx context.Context) CheckResult { return checkGitRepo(startDir) }),
		CheckFunc(func(ctx context.Context) CheckResult { return checkBeadsCLI(ctx, cfg) }),
		CheckFunc(func(ctx context.Context) CheckResult { return checkConfigReloads(startDir) }),
	}
}

// RunAll executes every checker and returns its results in order.
func RunAll(ctx context.Context, checks []Checker) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		results = append(results, c.Check(ctx))
	}
	return results
}

func checkGitInstalled(ctx context.Context) CheckResult {
	if _, err := exec.LookPath("git"); err != nil {
		return CheckResult{Name: "git", Status: StatusFail, Message: "git not found on PATH"}
	}
	return CheckResult{Name: "git", Status: StatusOK, Message: "git is installed"}
}

func checkProjectRoot(startDir string) CheckResult {
	proj, err := project.Locate(startDir)
	if err != nil || proj.ProjectRoot == "" {
		return CheckResult{Name: "project", Status: StatusFail, Message: "no " + project.MarkerDir + " marker found; run `tug init`"}
	}
	return CheckResult{Name: "project", Status: StatusOK, Message: "project root: " + proj.ProjectRoot}
}

func checkGitRepo(startDir string) CheckResult {
	proj, err := project.Locate(startDir)
	if err != nil || proj.RepoRoot == "" {
		return CheckResult{Name: "git-repo", Status: StatusFail, Message: "not inside a git repository"}
	}
	return CheckResult{Name: "git-repo", Status: StatusOK, Message: "repo root: " + proj.RepoRoot}
}

// checkConfigReloads exercises config.LoadManager the way a long-running
// caller would after an external edit to tug.toml: reload from disk through
// the RWMutex-backed manager and surface any parse/validation failure
// before a real command trips over it mid-run.
func checkConfigReloads(startDir string) CheckResult {
	proj, err := project.Locate(startDir)
	if err != nil || proj.ProjectRoot == "" {
		return CheckResult{Name: "config", Status: StatusWarn, Message: "no project root found; skipping config reload check"}
	}

	path := filepath.Join(proj.ProjectRoot, "tug.toml")
	if _, statErr := os.Stat(path); statErr != nil {
		return CheckResult{Name: "config", Status: StatusWarn, Message: "no tug.toml found; using built-in defaults"}
	}

	mgr, err := config.LoadManager(path)
	if err != nil {
		return CheckResult{Name: "config", Status: StatusFail, Message: "tug.toml failed to load: " + err.Error()}
	}
	if err := mgr.Reload(path); err != nil {
		return CheckResult{Name: "config", Status: StatusFail, Message: "tug.toml failed to reload: " + err.Error()}
	}
	return CheckResult{Name: "config", Status: StatusOK, Message: "tug.toml loaded and reloads cleanly: " + path}
}

func checkBeadsCLI(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil || !cfg.Beads.Enabled {
		return CheckResult{Name: "beads", Status: StatusWarn, Message: "beads integration disabled in config"}
	}
	bdPath := cfg.Beads.BDPath
	if bdPath == "" {
		bdPath = "bd"
	}
	if _, err := exec.LookPath(bdPath); err != nil {
		return CheckResult{Name: "beads", Status: StatusWarn, Message: "bd CLI not found on PATH (optional)"}
	}
	return CheckResult{Name: "beads", Status: StatusOK, Message: "bd CLI found: " + bdPath}
}
