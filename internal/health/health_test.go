package health

import (
	"context"
	"testing"

	"github.com/tugtool/tug/internal/config"
)

func TestCheckGitInstalledFindsGit(t *testing.T) {
	result := checkGitInstalled(context.Background())
	if result.Name != "git" {
		t.Fatalf("unexpected check name: %q", result.Name)
	}
}

func TestCheckProjectRootFailsOutsideProject(t *testing.T) {
	result := checkProjectRoot(t.TempDir())
	if result.Status != StatusFail {
		t.Fatalf("expected fail status for a bare temp dir, got %q: %s", result.Status, result.Message)
	}
}

func TestCheckBeadsCLIWarnsWhenDisabled(t *testing.T) {
	result := checkBeadsCLI(context.Background(), &config.Config{})
	if result.Status != StatusWarn {
		t.Fatalf("expected warn status when beads disabled, got %q", result.Status)
	}
}

func TestRunAllPreservesOrder(t *testing.T) {
	checks := []Checker{
		CheckFunc(func(ctx context.Context) CheckResult { return CheckResult{Name: "a"} }),
		CheckFunc(func(ctx context.Context) CheckResult { return CheckResult{Name: "b"} }),
	}
	results := RunAll(context.Background(), checks)
	if len(results) != 2 || results[0].Name != "a" || results[1].Name != "b" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestDefaultChecksCount(t *testing.T) {
	checks := DefaultChecks(t.TempDir(), &config.Config{})
	if len(checks) != 5 {
		t.Fatalf("expected 5 default checks, got %d", len(checks))
	}
}

func TestCheckConfigReloadsWarnsWithoutProjectRoot(t *testing.T) {
	result := checkConfigReloads(t.TempDir())
	if result.Status != StatusWarn {
		t.Fatalf("expected warn status outside a project, got %q: %s", result.Status, result.Message)
	}
}
