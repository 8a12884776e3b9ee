package commit

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tugtool/tug/internal/plan"
	"github.com/tugtool/tug/internal/state"
)

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

// initWorktree sets up a bare-bones main repo plus a *linked* worktree
// (.git is a file there, matching a real `git worktree add`), with an
// initialised implementation log.
func initWorktree(t *testing.T) (repo, worktree string) {
	t.Helper()
	repo = t.TempDir()
	run(t, repo, "init", "-b", "main")
	run(t, repo, "config", "user.email", "tug@example.com")
	run(t, repo, "config", "user.name", "tug")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".tugtool"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, ".tugtool", "tugplan-implementation-log.md"), []byte(logHeader), 0o644))
	run(t, repo, "add", "-A")
	run(t, repo, "commit", "-m", "initial commit")

	worktree = filepath.Join(repo, "wt")
	run(t, repo, "worktree", "add", "-b", "tugplan/widget-20260730-090000", worktree)
	return repo, worktree
}

func TestIsMainWorktree(t *testing.T) {
	repo, worktree := initWorktree(t)
	require.True(t, isMainWorktree(repo))
	require.False(t, isMainWorktree(worktree))
}

func TestAddOrReplaceTrailersAppendsWhenAbsent(t *testing.T) {
	result := addOrReplaceTrailers("feat: add widget", "widget-loader", "plans/widgets.md")
	require.Contains(t, result, "Tug-Step: widget-loader")
	require.Contains(t, result, "Tug-Plan: plans/widgets.md")
	require.Contains(t, result, "\n\nTug-")
}

func TestAddOrReplaceTrailersReplacesExisting(t *testing.T) {
	msg := "feat: update\n\nTug-Step: old-step\nTug-Plan: plans/old.md\n"
	result := addOrReplaceTrailers(msg, "new-step", "plans/new.md")
	require.Contains(t, result, "Tug-Step: new-step")
	require.Contains(t, result, "Tug-Plan: plans/new.md")
	require.NotContains(t, result, "old-step")
	require.NotContains(t, result, "plans/old.md")
	require.Equal(t, 1, strings.Count(result, "Tug-Step:"))
	require.Equal(t, 1, strings.Count(result, "Tug-Plan:"))
}

func TestRotateLogArchivesOverLineThreshold(t *testing.T) {
	repo, _ := initWorktree(t)
	logPath := filepath.Join(repo, ".tugtool", "tugplan-implementation-log.md")

	var sb strings.Builder
	for i := 0; i < 510; i++ {
		sb.WriteString("line\n")
	}
	require.NoError(t, os.WriteFile(logPath, []byte(sb.String()), 0o644))

	result, err := RotateLog(repo, false)
	require.NoError(t, err)
	require.True(t, result.Rotated)
	require.Equal(t, "line_count_exceeded", result.Reason)

	fresh, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(fresh), "# Tug Implementation Log")

	archived, err := os.ReadFile(filepath.Join(repo, result.ArchivedPath))
	require.NoError(t, err)
	require.Contains(t, string(archived), "line\n")
}

func TestRotateLogSkipsUnderThreshold(t *testing.T) {
	repo, _ := initWorktree(t)
	result, err := RotateLog(repo, false)
	require.NoError(t, err)
	require.False(t, result.Rotated)
}

func TestPrependLogInsertsAfterHeaderSeparator(t *testing.T) {
	repo, _ := initWorktree(t)
	_, err := PrependLog(repo, "widget-loader", "plans/widgets.md", "wired up the loader")
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(repo, ".tugtool", "tugplan-implementation-log.md"))
	require.NoError(t, err)
	require.Contains(t, string(content), "step: widget-loader")
	require.Contains(t, string(content), "## widget-loader: wired up the loader")
}

func TestRunCommitsAndCompletesStep(t *testing.T) {
	_, worktree := initWorktree(t)

	s, err := state.Open(filepath.Join(worktree, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	p := &plan.Plan{
		PhaseTitle: "Phase: widgets",
		Steps: []*plan.Step{{
			Number: "1", Title: "Widget loader", Anchor: "widget-loader",
		}},
	}
	_, err = s.InitPlan("plans/widgets.md", p, "hash-1")
	require.NoError(t, err)
	_, err = s.ClaimStep("plans/widgets.md", "wt-1", 3600, "hash-1", false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(worktree, "widget.go"), []byte("package widget\n"), 0o644))

	result, err := Run(s, worktree, "widget-loader", "plans/widgets.md", "feat: add widget loader", "wired up the loader", "wt-1")
	require.NoError(t, err)
	require.NotEmpty(t, result.CommitHash)
	require.True(t, result.StateCompleted)
	require.Contains(t, result.FilesStaged, "widget.go")

	ps, err := s.ShowPlan("plans/widgets.md")
	require.NoError(t, err)
	require.Equal(t, state.StepCompleted, ps.Steps[0].Step.Status)
}

func TestRunRefusesMainWorktree(t *testing.T) {
	repo, _ := initWorktree(t)
	s, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = Run(s, repo, "widget-loader", "plans/widgets.md", "feat: x", "x", "wt-1")
	require.ErrorIs(t, err, ErrMainWorktree)
}
